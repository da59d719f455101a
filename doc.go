// Package funhost hosts the FunLang interpreter on an embedded Python
// runtime compiled to WebAssembly.
//
// # Overview
//
// The interpreter is plain Python source published next to a manifest. At
// boot the host acquires a runtime, stages every manifest entry into the
// runtime's private filesystem, registers the staging root on the module
// search path, and imports the entry point. From then on programs run one
// at a time in that single session, optionally with a configuration file
// that localizes the language keywords.
//
// # Basic Usage
//
//	ldr, _ := loader.New("web")
//	cfg := host.DefaultConfig()
//	cfg.Engine.AssetURL = "engine/python.wasm"
//	ctrl := host.New(cfg, ldr, wasm.NewLoader(ldr, python.New()))
//	if err := ctrl.Boot(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Close(ctx)
//
//	out := ctrl.Run(ctx, `yazdir("merhaba");`, "turkish")
//	fmt.Print(out.Stdout)
//
// Run never returns an error; failures arrive in [host.Outcome.Error].
//
// See the [host], [loader], [stager], [engine/wasm], and [internal/console]
// packages for detailed API documentation, and cmd/funhost for the CLI.
package funhost
