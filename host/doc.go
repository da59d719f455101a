// Package host controls the lifecycle of an embedded scripting runtime.
//
// A [Controller] boots the runtime exactly once through a forward-only
// sequence of states:
//
//	Idle -> LoadingEngine -> LoadingManifest -> StagingFiles ->
//	RegisteringPath -> ImportingEntryPoint -> Ready
//
// Any failure moves it to Failed, which is terminal; the process must be
// restarted to boot again. Once Ready, [Controller.Run] executes one
// (source, selector) request at a time and always returns an [Outcome]:
//
//	ctrl := host.New(host.DefaultConfig(), ldr, wasm.NewLoader(ldr, python.New()))
//	if err := ctrl.Boot(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	out := ctrl.Run(ctx, `print("hi");`, "default")
//	fmt.Print(out.Stdout)
package host
