package main

import (
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/engine/wasm"
	"github.com/caffeineduck/funhost/host"
	"github.com/caffeineduck/funhost/internal/config"
	"github.com/caffeineduck/funhost/internal/console"
	"github.com/caffeineduck/funhost/language/python"
	"github.com/caffeineduck/funhost/loader"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "funhost [file]",
	Short: "Host for the FunLang interpreter on an embedded Python runtime",
	Long: `funhost - Boot an embedded Python runtime in WebAssembly, stage the
FunLang interpreter sources into it, and run FunLang programs.

The runtime binary and interpreter sources are read from a content root,
either a local directory or an http(s) URL. Programs run one at a time in
a single long-lived session, optionally with a named configuration
(default, turkish, spanish, emoji) that localizes the language keywords.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().String("config-file", "", "Config file (yaml, toml, or json)")
	rootCmd.PersistentFlags().String("content-root", defaults.ContentRoot, "Directory or URL holding the engine asset and interpreter sources")
	rootCmd.PersistentFlags().String("engine-asset", defaults.EngineAsset, "Engine binary, relative to the content root")
	rootCmd.PersistentFlags().String("memory", defaults.Memory, "Memory limit: 64mb, 256mb, 1gb, default")
	rootCmd.PersistentFlags().Bool("disk-cache", defaults.DiskCache, "Cache compiled engine code on disk")
	rootCmd.PersistentFlags().String("cache-dir", defaults.CacheDir, "Compilation cache directory")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")

	addRunFlags(rootCmd)
}

// app is one booted-or-booting host with its presentation state.
type app struct {
	logger *log.Logger
	ctrl   *host.Controller
	con    *console.Console
}

// newApp resolves configuration for cmd and wires the loader, wasm engine,
// and controller. Nothing is fetched until the controller boots. Status
// changes are printed to statusOut when it is non-nil.
func newApp(cmd *cobra.Command, sink *console.Sink, statusOut io.Writer) (*app, *config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config-file")
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	ldr, err := loader.New(cfg.ContentRoot, loader.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	load := wasm.NewLoader(ldr, python.New(), cfg.EngineOptions(logger)...)
	return assemble(cfg.Host(), ldr, load, logger, sink, statusOut), cfg, nil
}

func assemble(hc host.Config, fetcher host.Fetcher, load engine.LoadFunc, logger *log.Logger, sink *console.Sink, statusOut io.Writer) *app {
	a := &app{logger: logger}
	opts := []console.Option{console.WithLogger(logger)}
	if sink != nil {
		opts = append(opts, console.WithSink(sink))
	}
	a.ctrl = host.New(hc, fetcher, load,
		host.WithLogger(logger),
		host.WithObserver(func(t host.Transition) {
			a.con.Observe(t)
			if statusOut != nil {
				fmt.Fprintln(statusOut, console.RenderStatus(a.con.Status()))
			}
		}))
	a.con = console.New(a.ctrl, opts...)
	return a
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
