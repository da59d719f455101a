package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caffeineduck/funhost/internal/config"
	"github.com/caffeineduck/funhost/internal/console"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Boot the host and report whether it reached Ready",
	Long: `Boot the host, print each lifecycle status as it happens, and report
the search path and staged sources once ready. Useful for checking a
content root before serving it.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	a, cfg, err := newApp(cmd, nil, w)
	if err != nil {
		exitWithError(err)
	}
	if err := reportStatus(context.Background(), a, cfg, w); err != nil {
		fmt.Fprintln(w, console.HintStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// reportStatus boots a and describes the ready host. The engine is
// released before it returns.
func reportStatus(ctx context.Context, a *app, cfg *config.Config, w io.Writer) error {
	defer a.ctrl.Close(ctx)

	if err := a.ctrl.Boot(ctx); err != nil {
		return err
	}

	eng := a.ctrl.Engine()
	fmt.Fprintf(w, "content root: %s\n", cfg.ContentRoot)
	fmt.Fprintf(w, "search path:  %s\n", strings.Join(eng.SearchPaths(), ":"))
	fmt.Fprintf(w, "entry point:  %s.%s\n", cfg.EntryModule, cfg.EntrySymbol)
	fmt.Fprintf(w, "configs:      %s\n", strings.Join(console.ExampleKeys(), ", "))
	return nil
}
