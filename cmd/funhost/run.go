package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/funhost/host"
	"github.com/caffeineduck/funhost/internal/console"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Boot the host and run one FunLang program",
	Long: `Boot the host, run a FunLang program once, and exit.

Code can be provided via:
  - File argument: funhost run hello.fun
  - Inline flag: funhost run -c 'print("hi");'
  - Stdin: echo 'print("hi");' | funhost run

The program's output is written to stdout, followed by its result or
error. The exit status is 1 when boot or the program fails.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().String("config", string(host.DefaultSelector), "Language configuration: default, turkish, spanish, emoji")
}

// readSource returns the program from -c, a file argument, or piped stdin.
// ok is false when none was given.
func readSource(cmd *cobra.Command, args []string) (source string, ok bool, err error) {
	code, _ := cmd.Flags().GetString("code")
	switch {
	case code != "":
		return code, true, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}

	stdin := cmd.InOrStdin()
	if f, isFile := stdin.(*os.File); isFile {
		// No piped input
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", false, nil
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", false, err
	}
	return string(data), len(data) > 0, nil
}

func runRun(cmd *cobra.Command, args []string) {
	source, ok, err := readSource(cmd, args)
	if err != nil {
		exitWithError(err)
	}
	if !ok {
		cmd.Help()
		return
	}
	sel, _ := cmd.Flags().GetString("config")

	a, _, err := newApp(cmd, nil, nil)
	if err != nil {
		exitWithError(err)
	}

	code, err := runOnce(context.Background(), a, cmd.OutOrStdout(), source, host.Selector(sel))
	if err != nil {
		exitWithError(err)
	}
	if code != 0 {
		os.Exit(code)
	}
}

// runOnce boots a, runs source, and writes the transcript to w. The engine
// is released before it returns, so callers may exit immediately. The exit
// code is 1 when the program failed.
func runOnce(ctx context.Context, a *app, w io.Writer, source string, sel host.Selector) (int, error) {
	defer a.ctrl.Close(ctx)

	if err := a.ctrl.Boot(ctx); err != nil {
		return 1, err
	}

	out := a.ctrl.Run(ctx, source, sel)
	fmt.Fprint(w, console.Transcript(out))
	if out.Failed() {
		return 1, nil
	}
	return 0, nil
}
