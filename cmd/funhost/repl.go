package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/funhost/host"
	"github.com/caffeineduck/funhost/internal/console"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive FunLang console",
	Long: `Boot the host and start an interactive console.

Each entry is run as a FunLang program on the shared session and its
transcript is printed. Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Commands:
  :config [key]   Show or change the configuration (default, turkish, spanish, emoji)
  :example        Load and print the sample program for the configuration
  :run            Run the current program again
  :format         Trim whitespace in the current program and print it
  :clear          Clear the transcript
  :status         Print the host status

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	Run:  runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.funhost_history)")
	replCmd.Flags().String("config", string(host.DefaultSelector), "Initial language configuration")
	rootCmd.AddCommand(replCmd)
}

// replSession interprets console input. It is separate from the readline
// loop so commands can be driven without a terminal.
type replSession struct {
	a   *app
	out io.Writer
}

// handle processes one complete entry and reports whether the user asked
// to quit.
func (r *replSession) handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if line == "exit" || line == "quit" {
		return true
	}

	if !strings.HasPrefix(line, ":") {
		r.a.con.SetSource(line)
		r.run(ctx)
		return false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "config":
		if arg != "" {
			r.a.con.SetSelector(host.Selector(arg))
		}
		fmt.Fprintln(r.out, console.RenderStatus(r.a.con.Status()))
	case "example":
		src, err := r.a.con.LoadExample()
		if err != nil {
			r.report(err)
			return false
		}
		fmt.Fprint(r.out, src)
	case "run":
		r.run(ctx)
	case "format":
		src, err := r.a.con.FormatSource()
		if err != nil {
			r.report(err)
			return false
		}
		fmt.Fprint(r.out, src)
	case "clear":
		if err := r.a.con.Clear(); err != nil {
			r.report(err)
		}
	case "status":
		fmt.Fprintln(r.out, console.RenderStatus(r.a.con.Status()))
	default:
		fmt.Fprintln(r.out, console.HintStyle.Render("unknown command :"+name))
	}
	return false
}

// run executes the current source. The transcript reaches r.out through
// the console sink.
func (r *replSession) run(ctx context.Context) {
	if _, err := r.a.con.Run(ctx); err != nil {
		r.report(err)
	}
}

func (r *replSession) report(err error) {
	fmt.Fprintf(r.out, "Error: %v\n", err)
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")
	sel, _ := cmd.Flags().GetString("config")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".funhost_history")
	}

	out := cmd.OutOrStdout()
	a, _, err := newApp(cmd, console.NewSink(out), cmd.ErrOrStderr())
	if err != nil {
		exitWithError(err)
	}
	ctx := context.Background()
	defer a.ctrl.Close(ctx)

	if err := a.ctrl.Boot(ctx); err != nil {
		// The console has already printed the boot error block, and a
		// failed boot has released the engine.
		os.Exit(1)
	}
	a.con.SetSelector(host.Selector(sel))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            console.PromptStyle.Render("fun> "),
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		a.ctrl.Close(ctx)
		exitWithError(fmt.Errorf("initializing readline: %w", err))
	}
	defer rl.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), console.HintStyle.Render("FunLang console (type 'exit' to quit, Ctrl+D to exit, :example for a sample)"))

	session := &replSession{a: a, out: out}
	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(console.PromptStyle.Render("fun> "))
				}
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt(console.PromptStyle.Render(" ... "))
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(console.PromptStyle.Render("fun> "))
		}

		if session.handle(ctx, line) {
			break
		}
	}
}
