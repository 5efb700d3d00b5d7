package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"i4.energy/across/expresslink/expresslink"
)

const (
	historyFileName = ".expresslink_history"
	historySize     = 500
	consolePrompt   = "AT+"
)

const consoleHelp = `Read commands line by line and print each response.

Commands are typed without the AT+ prefix. A bare AT runs the self-test.
Lines starting with a dot are handled locally:

  .event     take all pending events
  .state     print the channel state
  .help      print this help
  .quit      leave the console`

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive command console",
	Long:  consoleHelp,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			src := newLineSource(cmd.OutOrStdout())
			defer src.Close()
			return runConsole(ctx, el, src, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// lineSource reads one line of input at a time.
type lineSource interface {
	GetLine(prompt string) (string, error)
	Close() error
}

// newLineSource uses readline with persistent history on a terminal and
// plain line scanning otherwise.
func newLineSource(out io.Writer) lineSource {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &scannerSource{scanner: bufio.NewScanner(os.Stdin), out: out}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            filepath.Join(home, historyFileName),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &scannerSource{scanner: bufio.NewScanner(os.Stdin), out: out}
	}
	return &readlineSource{rl: rl}
}

type readlineSource struct {
	rl *readline.Instance
}

func (s *readlineSource) GetLine(prompt string) (string, error) {
	s.rl.SetPrompt(prompt)
	line, err := s.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		s.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (s *readlineSource) Close() error {
	return s.rl.Close()
}

type scannerSource struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (s *scannerSource) GetLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scannerSource) Close() error { return nil }

// runConsole executes lines from src until EOF, .quit or ctx is done.
// Command failures are printed and do not end the console; transport
// failures do.
func runConsole(ctx context.Context, el *expresslink.ExpressLink, src lineSource, out io.Writer) error {
	for ctx.Err() == nil {
		line, err := src.GetLine(consolePrompt)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == ".quit" || line == ".exit":
			return nil
		case line == ".help":
			fmt.Fprintln(out, consoleHelp)
		case line == ".state":
			fmt.Fprintln(out, el.State())
		case line == ".event":
			if err := drainEvents(ctx, el, out, false, 0); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case strings.HasPrefix(line, "."):
			fmt.Fprintf(out, "unknown console command %s, try .help\n", line)
		case strings.EqualFold(line, "AT"):
			if el.SelfTest(ctx) {
				fmt.Fprintln(out, "OK")
			} else {
				fmt.Fprintln(out, "self-test failed")
			}
		default:
			resp, err := el.Execute(ctx, commandLine([]string{line}))
			if err != nil {
				if errors.Is(err, expresslink.ErrAlreadyClosed) || ctx.Err() != nil {
					return err
				}
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, formatResponse(resp))
		}
	}
	return nil
}
