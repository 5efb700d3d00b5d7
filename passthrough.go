package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// escapeKey ends a passthrough session (Ctrl-]).
const escapeKey = 0x1d

var passthroughCmd = &cobra.Command{
	Use:   "passthrough",
	Short: "Connect the terminal directly to the module's serial port",
	Long: `Copy bytes between the terminal and the module without interpretation.

Commands must be typed in full, including the AT+ prefix. Press Ctrl-] to
leave. The module is not reset and no self-test is run.`,
	Args: cobra.NoArgs,
	RunE: runPassthrough,
}

func init() {
	passthroughCmd.Flags().Bool("echo", true, "Echo typed characters locally")
	rootCmd.AddCommand(passthroughCmd)
}

func runPassthrough(cmd *cobra.Command, args []string) error {
	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	echo, _ := cmd.Flags().GetBool("echo")

	port, err := dialSerial(cmd.Context(), config)
	if err != nil {
		logger.Error("Failed to open serial port", "error", err, "port", config.SerialPort)
		return err
	}
	defer port.Close()

	b := &bridge{port: port, in: os.Stdin, out: cmd.OutOrStdout(), echo: echo}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(fd, state)
		b.crlf = true
	}

	fmt.Fprintf(os.Stderr, "Connected to %s at %d baud, press Ctrl-] to exit\r\n", config.SerialPort, config.BaudRate)
	return b.run()
}

// bridge copies bytes between a terminal and the module.
type bridge struct {
	port io.ReadWriter
	in   io.Reader
	out  io.Writer
	// echo writes typed bytes to out.
	echo bool
	// crlf expands a typed CR to CRLF, as sent by a raw terminal on Enter.
	crlf bool

	mu sync.Mutex
}

// run returns when in is exhausted, the escape key is typed or the port
// fails.
func (b *bridge) run() error {
	done := make(chan struct{})
	portErr := make(chan error, 1)
	go func() {
		portErr <- b.copyFromPort(done)
	}()

	err := b.copyToPort()
	close(done)
	if perr := <-portErr; err == nil {
		err = perr
	}
	return err
}

func (b *bridge) copyToPort() error {
	buf := make([]byte, 256)
	for {
		n, err := b.in.Read(buf)
		chunk := buf[:n]
		stop := false
		if i := bytes.IndexByte(chunk, escapeKey); i >= 0 {
			chunk, stop = chunk[:i], true
		}
		if b.crlf {
			chunk = bytes.ReplaceAll(chunk, []byte{'\r'}, []byte("\r\n"))
		}
		if len(chunk) > 0 {
			if b.echo {
				b.write(chunk)
			}
			if _, werr := b.port.Write(chunk); werr != nil {
				return fmt.Errorf("write to module: %w", werr)
			}
		}
		if stop || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func (b *bridge) copyFromPort(done <-chan struct{}) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-done:
			return nil
		default:
		}
		n, err := b.port.Read(buf)
		if n > 0 {
			b.write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read from module: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func (b *bridge) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out.Write(p)
}
