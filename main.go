package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"i4.energy/across/expresslink/expresslink"
)

var rootCmd = &cobra.Command{
	Use:   "expresslink",
	Short: "Drive an AWS IoT ExpressLink module over its serial AT interface",
	Long: `expresslink talks to an AWS IoT ExpressLink module over a serial port.

It can serve an HTTP API for the module, send single commands, poll the event
queue, read and write configuration keys, or open an interactive console.

Configuration is read from defaults, an optional TOML file (--config), the
environment and finally the command-line flags, each overriding the last.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a TOML configuration file")
	pf.String("serial-port", "/dev/ttyUSB0", "Serial port connected to the module")
	pf.Int("baud-rate", expresslink.DefaultBaudRate, "Baud rate for serial communication")
	pf.Duration("read-timeout", expresslink.DefaultReadTimeout, "Timeout for a single serial read")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "json", "Log format (json, text)")
	pf.String("reset-line", "", "Handshake line wired to the module's RESET pin (DTR, RTS)")
	pf.String("wake-line", "", "Handshake line wired to the module's WAKE pin (DTR, RTS)")
	pf.String("event-line", "", "Handshake line wired to the module's EVENT pin (CTS, DSR, RI, DCD)")
	pf.Bool("invert-lines", false, "Invert the handshake line levels")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the configuration for cmd from all sources.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("EXPRESSLINK_CONFIG")
	}
	return LoadConfig(WithDefaults(), WithFile(path), WithEnv(), WithFlags(cmd.Flags()))
}

// setup loads the configuration and the logger for cmd.
func setup(cmd *cobra.Command) (*Config, *slog.Logger, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		return nil, nil, err
	}
	return config, newLogger(os.Stderr, config.LogLevel, config.LogFormat), nil
}

// withLink opens the module, runs fn and closes the module again. Commands
// are refused when the self-test failed.
func withLink(cmd *cobra.Command, fn func(ctx context.Context, el *expresslink.ExpressLink) error) error {
	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	el, err := openLink(ctx, config, logger, expresslink.Hooks{})
	if err != nil {
		logger.Error("Failed to open ExpressLink", "error", err, "port", config.SerialPort)
		return err
	}
	defer el.Close()

	if !el.Ready() {
		err := fmt.Errorf("module on %s did not pass the self-test", config.SerialPort)
		logger.Error("ExpressLink not ready", "error", err)
		return err
	}
	if err := fn(ctx, el); err != nil {
		logger.Error("Command failed", "error", err)
		return err
	}
	return nil
}
