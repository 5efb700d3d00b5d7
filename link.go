package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
	"i4.energy/across/expresslink/expresslink"
)

// dialSerial opens the configured serial port.
func dialSerial(ctx context.Context, config *Config) (expresslink.Transport, error) {
	return expresslink.SerialDialer{
		PortName:    config.SerialPort,
		BaudRate:    config.BaudRate,
		ReadTimeout: config.ReadTimeout,
	}.Dial(ctx)
}

// openLink opens the serial port, wires the configured handshake lines to
// the module's control pins and brings the module up.
func openLink(ctx context.Context, config *Config, logger *slog.Logger, hooks expresslink.Hooks) (*expresslink.ExpressLink, error) {
	transport, err := dialSerial(ctx, config)
	if err != nil {
		return nil, err
	}

	builder := expresslink.NewConfigBuilder().
		WithDialer(expresslink.DialerFunc(func(context.Context) (expresslink.Transport, error) {
			return transport, nil
		})).
		WithLogger(logger.With("component", "expresslink")).
		WithHooks(hooks)

	if port, ok := transport.(serial.Port); ok {
		if err := wireLines(builder, port, config); err != nil {
			transport.Close()
			return nil, err
		}
	}

	elConfig, err := builder.Build()
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("create expresslink config: %w", err)
	}
	return expresslink.New(ctx, elConfig)
}

func wireLines(b *expresslink.ConfigBuilder, port serial.Port, config *Config) error {
	line := func(name string) (*expresslink.SerialLine, error) {
		if name == "" {
			return nil, nil
		}
		signal, err := expresslink.ParseModemSignal(name)
		if err != nil {
			return nil, err
		}
		return &expresslink.SerialLine{Port: port, Signal: signal, Inverted: config.InvertLines}, nil
	}

	reset, err := line(config.ResetLine)
	if err != nil {
		return fmt.Errorf("reset line: %w", err)
	}
	if reset != nil {
		b.WithResetPin(reset)
	}

	wake, err := line(config.WakeLine)
	if err != nil {
		return fmt.Errorf("wake line: %w", err)
	}
	if wake != nil {
		b.WithWakePin(wake)
	}

	event, err := line(config.EventLine)
	if err != nil {
		return fmt.Errorf("event line: %w", err)
	}
	if event != nil {
		b.WithEventPin(event)
	}
	return nil
}
