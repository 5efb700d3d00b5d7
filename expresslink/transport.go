package expresslink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_transport.go -package=expresslink . Transport,Dialer,InputDiscarder

// Transport represents an established, bidirectional byte stream to an
// ExpressLink module.
//
// Read is expected to return within a bounded time even when no data is
// pending, returning (0, nil) in that case, so that the line reader can
// enforce its polling budget. Serial ports opened by SerialDialer satisfy
// this through their read timeout.
type Transport interface {
	io.ReadWriteCloser
}

// InputDiscarder is the optional "discard pending input" capability of a
// Transport. serial.Port implements it.
type InputDiscarder interface {
	ResetInputBuffer() error
}

// Dialer opens a Transport to an ExpressLink module.
//
// Dialer abstracts how the connection is created (for example, via a serial
// port, a TCP bridge or a test double) and is used during construction only.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It
	// should respect cancellation provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the UART speed mandated for ExpressLink modules
// (115200 8N1, no flow control).
const DefaultBaudRate = 115200

// DefaultReadTimeout bounds a single Read on a serial port.
const DefaultReadTimeout = 100 * time.Millisecond

// SerialDialer opens an ExpressLink module over a serial port using
// go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// BaudRate is used when Mode is nil.
	BaudRate int
	// Mode overrides the default 8N1 mode.
	Mode *serial.Mode
	// ReadTimeout bounds each Read so the line reader can poll.
	ReadTimeout time.Duration
}

var errEmptyPortName = errors.New("expresslink: serial port name is required")

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("expresslink: context is nil")
	}
	if d.PortName == "" {
		return nil, errEmptyPortName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}

	timeout := d.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
	}
	return port, nil
}

// PortNames lists the serial ports available on this host.
func PortNames() ([]string, error) {
	return serial.GetPortsList()
}
