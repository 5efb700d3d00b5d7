package expresslink

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// OutputPin is a digital output driven by the host, such as the module's
// RESET or WAKE line. Both are active-low.
type OutputPin interface {
	Set(high bool) error
}

// InputPin is a digital input read by the host, such as the module's EVENT
// line, which is asserted (high) while the event queue is non-empty.
type InputPin interface {
	High() (bool, error)
}

// Refresher is implemented by debounced inputs whose level is only updated
// when sampled explicitly.
type Refresher interface {
	Update()
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// ModemSignal names a serial handshake line.
type ModemSignal int

const (
	SignalDTR ModemSignal = iota
	SignalRTS
	SignalCTS
	SignalDSR
	SignalRI
	SignalDCD
)

func (s ModemSignal) String() string {
	switch s {
	case SignalDTR:
		return "DTR"
	case SignalRTS:
		return "RTS"
	case SignalCTS:
		return "CTS"
	case SignalDSR:
		return "DSR"
	case SignalRI:
		return "RI"
	case SignalDCD:
		return "DCD"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// ParseModemSignal parses a handshake line name as used in configuration.
func ParseModemSignal(name string) (ModemSignal, error) {
	for s := SignalDTR; s <= SignalDCD; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown modem signal %q", name)
}

// SerialLine drives or samples a handshake line of a serial port. USB-UART
// bridges commonly wire DTR/RTS to the module's RESET and WAKE inputs and
// EVENT to one of the status inputs.
//
// Inverted accounts for RS-232 level shifters, where an asserted control bit
// drives the physical line low.
type SerialLine struct {
	Port     serial.Port
	Signal   ModemSignal
	Inverted bool
}

// Set implements OutputPin for DTR and RTS.
func (l SerialLine) Set(high bool) error {
	v := high != l.Inverted
	switch l.Signal {
	case SignalDTR:
		return l.Port.SetDTR(v)
	case SignalRTS:
		return l.Port.SetRTS(v)
	default:
		return fmt.Errorf("%s is not an output: %w", l.Signal, ErrUnsupportedOperation)
	}
}

// High implements InputPin for CTS, DSR, RI and DCD.
func (l SerialLine) High() (bool, error) {
	bits, err := l.Port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("read modem status bits: %w", err)
	}
	var v bool
	switch l.Signal {
	case SignalCTS:
		v = bits.CTS
	case SignalDSR:
		v = bits.DSR
	case SignalRI:
		v = bits.RI
	case SignalDCD:
		v = bits.DCD
	default:
		return false, fmt.Errorf("%s is not an input: %w", l.Signal, ErrUnsupportedOperation)
	}
	return v != l.Inverted, nil
}
