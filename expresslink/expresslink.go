// Package expresslink drives an AWS IoT ExpressLink module over its AT
// command channel.
//
// An ExpressLink owns the transport exclusively. Every command is written as
// a single AT+ line and answered by exactly one Response, which may span
// several lines on the wire. Calls are serialized internally, so an
// ExpressLink may be shared between goroutines, but the protocol itself has
// no request identifiers: a command that has been written is always waited
// out to the end of its polling budget.
package expresslink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"i4.energy/across/expresslink/at"
)

// State is the bring-up state of the channel.
type State int

const (
	StateUninitialized State = iota
	StateSelfTesting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSelfTesting:
		return "self-testing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExpressLink is a channel to one module.
type ExpressLink struct {
	// mu serializes whole command/response exchanges, including
	// continuation reads.
	mu sync.Mutex

	transport Transport
	reader    *lineReader
	config    Config
	logger    *slog.Logger

	state  State
	closed bool
	// hooks queued while mu is held, run by unlock
	pending []func()

	conf *Dictionary
}

// New dials the module, pulses its reset line when one is configured and
// runs the self-test handshake.
//
// A failed self-test is not an error: New still returns the ExpressLink, with
// Ready reporting false, so the caller can decide to continue in degraded
// mode. Errors are returned for dial failures and for a context cancelled
// during the reset pulse.
func New(ctx context.Context, config Config) (*ExpressLink, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	el := &ExpressLink{
		transport: transport,
		reader:    newLineReader(transport, config),
		config:    config,
		logger:    config.logger,
	}
	el.conf = newDictionary(el)

	el.logger.Info("ExpressLink initializing")
	if err := el.pulseReset(ctx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("reset module: %w", err)
	}

	if el.SelfTest(ctx) {
		el.logger.Info("ExpressLink ready")
	} else {
		el.logger.Error("ExpressLink UART self-test failed", "attempts", config.selfTestAttempts)
	}
	return el, nil
}

// Execute sends one command and reads its complete response. The command is
// given without the AT+ prefix and is escaped before transmission.
//
// Protocol outcomes, including ERR responses, malformed status lines and
// timeouts, are reported in the Response. An error is returned only when the
// exchange could not take place: an empty command, a closed ExpressLink, a
// context done before the write, or a transport I/O failure.
func (el *ExpressLink) Execute(ctx context.Context, command string) (Response, error) {
	if command == "" {
		return Response{}, ErrEmptyCommand
	}

	el.mu.Lock()
	defer el.unlock()

	if el.closed {
		return Response{}, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("command %q not sent: %w", command, err)
	}
	return el.execute(command)
}

// Cmd is Execute for callers that only need the payload; protocol failures
// are returned as errors.
func (el *ExpressLink) Cmd(ctx context.Context, command string) (string, error) {
	resp, err := el.Execute(ctx, command)
	if err != nil {
		return "", err
	}
	return resp.Payload, resp.Err()
}

func (el *ExpressLink) execute(command string) (Response, error) {
	// An event notification left in the input could otherwise be taken for
	// this command's response.
	if err := el.reader.discard(); err != nil {
		el.logger.Warn("Failed to discard pending input", "error", err)
	}

	start := time.Now()
	frame := at.Frame(command)
	if _, err := el.transport.Write(frame); err != nil {
		return Response{}, fmt.Errorf("write command %q: %w", command, err)
	}
	el.logger.Debug("Command sent", "cmd", strings.TrimSuffix(string(frame), at.CRLF))

	resp, err := el.readResponse()
	el.logResponse(command, resp)
	if h := el.config.hooks.OnCommand; h != nil {
		elapsed := time.Since(start)
		el.queueHook(func() { h(command, resp, elapsed) })
	}
	if err != nil {
		return resp, fmt.Errorf("read response to %q: %w", command, err)
	}
	return resp, nil
}

// readResponse reads and parses the status line and any continuation lines
// it announces.
func (el *ExpressLink) readResponse() (Response, error) {
	line, err := el.reader.readLine(true)
	el.logger.Debug("Line received", "line", line)
	if err != nil {
		resp := Response{Type: at.TypeMalformed, Code: at.CodeMalformed, Payload: line}
		if errors.Is(err, ErrTimeout) {
			resp.Timeout = true
			return resp, nil
		}
		return resp, err
	}

	status := at.Classify(line)
	resp := Response{Type: status.Type, Code: status.Code, Payload: status.Payload}
	if status.Type != at.TypeOK || status.Additional == 0 {
		return resp, nil
	}

	var lines []string
	if status.Payload != "" {
		lines = append(lines, status.Payload)
	}
	for i := 0; i < status.Additional; i++ {
		next, err := el.reader.readLine(false)
		if next != "" {
			lines = append(lines, next)
		}
		if err != nil && !errors.Is(err, ErrTimeout) {
			resp.Payload = strings.Join(lines, at.LF)
			return resp, err
		}
		if next == "" || err != nil {
			// The module declared more lines than it sent.
			el.logger.Warn("Continuation lines missing", "expected", status.Additional, "received", i)
			break
		}
	}
	resp.Payload = strings.Join(lines, at.LF)
	return resp, nil
}

func (el *ExpressLink) logResponse(command string, resp Response) {
	switch {
	case resp.OK():
		el.logger.Debug("Command succeeded", "cmd", command, "payload", resp.Payload)
	case resp.Type == at.TypeError:
		el.logger.Debug("Command failed", "cmd", command, "code", resp.Code, "payload", resp.Payload)
	case resp.Timeout:
		el.logger.Warn("ExpressLink UART timeout - response might be incomplete", "cmd", command, "partial", resp.Payload)
	default:
		el.logger.Warn("Unexpected response", "cmd", command, "line", resp.Payload)
	}
}

// State returns the current bring-up state.
func (el *ExpressLink) State() State {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.state
}

// Ready reports whether the last self-test succeeded. Commands may still be
// sent when it is false, but their results should not be relied on.
func (el *ExpressLink) Ready() bool {
	return el.State() == StateReady
}

// Conf returns the configuration dictionary of the module.
func (el *ExpressLink) Conf() *Dictionary {
	return el.conf
}

// Close releases the transport. After calling Close the ExpressLink cannot be
// reused.
func (el *ExpressLink) Close() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.closed {
		return ErrAlreadyClosed
	}
	el.closed = true
	return el.transport.Close()
}

func (el *ExpressLink) setState(s State) {
	from := el.state
	el.state = s
	if from != s {
		if h := el.config.hooks.OnStateChange; h != nil {
			el.queueHook(func() { h(from, s) })
		}
	}
}

// queueHook queues a hook call until mu is released. mu must be held.
func (el *ExpressLink) queueHook(hook func()) {
	el.pending = append(el.pending, hook)
}

// unlock releases mu and then runs the queued hooks in order, so hooks may
// call back into the ExpressLink.
func (el *ExpressLink) unlock() {
	pending := el.pending
	el.pending = nil
	el.mu.Unlock()
	for _, hook := range pending {
		hook()
	}
}
