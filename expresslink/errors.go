package expresslink

import (
	"errors"
	"fmt"

	"i4.energy/across/expresslink/at"
)

var (
	// ErrNoDialer is returned when an ExpressLink is constructed without a
	// Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on an
	// ExpressLink whose transport could not be established.
	ErrNotInitialized = errors.New("expresslink not initialized")

	// ErrAlreadyClosed is returned when Close is called on an ExpressLink
	// that has already been closed, and by every command issued afterwards.
	ErrAlreadyClosed = errors.New("expresslink already closed")

	// ErrEmptyCommand is returned by Execute for an empty command string.
	ErrEmptyCommand = errors.New("empty command")

	// ErrTimeout indicates that no line terminator was observed within the
	// polling budget of the line reader. It is recoverable; callers may
	// retry the command.
	ErrTimeout = errors.New("response timed out")

	// ErrUnsupportedOperation is returned, without any wire traffic, for
	// contractual misuse such as reading a write-only configuration key.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnknownTopic is returned when a topic is addressed by name but the
	// name is not present in the local topic cache.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrEmptyMessage is returned by Publish for an empty message.
	ErrEmptyMessage = errors.New("empty message")
)

// ProtocolError is a well-formed ERR{code} response from the module. The
// engine never retries these on its own.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ERR%d", e.Code)
	}
	return fmt.Sprintf("ERR%d %s", e.Code, e.Message)
}

// MalformedResponseError is reported when a status line is neither OK nor a
// well-formed ERR{code}, or when it never arrived completely. Raw holds the
// text that was received, for diagnostics.
type MalformedResponseError struct {
	Raw     string
	Timeout bool
}

func (e *MalformedResponseError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("malformed response (timed out): %q", e.Raw)
	}
	return fmt.Sprintf("malformed response: %q", e.Raw)
}

// Unwrap exposes ErrTimeout for incomplete lines.
func (e *MalformedResponseError) Unwrap() error {
	if e.Timeout {
		return ErrTimeout
	}
	return nil
}

// Code returns the reserved error code used for malformed responses.
func (e *MalformedResponseError) Code() int {
	return at.CodeMalformed
}

// ConfigError is returned by the configuration dictionary when the module
// rejects a CONF or CONF? command, or returns a value that cannot be decoded.
type ConfigError struct {
	Key     string
	Code    int
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("config %s: ERR%d %s", e.Key, e.Code, e.Message)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// EventFormatError is returned when a non-empty EVENT? payload does not
// match "{id} {parameter} {mnemonic}[ {detail}]".
type EventFormatError struct {
	Payload string
}

func (e *EventFormatError) Error() string {
	return fmt.Sprintf("malformed event record: %q", e.Payload)
}
