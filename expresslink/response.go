package expresslink

import (
	"strings"

	"i4.energy/across/expresslink/at"
)

// Response is the single result of one command. Payload has the status and
// line-count tokens removed and is unescaped.
type Response struct {
	// Type is at.TypeOK, at.TypeError or at.TypeMalformed.
	Type    at.ResponseType
	Payload string
	// Code is the ERR code for at.TypeError and at.CodeMalformed for
	// at.TypeMalformed. It is zero for successful responses.
	Code int
	// Timeout is set when the status line never completed.
	Timeout bool
}

// OK reports whether the module acknowledged the command.
func (r Response) OK() bool {
	return r.Type == at.TypeOK
}

// Err returns nil for a successful response, a *ProtocolError for ERR{code}
// and a *MalformedResponseError otherwise.
func (r Response) Err() error {
	switch r.Type {
	case at.TypeOK:
		return nil
	case at.TypeError:
		return &ProtocolError{Code: r.Code, Message: r.Payload}
	default:
		return &MalformedResponseError{Raw: r.Payload, Timeout: r.Timeout}
	}
}

// Lines splits a multi-line payload.
func (r Response) Lines() []string {
	if r.Payload == "" {
		return nil
	}
	return strings.Split(r.Payload, at.LF)
}

// Fields splits the payload on spaces.
func (r Response) Fields() []string {
	return strings.Fields(r.Payload)
}
