// Package at implements the wire grammar of the ExpressLink AT command
// channel: command framing, the escape codec, line splitting and the
// classification of status lines.
package at

const (
	// Terminal Control
	CR   = "\r"
	LF   = "\n"
	CRLF = "\r\n"

	// Command framing
	Prefix   = "AT+"
	SelfTest = "AT"

	// Response Codes
	OK  = "OK"
	ERR = "ERR"

	// Escape sequences
	EscBackslash = `\\`
	EscCR        = `\D`
	EscLF        = `\A`

	// CodeMalformed is the reserved error code reported for status lines that
	// match neither OK nor a well-formed ERR{code}.
	CodeMalformed = 2
)

// Padding lists the trailing filler bytes some UARTs append to a line.
const Padding = "\r\n\x00\xff\xfe\xfd\xfc\xfb\xfa"

type ResponseType int

const (
	TypeOK        ResponseType = iota // OK[{N} ]{payload}
	TypeError                         // ERR{code} {payload}
	TypeMalformed                     // anything else
)

func (t ResponseType) String() string {
	switch t {
	case TypeOK:
		return "ok"
	case TypeError:
		return "error"
	default:
		return "malformed"
	}
}
