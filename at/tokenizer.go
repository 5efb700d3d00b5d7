package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter is used for tokenizing module responses. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by LF, optionally preceded by CR. The returned token
// still carries any padding; see TrimLine.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// TrimLine strips the line terminator and trailing filler bytes from a raw
// line, and trims leading ones as well since some transports pad both ends.
func TrimLine(raw []byte) string {
	start, end := 0, len(raw)
	for start < end && isPadding(raw[start]) {
		start++
	}
	for end > start && isPadding(raw[end-1]) {
		end--
	}
	return string(raw[start:end])
}

// isPadding works on bytes; strings.Trim would decode the cutset as UTF-8.
func isPadding(b byte) bool {
	return strings.IndexByte(Padding, b) >= 0
}

// Status is the classification of a single decoded status line.
type Status struct {
	Type ResponseType
	// Code is the parsed ERR code, or CodeMalformed.
	Code int
	// Additional is the number of continuation lines announced by OK{N}.
	Additional int
	// Payload is the rest of the line with the framing tokens removed.
	Payload string
}

// Classify parses the first line of a response. Lines that are neither OK
// nor a well-formed ERR{code} are reported as TypeMalformed with the raw
// line as payload.
func Classify(line string) Status {
	switch {
	case strings.HasPrefix(line, OK):
		rest := line[len(OK):]
		n, tail, ok := leadingCount(rest)
		if !ok {
			return Status{Type: TypeOK, Payload: strings.TrimSpace(rest)}
		}
		return Status{Type: TypeOK, Additional: n, Payload: strings.TrimSpace(tail)}

	case strings.HasPrefix(line, ERR):
		rest := line[len(ERR):]
		code, tail, ok := leadingCount(rest)
		if !ok {
			return Status{Type: TypeMalformed, Code: CodeMalformed, Payload: line}
		}
		return Status{Type: TypeError, Code: code, Payload: strings.TrimSpace(tail)}

	default:
		return Status{Type: TypeMalformed, Code: CodeMalformed, Payload: line}
	}
}

// leadingCount parses "{digits} {tail}". The number must be followed by a
// space; a leading space means no number is present.
func leadingCount(s string) (int, string, bool) {
	end := strings.IndexByte(s, ' ')
	if end <= 0 {
		return 0, s, false
	}
	digits, tail := s[:end], s[end+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, s, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, s, false
	}
	return n, tail, true
}
