package at

import "strings"

// Escape replaces the characters reserved by the line protocol. The backslash
// goes first so the sequences introduced for CR and LF are not escaped again.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, EscBackslash)
	s = strings.ReplaceAll(s, CR, EscCR)
	s = strings.ReplaceAll(s, LF, EscLF)
	return s
}

// Unescape reverses Escape.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'A':
			b.WriteString(LF)
		case 'D':
			b.WriteString(CR)
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(s[i])
			continue
		}
		i++
	}
	return b.String()
}

// Frame wraps an escaped command for transmission: AT+{command}\r\n.
func Frame(command string) []byte {
	return []byte(Prefix + Escape(command) + CRLF)
}
