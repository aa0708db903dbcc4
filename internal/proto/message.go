package proto

import "strings"

// Message is a single inbound line split into its source prefix, verb and parameters.
// The trailing parameter (the one introduced by " :") is kept verbatim.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// Parse splits a decoded line. It never fails; a line without a verb yields an
// empty Command.
func Parse(line string) Message {
	var m Message
	line = strings.TrimLeft(line, " ")
	if strings.HasPrefix(line, ":") {
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			return Message{Prefix: line[1:]}
		}
		m.Prefix = line[1:i]
		line = strings.TrimLeft(line[i+1:], " ")
	}
	for line != "" {
		if line[0] == ':' && m.Command != "" {
			m.Params = append(m.Params, line[1:])
			break
		}
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			m.appendToken(line)
			break
		}
		m.appendToken(line[:i])
		line = strings.TrimLeft(line[i+1:], " ")
	}
	m.Command = strings.ToUpper(m.Command)
	return m
}

func (m *Message) appendToken(tok string) {
	if m.Command == "" {
		m.Command = tok
		return
	}
	m.Params = append(m.Params, tok)
}

// remainder returns line verbatim after the prefix and n more tokens.
func remainder(line string, n int) string {
	line = strings.TrimLeft(line, " ")
	if strings.HasPrefix(line, ":") {
		n++
	}
	for ; n > 0; n-- {
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			return ""
		}
		line = strings.TrimLeft(line[i+1:], " ")
	}
	return line
}

// Param returns the i-th parameter or "" when it is absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter.
func (m Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Nick returns the nickname part of the prefix (everything before '!').
func (m Message) Nick() string {
	if i := strings.IndexByte(m.Prefix, '!'); i >= 0 {
		return m.Prefix[:i]
	}
	return m.Prefix
}

// Ident returns the user@host part of the prefix, or "" for server prefixes.
func (m Message) Ident() string {
	if i := strings.IndexByte(m.Prefix, '!'); i >= 0 {
		return m.Prefix[i+1:]
	}
	return ""
}

// IsNumeric reports whether the verb is a three-digit numeric reply.
func (m Message) IsNumeric() bool {
	if len(m.Command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if m.Command[i] < '0' || m.Command[i] > '9' {
			return false
		}
	}
	return true
}
