package proto

import (
	"strings"
	"unicode/utf8"
)

// Line is an encoded outbound command without its CR-LF terminator.
// Lines built by this package never exceed MaxLineLength once terminated.
type Line string

// Bytes returns the wire form including the terminator.
func (l Line) Bytes() []byte {
	b := make([]byte, 0, len(l)+2)
	b = append(b, l...)
	return append(b, '\r', '\n')
}

func (l Line) String() string {
	return string(l)
}

// Verb returns the command word of the line.
func (l Line) Verb() string {
	s := string(l)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// Pass sends the server (network) password. It must precede USER and NICK.
func Pass(password string) (Line, error) {
	return build("PASS", []string{password}, "", false)
}

// User declares the username and real name during registration.
func User(username, realname string) (Line, error) {
	return build("USER", []string{username, "0", "*"}, realname, true)
}

// Nick requests a nickname.
func Nick(nick string) (Line, error) {
	return build("NICK", []string{nick}, "", false)
}

// JoinLine joins a channel, with a key when one is given.
func JoinLine(channel, key string) (Line, error) {
	if key == "" {
		return build("JOIN", []string{channel}, "", false)
	}
	return build("JOIN", []string{channel, key}, "", false)
}

// PartLine leaves a channel with an optional message.
func PartLine(channel, message string) (Line, error) {
	return build("PART", []string{channel}, message, message != "")
}

// Privmsg sends text to a nick or channel.
func Privmsg(target, text string) (Line, error) {
	return build("PRIVMSG", []string{target}, text, true)
}

// Notice sends a NOTICE to a nick or channel.
func Notice(target, text string) (Line, error) {
	return build("NOTICE", []string{target}, text, true)
}

// Action sends a CTCP ACTION ("/me").
func Action(target, text string) (Line, error) {
	return CTCP(target, "ACTION "+text)
}

// CTCP wraps data in CTCP delimiters and sends it as a PRIVMSG.
func CTCP(target, data string) (Line, error) {
	return Privmsg(target, string(CTCPDelim)+data+string(CTCPDelim))
}

// Identify authenticates the nickname with NickServ.
func Identify(nick, password string) (Line, error) {
	return Privmsg("NickServ", "IDENTIFY "+nick+" "+password)
}

// InviteLine invites nick to channel.
func InviteLine(nick, channel string) (Line, error) {
	return build("INVITE", []string{nick, channel}, "", false)
}

// Mode changes modes on a nick or channel, e.g. Mode("bot", "+B").
func Mode(target, modes string) (Line, error) {
	return build("MODE", []string{target, modes}, "", false)
}

// Oper requests operator privileges.
func Oper(user, password string) (Line, error) {
	return build("OPER", []string{user, password}, "", false)
}

// Topic sets a channel topic.
func Topic(channel, text string) (Line, error) {
	return build("TOPIC", []string{channel}, text, true)
}

// Pong answers a PING.
func Pong(token string) (Line, error) {
	return build("PONG", nil, token, true)
}

// QuitLine leaves the network with an optional message.
func QuitLine(message string) (Line, error) {
	return build("QUIT", nil, message, message != "")
}

// Raw sends a preformatted line. It may not contain line terminators.
func Raw(line string) (Line, error) {
	if !safeText(line) || strings.TrimSpace(line) == "" {
		return "", ErrInvalidArgument
	}
	return truncate(line), nil
}

func build(verb string, params []string, trailing string, withTrailing bool) (Line, error) {
	var b strings.Builder
	b.WriteString(verb)
	for _, p := range params {
		if !validParam(p) {
			return "", ErrInvalidArgument
		}
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if withTrailing {
		if !safeText(trailing) {
			return "", ErrInvalidArgument
		}
		b.WriteString(" :")
		b.WriteString(trailing)
	}
	return truncate(b.String()), nil
}

// truncate cuts s to fit MaxLineLength with its terminator, keeping UTF-8 intact.
func truncate(s string) Line {
	limit := MaxLineLength - 2
	if len(s) <= limit {
		return Line(s)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return Line(s[:cut])
}

func validParam(p string) bool {
	return p != "" && p[0] != ':' && !strings.ContainsAny(p, " \r\n\x00")
}

func safeText(s string) bool {
	return !strings.ContainsAny(s, "\r\n\x00")
}
