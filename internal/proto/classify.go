package proto

import "strings"

// Classify turns a decoded line into a typed Event. Unrecognized verbs yield
// Unknown; only lines with fewer than two tokens fail with ErrMalformedLine.
func Classify(line string) (Event, error) {
	if !hasMinTokens(line) {
		return nil, ErrMalformedLine
	}
	if strings.HasPrefix(line, closingLinkMarker) || strings.HasPrefix(line, CmdError+" ") {
		return Error{Reason: ReasonClosed, Message: Parse(line).Trailing()}, nil
	}

	m := Parse(line)
	if m.Prefix == "" && m.Command == CmdPing {
		return Ping{Token: strings.TrimPrefix(strings.Fields(line)[1], ":")}, nil
	}

	switch m.Command {
	case RplWelcome:
		return Welcome{Server: m.Prefix, Nick: m.Param(0)}, nil
	case ErrNicknameInUse:
		// :server 433 <current|*> <wanted> :Nickname is already in use
		return NicknameInUse{Nick: m.Param(1)}, nil
	}

	if m.Prefix == "" {
		return Unknown{Raw: line}, nil
	}
	actor := m.Nick()

	switch m.Command {
	case CmdInvite:
		if len(m.Params) >= 2 {
			return Invite{Inviter: actor, Channel: m.Params[1]}, nil
		}
	case CmdJoin:
		if len(m.Params) >= 1 {
			return Join{Actor: actor, Channel: m.Params[0]}, nil
		}
	case CmdPart:
		if len(m.Params) >= 1 {
			return Part{Actor: actor, Channel: m.Params[0], Reason: m.Param(1)}, nil
		}
	case CmdKick:
		if len(m.Params) >= 2 {
			return Kick{Actor: actor, Channel: m.Params[0], Target: m.Params[1], Reason: m.Param(2)}, nil
		}
	case CmdQuit:
		return Quit{Actor: actor, Reason: m.Param(0)}, nil
	case CmdPrivmsg:
		if len(m.Params) >= 2 {
			return PrivateMessage{
				SenderNick:  actor,
				SenderIdent: m.Ident(),
				Target:      m.Params[0],
				Text:        strings.TrimPrefix(remainder(line, 2), ":"),
			}, nil
		}
	}
	return Unknown{Raw: line}, nil
}
