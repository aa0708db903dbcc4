package proto

// EventKind identifies the variant of an inbound Event.
type EventKind int

const (
	// EventUnknown is any line the classifier has no rule for.
	EventUnknown EventKind = iota
	// EventPing is a server keep-alive probe that must be answered with PONG.
	EventPing
	// EventWelcome is the 001 numeric that completes registration.
	EventWelcome
	// EventNicknameInUse is the 433 numeric sent when the requested nick is taken.
	EventNicknameInUse
	// EventInvite is an INVITE addressed to us.
	EventInvite
	// EventJoin notifies that someone (possibly us) joined a channel.
	EventJoin
	// EventPart notifies that someone left a channel.
	EventPart
	// EventKick notifies that someone was removed from a channel.
	EventKick
	// EventPrivateMessage is a PRIVMSG to a channel or to us.
	EventPrivateMessage
	// EventQuit notifies that someone disconnected from the network.
	EventQuit
	// EventError is a server ERROR line; the server closes the link right after.
	EventError
)

var eventKindNames = [...]string{
	EventUnknown:        "unknown",
	EventPing:           "ping",
	EventWelcome:        "welcome",
	EventNicknameInUse:  "nickname_in_use",
	EventInvite:         "invite",
	EventJoin:           "join",
	EventPart:           "part",
	EventKick:           "kick",
	EventPrivateMessage: "privmsg",
	EventQuit:           "quit",
	EventError:          "error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "invalid"
	}
	return eventKindNames[k]
}

// Event is an immutable classified inbound line.
type Event interface {
	Kind() EventKind
}

// Ping carries the token that has to be echoed back.
type Ping struct {
	Token string
}

// Welcome is RPL_WELCOME. Nick is the nickname the server registered us under.
type Welcome struct {
	Server string
	Nick   string
}

// NicknameInUse is ERR_NICKNAMEINUSE for the nickname in Nick.
type NicknameInUse struct {
	Nick string
}

// Invite asks us to join Channel.
type Invite struct {
	Inviter string
	Channel string
}

// Join is a JOIN relayed by the server.
type Join struct {
	Actor   string
	Channel string
}

// Part is a PART relayed by the server.
type Part struct {
	Actor   string
	Channel string
	Reason  string
}

// Kick is a KICK of Target from Channel performed by Actor.
type Kick struct {
	Actor   string
	Channel string
	Target  string
	Reason  string
}

// PrivateMessage is a PRIVMSG. SenderIdent is the user@host part of the source.
type PrivateMessage struct {
	SenderNick  string
	SenderIdent string
	Target      string
	Text        string
}

// Quit is a QUIT relayed by the server.
type Quit struct {
	Actor  string
	Reason string
}

// Error is a server ERROR line. Reason is always ReasonClosed; Message keeps the server text.
type Error struct {
	Reason  string
	Message string
}

// Unknown wraps any line without a dedicated variant.
type Unknown struct {
	Raw string
}

func (Ping) Kind() EventKind           { return EventPing }
func (Welcome) Kind() EventKind        { return EventWelcome }
func (NicknameInUse) Kind() EventKind  { return EventNicknameInUse }
func (Invite) Kind() EventKind         { return EventInvite }
func (Join) Kind() EventKind           { return EventJoin }
func (Part) Kind() EventKind           { return EventPart }
func (Kick) Kind() EventKind           { return EventKick }
func (PrivateMessage) Kind() EventKind { return EventPrivateMessage }
func (Quit) Kind() EventKind           { return EventQuit }
func (Error) Kind() EventKind          { return EventError }
func (Unknown) Kind() EventKind        { return EventUnknown }

// Source returns the full nick!user@host identity of the sender.
func (m PrivateMessage) Source() string {
	if m.SenderIdent == "" {
		return m.SenderNick
	}
	return m.SenderNick + "!" + m.SenderIdent
}

// MessageClass tells how a PRIVMSG should be routed.
type MessageClass int

const (
	// ClassOther is a PRIVMSG to a target that is neither us nor a channel.
	ClassOther MessageClass = iota
	// ClassCTCP is an extended query; the text starts with the CTCP delimiter.
	ClassCTCP
	// ClassDirect is a PRIVMSG addressed to our own nickname.
	ClassDirect
	// ClassChannel is a PRIVMSG addressed to a channel.
	ClassChannel
)

// Class classifies the message relative to our current nickname.
// CTCP is checked first so extended queries never reach ordinary text routing.
func (m PrivateMessage) Class(ownNick string) MessageClass {
	switch {
	case IsCTCP(m.Text):
		return ClassCTCP
	case m.Target == ownNick:
		return ClassDirect
	case IsChannel(m.Target):
		return ClassChannel
	default:
		return ClassOther
	}
}

// IsChannel reports whether target names a channel.
func IsChannel(target string) bool {
	return len(target) > 0 && target[0] == ChannelSentinel
}

// IsCTCP reports whether text is a CTCP extended query.
func IsCTCP(text string) bool {
	return len(text) > 0 && text[0] == CTCPDelim
}
