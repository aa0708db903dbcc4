package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircbot/internal/proto"
)

// Sender is what handlers see of the session: a way to queue commands and a
// snapshot of the current nickname.
type Sender interface {
	Send(line proto.Line) error
	Nick() string
}

// EventHandler receives classified events in arrival order, one at a time.
// Returned errors and panics are logged by the session; the read loop goes on.
type EventHandler interface {
	OnPing(s Sender, ev proto.Ping) error
	OnWelcome(s Sender, ev proto.Welcome) error
	OnNicknameInUse(s Sender, ev proto.NicknameInUse) error
	OnInvite(s Sender, ev proto.Invite) error
	OnJoin(s Sender, ev proto.Join) error
	OnPart(s Sender, ev proto.Part) error
	OnKick(s Sender, ev proto.Kick) error
	// OnMessage gets channel messages.
	OnMessage(s Sender, ev proto.PrivateMessage) error
	// OnDirectMessage gets messages addressed to our nickname.
	OnDirectMessage(s Sender, ev proto.PrivateMessage) error
	// OnCTCP gets extended queries, whatever their target.
	OnCTCP(s Sender, ev proto.PrivateMessage) error
	OnQuit(s Sender, ev proto.Quit) error
	OnError(s Sender, ev proto.Error) error
	OnUnknown(s Sender, ev proto.Unknown) error
}

// NopHandler implements every EventHandler method as a no-op. Embed it and
// override only the events you care about.
type NopHandler struct{}

func (NopHandler) OnPing(Sender, proto.Ping) error                    { return nil }
func (NopHandler) OnWelcome(Sender, proto.Welcome) error              { return nil }
func (NopHandler) OnNicknameInUse(Sender, proto.NicknameInUse) error  { return nil }
func (NopHandler) OnInvite(Sender, proto.Invite) error                { return nil }
func (NopHandler) OnJoin(Sender, proto.Join) error                    { return nil }
func (NopHandler) OnPart(Sender, proto.Part) error                    { return nil }
func (NopHandler) OnKick(Sender, proto.Kick) error                    { return nil }
func (NopHandler) OnMessage(Sender, proto.PrivateMessage) error       { return nil }
func (NopHandler) OnDirectMessage(Sender, proto.PrivateMessage) error { return nil }
func (NopHandler) OnCTCP(Sender, proto.PrivateMessage) error          { return nil }
func (NopHandler) OnQuit(Sender, proto.Quit) error                    { return nil }
func (NopHandler) OnError(Sender, proto.Error) error                  { return nil }
func (NopHandler) OnUnknown(Sender, proto.Unknown) error              { return nil }

var _ EventHandler = NopHandler{}

// Dispatch routes ev to the matching handler method. raw is the decoded line,
// used when a PRIVMSG target is neither us nor a channel.
func Dispatch(h EventHandler, s Sender, raw string, ev proto.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on %s: %v", ev.Kind(), r)
		}
	}()

	switch e := ev.(type) {
	case proto.Ping:
		return h.OnPing(s, e)
	case proto.Welcome:
		return h.OnWelcome(s, e)
	case proto.NicknameInUse:
		return h.OnNicknameInUse(s, e)
	case proto.Invite:
		return h.OnInvite(s, e)
	case proto.Join:
		return h.OnJoin(s, e)
	case proto.Part:
		return h.OnPart(s, e)
	case proto.Kick:
		return h.OnKick(s, e)
	case proto.PrivateMessage:
		switch e.Class(s.Nick()) {
		case proto.ClassCTCP:
			return h.OnCTCP(s, e)
		case proto.ClassDirect:
			return h.OnDirectMessage(s, e)
		case proto.ClassChannel:
			return h.OnMessage(s, e)
		default:
			return h.OnUnknown(s, proto.Unknown{Raw: raw})
		}
	case proto.Quit:
		return h.OnQuit(s, e)
	case proto.Error:
		return h.OnError(s, e)
	case proto.Unknown:
		return h.OnUnknown(s, e)
	default:
		return h.OnUnknown(s, proto.Unknown{Raw: raw})
	}
}

func logHandlerError(log *zerolog.Logger, ev proto.Event, err error) {
	log.Error().Err(err).Stringer("event", ev.Kind()).Msg("event handler failed")
}
