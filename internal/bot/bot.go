package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/ircbot/internal/auth"
	"github.com/vovakirdan/ircbot/internal/core"
	"github.com/vovakirdan/ircbot/internal/proto"
	"github.com/vovakirdan/ircbot/internal/store"
)

const storeTimeout = 5 * time.Second

// Version is answered to CTCP VERSION queries.
const Version = "ircbot"

// Config configures the bot layer.
type Config struct {
	Channel string
	// CmdChar prefixes channel commands.
	CmdChar string
	// CommandInterval is the minimum gap between commands from non-admins.
	CommandInterval time.Duration
}

// Bot is the application EventHandler: channel commands, admin direct
// messages and CTCP replies. Lifecycle events are left to the session.
type Bot struct {
	core.NopHandler

	cfg      Config
	admins   *auth.Matcher
	ignores  store.IgnoreStore
	registry *Registry
	log      *zerolog.Logger

	limiter *rate.Limiter
	now     func() time.Time
	enabled atomic.Bool

	mu   sync.Mutex
	slow bool
}

// New builds a bot. ignores may be nil, which disables the ignore list.
func New(cfg Config, admins *auth.Matcher, ignores store.IgnoreStore, registry *Registry, logger *zerolog.Logger) *Bot {
	if cfg.CmdChar == "" {
		cfg.CmdChar = "!"
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	b := &Bot{
		cfg:      cfg,
		admins:   admins,
		ignores:  ignores,
		registry: registry,
		log:      logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.CommandInterval), 1),
		now:      time.Now,
	}
	b.enabled.Store(true)
	return b
}

// Enabled reports whether channel commands are answered.
func (b *Bot) Enabled() bool {
	return b.enabled.Load()
}

// OnJoin logs our own joins.
func (b *Bot) OnJoin(s core.Sender, ev proto.Join) error {
	if ev.Actor == s.Nick() {
		b.log.Info().Str("channel", ev.Channel).Msg("joined channel")
	}
	return nil
}

// OnMessage runs channel commands.
func (b *Bot) OnMessage(s core.Sender, ev proto.PrivateMessage) error {
	if !strings.EqualFold(ev.Target, b.cfg.Channel) || !b.enabled.Load() {
		return nil
	}
	if !strings.HasPrefix(ev.Text, b.cfg.CmdChar) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(ev.Text, b.cfg.CmdChar))
	if len(fields) == 0 {
		return nil
	}

	source := ev.Source()
	if b.isIgnored(source) {
		b.log.Debug().Str("source", source).Msg("ignored command")
		return nil
	}

	admin := b.admins.IsAdmin(source)
	if !admin && !b.limiter.AllowN(b.now(), 1) {
		return b.slowDown(s, ev.Target)
	}
	b.mu.Lock()
	b.slow = false
	b.mu.Unlock()

	cmd, ok := b.registry.Lookup(fields[0])
	if !ok || (cmd.AdminOnly && !admin) {
		return nil
	}

	req := Request{
		Channel: ev.Target,
		Nick:    ev.SenderNick,
		Source:  source,
		Name:    cmd.Name,
		Args:    fields[1:],
		Admin:   admin,
	}
	if err := runCommand(cmd, s, req); err != nil {
		b.log.Warn().Err(err).Str("command", cmd.Name).Str("source", source).Msg("command failed")
		return reply(s, ev.Target, errorText("Command threw an exception.", err.Error()))
	}
	return nil
}

// slowDown warns the channel once per burst of throttled commands.
func (b *Bot) slowDown(s core.Sender, channel string) error {
	b.mu.Lock()
	already := b.slow
	b.slow = true
	b.mu.Unlock()
	if already {
		return nil
	}
	return reply(s, channel, Color("Slow down nerd!", Red))
}

func runCommand(cmd Command, s core.Sender, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return cmd.Run(s, req)
}

func (b *Bot) isIgnored(source string) bool {
	if b.ignores == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	ignored, err := b.ignores.IsIgnored(ctx, source)
	if err != nil {
		b.log.Error().Err(err).Msg("ignore check failed")
		return false
	}
	return ignored
}

// OnDirectMessage handles admin commands sent to the bot's nickname.
func (b *Bot) OnDirectMessage(s core.Sender, ev proto.PrivateMessage) error {
	source := ev.Source()
	if !b.admins.IsAdmin(source) {
		return nil
	}
	nick := ev.SenderNick
	args := strings.Fields(ev.Text)
	if len(args) == 0 {
		return nil
	}

	switch {
	case ev.Text == ".on":
		b.enabled.Store(true)
		b.log.Info().Str("by", source).Msg("commands enabled")
		return reply(s, nick, Color("ON", Green))
	case ev.Text == ".off":
		b.enabled.Store(false)
		b.log.Info().Str("by", source).Msg("commands disabled")
		return reply(s, nick, Color("OFF", Red))
	case ev.Text == ".ignore":
		return b.listIgnores(s, nick)
	case len(args) == 3 && args[0] == ".ignore" && args[1] == "add":
		return b.addIgnore(s, nick, args[2], source)
	case len(args) == 3 && args[0] == ".ignore" && args[1] == "del":
		return b.removeIgnore(s, nick, args[2])
	}
	return nil
}

func (b *Bot) listIgnores(s core.Sender, nick string) error {
	if b.ignores == nil {
		return reply(s, nick, errorText("Ignore list is unavailable.", ""))
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	list, err := b.ignores.ListIgnores(ctx)
	if err != nil {
		return errors.Join(err, reply(s, nick, errorText("Failed to read the ignore list.", err.Error())))
	}
	if len(list) == 0 {
		return reply(s, nick, errorText("Ignore list is empty!", ""))
	}

	if err := reply(s, nick, "["+Color("Ignore List", Purple)+"]"); err != nil {
		return err
	}
	for _, ig := range list {
		if err := reply(s, nick, Color(ig.Mask, Yellow)); err != nil {
			return err
		}
	}
	return reply(s, nick, Color("Total:", LightBlue)+" "+Color(strconv.Itoa(len(list)), Grey))
}

func (b *Bot) addIgnore(s core.Sender, nick, mask, by string) error {
	if b.ignores == nil {
		return reply(s, nick, errorText("Ignore list is unavailable.", ""))
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	_, err := b.ignores.AddIgnore(ctx, mask, by)
	switch {
	case errors.Is(err, store.ErrIgnoreExists):
		return reply(s, nick, errorText("Ident is already on the ignore list.", ""))
	case err != nil:
		return errors.Join(err, reply(s, nick, errorText("Failed to add ident.", err.Error())))
	}
	b.log.Info().Str("mask", mask).Str("by", by).Msg("ignore added")
	return reply(s, nick, "Ident "+Color("added", Green)+" to the ignore list.")
}

func (b *Bot) removeIgnore(s core.Sender, nick, mask string) error {
	if b.ignores == nil {
		return reply(s, nick, errorText("Ignore list is unavailable.", ""))
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := b.ignores.RemoveIgnore(ctx, mask)
	switch {
	case errors.Is(err, store.ErrIgnoreNotFound):
		return reply(s, nick, errorText("Ident does not exist in the ignore list.", ""))
	case err != nil:
		return errors.Join(err, reply(s, nick, errorText("Failed to remove ident.", err.Error())))
	}
	b.log.Info().Str("mask", mask).Msg("ignore removed")
	return reply(s, nick, "Ident "+Color("removed", Red)+" from the ignore list.")
}

// OnCTCP answers VERSION and PING; other queries are dropped.
func (b *Bot) OnCTCP(s core.Sender, ev proto.PrivateMessage) error {
	body := strings.Trim(ev.Text, string(proto.CTCPDelim))
	verb, arg, _ := strings.Cut(body, " ")

	var answer string
	switch strings.ToUpper(verb) {
	case "VERSION":
		answer = "VERSION " + Version
	case "PING":
		answer = strings.TrimSpace("PING " + arg)
	default:
		return nil
	}
	line, err := proto.Notice(ev.SenderNick, string(proto.CTCPDelim)+answer+string(proto.CTCPDelim))
	if err != nil {
		return err
	}
	return s.Send(line)
}

var _ core.EventHandler = (*Bot)(nil)
