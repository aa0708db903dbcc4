package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ircbot/internal/auth"
	"github.com/vovakirdan/ircbot/internal/core"
	"github.com/vovakirdan/ircbot/internal/proto"
	"github.com/vovakirdan/ircbot/internal/store/sqlite"
)

type fakeSender struct {
	nick string
	sent []string
}

func (f *fakeSender) Send(line proto.Line) error {
	f.sent = append(f.sent, line.String())
	return nil
}

func (f *fakeSender) Nick() string { return f.nick }

func (f *fakeSender) take() []string {
	out := f.sent
	f.sent = nil
	return out
}

const (
	adminSource = "boss!b@admin.example"
	userSource  = "alice!a@user.example"
)

type testBot struct {
	*Bot
	clock time.Time
	s     *fakeSender
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	b := New(Config{Channel: "#dev", CmdChar: "!", CommandInterval: 3 * time.Second},
		auth.NewMatcher("boss!*@admin.example"), st, nil, nil)
	tb := &testBot{Bot: b, clock: time.Unix(1_700_000_000, 0), s: &fakeSender{nick: "bot"}}
	b.now = func() time.Time { return tb.clock }
	return tb
}

func msg(source, target, text string) proto.PrivateMessage {
	ev, err := proto.Classify(":" + source + " PRIVMSG " + target + " :" + text)
	if err != nil {
		panic(err)
	}
	return ev.(proto.PrivateMessage)
}

func (tb *testBot) channel(t *testing.T, source, text string) []string {
	t.Helper()
	require.NoError(t, core.Dispatch(tb, tb.s, "", msg(source, "#dev", text)))
	return tb.s.take()
}

func (tb *testBot) direct(t *testing.T, source, text string) []string {
	t.Helper()
	require.NoError(t, core.Dispatch(tb, tb.s, "", msg(source, "bot", text)))
	return tb.s.take()
}

func TestChannelCommands(t *testing.T) {
	tb := newTestBot(t)

	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, userSource, "!ping"))

	tb.clock = tb.clock.Add(3 * time.Second)
	assert.Equal(t, []string{"PRIVMSG #dev :Commands: help, ping"}, tb.channel(t, userSource, "!HELP"))

	tb.clock = tb.clock.Add(3 * time.Second)
	assert.Empty(t, tb.channel(t, userSource, "hello !ping"), "text without the prefix")
	assert.Empty(t, tb.channel(t, userSource, "!"), "bare prefix")
	assert.Empty(t, tb.channel(t, userSource, "!nosuchcommand"))

	// other channels are not ours
	require.NoError(t, core.Dispatch(tb, tb.s, "", msg(userSource, "#other", "!ping")))
	assert.Empty(t, tb.s.take())
}

func TestCommandThrottle(t *testing.T) {
	tb := newTestBot(t)

	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, userSource, "!ping"))
	assert.Equal(t, []string{"PRIVMSG #dev :" + Color("Slow down nerd!", Red)}, tb.channel(t, userSource, "!ping"))
	assert.Empty(t, tb.channel(t, "bob!b@host", "!ping"), "slow down is sent once per burst")

	// admins are never throttled
	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, adminSource, "!ping"))

	tb.clock = tb.clock.Add(3 * time.Second)
	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, userSource, "!ping"))
	assert.Len(t, tb.channel(t, userSource, "!ping"), 1, "a new burst warns again")
}

func TestCommandErrorsAreReported(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.registry.Register(Command{Name: "fail", Run: func(core.Sender, Request) error {
		return errors.New("database on fire")
	}}))
	require.NoError(t, tb.registry.Register(Command{Name: "panic", Run: func(core.Sender, Request) error {
		panic("unreachable state")
	}}))

	want := "PRIVMSG #dev :" + errorText("Command threw an exception.", "database on fire")
	assert.Equal(t, []string{want}, tb.channel(t, adminSource, "!fail"))

	want = "PRIVMSG #dev :" + errorText("Command threw an exception.", "unreachable state")
	assert.Equal(t, []string{want}, tb.channel(t, adminSource, "!panic now"))
}

func TestAdminOnlyCommands(t *testing.T) {
	tb := newTestBot(t)
	var got Request
	require.NoError(t, tb.registry.Register(Command{Name: "secret", AdminOnly: true, Run: func(_ core.Sender, req Request) error {
		got = req
		return nil
	}}))

	assert.Empty(t, tb.channel(t, userSource, "!secret"))
	assert.Empty(t, got.Name)

	tb.channel(t, adminSource, "!secret a b")
	assert.Equal(t, Request{
		Channel: "#dev", Nick: "boss", Source: adminSource, Name: "secret", Args: []string{"a", "b"}, Admin: true,
	}, got)

	assert.Equal(t, []string{"PRIVMSG #dev :Commands: help, ping, secret"}, tb.channel(t, adminSource, "!help"))
}

func TestAdminDirectCommands(t *testing.T) {
	tb := newTestBot(t)

	assert.Empty(t, tb.direct(t, userSource, ".off"), "non-admins are ignored")
	assert.True(t, tb.Enabled())

	assert.Equal(t, []string{"PRIVMSG boss :" + errorText("Ignore list is empty!", "")}, tb.direct(t, adminSource, ".ignore"))

	assert.Equal(t, []string{"PRIVMSG boss :Ident " + Color("added", Green) + " to the ignore list."},
		tb.direct(t, adminSource, ".ignore add alice!*@*"))
	assert.Equal(t, []string{"PRIVMSG boss :" + errorText("Ident is already on the ignore list.", "")},
		tb.direct(t, adminSource, ".ignore add alice!*@*"))

	assert.Empty(t, tb.channel(t, userSource, "!ping"), "ignored ident")

	assert.Equal(t, []string{
		"PRIVMSG boss :[" + Color("Ignore List", Purple) + "]",
		"PRIVMSG boss :" + Color("alice!*@*", Yellow),
		"PRIVMSG boss :" + Color("Total:", LightBlue) + " " + Color("1", Grey),
	}, tb.direct(t, adminSource, ".ignore"))

	assert.Equal(t, []string{"PRIVMSG boss :Ident " + Color("removed", Red) + " from the ignore list."},
		tb.direct(t, adminSource, ".ignore del alice!*@*"))
	assert.Equal(t, []string{"PRIVMSG boss :" + errorText("Ident does not exist in the ignore list.", "")},
		tb.direct(t, adminSource, ".ignore del alice!*@*"))

	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, userSource, "!ping"))

	assert.Equal(t, []string{"PRIVMSG boss :" + Color("OFF", Red)}, tb.direct(t, adminSource, ".off"))
	assert.False(t, tb.Enabled())
	tb.clock = tb.clock.Add(time.Minute)
	assert.Empty(t, tb.channel(t, userSource, "!ping"))
	assert.Empty(t, tb.channel(t, adminSource, "!ping"))

	assert.Equal(t, []string{"PRIVMSG boss :" + Color("ON", Green)}, tb.direct(t, adminSource, ".on"))
	assert.Equal(t, []string{"PRIVMSG #dev :pong"}, tb.channel(t, userSource, "!ping"))
}

func TestBotWithoutIgnoreStore(t *testing.T) {
	b := New(Config{Channel: "#dev"}, auth.NewMatcher(adminSource), nil, nil, nil)
	s := &fakeSender{nick: "bot"}

	require.NoError(t, core.Dispatch(b, s, "", msg(userSource, "#dev", "!ping")))
	require.NoError(t, core.Dispatch(b, s, "", msg(adminSource, "bot", ".ignore add x!*@*")))
	assert.Equal(t, []string{
		"PRIVMSG #dev :pong",
		"PRIVMSG boss :" + errorText("Ignore list is unavailable.", ""),
	}, s.sent)
}

func TestCTCPReplies(t *testing.T) {
	tb := newTestBot(t)

	assert.Equal(t, []string{"NOTICE alice :\x01VERSION " + Version + "\x01"}, tb.direct(t, userSource, "\x01VERSION\x01"))
	assert.Equal(t, []string{"NOTICE alice :\x01PING 12345\x01"}, tb.channel(t, userSource, "\x01PING 12345\x01"))
	assert.Empty(t, tb.channel(t, userSource, "\x01ACTION waves\x01"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	noop := func(core.Sender, Request) error { return nil }

	assert.Error(t, r.Register(Command{Name: "Ping", Run: noop}), "duplicate, case-insensitive")
	assert.Error(t, r.Register(Command{Name: "two words", Run: noop}))
	assert.Error(t, r.Register(Command{Name: "nil"}))
	require.NoError(t, r.Register(Command{Name: "Echo", Usage: "echo <text>", Run: noop}))

	cmd, ok := r.Lookup("ECHO")
	require.True(t, ok)
	assert.Equal(t, "echo", cmd.Name)

	s := &fakeSender{nick: "bot"}
	require.NoError(t, r.helpCommand(s, Request{Channel: "#dev", Args: []string{"echo"}}))
	assert.Equal(t, []string{"PRIVMSG #dev :Usage: echo <text>"}, s.sent)
	assert.Error(t, r.helpCommand(s, Request{Channel: "#dev", Args: []string{"missing"}}))
}

func TestColor(t *testing.T) {
	assert.Equal(t, "\x0304hi\x0f", Color("hi", Red))
	assert.Equal(t, "\x0300,01hi\x0f", Color("hi", White, Black))
	assert.Equal(t, "[\x0304!\x0f] oops", errorText("oops", ""))
}
