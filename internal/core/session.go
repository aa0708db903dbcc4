package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/vovakirdan/ircbot/internal/proto"
	"github.com/vovakirdan/ircbot/internal/utils"
)

const (
	readBufferSize        = 4096
	defaultReconnectDelay = 15 * time.Second
)

// Dialer opens the transport for one connection attempt.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (net.Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// Options configures a Session. Zero durations disable the matching timeout or delay.
type Options struct {
	Nickname string
	Username string
	Realname string

	// NetworkPassword is sent as PASS before USER and NICK.
	NetworkPassword  string
	NickServPassword string
	OperPassword     string
	// Modes are user modes set after registration, e.g. "B" or "+iB".
	Modes string

	Channel    string
	ChannelKey string

	NickSuffix     string
	MaxNickRetries int

	SendInterval  time.Duration
	QueueLimit    int
	QueueOverflow OverflowPolicy

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	JoinDelay      time.Duration
	RejoinDelay    time.Duration
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
	MaxReconnects  int
	QuitGrace      time.Duration

	MaxLine  int
	Fallback encoding.Encoding
}

func (o Options) withDefaults() Options {
	if o.Username == "" {
		o.Username = o.Nickname
	}
	if o.Realname == "" {
		o.Realname = o.Username
	}
	if o.NickSuffix == "" {
		o.NickSuffix = "_"
	}
	if o.MaxNickRetries <= 0 {
		o.MaxNickRetries = 5
	}
	if o.SendInterval <= 0 {
		o.SendInterval = 500 * time.Millisecond
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = defaultReconnectDelay
	}
	if o.QuitGrace <= 0 {
		o.QuitGrace = 2 * time.Second
	}
	if o.MaxLine <= 0 {
		o.MaxLine = proto.DefaultMaxInbound
	}
	if o.Modes != "" && o.Modes[0] != '+' && o.Modes[0] != '-' {
		o.Modes = "+" + o.Modes
	}
	return o
}

// Session owns one long-lived connection: it dials, registers, reads and
// classifies lines, answers the lifecycle events itself and hands every event
// to the EventHandler. It is the only writer of the nickname and the state.
type Session struct {
	opts    Options
	dialer  Dialer
	handler EventHandler
	log     *zerolog.Logger
	queue   *Queue
	backoff *Backoff

	mu          sync.RWMutex
	state       State
	nick        string
	nickRetries int
	closing     bool
	gen         uint64
	timers      []*time.Timer

	quitOnce sync.Once
	quit     chan struct{}
	quitMsg  string
}

// NewSession builds a session. A nil handler means NopHandler.
func NewSession(opts Options, dialer Dialer, handler EventHandler, logger *zerolog.Logger) *Session {
	opts = opts.withDefaults()
	if handler == nil {
		handler = NopHandler{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{
		opts:    opts,
		dialer:  dialer,
		handler: handler,
		log:     logger,
		queue:   NewQueue(opts.SendInterval, opts.QueueLimit, opts.QueueOverflow),
		backoff: NewBackoff(opts.ReconnectDelay, opts.ReconnectMax),
		nick:    opts.Nickname,
		quit:    make(chan struct{}),
	}
}

// Backoff exposes the reconnect policy so callers can tune factor and jitter before Run.
func (s *Session) Backoff() *Backoff {
	return s.backoff
}

// Nick returns the current nickname.
func (s *Session) Nick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a consistent copy of the session fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:   s.state,
		Nick:    s.nick,
		Channel: s.opts.Channel,
		Pending: s.queue.Len(),
	}
}

// Send queues a command on the current connection.
func (s *Session) Send(line proto.Line) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closing || (s.state != StateRegistering && s.state != StateRegistered) {
		return ErrNotConnected
	}
	return s.queue.Enqueue(line)
}

// Quit sends QUIT with message and makes Run return once the server closes the
// link or the grace period expires. Calling Quit more than once is a no-op.
func (s *Session) Quit(message string) {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		s.quitMsg = message
		s.mu.Unlock()
		close(s.quit)
	})
}

// Run connects and keeps the session alive until ctx is cancelled, Quit is
// called, or a fatal error (nickname exhaustion, reconnect cap) occurs.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	for {
		if s.quitRequested() {
			return nil
		}
		s.setState(StateConnecting)
		err := s.connectAndServe(ctx)

		switch {
		case s.quitRequested():
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrNickExhausted), errors.Is(err, proto.ErrInvalidArgument):
			s.log.Error().Err(err).Msg("registration failed")
			return err
		}
		if limit := s.opts.MaxReconnects; limit > 0 && s.backoff.Attempts() >= limit {
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		delay := s.backoff.Next()
		s.setState(StateBackoff)
		s.log.Warn().Err(err).Dur("delay", delay).Msg("connection lost, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.quit:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context) error {
	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.ConnectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
	}
	conn, err := s.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: connect: %w", ErrTransport, err)
	}
	if s.quitRequested() {
		_ = conn.Close()
		return ErrQuit
	}
	return s.serve(ctx, conn)
}

func (s *Session) serve(ctx context.Context, conn net.Conn) error {
	log := s.log.With().Str("conn_id", utils.NewID()).Logger()

	s.mu.Lock()
	s.gen++
	s.nick = s.opts.Nickname
	s.nickRetries = 0
	s.closing = false
	s.mu.Unlock()
	s.queue.Reset()
	s.setState(StateRegistering)
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connected, registering")

	if err := s.register(); err != nil {
		_ = conn.Close()
		s.teardown(&log)
		return fmt.Errorf("register: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.queue.Run(gctx, conn)
	})
	g.Go(func() error {
		return s.readLoop(gctx, conn, &log)
	})
	g.Go(func() error {
		return s.watchQuit(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})

	err := g.Wait()
	s.teardown(&log)
	return err
}

// register sends PASS, USER and NICK in that order; some servers reject
// registration lines that arrive before the password.
func (s *Session) register() error {
	var lines []proto.Line
	if s.opts.NetworkPassword != "" {
		pass, err := proto.Pass(s.opts.NetworkPassword)
		if err != nil {
			return err
		}
		lines = append(lines, pass)
	}
	user, err := proto.User(s.opts.Username, s.opts.Realname)
	if err != nil {
		return err
	}
	nick, err := proto.Nick(s.Nick())
	if err != nil {
		return err
	}
	lines = append(lines, user, nick)

	for _, l := range lines {
		if err := s.queue.Enqueue(l); err != nil {
			return err
		}
	}
	return nil
}

// teardown invalidates scheduled actions and drops commands meant for the dead connection.
func (s *Session) teardown(log *zerolog.Logger) {
	s.mu.Lock()
	s.gen++
	s.closing = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	if n := s.queue.Reset(); n > 0 {
		log.Debug().Int("dropped", n).Msg("discarded queued commands")
	}
}

func (s *Session) watchQuit(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-s.quit:
	}

	s.mu.RLock()
	msg := s.quitMsg
	s.mu.RUnlock()
	s.enqueue(proto.QuitLine(msg))

	grace := time.NewTimer(s.opts.QuitGrace)
	defer grace.Stop()
	select {
	case <-ctx.Done():
	case <-grace.C:
	}
	return ErrQuit
}

func (s *Session) readLoop(ctx context.Context, conn net.Conn, log *zerolog.Logger) error {
	codec := proto.NewCodec(proto.WithMaxLine(s.opts.MaxLine), proto.WithFallback(s.opts.Fallback))
	buf := make([]byte, readBufferSize)

	for {
		if s.opts.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}
		n, readErr := conn.Read(buf)

		for line, err := range codec.Feed(buf[:n]) {
			if err != nil {
				var decodeErr *proto.DecodeError
				if errors.As(err, &decodeErr) {
					log.Warn().Err(err).Msg("skipping undecodable line")
					continue
				}
				return fmt.Errorf("%w: %w", ErrProtocol, err)
			}
			if err := s.handleLine(line, log); err != nil {
				return err
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(readErr, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w for %s", ErrReadTimeout, s.opts.ReadTimeout)
			}
			return fmt.Errorf("%w: read: %w", ErrTransport, readErr)
		}
	}
}

// handleLine classifies one line, applies the lifecycle rules, then hands the
// event to the handler. A non-nil return ends the connection.
func (s *Session) handleLine(line string, log *zerolog.Logger) error {
	log.Debug().Str("line", line).Msg("recv")

	ev, err := proto.Classify(line)
	if err != nil {
		log.Warn().Err(err).Str("line", line).Msg("dropping line")
		return nil
	}

	fatal := s.handleEvent(ev, log)

	if err := Dispatch(s.handler, s, line, ev); err != nil {
		logHandlerError(log, ev, err)
	}
	return fatal
}

func (s *Session) handleEvent(ev proto.Event, log *zerolog.Logger) error {
	switch e := ev.(type) {
	case proto.Ping:
		s.enqueue(proto.Pong(e.Token))
	case proto.Welcome:
		s.onWelcome(e, log)
	case proto.NicknameInUse:
		return s.onNicknameInUse(e, log)
	case proto.Invite:
		if s.State() == StateRegistered && strings.EqualFold(e.Channel, s.opts.Channel) {
			log.Info().Str("inviter", e.Inviter).Str("channel", e.Channel).Msg("invited, joining")
			s.enqueue(proto.JoinLine(s.opts.Channel, s.opts.ChannelKey))
		}
	case proto.Kick:
		if strings.EqualFold(e.Target, s.Nick()) && strings.EqualFold(e.Channel, s.opts.Channel) {
			log.Warn().Str("by", e.Actor).Str("reason", e.Reason).Dur("rejoin_in", s.opts.RejoinDelay).Msg("kicked from channel")
			s.scheduleJoin(s.opts.RejoinDelay, log)
		}
	case proto.Error:
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.queue.Reset()
		return fmt.Errorf("%w: %s", ErrConnectionClosed, e.Message)
	}
	return nil
}

func (s *Session) onWelcome(e proto.Welcome, log *zerolog.Logger) {
	s.mu.Lock()
	if s.state != StateRegistering {
		s.mu.Unlock()
		return
	}
	if e.Nick != "" && e.Nick != "*" {
		s.nick = e.Nick
	}
	s.nickRetries = 0
	s.mu.Unlock()

	s.setState(StateRegistered)
	s.backoff.Reset()
	log.Info().Str("nick", s.Nick()).Str("server", e.Server).Msg("registered")

	if s.opts.Modes != "" {
		s.enqueue(proto.Mode(s.Nick(), s.opts.Modes))
	}
	if s.opts.NickServPassword != "" {
		s.enqueue(proto.Identify(s.opts.Nickname, s.opts.NickServPassword))
	}
	if s.opts.OperPassword != "" {
		s.enqueue(proto.Oper(s.opts.Username, s.opts.OperPassword))
	}
	s.scheduleJoin(s.opts.JoinDelay, log)
}

func (s *Session) onNicknameInUse(e proto.NicknameInUse, log *zerolog.Logger) error {
	s.mu.Lock()
	if s.state != StateRegistering {
		s.mu.Unlock()
		return nil
	}
	s.nickRetries++
	if s.nickRetries > s.opts.MaxNickRetries {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d collisions", ErrNickExhausted, s.opts.MaxNickRetries)
	}
	s.nick += s.opts.NickSuffix
	nick := s.nick
	s.mu.Unlock()

	log.Warn().Str("taken", e.Nick).Str("nick", nick).Msg("nickname in use, retrying")
	s.enqueue(proto.Nick(nick))
	return nil
}

// scheduleJoin queues the channel join after delay without blocking the read loop.
// The join is dropped if the connection is gone by then.
func (s *Session) scheduleJoin(delay time.Duration, log *zerolog.Logger) {
	line, err := proto.JoinLine(s.opts.Channel, s.opts.ChannelKey)
	if err != nil {
		log.Error().Err(err).Str("channel", s.opts.Channel).Msg("cannot encode join")
		return
	}
	if delay <= 0 {
		s.enqueue(line, nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.gen
	t := time.AfterFunc(delay, func() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.gen != gen || s.closing {
			return
		}
		if err := s.queue.Enqueue(line); err != nil {
			log.Warn().Err(err).Msg("scheduled join not queued")
		}
	})
	s.timers = append(s.timers, t)
}

// enqueue takes an encoder result directly; failures are logged, not returned.
func (s *Session) enqueue(line proto.Line, err error) {
	if err == nil {
		err = s.Send(line)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("verb", line.Verb()).Msg("command not queued")
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("state changed")
	}
}

func (s *Session) quitRequested() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}
