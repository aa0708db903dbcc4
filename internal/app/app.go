package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircbot/internal/auth"
	"github.com/vovakirdan/ircbot/internal/bot"
	"github.com/vovakirdan/ircbot/internal/config"
	"github.com/vovakirdan/ircbot/internal/core"
	applog "github.com/vovakirdan/ircbot/internal/log"
	"github.com/vovakirdan/ircbot/internal/proto"
	"github.com/vovakirdan/ircbot/internal/store"
	"github.com/vovakirdan/ircbot/internal/store/sqlite"
	"github.com/vovakirdan/ircbot/internal/transport/tcp"
)

const (
	quitMessage     = "Shutting down"
	shutdownTimeout = 5 * time.Second
)

// App wires together config, storage, transport, session and bot.
type App struct {
	session         *core.Session
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	dialer, err := tcp.New(tcp.Options{
		Addr:         cfg.Server.Addr(),
		IPv6:         cfg.Server.IPv6,
		VHost:        cfg.Server.VHost,
		Proxy:        cfg.Server.Proxy,
		TLS:          cfg.Server.TLS,
		TLSVerify:    cfg.Server.TLSVerify,
		CertFile:     cfg.Cert.File,
		KeyFile:      cfg.Cert.Key,
		CertPassword: cfg.Cert.Password,
	}, applog.Component(logger, "transport"))
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}
	return NewWithDialer(cfg, dialer, logger)
}

// NewWithDialer is New with a caller-supplied transport.
func NewWithDialer(cfg *config.Config, dialer core.Dialer, logger *zerolog.Logger) (*App, error) {
	opts, err := SessionOptions(cfg)
	if err != nil {
		return nil, err
	}

	st, err := sqlite.New(cfg.Settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.Settings.DatabasePath).Msg("database initialized")

	handler := bot.New(bot.Config{
		Channel:         cfg.Channel.Name,
		CmdChar:         cfg.Settings.CmdChar,
		CommandInterval: cfg.Throttle.Command,
	}, auth.NewMatcher(cfg.Settings.Admin), st, nil, applog.Component(logger, "bot"))

	session := core.NewSession(opts, dialer, handler, applog.Component(logger, "session"))

	return &App{
		session:         session,
		store:           st,
		shutdownTimeout: shutdownTimeout,
		log:             logger,
	}, nil
}

// SessionOptions maps configuration onto session options.
func SessionOptions(cfg *config.Config) (core.Options, error) {
	overflow, err := core.ParseOverflowPolicy(cfg.Throttle.QueueOverflow)
	if err != nil {
		return core.Options{}, err
	}
	fallback, ok := proto.FallbackEncoding(cfg.Settings.EncodingFallback)
	if !ok {
		return core.Options{}, fmt.Errorf("unknown encoding fallback %q", cfg.Settings.EncodingFallback)
	}

	return core.Options{
		Nickname:         cfg.Ident.Nickname,
		Username:         cfg.Ident.Username,
		Realname:         cfg.Ident.Realname,
		NetworkPassword:  cfg.Login.Network,
		NickServPassword: cfg.Login.NickServ,
		OperPassword:     cfg.Login.Operator,
		Modes:            cfg.Settings.Modes,
		Channel:          cfg.Channel.Name,
		ChannelKey:       cfg.Channel.Key,
		NickSuffix:       cfg.Ident.NickSuffix,
		MaxNickRetries:   cfg.Ident.MaxNickRetries,
		SendInterval:     cfg.Throttle.Message,
		QueueLimit:       cfg.Throttle.QueueLimit,
		QueueOverflow:    overflow,
		ConnectTimeout:   cfg.Throttle.ConnectTimeout,
		ReadTimeout:      cfg.Throttle.ReadTimeout,
		JoinDelay:        cfg.Throttle.JoinDelay,
		RejoinDelay:      cfg.Throttle.Rejoin,
		ReconnectDelay:   cfg.Throttle.Reconnect,
		ReconnectMax:     cfg.Throttle.ReconnectMax,
		MaxReconnects:    cfg.Throttle.MaxReconnects,
		Fallback:         fallback,
	}, nil
}

// Session exposes the IRC session, mostly for status reporting.
func (a *App) Session() *core.Session {
	return a.session
}

// Run keeps the bot connected and blocks until context cancellation or fatal error.
// On cancellation the bot sends QUIT and waits for the server to close the link.
func (a *App) Run(ctx context.Context) error {
	sessCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- a.session.Run(sessCtx)
	}()

	select {
	case err := <-sessionErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down irc session")
		a.session.Quit(quitMessage)

		timer := time.NewTimer(a.shutdownTimeout)
		defer timer.Stop()

		var err error
		select {
		case err = <-sessionErr:
		case <-timer.C:
			a.log.Warn().Dur("timeout", a.shutdownTimeout).Msg("quit timed out, closing connection")
			cancel()
			err = <-sessionErr
		}
		a.cleanup()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
