package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds bot configuration values.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Cert     CertConfig     `mapstructure:"cert" yaml:"cert"`
	Channel  ChannelConfig  `mapstructure:"channel" yaml:"channel"`
	Ident    IdentConfig    `mapstructure:"ident" yaml:"ident"`
	Login    LoginConfig    `mapstructure:"login" yaml:"login"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig describes how to reach the IRC server.
type ServerConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	TLS       bool   `mapstructure:"tls" yaml:"tls"`
	TLSVerify bool   `mapstructure:"tls_verify" yaml:"tls_verify"`
	IPv6      bool   `mapstructure:"ipv6" yaml:"ipv6"`
	// VHost is a local address to bind before dialing.
	VHost string `mapstructure:"vhost" yaml:"vhost"`
	// Proxy is a SOCKS5 proxy as host:port or socks5://[user:pass@]host:port.
	Proxy string `mapstructure:"proxy" yaml:"proxy"`
}

// CertConfig is an optional TLS client certificate. File may be a PEM
// certificate (with Key) or a PKCS#12 bundle (.p12/.pfx).
type CertConfig struct {
	File     string `mapstructure:"file" yaml:"file"`
	Key      string `mapstructure:"key" yaml:"key"`
	Password string `mapstructure:"password" yaml:"password"`
}

type ChannelConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Key  string `mapstructure:"key" yaml:"key"`
}

type IdentConfig struct {
	Nickname       string `mapstructure:"nickname" yaml:"nickname"`
	Username       string `mapstructure:"username" yaml:"username"`
	Realname       string `mapstructure:"realname" yaml:"realname"`
	NickSuffix     string `mapstructure:"nick_suffix" yaml:"nick_suffix"`
	MaxNickRetries int    `mapstructure:"max_nick_retries" yaml:"max_nick_retries"`
}

// LoginConfig holds the optional network, NickServ and operator passwords.
type LoginConfig struct {
	Network  string `mapstructure:"network" yaml:"network"`
	NickServ string `mapstructure:"nickserv" yaml:"nickserv"`
	Operator string `mapstructure:"operator" yaml:"operator"`
}

type SettingsConfig struct {
	// Admin is a nick!user@host mask; * matches any run of characters.
	Admin            string `mapstructure:"admin" yaml:"admin"`
	CmdChar          string `mapstructure:"cmd_char" yaml:"cmd_char"`
	Modes            string `mapstructure:"modes" yaml:"modes"`
	DatabasePath     string `mapstructure:"database_path" yaml:"database_path"`
	EncodingFallback string `mapstructure:"encoding_fallback" yaml:"encoding_fallback"`
}

// ThrottleConfig groups every delay, timeout and cap of the session.
type ThrottleConfig struct {
	// Command is the minimum gap between chat commands of one non-admin user.
	Command time.Duration `mapstructure:"command" yaml:"command"`
	// Message is the minimum gap between two outbound lines.
	Message        time.Duration `mapstructure:"message" yaml:"message"`
	Reconnect      time.Duration `mapstructure:"reconnect" yaml:"reconnect"`
	ReconnectMax   time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
	MaxReconnects  int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	Rejoin         time.Duration `mapstructure:"rejoin" yaml:"rejoin"`
	JoinDelay      time.Duration `mapstructure:"join_delay" yaml:"join_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	QueueLimit     int           `mapstructure:"queue_limit" yaml:"queue_limit"`
	QueueOverflow  string        `mapstructure:"queue_overflow" yaml:"queue_overflow"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "irc.server.com",
			Port: 6667,
		},
		Channel: ChannelConfig{
			Name: "#dev",
		},
		Ident: IdentConfig{
			Nickname:       "ircbot",
			Username:       "ircbot",
			Realname:       "IRC bot",
			NickSuffix:     "_",
			MaxNickRetries: 5,
		},
		Settings: SettingsConfig{
			Admin:        "nick!user@host.name",
			CmdChar:      "!",
			DatabasePath: "data/bot.db",
		},
		Throttle: ThrottleConfig{
			Command:        3 * time.Second,
			Message:        500 * time.Millisecond,
			Reconnect:      15 * time.Second,
			ReconnectMax:   5 * time.Minute,
			Rejoin:         3 * time.Second,
			JoinDelay:      3 * time.Second,
			ConnectTimeout: 15 * time.Second,
			ReadTimeout:    300 * time.Second,
			QueueLimit:     256,
			QueueOverflow:  "reject",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks required fields and normalizes the channel name.
func (c *Config) Validate() error {
	var errs []error

	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port))
	}

	c.Channel.Name = strings.TrimSpace(c.Channel.Name)
	switch {
	case c.Channel.Name == "":
		errs = append(errs, errors.New("channel.name is required"))
	case c.Channel.Name[0] != '#':
		// '#' needs escaping in most shells, so it is optional
		c.Channel.Name = "#" + c.Channel.Name
	}

	if strings.TrimSpace(c.Ident.Nickname) == "" {
		errs = append(errs, errors.New("ident.nickname is required"))
	}
	if len(c.Settings.CmdChar) > 1 {
		errs = append(errs, fmt.Errorf("settings.cmd_char must be a single character, got %q", c.Settings.CmdChar))
	}
	if c.Cert.Key != "" && c.Cert.File == "" {
		errs = append(errs, errors.New("cert.key set without cert.file"))
	}
	if c.Throttle.Reconnect <= 0 {
		errs = append(errs, errors.New("throttle.reconnect must be positive"))
	}
	if c.Throttle.ReconnectMax > 0 && c.Throttle.ReconnectMax < c.Throttle.Reconnect {
		errs = append(errs, errors.New("throttle.reconnect_max must not be below throttle.reconnect"))
	}
	if c.Throttle.Message <= 0 {
		errs = append(errs, errors.New("throttle.message must be positive"))
	}
	if c.Throttle.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("throttle.connect_timeout must be positive"))
	}
	if c.Throttle.QueueLimit < 0 {
		errs = append(errs, errors.New("throttle.queue_limit must not be negative"))
	}
	switch c.Throttle.QueueOverflow {
	case "", "reject", "drop", "drop_newest":
	default:
		errs = append(errs, fmt.Errorf("throttle.queue_overflow %q is not reject or drop", c.Throttle.QueueOverflow))
	}

	return errors.Join(errs...)
}

// Addr returns host:port of the IRC server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
