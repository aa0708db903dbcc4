package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "IRCBOT"
	envConfigDefaultPath = "IRCBOT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"server":    "server.host",
	"port":      "server.port",
	"ssl":       "server.tls",
	"channel":   "channel.name",
	"key":       "channel.key",
	"log-level": "log.level",
}

// Load builds configuration from defaults, optional config file, env vars and
// flags, and returns the resolved path.
// Precedence: defaults < config file < env vars < flags that were set.
func Load(logger *zerolog.Logger, explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, "", fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so env vars reach nested fields.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.tls", cfg.Server.TLS)
	v.SetDefault("server.tls_verify", cfg.Server.TLSVerify)
	v.SetDefault("server.ipv6", cfg.Server.IPv6)
	v.SetDefault("server.vhost", cfg.Server.VHost)
	v.SetDefault("server.proxy", cfg.Server.Proxy)

	v.SetDefault("cert.file", cfg.Cert.File)
	v.SetDefault("cert.key", cfg.Cert.Key)
	v.SetDefault("cert.password", cfg.Cert.Password)

	v.SetDefault("channel.name", cfg.Channel.Name)
	v.SetDefault("channel.key", cfg.Channel.Key)

	v.SetDefault("ident.nickname", cfg.Ident.Nickname)
	v.SetDefault("ident.username", cfg.Ident.Username)
	v.SetDefault("ident.realname", cfg.Ident.Realname)
	v.SetDefault("ident.nick_suffix", cfg.Ident.NickSuffix)
	v.SetDefault("ident.max_nick_retries", cfg.Ident.MaxNickRetries)

	v.SetDefault("login.network", cfg.Login.Network)
	v.SetDefault("login.nickserv", cfg.Login.NickServ)
	v.SetDefault("login.operator", cfg.Login.Operator)

	v.SetDefault("settings.admin", cfg.Settings.Admin)
	v.SetDefault("settings.cmd_char", cfg.Settings.CmdChar)
	v.SetDefault("settings.modes", cfg.Settings.Modes)
	v.SetDefault("settings.database_path", cfg.Settings.DatabasePath)
	v.SetDefault("settings.encoding_fallback", cfg.Settings.EncodingFallback)

	v.SetDefault("throttle.command", cfg.Throttle.Command)
	v.SetDefault("throttle.message", cfg.Throttle.Message)
	v.SetDefault("throttle.reconnect", cfg.Throttle.Reconnect)
	v.SetDefault("throttle.reconnect_max", cfg.Throttle.ReconnectMax)
	v.SetDefault("throttle.max_reconnects", cfg.Throttle.MaxReconnects)
	v.SetDefault("throttle.rejoin", cfg.Throttle.Rejoin)
	v.SetDefault("throttle.join_delay", cfg.Throttle.JoinDelay)
	v.SetDefault("throttle.connect_timeout", cfg.Throttle.ConnectTimeout)
	v.SetDefault("throttle.read_timeout", cfg.Throttle.ReadTimeout)
	v.SetDefault("throttle.queue_limit", cfg.Throttle.QueueLimit)
	v.SetDefault("throttle.queue_overflow", cfg.Throttle.QueueOverflow)

	v.SetDefault("log.level", cfg.Log.Level)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
