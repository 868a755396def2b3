package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliboard/aliboard-server/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultChatHistorySize = 20
	defaultOnlineThreshold = 20 * time.Second
	defaultPresenceMaxAge  = time.Hour
	defaultOfferTTL        = 10 * time.Minute
	defaultAnswerTTL       = 10 * time.Minute
	defaultLockTTL         = 2 * time.Minute
	defaultMaxRooms        = 1024
)

// Config is the global configuration object, filled from the configuration
// file, environment (ALIBOARD_*) and command-line flags.
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PresenceConfig    PresenceConfig    `mapstructure:"presence"`
	SignalingConfig   SignalingConfig   `mapstructure:"signaling"`
	BoardConfig       BoardConfig       `mapstructure:"board"`
	OIDCConfigs       []OIDCConfig      `mapstructure:"oidc"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	LogLevel          string            `mapstructure:"log_level"`
}

// HistoryConfig configures how many chat messages are replayed to a newly
// connected client.
type HistoryConfig struct {
	ChatHistorySize int `mapstructure:"chat_history_size"`
}

func (c HistoryConfig) Size() int {
	if c.ChatHistorySize > 0 {
		return c.ChatHistorySize
	}
	return defaultChatHistorySize
}

// PresenceConfig configures the heartbeat-derived online status.
type PresenceConfig struct {
	OnlineThresholdSeconds int `mapstructure:"online_threshold_seconds"`
	MaxAgeMinutes          int `mapstructure:"max_age_minutes"`
}

func (c PresenceConfig) OnlineThreshold() time.Duration {
	if c.OnlineThresholdSeconds > 0 {
		return time.Duration(c.OnlineThresholdSeconds) * time.Second
	}
	return defaultOnlineThreshold
}

// MaxAge is how long a stale heartbeat record is kept around before the
// background sweep drops it.
func (c PresenceConfig) MaxAge() time.Duration {
	if c.MaxAgeMinutes > 0 {
		return time.Duration(c.MaxAgeMinutes) * time.Minute
	}
	return defaultPresenceMaxAge
}

// SignalingConfig configures the WebRTC handshake cache. Offer and answer live
// long enough to cover a ring timeout, the offerer lock is shorter so an
// abandoned call attempt does not block future offers.
type SignalingConfig struct {
	Path             string `mapstructure:"path"` // buntdb file, ":memory:" if empty
	OfferTTLSeconds  int    `mapstructure:"offer_ttl_seconds"`
	AnswerTTLSeconds int    `mapstructure:"answer_ttl_seconds"`
	LockTTLSeconds   int    `mapstructure:"lock_ttl_seconds"`
}

func (c SignalingConfig) DBPath() string {
	if c.Path != "" {
		return c.Path
	}
	return ":memory:"
}

func (c SignalingConfig) OfferTTL() time.Duration {
	if c.OfferTTLSeconds > 0 {
		return time.Duration(c.OfferTTLSeconds) * time.Second
	}
	return defaultOfferTTL
}

func (c SignalingConfig) AnswerTTL() time.Duration {
	if c.AnswerTTLSeconds > 0 {
		return time.Duration(c.AnswerTTLSeconds) * time.Second
	}
	return defaultAnswerTTL
}

func (c SignalingConfig) LockTTL() time.Duration {
	if c.LockTTLSeconds > 0 {
		return time.Duration(c.LockTTLSeconds) * time.Second
	}
	return defaultLockTTL
}

// BoardConfig bounds the in-memory room table.
type BoardConfig struct {
	MaxRooms int `mapstructure:"max_rooms"`
}

func (c BoardConfig) RoomLimit() int {
	if c.MaxRooms > 0 {
		return c.MaxRooms
	}
	return defaultMaxRooms
}

// An OIDCConfig object configures an OpenID Connect provider used to
// authenticate users. Clients provide an ID token and the provider name, the
// token is then verified against the provider.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"`
}

// PersistenceConfig selects the durable storage backend: "sqlite" or
// "postgres" (gorm) or "buntdb". An empty type runs the server without
// persistence, rooms then start empty and chat history is not replayed.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	if err := viper.BindPFlags(flagSet); err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("ALIBOARD")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(contents)); err != nil {
			globals.AppLogger.Error("could not read config", "error", err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		globals.AppLogger.Error("could not unmarshal config", "error", err)
	}
	return &cfg, nil
}
