package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/ratelimit"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret" validate:"required"`
	PIDFile    string        `mapstructure:"pid_file"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"gt=0"`

	Rooms     RoomsConfig     `mapstructure:"rooms"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Events    EventsConfig    `mapstructure:"events"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Log       LogConfig       `mapstructure:"log"`
}

type RoomsConfig struct {
	MaxRooms   int               `mapstructure:"max_rooms" validate:"gt=0"`
	EmptyGrace time.Duration     `mapstructure:"empty_grace" validate:"gt=0"`
	ErrorGrace time.Duration     `mapstructure:"error_grace" validate:"gt=0"`
	Defaults   domain.RoomConfig `mapstructure:"defaults"`
}

type RateLimitConfig struct {
	MaxBuckets int            `mapstructure:"max_buckets" validate:"gt=0"`
	System     ratelimit.Rule `mapstructure:"system"`
	Message    ratelimit.Rule `mapstructure:"message"`
}

// Rules maps the configured scopes for ratelimit.Scoped.
func (c RateLimitConfig) Rules() map[string]ratelimit.Rule {
	return map[string]ratelimit.Rule{
		ratelimit.ScopeSystem:  c.System,
		ratelimit.ScopeMessage: c.Message,
	}
}

type EventsConfig struct {
	Queue   int `mapstructure:"queue" validate:"gt=0"`
	Workers int `mapstructure:"workers" validate:"gt=0"`
}

// RedisConfig selects the persistence adapter; an empty Addr keeps data in memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NATSConfig enables the event bridge when URL is set.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" validate:"required"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// Loader reads the yaml file for CONFIG_ENV, overlays ARENA_* env vars and
// bound flags, and validates the result.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
	file     string

	mu      sync.Mutex
	current *Config
}

// Flags registers the command line overrides understood by NewLoader.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.Int("port", 0, "listen port")
	fs.String("mode", "", "gin mode: debug or release")
	fs.String("log-level", "", "log level")
	fs.String("pid-file", "", "pid file used by stop, reload and status")
}

func NewLoader(fs *pflag.FlagSet) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if fs != nil {
		if f, _ := fs.GetString("config"); f != "" {
			fileName = f
		}
	}
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bind := map[string]string{
			"port":      "port",
			"mode":      "mode",
			"log.level": "log-level",
			"pid_file":  "pid-file",
		}
		for key, flag := range bind {
			if f := fs.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	return &Loader{
		v:        v,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		file:     fileName,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "arena-dev-secret")
	v.SetDefault("pid_file", "arena.pid")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)

	v.SetDefault("rooms.max_rooms", 1000)
	v.SetDefault("rooms.empty_grace", "5s")
	v.SetDefault("rooms.error_grace", "1s")
	v.SetDefault("rooms.defaults.max_players", 8)
	v.SetDefault("rooms.defaults.min_players", 1)
	v.SetDefault("rooms.defaults.auto_start", false)

	v.SetDefault("ratelimit.max_buckets", ratelimit.DefaultMaxBuckets)
	v.SetDefault("ratelimit.system.capacity", 10)
	v.SetDefault("ratelimit.system.rate", 2)
	v.SetDefault("ratelimit.message.capacity", 30)
	v.SetDefault("ratelimit.message.rate", 15)

	v.SetDefault("events.queue", 1024)
	v.SetDefault("events.workers", 4)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "arena:")
	v.SetDefault("nats.subject_prefix", "arena")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
}

func (l *Loader) File() string { return l.file }

// Load reads the config; a missing file falls back to defaults.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", l.file).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", l.file).Msg("loaded config")
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Rooms.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	l.mu.Lock()
	l.current = &cfg
	l.mu.Unlock()
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

// Reload re-reads the file. On error the previous config stays current.
func (l *Loader) Reload() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.decode()
}

func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch calls onChange with every valid config written to the file.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			log.Error().Str("module", "config").Err(err).Str("file", e.Name).Msg("config change rejected")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config changed")
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load keeps the one-shot form used by tools that do not watch.
func Load() (*Config, error) {
	return NewLoader(nil).Load()
}
