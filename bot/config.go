package bot

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix marks environment variables overriding the configuration file.
// Double underscores separate levels: BOTFARM_BOTS__REMINDERBOT__TG_TOKEN sets
// bots.reminderbot.tg_token.
const EnvPrefix = "BOTFARM_"

// Configuration keys of a bot.
const (
	CfgTgToken         = "tg_token"
	CfgDbConnStr       = "db_conn_str"
	CfgDbRetryAttempts = "db_retry_attempts"
	CfgDbRetryDelay    = "db_retry_delay"
	CfgDbTimeout       = "db_timeout"
	CfgStorage         = "storage"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config keeps bot configuration.
type Config struct {
	TgToken         string        `koanf:"tg_token"`
	DBConnStr       string        `koanf:"db_conn_str"`
	DBRetryAttempts int           `koanf:"db_retry_attempts"`
	DBRetryDelay    time.Duration `koanf:"db_retry_delay"`
	DBTimeout       time.Duration `koanf:"db_timeout"`
	Storage         string        `koanf:"storage"`
	StageTTL        time.Duration `koanf:"stage_ttl"`
	RetryAttempts   int           `koanf:"retry_attempts"`
	RetryDelay      time.Duration `koanf:"retry_delay"`
	Workers         int           `koanf:"workers"`
	HandleTimeout   time.Duration `koanf:"handle_timeout"`
	Debug           bool          `koanf:"debug"`
}

func DefaultConfig() Config {
	return Config{
		DBRetryAttempts: 5,
		DBRetryDelay:    2 * time.Second,
		DBTimeout:       5 * time.Second,
		Storage:         StoragePostgres,
		StageTTL:        3 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		Workers:         4,
		HandleTimeout:   30 * time.Second,
	}
}

// FarmConfig is the configuration of the whole bot farm. Bots' configurations
// are kept in the bots section under lower-cased bot names.
type FarmConfig struct {
	StopOnFailure bool   `koanf:"stop_on_failure"`
	LogFile       string `koanf:"log_file"`
	Debug         bool   `koanf:"debug"`

	k *koanf.Koanf
}

var farmDefaults = map[string]any{
	"stop_on_failure": false,
	"log_file":        "",
	"debug":           false,
}

// LoadConfig reads the YAML configuration file (if the path isn't empty) and
// applies environment overrides on top of it.
func LoadConfig(path string) (*FarmConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(farmDefaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed loading defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed loading configuration from %q", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed loading environment variables")
	}

	cfg := FarmConfig{k: k}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed parsing configuration")
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

func botKey(name string) string {
	return "bots." + strings.ToLower(name)
}

// Bot returns the configuration of the named bot with defaults for missing
// values.
func (f *FarmConfig) Bot(name string) (Config, error) {
	key := botKey(name)
	if !f.k.Exists(key) {
		return Config{}, errors.Errorf("couldn't find configuration for bot %q", name)
	}

	cfg := DefaultConfig()
	if err := f.k.Unmarshal(key, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed parsing configuration of bot %q", name)
	}
	return cfg, nil
}

// Validate makes sure that all fields required by the bot are set.
func (f *FarmConfig) Validate(rec Record) error {
	key := botKey(rec.Name)

	missingFields := []string{}
	for _, field := range rec.RequiredConfigFields {
		if f.k.String(key+"."+field) == "" {
			missingFields = append(missingFields, field)
		}
	}

	if len(missingFields) > 0 {
		return errors.Errorf("%v's configuration is missing field(s): %s", rec.Name, strings.Join(missingFields, ", "))
	}
	return nil
}
