// Package config loads client settings from defaults, an optional YAML file
// and NETALERTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. NETALERTE_SYNC_BATCH_SIZE.
const EnvPrefix = "NETALERTE"

// ServerConfig locates the ingestion service.
type ServerConfig struct {
	URL       string        `mapstructure:"url"`        // base URL, reports go to <url>/api/reports
	Timeout   time.Duration `mapstructure:"timeout"`    // per request, also used by the probe
	AuthToken string        `mapstructure:"auth_token"` // static bearer token, --token wins
}

// StorageConfig places the local database and its records.
type StorageConfig struct {
	Path         string `mapstructure:"path"`
	QueueKey     string `mapstructure:"queue_key"`
	Passphrase   string `mapstructure:"passphrase"` // empty disables at-rest encryption
	SyncInfoPath string `mapstructure:"syncinfo_path"`
}

// SyncConfig tunes the batch submitter and the sync driver.
type SyncConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`        // per report and run
	BaseRetryDelay    time.Duration `mapstructure:"base_retry_delay"`    // wait before attempt k+1 is k times this
	LowPowerThreshold int           `mapstructure:"low_power_threshold"` // runs are skipped at or below this level
	BatchSize         int           `mapstructure:"batch_size"`          // reports in flight together
	Interval          time.Duration `mapstructure:"interval"`            // timer trigger period
}

// NetmonConfig controls connectivity probing.
type NetmonConfig struct {
	ProbeURL string        `mapstructure:"probe_url"`
	Interval time.Duration `mapstructure:"interval"`
}

// PowerConfig selects the battery source.
type PowerConfig struct {
	SupplyPath string `mapstructure:"supply_path"`
	FixedLevel int    `mapstructure:"fixed_level"` // negative reads sysfs
}

// LoggingConfig is consumed by the logger package.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	File   string `mapstructure:"file"`
}

// Options is the full client configuration.
type Options struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Netmon  NetmonConfig  `mapstructure:"netmon"`
	Power   PowerConfig   `mapstructure:"power"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DataDir is where the database and the last-sync file live by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "netalerte"
	}
	return filepath.Join(home, "netalerte")
}

// NewViper returns a viper instance with every default set and environment
// overrides enabled. Callers may bind command-line flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dir := DataDir()
	v.SetDefault("server.url", "http://localhost:3000")
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("storage.path", filepath.Join(dir, "netalerte.db"))
	v.SetDefault("storage.queue_key", "offlineReports")
	v.SetDefault("storage.passphrase", "")
	v.SetDefault("storage.syncinfo_path", filepath.Join(dir, "syncinfo.dat"))
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.base_retry_delay", time.Second)
	v.SetDefault("sync.low_power_threshold", 20)
	v.SetDefault("sync.batch_size", 5)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("netmon.probe_url", "")
	v.SetDefault("netmon.interval", 15*time.Second)
	v.SetDefault("power.supply_path", "/sys/class/power_supply")
	v.SetDefault("power.fixed_level", -1)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	return v
}

// Load reads path (skipped when empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Options, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var opt Options
	if err := v.Unmarshal(&opt); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if opt.Netmon.ProbeURL == "" {
		opt.Netmon.ProbeURL = opt.Server.URL
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return &opt, nil
}

// NewConfig loads defaults, env and an optional file in one step.
func NewConfig(path string) (*Options, error) {
	return Load(NewViper(), path)
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every out-of-range setting at once, each wrapping
// ErrInvalidConfig.
func (o *Options) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(o.Server.URL != "", "server.url is empty")
	check(o.Server.Timeout > 0, "server.timeout must be positive, got %s", o.Server.Timeout)
	check(o.Storage.Path != "", "storage.path is empty")
	check(o.Storage.QueueKey != "", "storage.queue_key is empty")
	check(o.Sync.MaxAttempts > 0, "sync.max_attempts must be positive, got %d", o.Sync.MaxAttempts)
	check(o.Sync.BaseRetryDelay >= 0, "sync.base_retry_delay must not be negative, got %s", o.Sync.BaseRetryDelay)
	check(o.Sync.LowPowerThreshold >= 0 && o.Sync.LowPowerThreshold <= 100,
		"sync.low_power_threshold must be within [0,100], got %d", o.Sync.LowPowerThreshold)
	check(o.Sync.BatchSize > 0, "sync.batch_size must be positive, got %d", o.Sync.BatchSize)
	check(o.Sync.Interval > 0, "sync.interval must be positive, got %s", o.Sync.Interval)
	check(o.Netmon.Interval > 0, "netmon.interval must be positive, got %s", o.Netmon.Interval)
	check(o.Power.FixedLevel <= 100, "power.fixed_level must be at most 100, got %d", o.Power.FixedLevel)

	switch strings.ToLower(o.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format must be json or console, got %q", ErrInvalidConfig, o.Logging.Format))
	}
	return errors.Join(errs...)
}
