package qfilter

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultShots        = 8192
	DefaultD0           = 0.4
	DefaultPollInterval = 30 * time.Second
)

// HardwareConfig configures the remote job service.
type HardwareConfig struct {
	Enabled        bool
	URL            string
	Token          string
	Device         string
	MinQubits      int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	StatusRetries  int
	RetryBackoff   time.Duration
	MaxFailedJobs  int
	BreakerReset   time.Duration
	RequestBurst   int
	RequestRefill  time.Duration
}

type Config struct {
	Shots         int
	FilterType    FilterType
	D0            float64
	Seed          uint64
	Normalization Normalization
	Workers       int
	RunTimeout    time.Duration
	Debug         bool
	Hardware      HardwareConfig
}

func NewConfig() *Config {
	return &Config{
		Shots:         DefaultShots,
		FilterType:    HighPass,
		D0:            DefaultD0,
		Seed:          1,
		Normalization: NormalizeGroup,
		Workers:       2,
		RunTimeout:    time.Hour,
		Hardware: HardwareConfig{
			MinQubits:      NumQubits,
			PollInterval:   DefaultPollInterval,
			RequestTimeout: 30 * time.Second,
			StatusRetries:  3,
			RetryBackoff:   time.Second,
			MaxFailedJobs:  3,
			BreakerReset:   5 * time.Minute,
			RequestBurst:   10,
			RequestRefill:  200 * time.Millisecond,
		},
	}
}

/*
SetDefaults registers every key with its NewConfig value so that viper can
resolve it from flags, environment (QFILTER_*) or a config file.
*/
func SetDefaults(v *viper.Viper) {
	def := NewConfig()

	v.SetDefault("shots", def.Shots)
	v.SetDefault("filter", def.FilterType.String())
	v.SetDefault("d0", def.D0)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("normalization", def.Normalization.String())
	v.SetDefault("workers", def.Workers)
	v.SetDefault("timeout", def.RunTimeout)
	v.SetDefault("debug", def.Debug)

	v.SetDefault("hardware.enabled", def.Hardware.Enabled)
	v.SetDefault("hardware.url", def.Hardware.URL)
	v.SetDefault("hardware.token", def.Hardware.Token)
	v.SetDefault("hardware.device", def.Hardware.Device)
	v.SetDefault("hardware.min_qubits", def.Hardware.MinQubits)
	v.SetDefault("hardware.poll_interval", def.Hardware.PollInterval)
	v.SetDefault("hardware.request_timeout", def.Hardware.RequestTimeout)
	v.SetDefault("hardware.status_retries", def.Hardware.StatusRetries)
	v.SetDefault("hardware.retry_backoff", def.Hardware.RetryBackoff)
	v.SetDefault("hardware.max_failed_jobs", def.Hardware.MaxFailedJobs)
	v.SetDefault("hardware.breaker_reset", def.Hardware.BreakerReset)
	v.SetDefault("hardware.request_burst", def.Hardware.RequestBurst)
	v.SetDefault("hardware.request_refill", def.Hardware.RequestRefill)

	v.SetEnvPrefix("qfilter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig reads an optional config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper resolves a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	ft, err := ParseFilterType(v.GetString("filter"))
	if err != nil {
		return nil, err
	}

	norm := NormalizeGroup
	switch strings.ToLower(v.GetString("normalization")) {
	case "", "group":
	case "pixel":
		norm = NormalizePixel
	default:
		return nil, fmt.Errorf("unknown normalization %q", v.GetString("normalization"))
	}

	cfg := &Config{
		Shots:         v.GetInt("shots"),
		FilterType:    ft,
		D0:            v.GetFloat64("d0"),
		Seed:          v.GetUint64("seed"),
		Normalization: norm,
		Workers:       v.GetInt("workers"),
		RunTimeout:    v.GetDuration("timeout"),
		Debug:         v.GetBool("debug"),
		Hardware: HardwareConfig{
			Enabled:        v.GetBool("hardware.enabled"),
			URL:            v.GetString("hardware.url"),
			Token:          v.GetString("hardware.token"),
			Device:         v.GetString("hardware.device"),
			MinQubits:      v.GetInt("hardware.min_qubits"),
			PollInterval:   v.GetDuration("hardware.poll_interval"),
			RequestTimeout: v.GetDuration("hardware.request_timeout"),
			StatusRetries:  v.GetInt("hardware.status_retries"),
			RetryBackoff:   v.GetDuration("hardware.retry_backoff"),
			MaxFailedJobs:  v.GetInt("hardware.max_failed_jobs"),
			BreakerReset:   v.GetDuration("hardware.breaker_reset"),
			RequestBurst:   v.GetInt("hardware.request_burst"),
			RequestRefill:  v.GetDuration("hardware.request_refill"),
		},
	}

	if cfg.Shots <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShots, cfg.Shots)
	}
	if cfg.Hardware.Enabled && cfg.Hardware.URL == "" {
		return nil, fmt.Errorf("hardware.url is required when hardware is enabled")
	}

	return cfg, nil
}
