package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cartridge/dinosweep/internal/actor"
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/health"
	"github.com/cartridge/dinosweep/internal/policy"
	"github.com/cartridge/dinosweep/internal/storage"
	"github.com/cartridge/dinosweep/internal/sweep"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "DINO"

// Config holds all sweep configuration
type Config struct {
	// Environment
	EnvAddr  string `mapstructure:"env_addr"`
	Simulate bool   `mapstructure:"simulate"`
	SimSeed  int64  `mapstructure:"sim_seed"`

	// Grid
	JumpThresholds []float64 `mapstructure:"jump_thresholds"`
	DuckThresholds []float64 `mapstructure:"duck_thresholds"`
	JumpDeltas     []float64 `mapstructure:"jump_deltas"`
	Tests          int       `mapstructure:"tests"`

	// Policy
	Policy     string `mapstructure:"policy"`
	PolicySeed int64  `mapstructure:"policy_seed"`

	// Episode timing
	StartDelay time.Duration `mapstructure:"start_delay"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// Watchdog
	StallAfter         time.Duration `mapstructure:"stall_after"`
	StallCheckInterval time.Duration `mapstructure:"stall_check_interval"`

	// Persistence and fan-out
	DBDriver    string `mapstructure:"db_driver"`
	DBDSN       string `mapstructure:"db_dsn"`
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`

	// Reporting
	HTTPAddr    string `mapstructure:"http_addr"`
	HeatmapPath string `mapstructure:"heatmap_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	grid := sweep.DefaultGrid()
	return &Config{
		EnvAddr:            "localhost:50061",
		SimSeed:            1,
		JumpThresholds:     grid.JumpThresholds,
		DuckThresholds:     grid.DuckThresholds,
		JumpDeltas:         grid.JumpDeltas,
		Tests:              grid.Tests,
		Policy:             policy.NameThreshold,
		PolicySeed:         1,
		StartDelay:         time.Second,
		RetryDelay:         500 * time.Millisecond,
		StallAfter:         10 * time.Second,
		StallCheckInterval: 2 * time.Second,
		DBDriver:           storage.DriverSQLite,
		DBDSN:              "dinosweep.db",
		NATSSubject:        "dino.sweeps",
		HTTPAddr:           ":8090",
		HeatmapPath:        "heatmap.html",
		LogLevel:           "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if !c.Simulate && c.EnvAddr == "" {
		errs = append(errs, errors.New("env_addr is required unless simulate is set"))
	}
	if err := c.Grid().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := policy.ByName(c.Policy, c.PolicySeed); err != nil {
		errs = append(errs, err)
	}
	if c.StartDelay < 0 || c.RetryDelay < 0 {
		errs = append(errs, errors.New("start_delay and retry_delay must not be negative"))
	}
	if c.StallAfter < 0 {
		errs = append(errs, errors.New("stall_after must not be negative"))
	}
	if c.StallAfter > 0 && c.StallCheckInterval <= 0 {
		errs = append(errs, errors.New("stall_check_interval must be positive when stall_after is set"))
	}
	switch c.DBDriver {
	case "":
	case storage.DriverSQLite, storage.DriverPostgres:
		if c.DBDSN == "" {
			errs = append(errs, fmt.Errorf("db_dsn is required for driver %q", c.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported db_driver %q", c.DBDriver))
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		errs = append(errs, errors.New("nats_subject is required when nats_url is set"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	if errors.Is(err, game.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", game.ErrConfiguration, err)
}

// Grid returns the configured search space.
func (c *Config) Grid() sweep.Grid {
	return sweep.Grid{
		JumpThresholds: c.JumpThresholds,
		DuckThresholds: c.DuckThresholds,
		JumpDeltas:     c.JumpDeltas,
		Tests:          c.Tests,
	}
}

// ActorOptions returns the episode timing options.
func (c *Config) ActorOptions() actor.Options {
	return actor.Options{StartDelay: c.StartDelay, RetryDelay: c.RetryDelay}
}

// NewPolicy builds the configured action policy.
func (c *Config) NewPolicy() (policy.Policy, error) {
	return policy.ByName(c.Policy, c.PolicySeed)
}

// Watchdog returns the stall detection settings.
func (c *Config) Watchdog() health.Config {
	return health.Config{CheckInterval: c.StallCheckInterval, StallAfter: c.StallAfter}
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// flagSpec ties a command-line flag to its configuration key.
type flagSpec struct {
	key   string
	flag  string
	usage string
}

var flagSpecs = []flagSpec{
	{"env_addr", "env-addr", "Environment bridge address"},
	{"simulate", "simulate", "Play the built-in simulator instead of dialing the bridge"},
	{"sim_seed", "sim-seed", "Simulator random seed"},
	{"jump_thresholds", "jump-thresholds", "Jump threshold axis (comma separated)"},
	{"duck_thresholds", "duck-thresholds", "Duck threshold axis (comma separated)"},
	{"jump_deltas", "jump-deltas", "Jump delta axis (comma separated)"},
	{"tests", "tests", "Episodes per grid cell"},
	{"policy", "policy", "Action policy: threshold or random"},
	{"policy_seed", "policy-seed", "Random policy seed"},
	{"start_delay", "start-delay", "Wait after the start jump"},
	{"retry_delay", "retry-delay", "Wait after re-jumping over a stale crash frame"},
	{"stall_after", "stall-after", "Warn when the environment is silent this long (0 disables)"},
	{"stall_check_interval", "stall-check-interval", "Stall check period"},
	{"db_driver", "db-driver", "Result store driver: sqlite, postgres or empty to disable"},
	{"db_dsn", "db-dsn", "Result store DSN or sqlite path"},
	{"nats_url", "nats-url", "NATS server URL (empty disables events)"},
	{"nats_subject", "nats-subject", "NATS subject for sweep events"},
	{"http_addr", "http-addr", "Report server listen address"},
	{"heatmap_path", "heatmap-path", "Heatmap HTML output path"},
	{"log_level", "log-level", "Log level (debug, info, warn, error)"},
}

// RegisterFlags defines every configuration flag on flags with defaults from Default
// and binds them to v.
func RegisterFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	d := Default()
	flags.String("env-addr", d.EnvAddr, "")
	flags.Bool("simulate", d.Simulate, "")
	flags.Int64("sim-seed", d.SimSeed, "")
	flags.StringSlice("jump-thresholds", formatFloats(d.JumpThresholds), "")
	flags.StringSlice("duck-thresholds", formatFloats(d.DuckThresholds), "")
	flags.StringSlice("jump-deltas", formatFloats(d.JumpDeltas), "")
	flags.Int("tests", d.Tests, "")
	flags.String("policy", d.Policy, "")
	flags.Int64("policy-seed", d.PolicySeed, "")
	flags.Duration("start-delay", d.StartDelay, "")
	flags.Duration("retry-delay", d.RetryDelay, "")
	flags.Duration("stall-after", d.StallAfter, "")
	flags.Duration("stall-check-interval", d.StallCheckInterval, "")
	flags.String("db-driver", d.DBDriver, "")
	flags.String("db-dsn", d.DBDSN, "")
	flags.String("nats-url", d.NATSURL, "")
	flags.String("nats-subject", d.NATSSubject, "")
	flags.String("http-addr", d.HTTPAddr, "")
	flags.String("heatmap-path", d.HeatmapPath, "")
	flags.String("log-level", d.LogLevel, "")

	for _, spec := range flagSpecs {
		f := flags.Lookup(spec.flag)
		f.Usage = spec.usage
		if err := v.BindPFlag(spec.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", spec.flag, err)
		}
	}
	return nil
}

// Load resolves the configuration from flags bound to v, DINO_* environment variables
// and, when configFile is set, a config file. Flags set explicitly win over the
// environment, which wins over the file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, spec := range flagSpecs {
		if err := v.BindEnv(spec.key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %w", game.ErrConfiguration, configFile, err)
		}
	}

	setDefaults(v, Default())

	// Decode into a zero value; slices decoded over longer defaults keep stale tails.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", game.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"env_addr":             d.EnvAddr,
		"simulate":             d.Simulate,
		"sim_seed":             d.SimSeed,
		"jump_thresholds":      d.JumpThresholds,
		"duck_thresholds":      d.DuckThresholds,
		"jump_deltas":          d.JumpDeltas,
		"tests":                d.Tests,
		"policy":               d.Policy,
		"policy_seed":          d.PolicySeed,
		"start_delay":          d.StartDelay,
		"retry_delay":          d.RetryDelay,
		"stall_after":          d.StallAfter,
		"stall_check_interval": d.StallCheckInterval,
		"db_driver":            d.DBDriver,
		"db_dsn":               d.DBDSN,
		"nats_url":             d.NATSURL,
		"nats_subject":         d.NATSSubject,
		"http_addr":            d.HTTPAddr,
		"heatmap_path":         d.HeatmapPath,
		"log_level":            d.LogLevel,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}
