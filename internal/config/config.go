package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Dupcheck Dupcheck `yaml:"dupcheck"`
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	ListenAddr    string `yaml:"listenAddr"`
	LogFile       string `yaml:"logFile"`
	LogLevel      string `yaml:"logLevel"`
}

type Dupcheck struct {
	FileNumberThreshold int           `yaml:"fileNumberThreshold"`
	EligibleCategories  []string      `yaml:"eligibleCategories"`
	Rules               []string      `yaml:"rules"`
	Interval            time.Duration `yaml:"interval"`
	FullEvery           int           `yaml:"fullEvery"` // every n-th scheduled cycle covers the full corpus
	CycleTimeout        time.Duration `yaml:"cycleTimeout"`
	LockTTL             time.Duration `yaml:"lockTTL"`
	PendingCacheTTL     time.Duration `yaml:"pendingCacheTTL"`
	QueueSize           int           `yaml:"queueSize"`
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr: ":8000",
			LogLevel:   "info",
		},
		Dupcheck: Dupcheck{
			FileNumberThreshold: domain.DefaultFileNumberThreshold,
			EligibleCategories:  []string{"R"},
			Rules: []string{
				string(domain.ReasonFileNumberDate),
				string(domain.ReasonFileNumberCourt),
				string(domain.ReasonFileNumberDeviatingCourt),
				string(domain.ReasonECLI),
			},
			Interval:        10 * time.Minute,
			FullEvery:       6,
			CycleTimeout:    5 * time.Minute,
			LockTTL:         10 * time.Minute,
			PendingCacheTTL: 60 * time.Second,
			QueueSize:       1,
		},
	}
}

// Load reads the yaml file at path on top of the defaults and applies
// environment overrides.
func Load(path string) (Config, error) {
	config := Default()

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	if err := config.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyEnv overrides fields from DUPCHECK_* environment variables.
func (c *Config) ApplyEnv() error {
	parseEnvString("DUPCHECK_POSTGRES_DSN", &c.Server.PostgresDsn)
	parseEnvString("DUPCHECK_REDIS_ADDR", &c.Server.RedisAddr)
	parseEnvString("DUPCHECK_MEMCACHED_ADDR", &c.Server.MemcachedAddr)
	parseEnvString("DUPCHECK_LISTEN_ADDR", &c.Server.ListenAddr)
	parseEnvString("DUPCHECK_LOG_LEVEL", &c.Server.LogLevel)
	parseEnvString("DUPCHECK_LOG_FILE", &c.Server.LogFile)

	if err := parseEnvInt("DUPCHECK_FILE_NUMBER_THRESHOLD", &c.Dupcheck.FileNumberThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("DUPCHECK_REDIS_DB", &c.Server.RedisDB); err != nil {
		return err
	}
	if err := parseEnvDuration("DUPCHECK_INTERVAL", &c.Dupcheck.Interval); err != nil {
		return err
	}
	if err := parseEnvDuration("DUPCHECK_CYCLE_TIMEOUT", &c.Dupcheck.CycleTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	d := c.Dupcheck
	if d.FileNumberThreshold < 1 {
		return fmt.Errorf("fileNumberThreshold must be at least 1, got %d", d.FileNumberThreshold)
	}
	if len(d.EligibleCategories) == 0 {
		return fmt.Errorf("eligibleCategories must not be empty")
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("at least one matching rule must be enabled")
	}
	for _, r := range d.Rules {
		if !domain.Reason(r).Valid() {
			return fmt.Errorf("unknown matching rule %q", r)
		}
	}
	if d.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", d.Interval)
	}
	if d.CycleTimeout <= 0 {
		return fmt.Errorf("cycleTimeout must be positive, got %s", d.CycleTimeout)
	}
	if d.LockTTL <= 0 {
		return fmt.Errorf("lockTTL must be positive, got %s", d.LockTTL)
	}
	if d.CycleTimeout > d.LockTTL {
		return fmt.Errorf("cycleTimeout (%s) must not exceed lockTTL (%s)", d.CycleTimeout, d.LockTTL)
	}
	if d.PendingCacheTTL < 0 {
		return fmt.Errorf("pendingCacheTTL must not be negative, got %s", d.PendingCacheTTL)
	}
	if d.FullEvery < 0 {
		return fmt.Errorf("fullEvery must not be negative, got %d", d.FullEvery)
	}
	if d.QueueSize < 1 {
		return fmt.Errorf("queueSize must be at least 1, got %d", d.QueueSize)
	}
	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		return err
	}
	return nil
}

// Domain converts the dupcheck section into the settings the usecases read.
func (c Config) Domain() domain.Config {
	rules := make([]domain.Reason, 0, len(c.Dupcheck.Rules))
	for _, r := range c.Dupcheck.Rules {
		rules = append(rules, domain.Reason(r))
	}
	return domain.Config{
		FileNumberThreshold: c.Dupcheck.FileNumberThreshold,
		EligibleCategories:  c.Dupcheck.EligibleCategories,
		Rules:               rules,
		CycleTimeout:        c.Dupcheck.CycleTimeout,
		LockTTL:             c.Dupcheck.LockTTL,
		PendingCacheTTL:     c.Dupcheck.PendingCacheTTL,
	}
}

func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
