// Package config defines the data structures related to configuration and
// includes functions for loading and validating it.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/iwvelando/equity-snapshot/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for equity-snapshot.
type Configuration struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Output    OutputConfig    `yaml:"output,omitempty"`
	Benchmark BenchmarkConfig `yaml:"benchmark,omitempty"`
	Sink      SinkConfig      `yaml:"sink,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// BenchmarkConfig holds the figures wage gap and living wage comparisons
// are measured against. Roles and Locations are optional overrides of the
// flat multiplier and living wage. Groups enables the race and gender wage
// gap.
type BenchmarkConfig struct {
	Multiplier float64             `yaml:"multiplier,omitempty"`
	LivingWage float64             `yaml:"livingWage,omitempty"`
	Roles      []RoleBenchmark     `yaml:"roles,omitempty"`
	Locations  []LocationBenchmark `yaml:"locations,omitempty"`
	Groups     []GroupBenchmark    `yaml:"groups,omitempty"`
}

// RoleBenchmark is the average monthly income for a job title, optionally
// restricted to one location.
type RoleBenchmark struct {
	JobTitle      string  `yaml:"jobTitle"`
	Location      string  `yaml:"location,omitempty"`
	AverageIncome float64 `yaml:"averageIncome"`
}

// LocationBenchmark is the monthly living wage for a location.
type LocationBenchmark struct {
	Location   string  `yaml:"location"`
	LivingWage float64 `yaml:"livingWage"`
}

// GroupBenchmark is the average monthly income for a race and gender,
// optionally narrowed to a job title and location.
type GroupBenchmark struct {
	JobTitle      string  `yaml:"jobTitle,omitempty"`
	Location      string  `yaml:"location,omitempty"`
	Race          string  `yaml:"race"`
	Gender        string  `yaml:"gender"`
	AverageIncome float64 `yaml:"averageIncome"`
}

// SinkConfig selects and configures where submissions are persisted.
type SinkConfig struct {
	Type      string          `yaml:"type,omitempty"` // none, log, postgres, redis, firestore
	Timeout   time.Duration   `yaml:"timeout,omitempty"`
	Postgres  PostgresConfig  `yaml:"postgres,omitempty"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Firestore FirestoreConfig `yaml:"firestore,omitempty"`
}

// PostgresConfig configures the Postgres sink.
type PostgresConfig struct {
	DSN          string `yaml:"dsn,omitempty"`
	Table        string `yaml:"table,omitempty"`
	MaxOpenConns int    `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns int    `yaml:"maxIdleConns,omitempty"`
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Address   string `yaml:"address,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// FirestoreConfig configures the Firestore sink.
type FirestoreConfig struct {
	ProjectID       string `yaml:"projectID,omitempty"`
	Collection      string `yaml:"collection,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("benchmark.multiplier", constants.DefaultRoleIncomeMultiplier)
	v.SetDefault("benchmark.livingWage", constants.DefaultLivingWage)
	v.SetDefault("sink.type", constants.SinkTypeLog)
	v.SetDefault("sink.timeout", time.Duration(constants.DefaultSinkTimeoutSeconds)*time.Second)
	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.table", constants.DefaultCollection)
	v.SetDefault("sink.postgres.maxOpenConns", 4)
	v.SetDefault("sink.postgres.maxIdleConns", 2)
	v.SetDefault("sink.redis.address", "")
	v.SetDefault("sink.redis.password", "")
	v.SetDefault("sink.redis.db", 0)
	v.SetDefault("sink.redis.keyPrefix", constants.DefaultRedisKeyPrefix)
	v.SetDefault("sink.firestore.projectID", "")
	v.SetDefault("sink.firestore.collection", constants.DefaultCollection)
	v.SetDefault("sink.firestore.credentialsFile", "")
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// LoadDotEnv loads environment variables from .env files when they exist.
// Variables already set in the environment take precedence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields defaults plus any EQUITY_*
// environment overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is supplied.
func Default() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		// Defaults are static; decoding them cannot fail.
		panic(err)
	}
	return conf
}

// Validate returns an error for settings the application cannot run with.
func (c *Configuration) Validate() error {
	if err := validation.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := validation.ValidateLogFormat(c.Logging.Format); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Benchmark.Multiplier <= 0 {
		return fmt.Errorf("benchmark multiplier must be positive, got %v", c.Benchmark.Multiplier)
	}
	if c.Benchmark.LivingWage <= 0 {
		return fmt.Errorf("benchmark living wage must be positive, got %v", c.Benchmark.LivingWage)
	}
	if err := validation.ValidateSinkType(c.Sink.Type); err != nil {
		return err
	}
	if c.Sink.Timeout <= 0 {
		return fmt.Errorf("sink timeout must be positive, got %s", c.Sink.Timeout)
	}

	switch c.Sink.Type {
	case constants.SinkTypePostgres:
		if c.Sink.Postgres.DSN == "" {
			return errors.New("sink.postgres.dsn is required for the postgres sink")
		}
	case constants.SinkTypeRedis:
		if c.Sink.Redis.Address == "" {
			return errors.New("sink.redis.address is required for the redis sink")
		}
	case constants.SinkTypeFirestore:
		if c.Sink.Firestore.ProjectID == "" {
			return errors.New("sink.firestore.projectID is required for the firestore sink")
		}
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if c.Benchmark.Multiplier > 0 && c.Benchmark.Multiplier < 1 {
		warnings = append(warnings, fmt.Sprintf("Benchmark multiplier %v is below 1; every wage gap will be negative", c.Benchmark.Multiplier))
	}
	for i, role := range c.Benchmark.Roles {
		if strings.TrimSpace(role.JobTitle) == "" {
			warnings = append(warnings, fmt.Sprintf("Benchmark role #%d has no job title and will be ignored", i+1))
		} else if role.AverageIncome <= 0 {
			warnings = append(warnings, fmt.Sprintf("Benchmark role '%s' has a non-positive average income and will be ignored", role.JobTitle))
		}
	}
	for i, loc := range c.Benchmark.Locations {
		if strings.TrimSpace(loc.Location) == "" {
			warnings = append(warnings, fmt.Sprintf("Benchmark location #%d has no name and will be ignored", i+1))
		} else if loc.LivingWage <= 0 {
			warnings = append(warnings, fmt.Sprintf("Benchmark location '%s' has a non-positive living wage and will be ignored", loc.Location))
		}
	}
	for i, group := range c.Benchmark.Groups {
		switch {
		case strings.TrimSpace(group.Race) == "" || strings.TrimSpace(group.Gender) == "":
			warnings = append(warnings, fmt.Sprintf("Benchmark group #%d needs both race and gender and will be ignored", i+1))
		case !knownGroup(group.Race, group.Gender):
			warnings = append(warnings, fmt.Sprintf("Benchmark group #%d (%s, %s) uses an unknown race or gender and will never match", i+1, group.Race, group.Gender))
		case group.AverageIncome <= 0:
			warnings = append(warnings, fmt.Sprintf("Benchmark group #%d has a non-positive average income and will be ignored", i+1))
		}
	}

	switch c.Sink.Type {
	case constants.SinkTypeNone:
		warnings = append(warnings, "Submission persistence is disabled (sink type none)")
	case constants.SinkTypeFirestore:
		if c.Sink.Firestore.CredentialsFile == "" {
			warnings = append(warnings, "Firestore credentials file not set; using application default credentials")
		}
	}

	return warnings
}

func knownGroup(race, gender string) bool {
	r := form.Race(strings.ToLower(strings.TrimSpace(race)))
	g := form.Gender(strings.ToLower(strings.TrimSpace(gender)))
	return slices.Contains(form.Races, r) && slices.Contains(form.Genders, g)
}

// NewBenchmark builds the metrics benchmark described by the configuration.
func (c *Configuration) NewBenchmark() metrics.Benchmark {
	fixed := metrics.FixedBenchmark{
		RoleMultiplier:    c.Benchmark.Multiplier,
		MonthlyLivingWage: c.Benchmark.LivingWage,
	}
	if len(c.Benchmark.Roles) == 0 && len(c.Benchmark.Locations) == 0 && len(c.Benchmark.Groups) == 0 {
		return fixed
	}

	roles := make([]metrics.RoleIncome, 0, len(c.Benchmark.Roles))
	for _, r := range c.Benchmark.Roles {
		roles = append(roles, metrics.RoleIncome{
			JobTitle:      r.JobTitle,
			Location:      r.Location,
			AverageIncome: r.AverageIncome,
		})
	}
	locations := make([]metrics.LocationWage, 0, len(c.Benchmark.Locations))
	for _, l := range c.Benchmark.Locations {
		locations = append(locations, metrics.LocationWage{
			Location:   l.Location,
			LivingWage: l.LivingWage,
		})
	}
	groups := make([]metrics.GroupIncome, 0, len(c.Benchmark.Groups))
	for _, g := range c.Benchmark.Groups {
		groups = append(groups, metrics.GroupIncome{
			JobTitle:      g.JobTitle,
			Location:      g.Location,
			Race:          g.Race,
			Gender:        g.Gender,
			AverageIncome: g.AverageIncome,
		})
	}
	return metrics.NewTableBenchmark(fixed, roles, locations, groups)
}
