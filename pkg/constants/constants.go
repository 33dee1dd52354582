// Package constants provides shared constants for the equity-snapshot application.
package constants

// Metric constants
const (
	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// DefaultRoleIncomeMultiplier is the placeholder benchmark: the average
	// income for a role is assumed to be 15% above the submitted income.
	DefaultRoleIncomeMultiplier = 1.15

	// DefaultLivingWage is the monthly living wage reference figure.
	DefaultLivingWage = 4500.0

	// RentBurdenModerateThreshold is the lowest rent burden percent that is
	// no longer considered good.
	RentBurdenModerateThreshold = 30

	// RentBurdenHighThreshold is the lowest rent burden percent considered high risk.
	RentBurdenHighThreshold = 50
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Sink type constants
const (
	SinkTypeNone      = "none"
	SinkTypeLog       = "log"
	SinkTypePostgres  = "postgres"
	SinkTypeRedis     = "redis"
	SinkTypeFirestore = "firestore"
)

// Persistence defaults
const (
	// DefaultSinkTimeoutSeconds bounds the single write attempt to the sink.
	DefaultSinkTimeoutSeconds = 10

	// DefaultCollection is the document collection / table submissions are written to.
	DefaultCollection = "submissions"

	// DefaultRedisKeyPrefix prefixes the keys of submission documents in Redis.
	DefaultRedisKeyPrefix = "equity:submissions"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "EQUITY"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (64 KB)
	DefaultMaxBodySizeBytes int64 = 64 * 1024
)
