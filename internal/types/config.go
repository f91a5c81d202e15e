package types

type RunMode string

const (
	// ModeLocal runs the API server with in-memory event publishing
	ModeLocal RunMode = "local"
	// ModeAPI runs the API server publishing to Kafka
	ModeAPI RunMode = "api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// PublishDestination is where domain events are published
type PublishDestination string

const (
	PublishToMemory PublishDestination = "memory"
	PublishToKafka  PublishDestination = "kafka"
)
