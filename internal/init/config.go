package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	HSTSSeconds int
	LogLevel    string
	// Worker mode serves /metrics here; empty disables it.
	MetricsAddr string

	// Relational store
	DBDriver string
	DBDSN    string

	// Follow graph / posts backend: "sql" or "cassandra"
	GraphBackend string

	// Kafka
	KafkaEnabled   bool
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost       string
	CassandraKeyspace   string
	CassandraUsername   string
	CassandraPassword   string
	CassandraTimeout    time.Duration
	CassandraDC         string
	CassandraMigrations string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration
	RedisAddr string

	// Accounts & permissions
	GroupsFile          string
	DefaultGroup        string
	AccountDeletePolicy string

	// Feed & limits
	FeedPageSize   int
	RateLimitRPS   float64
	RateLimitBurst int
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	// HSTS is only sent over TLS, and only when HSTS_SECONDS > 0.
	viper.SetDefault("HSTS_SECONDS", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("METRICS_ADDR", ":9090")

	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "file:socialapi.db?_foreign_keys=on&_busy_timeout=5000")
	viper.SetDefault("GRAPH_BACKEND", "sql")

	viper.SetDefault("KAFKA_ENABLED", false)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "activity-topic")
	viper.SetDefault("KAFKA_GROUP_ID", "notification-workers")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "socialapi")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	viper.SetDefault("CASSANDRA_MIGRATIONS", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC can be empty

	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("JWT_TTL", "24h")
	// Optional: REDIS_ADDR empty keeps token revocations in memory

	viper.SetDefault("GROUPS_FILE", "")
	viper.SetDefault("DEFAULT_GROUP", "Viewers")
	viper.SetDefault("ACCOUNT_DELETE_POLICY", "cascade")

	viper.SetDefault("FEED_PAGE_SIZE", 50)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 60)

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:                viper.GetString("MODE"),
		ServerAddr:          viper.GetString("SERVER_ADDR"),
		TLSCertFile:         viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:          viper.GetString("TLS_KEY_FILE"),
		HSTSSeconds:         viper.GetInt("HSTS_SECONDS"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		MetricsAddr:         viper.GetString("METRICS_ADDR"),
		DBDriver:            viper.GetString("DB_DRIVER"),
		DBDSN:               viper.GetString("DB_DSN"),
		GraphBackend:        viper.GetString("GRAPH_BACKEND"),
		KafkaEnabled:        viper.GetBool("KAFKA_ENABLED"),
		KafkaBroker:         viper.GetString("KAFKA_BROKER"),
		KafkaTopic:          viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:        viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:      viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:         parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:        parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:       viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace:   viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername:   viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword:   viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:    parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:         viper.GetString("CASSANDRA_DC"),
		CassandraMigrations: viper.GetString("CASSANDRA_MIGRATIONS"),
		JWTSecret:           viper.GetString("JWT_SECRET"),
		JWTTTL:              parseDuration(viper.GetString("JWT_TTL"), 24*time.Hour),
		RedisAddr:           viper.GetString("REDIS_ADDR"),
		GroupsFile:          viper.GetString("GROUPS_FILE"),
		DefaultGroup:        viper.GetString("DEFAULT_GROUP"),
		AccountDeletePolicy: viper.GetString("ACCOUNT_DELETE_POLICY"),
		FeedPageSize:        viper.GetInt("FEED_PAGE_SIZE"),
		RateLimitRPS:        viper.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:      viper.GetInt("RATE_LIMIT_BURST"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
