package main

import (
	"context"
	"fmt"
	"strings"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/auth"
	appkafka "example.com/socialapi/internal/broker"
	config "example.com/socialapi/internal/init"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/store"
	"github.com/redis/go-redis/v9"
)

// loadPolicy reads the group table and checks the settings that refer to it.
func loadPolicy(cfg *config.Config) (*access.Policy, accounts.DeletePolicy, error) {
	policy, err := access.LoadPolicy(cfg.GroupsFile)
	if err != nil {
		return nil, "", fmt.Errorf("load groups: %w", err)
	}
	if cfg.DefaultGroup != "" && !policy.HasGroup(cfg.DefaultGroup) {
		return nil, "", fmt.Errorf("DEFAULT_GROUP %q is not a defined group", cfg.DefaultGroup)
	}
	dp, err := accounts.ParseDeletePolicy(cfg.AccountDeletePolicy)
	if err != nil {
		return nil, "", err
	}
	return policy, dp, nil
}

// openStores connects the relational store and, when configured, moves the
// follow graph and posts to Cassandra.
func openStores(cfg *config.Config) (*store.Stores, error) {
	sql, err := store.OpenSQL(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	stores := store.FromSQL(sql)

	switch cfg.GraphBackend {
	case "sql", "":
	case "cassandra":
		g, err := store.NewCassandraGraph(cfg)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("cassandra connection failed: %w", err)
		}
		stores.WithGraph(g)
	default:
		stores.Close()
		return nil, fmt.Errorf("unsupported GRAPH_BACKEND %q", cfg.GraphBackend)
	}
	return stores, nil
}

// newTokens keeps revocations in Redis when REDIS_ADDR is set, in memory otherwise.
func newTokens(ctx context.Context, cfg *config.Config) (*auth.Tokens, error) {
	var rev auth.Revocations = auth.NewMemoryRevocations()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rev = auth.NewRedisRevocations(client)
	}
	return auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, rev), nil
}

func kafkaConfig(cfg *config.Config) appkafka.KafkaConfig {
	return appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}
}

// newPublisher sends activity to Kafka when enabled. Otherwise notifications
// are stored in-process.
func newPublisher(cfg *config.Config, stores *store.Stores, rec metrics.Recorder) (appkafka.Publisher, error) {
	if !cfg.KafkaEnabled {
		return activity.NewDirectPublisher(activity.NewHandler(stores.Notifications), rec), nil
	}
	w, err := appkafka.NewKafkaWriter(kafkaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka writer init failed: %w", err)
	}
	return appkafka.NewKafkaPublisher(w), nil
}

// hstsSeconds is the HSTS max-age to send. Plain HTTP never sends it.
func hstsSeconds(cfg *config.Config) int {
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		return 0
	}
	return cfg.HSTSSeconds
}

func joinCapabilities(caps []access.Capability) string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
