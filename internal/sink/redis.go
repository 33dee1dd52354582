package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/config"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client for the Redis sink. Client retries are
// disabled; each submission gets a single write attempt.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   -1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// RedisSink stores each submission as a JSON document under
// "<prefix>:<id>" and appends the ID to the "<prefix>:index" list.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink writes through client using prefix for keys.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = constants.DefaultRedisKeyPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return constants.SinkTypeRedis }

// DocumentKey returns the key a document with id is stored under.
func (s *RedisSink) DocumentKey(id string) string {
	return s.prefix + ":" + id
}

// IndexKey returns the key of the list of stored document IDs.
func (s *RedisSink) IndexKey() string {
	return s.prefix + ":index"
}

func (s *RedisSink) Save(ctx context.Context, sub form.Submission) error {
	doc, err := prepare(sub)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.DocumentKey(doc.ID), payload, 0)
	pipe.RPush(ctx, s.IndexKey(), doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
