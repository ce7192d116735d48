// Package cache holds the Redis-backed fast paths of the ingestion engine.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DedupStore is the document dedup fast path. It answers "have we already
// processed this document key" without a database round trip; the unique
// index on fiscal_documents remains the source of truth.
type DedupStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewDedupStore creates a Redis-backed dedup store and checks the connection
func NewDedupStore(cfg Config) (*DedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewDedupStoreWithClient(client, ""), nil
}

// NewDedupStoreWithClient creates a store over an existing client.
// Useful for tests and for sharing one client across components.
func NewDedupStoreWithClient(client *redis.Client, keyPrefix string) *DedupStore {
	if keyPrefix == "" {
		keyPrefix = "fiscal:dedup:"
	}
	return &DedupStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       90 * 24 * time.Hour,
	}
}

// MarkSeen marks a document key as processed for a tenant. Returns true when
// the key was newly marked, false when it was already present.
func (s *DedupStore) MarkSeen(ctx context.Context, tenantID uuid.UUID, documentKey string) (bool, error) {
	key := s.redisKey(tenantID, documentKey)
	fresh, err := s.client.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark document seen: %w", err)
	}
	return fresh, nil
}

// Forget clears a mark, used when a document's transaction rolled back
func (s *DedupStore) Forget(ctx context.Context, tenantID uuid.UUID, documentKey string) error {
	if err := s.client.Del(ctx, s.redisKey(tenantID, documentKey)).Err(); err != nil {
		return fmt.Errorf("forget document: %w", err)
	}
	return nil
}

// Close releases the Redis client
func (s *DedupStore) Close() error {
	return s.client.Close()
}

func (s *DedupStore) redisKey(tenantID uuid.UUID, documentKey string) string {
	return s.keyPrefix + tenantID.String() + ":" + documentKey
}
