// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Decision is a cached validation verdict. Rejections are cached as
// aggressively as acceptances: re-submitting known-bad content must not
// cost a re-validation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// DecisionCache stores verdicts keyed by content hash and policy
// fingerprint. A cache error is never fatal to the caller; validation just
// runs again.
type DecisionCache interface {
	Get(ctx context.Context, key string) (*Decision, error)
	Put(ctx context.Context, key string, d Decision) error
}

// DecisionKey builds the cache key. Including the policy fingerprint means
// a policy change invalidates old verdicts without any explicit flush.
func DecisionKey(contentHash, fingerprint string) string {
	return "toolgate:decision:" + contentHash + ":" + fingerprint
}

// MemoryDecisionCache is the in-process cache used in tests and
// single-node deployments.
type MemoryDecisionCache struct {
	mu        sync.RWMutex
	decisions map[string]Decision
}

// NewMemoryDecisionCache creates an empty cache.
func NewMemoryDecisionCache() *MemoryDecisionCache {
	return &MemoryDecisionCache{decisions: make(map[string]Decision)}
}

func (c *MemoryDecisionCache) Get(_ context.Context, key string) (*Decision, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.decisions[key]; ok {
		return &d, nil
	}
	return nil, nil
}

func (c *MemoryDecisionCache) Put(_ context.Context, key string, d Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[key] = d
	return nil
}

// RedisDecisionCache shares verdicts across gate instances.
type RedisDecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDecisionCache wraps a Redis client. A zero ttl means entries
// live for 24 hours.
func NewRedisDecisionCache(client *redis.Client, ttl time.Duration) *RedisDecisionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDecisionCache{client: client, ttl: ttl}
}

func (c *RedisDecisionCache) Get(ctx context.Context, key string) (*Decision, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decision cache get: %w", err)
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decision cache decode: %w", err)
	}
	return &d, nil
}

func (c *RedisDecisionCache) Put(ctx context.Context, key string, d Decision) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decision cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("decision cache put: %w", err)
	}
	return nil
}
