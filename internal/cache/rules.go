// Package cache is a Redis-backed cache-aside layer for tenant pricing
// rules, which the fare engine reads on every reservation. Entries expire
// by TTL; rule edits land through the external catalog surface and become
// visible within one TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"geoconnect/internal/models"
)

type Config struct {
	Addr     string
	Password string
	RulesTTL time.Duration
}

type RulesCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRulesCache(cfg Config) (*RulesCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RulesCache{client: rdb, ttl: cfg.RulesTTL}, nil
}

func rulesKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("pricing_rules:%s", tenantID)
}

// Get returns the cached rule set for a tenant, or an error on miss.
func (c *RulesCache) Get(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error) {
	raw, err := c.client.Get(ctx, rulesKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("pricing rules not cached for tenant %s", tenantID)
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var rules []models.PricingRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("invalid cached pricing rules: %w", err)
	}
	return rules, nil
}

// Set stores a tenant's rule set with the configured TTL.
func (c *RulesCache) Set(ctx context.Context, tenantID uuid.UUID, rules []models.PricingRule) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing rules: %w", err)
	}
	return c.client.Set(ctx, rulesKey(tenantID), raw, c.ttl).Err()
}

func (c *RulesCache) Close() error {
	return c.client.Close()
}
