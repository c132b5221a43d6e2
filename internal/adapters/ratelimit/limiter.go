// Package ratelimit throttles unauthenticated auth endpoints per client.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

var ErrRedisUnavailable = errors.New("rate limiter backend unavailable")

// Rule is a fixed window budget for one action.
type Rule struct {
	Limit  int64
	Window time.Duration
}

type Limiter struct {
	redis  redis.UniversalClient
	rules  map[string]Rule
	prefix string
}

var _ ports.RateLimiter = (*Limiter)(nil)

func New(client redis.UniversalClient, rules map[string]Rule) *Limiter {
	return &Limiter{
		redis:  client,
		rules:  rules,
		prefix: "auth:rl",
	}
}

// Allow counts one attempt of action by key. Actions without a rule are not
// limited.
func (l *Limiter) Allow(ctx context.Context, action, key string) error {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, fmt.Sprintf("%s:%s:%s", l.prefix, action, key), rule.Window)
	if err != nil {
		return err
	}
	if count > rule.Limit {
		return domain.ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the first hit opens it.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Noop never limits. It stands in when no Redis address is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string, string) error { return nil }
