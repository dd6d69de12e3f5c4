// Package ratelimit throttles abusable endpoints.
//
// Limiter keeps fixed-window counters and cooldowns in Redis so they are
// shared by every server instance. UserLimiter is an in-process token
// bucket per user for expensive operations such as generation.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIPLimit       = 10
	defaultIPWindow      = 15 * time.Minute
	defaultEmailCooldown = 2 * time.Minute
	defaultPurpose       = "default"
)

type Limiter struct {
	client        *redis.Client
	ipLimit       int64
	ipWindow      time.Duration
	emailCooldown time.Duration
}

// NewLimiter allows 10 requests per IP per 15 minutes for each purpose and
// one email per address every 2 minutes.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client:        client,
		ipLimit:       defaultIPLimit,
		ipWindow:      defaultIPWindow,
		emailCooldown: defaultEmailCooldown,
	}
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailKey(purpose, email string) string {
	return fmt.Sprintf("ratelimit:email:%s:%s", purpose, strings.ToLower(strings.TrimSpace(email)))
}

// CheckIPRateLimit reports whether ip has used up its window.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (bool, error) {
	return l.CheckIPRateLimitWithPurpose(ctx, ip, defaultPurpose)
}

func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read ip counter: %w", err)
	}
	return count >= l.ipLimit, nil
}

// RecordIPRequest counts a request against ip. The window starts with the
// first request.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip string) error {
	return l.RecordIPRequestWithPurpose(ctx, ip, defaultPurpose)
}

func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment ip counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set ip window: %w", err)
		}
	}
	return nil
}

// CheckEmailCooldown reports whether a mail was sent to email recently.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	return l.CheckEmailCooldownWithPurpose(ctx, email, defaultPurpose)
}

func (l *Limiter) CheckEmailCooldownWithPurpose(ctx context.Context, email, purpose string) (bool, error) {
	n, err := l.client.Exists(ctx, emailKey(purpose, email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	return l.SetEmailCooldownWithPurpose(ctx, email, defaultPurpose)
}

func (l *Limiter) SetEmailCooldownWithPurpose(ctx context.Context, email, purpose string) error {
	if err := l.client.Set(ctx, emailKey(purpose, email), 1, l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
