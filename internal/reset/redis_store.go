package reset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisGrace keeps records around after expiry so a late redemption is
// reported as expired rather than invalid.
const redisGrace = 24 * time.Hour

// RedisStore keeps reset records in Redis under password_reset:<hash>.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func passwordResetKey(token string) string {
	return fmt.Sprintf("password_reset:%s", hashToken(token))
}

func (s *RedisStore) Save(ctx context.Context, token string, rec Record) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}
	ttl += redisGrace

	value := fmt.Sprintf("%s|%d", rec.UserID, rec.ExpiresAt.Unix())
	if err := s.client.Set(ctx, passwordResetKey(token), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}
	return nil
}

// Consume uses GETDEL so read and removal happen as one command.
func (s *RedisStore) Consume(ctx context.Context, token string) (Record, error) {
	value, err := s.client.GetDel(ctx, passwordResetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get password reset token: %w", err)
	}

	userPart, expPart, ok := strings.Cut(value, "|")
	if !ok {
		return Record{}, fmt.Errorf("malformed password reset record %q", value)
	}
	userID, err := uuid.Parse(userPart)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	expUnix, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse expiry: %w", err)
	}

	return Record{UserID: userID, ExpiresAt: time.Unix(expUnix, 0).UTC()}, nil
}
