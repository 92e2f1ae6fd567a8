// Package redisstore keeps short-lived keyed state in Redis: one-time codes,
// refresh tokens, dedup markers and the voice job queue.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	otpPrefix     = "otp:"
	refreshPrefix = "refresh:"
)

type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func otpKey(email string) string {
	return otpPrefix + strings.ToLower(strings.TrimSpace(email))
}

// SaveOTP stores a one-time code for email, replacing any previous one.
func (s *TokenStore) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// ConsumeOTP reports whether code matches the stored one. A match deletes it.
func (s *TokenStore) ConsumeOTP(ctx context.Context, email, code string) (bool, error) {
	key := otpKey(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	if stored != code {
		return false, nil
	}
	// Del returns 0 when a concurrent verify consumed it first.
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return n == 1, nil
}

// SaveRefresh records a refresh token id for its owner.
func (s *TokenStore) SaveRefresh(ctx context.Context, jti string, userID uint, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshPrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// RefreshOwner returns the user a refresh token id belongs to; ok is false
// for unknown, expired or revoked ids.
func (s *TokenStore) RefreshOwner(ctx context.Context, jti string) (uint, bool, error) {
	v, err := s.client.Get(ctx, refreshPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load refresh token: %w", err)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt refresh token entry: %w", err)
	}
	return uint(id), true, nil
}

func (s *TokenStore) RevokeRefresh(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, refreshPrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
