package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/applyflow/agent/internal/core/domain"
)

// CredentialStore implements storage.CredentialStore using Redis.
// Cookie blobs are stored as JSON under per-user keys.
type CredentialStore struct {
	rdb *redis.Client
}

// NewCredentialStore creates a Redis-backed credential store.
func NewCredentialStore(client *Client) *CredentialStore {
	return &CredentialStore{rdb: client.rdb}
}

// Key helpers
func cookieKey(userID string) string {
	return fmt.Sprintf("agent:cookies:%s", userID)
}

func authKey(userID string) string {
	return fmt.Sprintf("agent:authenticated:%s", userID)
}

// LoadCookies returns the stored cookie blob for a user.
func (s *CredentialStore) LoadCookies(
	ctx context.Context,
	userID string,
) ([]domain.Cookie, bool, error) {
	data, err := s.rdb.Get(ctx, cookieKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cookies: %w", err)
	}

	var cookies []domain.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	return cookies, true, nil
}

// SaveCookies stores the cookie blob, replacing any previous one.
func (s *CredentialStore) SaveCookies(
	ctx context.Context,
	userID string,
	cookies []domain.Cookie,
) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := s.rdb.Set(ctx, cookieKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// SetAuthenticated flips the user's authenticated flag.
func (s *CredentialStore) SetAuthenticated(
	ctx context.Context,
	userID string,
	authenticated bool,
) error {
	val := "0"
	if authenticated {
		val = "1"
	}
	if err := s.rdb.Set(ctx, authKey(userID), val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set authenticated flag: %w", err)
	}
	return nil
}
