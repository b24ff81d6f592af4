package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPStore implements ports.OTPStore. Tokens are stored under their digest and
// consumed with GETDEL so a link works at most once.
// Key format: <prefix>otp:<digest>
type OTPStore struct {
	client redis.UniversalClient
	prefix string
}

// NewOTPStore creates an OTPStore wrapping the given Redis client.
func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client, prefix: defaultKeyPrefix}
}

func (s *OTPStore) Save(ctx context.Context, digest, email string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.key(digest), email, ttl).Result()
	if err != nil {
		return fmt.Errorf("otp save: %w", err)
	}
	if !ok {
		return fmt.Errorf("otp save: digest collision")
	}
	return nil
}

func (s *OTPStore) Consume(ctx context.Context, digest string) (string, bool, error) {
	email, err := s.client.GetDel(ctx, s.key(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("otp consume: %w", err)
	}
	return email, true, nil
}

func (s *OTPStore) key(digest string) string {
	return s.prefix + "otp:" + digest
}
