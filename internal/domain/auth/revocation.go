package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationPrefix = "auth:revoked:"

// RevocationStore keeps signed-out token ids in Redis until they would have
// expired anyway, so a revoked bearer token stops working immediately.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore creates the revocation store. A nil client disables
// revocation (development without Redis).
func NewRevocationStore(client *redis.Client) *RevocationStore {
	if client == nil {
		return nil
	}
	return &RevocationStore{client: client}
}

// Revoke marks a token id as signed out for ttl.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	return s.client.Set(ctx, revocationPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether a token id has been signed out.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
