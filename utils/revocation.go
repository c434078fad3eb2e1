package utils

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations is a Redis denylist of logged-out token ids. Entries expire
// together with the token they block.
type Revocations struct{ rdb *redis.Client }

func NewRevocations(rdb *redis.Client) *Revocations { return &Revocations{rdb} }

func revokedKey(jti string) string { return "revoked:" + jti }

// Revoke blocks jti for ttl. Tokens that already expired need no entry.
func (r *Revocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(jti), 1, ttl).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.rdb.Get(ctx, revokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
