package policy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// PermissionSource fetches the raw permission codes granted to a bearer token.
type PermissionSource interface {
	Permissions(ctx context.Context, token string) ([]string, error)
}

// Resolver resolves capabilities once per token and keeps them in redis for the session lifetime.
type Resolver struct {
	source PermissionSource
	client *redis.Client
	ttl    time.Duration
}

// NewResolver constructs a Resolver. A nil client disables caching.
func NewResolver(source PermissionSource, client *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{source: source, client: client, ttl: ttl}
}

// Resolve returns the capabilities for token.
func (r *Resolver) Resolve(ctx context.Context, token string) (Capabilities, error) {
	if token == "" {
		return Capabilities{}, nil
	}
	key := cacheKey(token)
	if r.client != nil {
		raw, err := r.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var caps Capabilities
			if err := json.Unmarshal(raw, &caps); err == nil {
				return caps, nil
			}
		case !errors.Is(err, redis.Nil):
			return Capabilities{}, err
		}
	}
	codes, err := r.source.Permissions(ctx, token)
	if err != nil {
		return Capabilities{}, err
	}
	caps := Resolve(codes)
	if r.client != nil {
		raw, err := json.Marshal(caps)
		if err != nil {
			return Capabilities{}, err
		}
		if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
			return Capabilities{}, err
		}
	}
	return caps, nil
}

// Forget drops the cached capabilities of token.
func (r *Resolver) Forget(ctx context.Context, token string) error {
	if r.client == nil || token == "" {
		return nil
	}
	return r.client.Del(ctx, cacheKey(token)).Err()
}

// cacheKey never stores the token itself.
func cacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "ledgerdesk:caps:" + hex.EncodeToString(sum[:16])
}
