package forms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a SubmitGuard backed by SET NX with a TTL. The TTL bounds how long a crashed
// submission can block the document. Seals outlive the lock for sealTTL, which must cover the
// lifetime of a draft.
type RedisGuard struct {
	client  *redis.Client
	ttl     time.Duration
	sealTTL time.Duration
	logger  *slog.Logger
}

const defaultSealTTL = 24 * time.Hour

// NewRedisGuard constructs the guard.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisGuard{client: client, ttl: ttl, sealTTL: defaultSealTTL, logger: logger}
}

// WithSealTTL sets how long submitted revisions are remembered.
func (g *RedisGuard) WithSealTTL(ttl time.Duration) *RedisGuard {
	if ttl > 0 {
		g.sealTTL = ttl
	}
	return g
}

// Seal records key as submitted.
func (g *RedisGuard) Seal(ctx context.Context, key string) error {
	if err := g.client.Set(ctx, key, "1", g.sealTTL).Err(); err != nil {
		return fmt.Errorf("seal submission: %w", err)
	}
	return nil
}

// Sealed reports whether key was submitted.
func (g *RedisGuard) Sealed(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return n > 0, nil
}

// Acquire takes the lock for key or fails with shared.ErrSubmitInFlight.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrSubmitInFlight
	}
	return func() {
		// The request context may already be done; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil {
			g.logger.Warn("release submit lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
