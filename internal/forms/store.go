package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// ErrDraftNotFound indicates the draft expired or never existed.
var ErrDraftNotFound = fmt.Errorf("draft not found: %w", shared.ErrNotFound)

// DraftStore keeps form drafts between requests.
type DraftStore interface {
	Put(ctx context.Context, kind, draftID string, v any) error
	Get(ctx context.Context, kind, draftID string, dest any) error
	Delete(ctx context.Context, kind, draftID string) error
}

// RedisDraftStore stores drafts as JSON with a sliding TTL.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDraftStore constructs the store.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisDraftStore{client: client, ttl: ttl}
}

// Put writes the draft and refreshes its TTL.
func (s *RedisDraftStore) Put(ctx context.Context, kind, draftID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.client.Set(ctx, shared.DraftKey(kind, draftID), payload, s.ttl).Err()
}

// Get decodes the draft into dest.
func (s *RedisDraftStore) Get(ctx context.Context, kind, draftID string, dest any) error {
	payload, err := s.client.Get(ctx, shared.DraftKey(kind, draftID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrDraftNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	return nil
}

// Delete drops the draft.
func (s *RedisDraftStore) Delete(ctx context.Context, kind, draftID string) error {
	return s.client.Del(ctx, shared.DraftKey(kind, draftID)).Err()
}
