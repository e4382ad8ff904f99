package masterdata

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledgerdesk/internal/platform/cache"
)

// Source fetches master data from the ERP backend on behalf of token.
type Source interface {
	Accounts(ctx context.Context, token string) ([]Account, error)
	Parties(ctx context.Context, token string) ([]Party, error)
	Items(ctx context.Context, token string) ([]Item, error)
}

// Service serves cached master data.
type Service struct {
	source Source
	cache  *cache.Versioned
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the service. A nil cache disables caching.
func NewService(source Source, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: c, logger: logger}
}

// Accounts returns the chart of accounts.
func (s *Service) Accounts(ctx context.Context, token string) ([]Account, error) {
	var out []Account
	err := s.fetch(ctx, "accounts", &out, func(ctx context.Context) (any, error) {
		return s.source.Accounts(ctx, token)
	})
	return out, err
}

// Parties returns the counterparties.
func (s *Service) Parties(ctx context.Context, token string) ([]Party, error) {
	var out []Party
	err := s.fetch(ctx, "parties", &out, func(ctx context.Context) (any, error) {
		return s.source.Parties(ctx, token)
	})
	return out, err
}

// Items returns the purchasable items.
func (s *Service) Items(ctx context.Context, token string) ([]Item, error) {
	var out []Item
	err := s.fetch(ctx, "items", &out, func(ctx context.Context) (any, error) {
		return s.source.Items(ctx, token)
	})
	return out, err
}

// Bundle loads accounts, parties and optionally items in parallel.
func (s *Service) Bundle(ctx context.Context, token string, withItems bool) (Bundle, error) {
	var bundle Bundle
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.Accounts(ctx, token)
		if err != nil {
			return err
		}
		bundle.Accounts = accounts
		return nil
	})

	g.Go(func() error {
		parties, err := s.Parties(ctx, token)
		if err != nil {
			return err
		}
		bundle.Parties = parties
		return nil
	})

	if withItems {
		g.Go(func() error {
			items, err := s.Items(ctx, token)
			if err != nil {
				return err
			}
			bundle.Items = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

// Refresh drops every cached list.
func (s *Service) Refresh(ctx context.Context) error {
	ver, err := s.cache.Bump(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("masterdata cache bumped", slog.Int64("version", ver))
	return nil
}

// fetch reads through the cache; concurrent misses for the same key share one upstream call.
func (s *Service) fetch(ctx context.Context, name string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.Key(ctx, name)
	if err != nil {
		s.logger.Warn("masterdata cache unavailable", slog.String("list", name), slog.Any("error", err))
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}
