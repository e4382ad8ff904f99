package erpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/odyssey-erp/ledgerdesk/internal/mapping"
)

const mappingPath = "/api/transaction-mapping"

// ListMappings returns every configured mapping row.
func (c *Client) ListMappings(ctx context.Context, token string) ([]mapping.Mapping, error) {
	var out []mapping.Mapping
	if err := c.do(ctx, token, http.MethodGet, mappingPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMapping stores a new row and returns it with its id.
func (c *Client) CreateMapping(ctx context.Context, token string, m mapping.Mapping) (mapping.Mapping, error) {
	var out mapping.Mapping
	if err := c.do(ctx, token, http.MethodPost, mappingPath, m, &out); err != nil {
		return mapping.Mapping{}, err
	}
	if out.ID == 0 {
		return m, nil
	}
	return out, nil
}

// UpdateMapping replaces the row with m.ID.
func (c *Client) UpdateMapping(ctx context.Context, token string, m mapping.Mapping) (mapping.Mapping, error) {
	var out mapping.Mapping
	if err := c.do(ctx, token, http.MethodPut, fmt.Sprintf("%s/%d", mappingPath, m.ID), m, &out); err != nil {
		return mapping.Mapping{}, err
	}
	if out.ID == 0 {
		return m, nil
	}
	return out, nil
}

// DeleteMapping removes a row.
func (c *Client) DeleteMapping(ctx context.Context, token string, id int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("%s/%d", mappingPath, id), nil, nil)
}

// PreviewMappings returns the rows configured for a transaction type.
func (c *Client) PreviewMappings(ctx context.Context, token, transactionType string) ([]mapping.Mapping, error) {
	var out []mapping.Mapping
	path := mappingPath + "/preview/" + url.PathEscape(transactionType)
	if err := c.do(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AccountNatures lists selectable natures.
func (c *Client) AccountNatures(ctx context.Context, token string) ([]mapping.AccountNature, error) {
	var out []mapping.AccountNature
	if err := c.do(ctx, token, http.MethodGet, "/api/account-natures", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValueSources lists the active value sources.
func (c *Client) ValueSources(ctx context.Context, token string) ([]mapping.ValueSource, error) {
	var out []mapping.ValueSource
	if err := c.do(ctx, token, http.MethodGet, "/api/value-sources?is_active=true", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
