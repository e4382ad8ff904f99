package erpapi

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/ledgerdesk/internal/masterdata"
)

// Accounts lists the chart of accounts.
func (c *Client) Accounts(ctx context.Context, token string) ([]masterdata.Account, error) {
	var out []masterdata.Account
	if err := c.do(ctx, token, http.MethodGet, "/api/coa/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Parties lists counterparties.
func (c *Client) Parties(ctx context.Context, token string) ([]masterdata.Party, error) {
	var out []masterdata.Party
	if err := c.do(ctx, token, http.MethodGet, "/api/party/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Items lists purchasable items.
func (c *Client) Items(ctx context.Context, token string) ([]masterdata.Item, error) {
	var out []masterdata.Item
	if err := c.do(ctx, token, http.MethodGet, "/api/items/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Permissions returns the permission codes granted to token.
func (c *Client) Permissions(ctx context.Context, token string) ([]string, error) {
	var out struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/api/permissions/me", nil, &out); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

// Notification is delivered to the ERP notification service.
type Notification struct {
	Event    string         `json:"event"`
	Document string         `json:"document"`
	Ref      string         `json:"ref"`
	Message  string         `json:"message"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Notify posts a notification.
func (c *Client) Notify(ctx context.Context, token string, n Notification) error {
	return c.do(ctx, token, http.MethodPost, "/api/notifications", n, nil)
}
