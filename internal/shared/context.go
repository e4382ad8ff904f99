package shared

import (
	"context"

	"github.com/odyssey-erp/ledgerdesk/internal/policy"
)

// Session is the caller context an orchestrator is constructed with: the bearer token forwarded to the
// ERP backend, the selected financial year and the capabilities resolved for the token.
type Session struct {
	Token           string
	FinancialYearID int64
	Capabilities    policy.Capabilities
}

// HasFinancialYear reports whether a financial year was selected.
func (s Session) HasFinancialYear() bool {
	return s.FinancialYearID > 0
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RequireSession returns the session or ErrUnauthorized when the request carries none.
func RequireSession(ctx context.Context) (*Session, error) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.Token == "" {
		return nil, ErrUnauthorized
	}
	return sess, nil
}
