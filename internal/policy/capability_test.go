package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestResolveMapsPermissionCodes(t *testing.T) {
	caps := Resolve([]string{
		"ACCOUNTS_JOURNAL_VOUCHER_VIEW",
		"ACCOUNTS_JOURNAL_VOUCHER_ADD",
		"accounts_debit_note_edit",
		"INVENTORY_PURCHASE_ADD",
		"SOMETHING_ELSE_ADD",
		"",
	})
	require.True(t, caps.Journal.View)
	require.True(t, caps.Journal.Create)
	require.False(t, caps.Journal.Edit)
	require.True(t, caps.DebitNote.Edit)
	require.False(t, caps.DebitNote.Create)
	require.True(t, caps.Purchase.Create)
	require.Equal(t, Access{}, caps.CreditNote)
}

func TestResolveSuperUser(t *testing.T) {
	require.Equal(t, Full(), Resolve([]string{"ACCOUNTS_DEBIT_NOTE_VIEW", "SUPER_ADMIN"}))
}

func TestAccessCanSave(t *testing.T) {
	a := Access{Create: true}
	require.True(t, a.CanSave(false))
	require.False(t, a.CanSave(true))
}

type countingSource struct {
	codes []string
	err   error
	calls int
}

func (s *countingSource) Permissions(ctx context.Context, token string) ([]string, error) {
	s.calls++
	return s.codes, s.err
}

func TestResolverCachesPerToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{codes: []string{"ACCOUNTS_CREDIT_NOTE_ADD"}}
	res := NewResolver(src, client, time.Hour)
	ctx := context.Background()

	caps, err := res.Resolve(ctx, "token-a")
	require.NoError(t, err)
	require.True(t, caps.CreditNote.Create)

	caps, err = res.Resolve(ctx, "token-a")
	require.NoError(t, err)
	require.True(t, caps.CreditNote.Create)
	require.Equal(t, 1, src.calls)

	for _, key := range mr.Keys() {
		require.NotContains(t, key, "token-a")
	}

	require.NoError(t, res.Forget(ctx, "token-a"))
	_, err = res.Resolve(ctx, "token-a")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestResolverPropagatesSourceError(t *testing.T) {
	src := &countingSource{err: errors.New("permission service down")}
	res := NewResolver(src, nil, time.Hour)
	_, err := res.Resolve(context.Background(), "t")
	require.Error(t, err)
}

func TestResolverEmptyTokenHasNoCapabilities(t *testing.T) {
	src := &countingSource{codes: []string{"SUPER_ADMIN"}}
	caps, err := NewResolver(src, nil, time.Hour).Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Capabilities{}, caps)
	require.Zero(t, src.calls)
}
