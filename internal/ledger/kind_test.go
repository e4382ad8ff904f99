package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Debit-Note ")
	require.NoError(t, err)
	require.Equal(t, KindDebitNote, k)
	_, err = ParseKind("purchase")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKindPrefixes(t *testing.T) {
	require.Equal(t, "debit_note", KindDebitNote.FieldPrefix())
	require.Equal(t, "creditNote", KindCreditNote.CamelPrefix())
	require.Equal(t, "journal", KindJournal.CamelPrefix())
	require.Equal(t, "Credit note", KindCreditNote.Label())
}
