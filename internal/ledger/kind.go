package ledger

import (
	"errors"
	"strings"
)

// Kind identifies a journal-style document type.
type Kind string

const (
	KindJournal    Kind = "journal"
	KindDebitNote  Kind = "debit-note"
	KindCreditNote Kind = "credit-note"
)

// ErrUnknownKind is returned for unsupported document kinds.
var ErrUnknownKind = errors.New("ledger: unknown document kind")

// ParseKind validates a kind taken from a URL or payload.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindJournal, KindDebitNote, KindCreditNote:
		return k, nil
	}
	return "", ErrUnknownKind
}

// FieldPrefix is the snake_case prefix the ERP backend uses for the kind's fields.
func (k Kind) FieldPrefix() string {
	return strings.ReplaceAll(string(k), "-", "_")
}

// CamelPrefix is the camelCase prefix used in save responses, e.g. debitNote.
func (k Kind) CamelPrefix() string {
	parts := strings.Split(string(k), "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// Label is the human readable name.
func (k Kind) Label() string {
	switch k {
	case KindDebitNote:
		return "Debit note"
	case KindCreditNote:
		return "Credit note"
	default:
		return "Journal"
	}
}
