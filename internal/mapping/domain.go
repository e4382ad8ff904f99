// Package mapping maintains the dynamic transaction-to-journal mapping configuration: for each
// transaction type, the ordered journal entries to generate and where their values come from.
package mapping

import "errors"

// Mapping is one generated journal entry for a transaction type.
type Mapping struct {
	ID                  int64  `json:"mapping_id,omitempty"`
	TransactionType     string `json:"transaction_type" validate:"required,max=100"`
	EntrySequence       int    `json:"entry_sequence" validate:"required,gt=0"`
	AccountNature       string `json:"account_nature" validate:"required"`
	DebitCredit         string `json:"debit_credit" validate:"required,oneof=D C"`
	ValueSource         string `json:"value_source" validate:"required"`
	DescriptionTemplate string `json:"description_template" validate:"max=500"`
}

// AccountNature is a selectable account nature.
type AccountNature struct {
	ID          int64  `json:"nature_id"`
	Code        string `json:"nature_code"`
	DisplayName string `json:"display_name"`
}

// ValueSource is a selectable value source.
type ValueSource struct {
	Code        string `json:"value_code"`
	DisplayName string `json:"display_name"`
	ModuleTag   string `json:"module_tag,omitempty"`
}

// Side filters for listing.
const (
	FilterAll    = "ALL"
	FilterDebit  = "DEBIT"
	FilterCredit = "CREDIT"
)

var (
	// ErrMappingNotFound indicates the mapping id does not exist.
	ErrMappingNotFound = errors.New("mapping: not found")
	// ErrIDRequired indicates an update or delete without id.
	ErrIDRequired = errors.New("mapping: id required")
)
