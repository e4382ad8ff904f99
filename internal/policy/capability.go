// Package policy turns the permission codes granted by the ERP permission service into a typed
// capability set that is resolved once per session and handed to the entry forms.
package policy

import "strings"

// Access lists what a session may do with one form.
type Access struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// Capabilities covers every form served by ledgerdesk.
type Capabilities struct {
	Journal    Access `json:"journal"`
	DebitNote  Access `json:"debit_note"`
	CreditNote Access `json:"credit_note"`
	Purchase   Access `json:"purchase"`
	Mapping    Access `json:"mapping"`
	Accounts   Access `json:"accounts"`
}

// Permission code prefixes issued by the ERP permission service.
const (
	CodeJournal    = "ACCOUNTS_JOURNAL_VOUCHER"
	CodeDebitNote  = "ACCOUNTS_DEBIT_NOTE"
	CodeCreditNote = "ACCOUNTS_CREDIT_NOTE"
	CodePurchase   = "INVENTORY_PURCHASE"
	CodeMapping    = "ACCOUNTS_TRANSACTION_MAPPING"
	CodeAccounts   = "ACCOUNTS_COA_MASTER"
	CodeSuperUser  = "SUPER_ADMIN"
)

// Full grants everything. Used for super users.
func Full() Capabilities {
	all := Access{View: true, Create: true, Edit: true, Delete: true}
	return Capabilities{Journal: all, DebitNote: all, CreditNote: all, Purchase: all, Mapping: all, Accounts: all}
}

// Resolve builds capabilities from raw permission codes such as ACCOUNTS_DEBIT_NOTE_ADD.
// Unknown codes are ignored.
func Resolve(codes []string) Capabilities {
	var caps Capabilities
	targets := map[string]*Access{
		CodeJournal:    &caps.Journal,
		CodeDebitNote:  &caps.DebitNote,
		CodeCreditNote: &caps.CreditNote,
		CodePurchase:   &caps.Purchase,
		CodeMapping:    &caps.Mapping,
		CodeAccounts:   &caps.Accounts,
	}
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == CodeSuperUser {
			return Full()
		}
		idx := strings.LastIndexByte(code, '_')
		if idx <= 0 {
			continue
		}
		access, ok := targets[code[:idx]]
		if !ok {
			continue
		}
		switch code[idx+1:] {
		case "VIEW":
			access.View = true
		case "ADD", "CREATE":
			access.Create = true
		case "EDIT", "UPDATE":
			access.Edit = true
		case "DELETE":
			access.Delete = true
		}
	}
	return caps
}

// CanSave reports whether a document may be saved in create or edit mode.
func (a Access) CanSave(editing bool) bool {
	if editing {
		return a.Edit
	}
	return a.Create
}
