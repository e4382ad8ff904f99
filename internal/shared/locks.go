package shared

import "fmt"

// SubmitLockKey builds redis keys guarding a document submission.
func SubmitLockKey(kind, documentID string) string {
	return fmt.Sprintf("ledgerdesk:submit:%s:%s:lock", kind, documentID)
}

// DraftKey builds redis keys for server-held drafts.
func DraftKey(kind, draftID string) string {
	return fmt.Sprintf("ledgerdesk:draft:%s:%s", kind, draftID)
}

// SubmittedKey marks a draft revision whose submission already reached the backend.
func SubmittedKey(kind, revision string) string {
	return fmt.Sprintf("ledgerdesk:submitted:%s:%s", kind, revision)
}
