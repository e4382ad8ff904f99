package forms

// Status is the lifecycle state of a form.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusCosting         Status = "costing"
	StatusPendingApproval Status = "pending_approval"
	StatusPosted          Status = "posted"
	StatusCancelled       Status = "cancelled"
)

// Mode tells whether the form creates a new document or edits a persisted one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)
