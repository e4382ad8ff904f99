package ledger

// Document is a journal, debit note or credit note: a header plus ordered lines.
type Document struct {
	ID                 int64  `json:"id,omitempty"`
	Kind               Kind   `json:"kind"`
	Serial             string `json:"serial"`
	Date               string `json:"date"`
	SourceDocumentType string `json:"source_document_type,omitempty"`
	SourceDocumentRef  string `json:"source_document_ref,omitempty"`
	Narration          string `json:"narration"`
	FinancialYearID    int64  `json:"finyearid"`
	Lines              []Line `json:"lines"`
}

// Totals evaluates the document lines.
func (d Document) Totals() Totals {
	return Evaluate(d.Lines)
}

// Receipt identifies a persisted document.
type Receipt struct {
	ID     int64  `json:"id"`
	Serial string `json:"serial"`
}
