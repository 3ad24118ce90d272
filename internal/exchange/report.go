package exchange

import (
	"fmt"
	"strings"

	"deadwax/internal/fieldset"
)

// RowOutcome classifies one payload row after validation.
type RowOutcome string

const (
	RowValid     RowOutcome = "valid"
	RowInvalid   RowOutcome = "invalid"
	RowDuplicate RowOutcome = "duplicate"
)

// RowIssue describes why a row will not import cleanly.
type RowIssue struct {
	Row     int                  `json:"row"`
	Title   string               `json:"title,omitempty"`
	ISRC    string               `json:"isrc,omitempty"`
	Outcome RowOutcome           `json:"outcome"`
	Errors  []fieldset.FieldError `json:"errors,omitempty"`
}

// Describe renders the issue for logs and CLI output.
func (i RowIssue) Describe() string {
	label := fmt.Sprintf("row %d", i.Row)
	if i.Title != "" {
		label += fmt.Sprintf(" (%s)", i.Title)
	}
	if i.Outcome == RowDuplicate {
		return fmt.Sprintf("%s: code %s already cataloged", label, i.ISRC)
	}
	msgs := make([]string, len(i.Errors))
	for n, fe := range i.Errors {
		msgs[n] = fe.Error()
	}
	return fmt.Sprintf("%s: %s", label, strings.Join(msgs, "; "))
}

// MissingColumn is a custom field the payload references but the target
// profile's schema does not define.
type MissingColumn struct {
	Name         string             `json:"name"`
	InferredType fieldset.FieldType `json:"inferredType"`
}

// ImportReport summarizes a dry run or commit over one payload.
type ImportReport struct {
	TotalRows      int             `json:"totalRows"`
	ValidRows      int             `json:"validRows"`
	InvalidRows    int             `json:"invalidRows"`
	DuplicateRows  int             `json:"duplicateRows"`
	MissingColumns []MissingColumn `json:"missingColumns,omitempty"`
	Issues         []RowIssue      `json:"issues,omitempty"`

	// Committed is how many rows the store accepted; zero for dry runs and
	// aborted commits.
	Committed int `json:"committed"`
}

// Structural reports whether the payload references columns absent from
// the target schema. A structural mismatch blocks the whole commit.
func (r *ImportReport) Structural() bool {
	return len(r.MissingColumns) > 0
}

// Clean reports whether every row would import.
func (r *ImportReport) Clean() bool {
	return !r.Structural() && r.InvalidRows == 0 && r.DuplicateRows == 0
}
