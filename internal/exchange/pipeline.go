package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"deadwax/internal/audit"
	"deadwax/internal/catalog"
	"deadwax/internal/fieldset"
	"deadwax/internal/logging"
)

// State tracks where a pipeline sits in the dry-run/commit protocol.
type State string

const (
	StateIdle      State = "idle"
	StateDryRun    State = "dry-run"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// Pipeline drives payload export and the two-phase import protocol: a
// commit is only legal after a dry run, and a structural mismatch aborts
// the pipeline until Reset.
type Pipeline struct {
	store  *catalog.Store
	logger *slog.Logger
	audit  *audit.Log
	state  State
}

// New returns an idle pipeline over store. logger and auditLog may be nil.
func New(store *catalog.Store, logger *slog.Logger, auditLog *audit.Log) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:  store,
		logger: logging.NewComponentLogger(logger, "exchange"),
		audit:  auditLog,
		state:  StateIdle,
	}
}

// State reports the pipeline's current protocol position.
func (p *Pipeline) State() State {
	return p.state
}

// Reset returns the pipeline to idle so a fresh dry run may begin.
func (p *Pipeline) Reset() {
	p.state = StateIdle
}

// Export renders the profile's schema and records as a payload. Export
// never mutates the pipeline state.
func (p *Pipeline) Export(ctx context.Context, profileID int64) ([]byte, error) {
	profile, err := p.store.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	defs, err := p.store.Fields(ctx, profileID)
	if err != nil {
		return nil, err
	}
	records, err := p.store.Records(ctx, profileID, catalog.Filter{})
	if err != nil {
		return nil, err
	}

	payload, err := BuildDocument(profile, defs, records).Encode()
	if err != nil {
		return nil, catalog.Wrap(catalog.ErrStorageIO, "exchange", "export", "", err)
	}

	ctx = logging.WithOperation(logging.WithProfile(ctx, profile.DisplayName), "export")
	p.audit.Append(ctx, audit.ActionExport, profile.DisplayName, audit.OutcomeOK,
		logging.Int("rows", len(records)))
	logging.WithContext(ctx, p.logger).Info("catalog exported",
		logging.Int("rows", len(records)))
	return payload, nil
}

// DryRun analyzes a payload against the profile without touching the
// catalog and reports exactly what a commit would do. Legal from idle or
// after a previous dry run.
func (p *Pipeline) DryRun(ctx context.Context, profileID int64, payload []byte) (*ImportReport, error) {
	if p.state != StateIdle && p.state != StateDryRun {
		return nil, fmt.Errorf("pipeline is %s; reset before a new dry run", p.state)
	}
	doc, err := ParseDocument(payload)
	if err != nil {
		return nil, catalog.Wrap(catalog.ErrValidation, "exchange", "dry run", "", err)
	}
	result, err := p.analyze(ctx, profileID, doc)
	if err != nil {
		return nil, err
	}

	p.state = StateDryRun
	ctx = logging.WithOperation(logging.WithProfile(ctx, result.profile.DisplayName), "dry-run")
	logging.WithContext(ctx, p.logger).Info("dry run analyzed",
		logging.Int("rows", result.report.TotalRows),
		logging.Int("valid", result.report.ValidRows),
		logging.Int("invalid", result.report.InvalidRows),
		logging.Int("duplicates", result.report.DuplicateRows),
		logging.Int("missing_columns", len(result.report.MissingColumns)))
	return result.report, nil
}

// Commit re-analyzes the payload against the live catalog and inserts
// every clean row in one transaction. A structural mismatch aborts without
// inserting anything; invalid and duplicate rows are skipped.
func (p *Pipeline) Commit(ctx context.Context, profileID int64, payload []byte) (*ImportReport, error) {
	if p.state != StateDryRun {
		return nil, fmt.Errorf("commit requires a dry run first (pipeline is %s)", p.state)
	}
	doc, err := ParseDocument(payload)
	if err != nil {
		return nil, catalog.Wrap(catalog.ErrValidation, "exchange", "commit", "", err)
	}
	result, err := p.analyze(ctx, profileID, doc)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	profile := result.profile
	report := result.report
	ctx = logging.WithOperation(logging.WithProfile(ctx, profile.DisplayName), "import")
	if report.Structural() {
		p.state = StateAborted
		names := make([]string, len(report.MissingColumns))
		for i, col := range report.MissingColumns {
			names[i] = col.Name
		}
		p.audit.Append(ctx, audit.ActionImport, profile.DisplayName, audit.OutcomeAborted,
			logging.String("batch", batchID),
			logging.String("missing_columns", strings.Join(names, ", ")))
		return report, catalog.Wrap(catalog.ErrStructuralMismatch, "exchange", "commit",
			fmt.Sprintf("payload defines columns the schema lacks: %s", strings.Join(names, ", ")), nil)
	}

	if err := p.store.InsertBatch(ctx, profileID, result.batch); err != nil {
		p.state = StateAborted
		p.audit.Append(ctx, audit.ActionImport, profile.DisplayName, audit.OutcomeError,
			logging.String("batch", batchID),
			logging.Error(err))
		return report, err
	}

	report.Committed = len(result.batch)
	p.state = StateCommitted
	p.audit.Append(ctx, audit.ActionImport, profile.DisplayName, audit.OutcomeOK,
		logging.String("batch", batchID),
		logging.Int("rows", report.TotalRows),
		logging.Int("imported", report.Committed),
		logging.Int("invalid", report.InvalidRows),
		logging.Int("duplicates", report.DuplicateRows))
	logging.WithContext(ctx, p.logger).Info("import committed",
		logging.String("batch", batchID),
		logging.Int("imported", report.Committed),
		logging.Int("skipped", report.InvalidRows+report.DuplicateRows))
	return report, nil
}

// analysis pairs the row-by-row report with the insertable rows it
// approved.
type analysis struct {
	profile *catalog.Profile
	report  *ImportReport
	batch   []catalog.BatchRecord
}

func (p *Pipeline) analyze(ctx context.Context, profileID int64, doc *Document) (*analysis, error) {
	profile, err := p.store.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	defs, err := p.store.Fields(ctx, profileID)
	if err != nil {
		return nil, err
	}
	existing, err := p.store.ExistingISRCs(ctx, profileID)
	if err != nil {
		return nil, err
	}

	missing := missingColumns(doc, defs)
	exclude := make(map[string]bool, len(missing))
	for _, col := range missing {
		exclude[strings.ToLower(col.Name)] = true
	}

	report := &ImportReport{
		TotalRows:      len(doc.Records.Records),
		MissingColumns: missing,
	}
	result := &analysis{profile: profile, report: report}
	seen := make(map[string]bool)

	for i, entry := range doc.Records.Records {
		row := i + 1
		draft, lengthErr := standardDraft(entry)
		var rowErrs []fieldset.FieldError
		if lengthErr != nil {
			rowErrs = append(rowErrs, fieldset.FieldError{
				Field: "length", Kind: fieldset.ErrTypeMismatch,
				Expected: "m:ss or plain seconds", Got: entry.Length,
			})
		}
		rowErrs = append(rowErrs, catalog.ValidateStandard(&draft)...)
		values, fieldErrs := fieldset.ValidateRecord(defs, rawFields(entry, exclude))
		rowErrs = append(rowErrs, fieldErrs...)

		if len(rowErrs) > 0 {
			report.InvalidRows++
			report.Issues = append(report.Issues, RowIssue{
				Row: row, Title: draft.Title, ISRC: entry.ISRC,
				Outcome: RowInvalid, Errors: rowErrs,
			})
			continue
		}
		if draft.ISRC != "" && (existing[draft.ISRC] || seen[draft.ISRC]) {
			report.DuplicateRows++
			report.Issues = append(report.Issues, RowIssue{
				Row: row, Title: draft.Title, ISRC: draft.Code().ISO(),
				Outcome: RowDuplicate,
			})
			continue
		}
		if draft.ISRC != "" {
			seen[draft.ISRC] = true
		}
		report.ValidRows++
		result.batch = append(result.batch, catalog.BatchRecord{Record: draft, Values: values})
	}
	return result, nil
}

// missingColumns lists, in first-appearance order, every custom column the
// payload references that the profile's schema does not define.
func missingColumns(doc *Document, defs []fieldset.FieldDef) []MissingColumn {
	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[strings.ToLower(def.Name)] = true
	}

	var missing []MissingColumn
	flagged := make(map[string]bool)
	note := func(name string) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || known[key] || flagged[key] {
			return
		}
		flagged[key] = true
		missing = append(missing, MissingColumn{
			Name:         strings.TrimSpace(name),
			InferredType: inferType(doc, key),
		})
	}

	for _, def := range doc.Schema.Fields {
		note(def.Name)
	}
	for _, entry := range doc.Records.Records {
		for _, fv := range entry.Fields {
			note(fv.Name)
		}
	}
	return missing
}

// inferType guesses a missing column's type so the operator knows what to
// add. The payload's own schema section wins; otherwise the values decide.
func inferType(doc *Document, key string) fieldset.FieldType {
	for _, def := range doc.Schema.Fields {
		if strings.ToLower(def.Name) != key {
			continue
		}
		if t, err := fieldset.TypeFromString(def.Type); err == nil {
			return t
		}
	}

	sawValue := false
	allBool, allDate := true, true
	var blobPath string
	for _, entry := range doc.Records.Records {
		for _, fv := range entry.Fields {
			if strings.ToLower(fv.Name) != key {
				continue
			}
			if fv.IsBlob() {
				blobPath = fv.Path
				continue
			}
			text := strings.TrimSpace(fv.Value)
			if text == "" {
				continue
			}
			sawValue = true
			if _, ok := fieldset.ParseCheckbox(text); !ok {
				allBool = false
			}
			if !fieldset.ValidDate(text) {
				allDate = false
			}
		}
	}
	switch {
	case blobPath != "" && !sawValue:
		if fieldset.AllowedExtension(fieldset.TypeBlobImage, blobPath) {
			return fieldset.TypeBlobImage
		}
		return fieldset.TypeBlobAudio
	case sawValue && allBool:
		return fieldset.TypeCheckbox
	case sawValue && allDate:
		return fieldset.TypeDate
	default:
		return fieldset.TypeText
	}
}
