package ingest

import (
	"encoding/json"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Class is the error taxonomy a diagnostic belongs to.
type Class string

const (
	ClassFormat      Class = "FORMAT"
	ClassEmpty       Class = "EMPTY"
	ClassParse       Class = "PARSE"
	ClassValidation  Class = "VALIDATION"
	ClassDuplicate   Class = "DUPLICATE"
	ClassPersistence Class = "PERSISTENCE"
	ClassLink        Class = "LINK"
)

// Diagnostic is one message about a batch. Row is zero for batch-level
// diagnostics; Rows lists every row a multi-row diagnostic refers to.
type Diagnostic struct {
	Row        int      `json:"row,omitempty"`
	Rows       []int    `json:"rows,omitempty"`
	Severity   Severity `json:"severity"`
	Class      Class    `json:"class"`
	Message    string   `json:"message"`
	Field      string   `json:"field,omitempty"`
	Value      string   `json:"value,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Code       string   `json:"code,omitempty"`

	raw []string
}

// RowNumbers returns the rows the diagnostic refers to.
func (d Diagnostic) RowNumbers() []int {
	if len(d.Rows) > 0 {
		return d.Rows
	}
	if d.Row > 0 {
		return []int{d.Row}
	}
	return nil
}

// newDiagnostic fills the suggestion and code from reason, one of the
// fixed reason phrases. msg is free to quote values from the file.
func newDiagnostic(class Class, row int, reason, msg string) Diagnostic {
	return diagnostic(class, row, reasonMessage(reason), msg)
}

// newErrorDiagnostic fills the suggestion and code from the error cause.
func newErrorDiagnostic(class Class, row int, cause error, msg string) Diagnostic {
	return diagnostic(class, row, MapError(cause), msg)
}

func diagnostic(class Class, row int, um UserMessage, msg string) Diagnostic {
	return Diagnostic{
		Row:        row,
		Class:      class,
		Message:    msg,
		Suggestion: um.Action,
		Code:       um.Code,
	}
}

// Report accumulates the outcome of one or more pipeline stages. Each stage
// returns its own Report which the caller merges; counts are never kept
// apart from the diagnostic lists.
type Report struct {
	errors   []Diagnostic
	warnings []Diagnostic
	success  int
	counters map[string]int
}

// Error appends an error diagnostic.
func (r *Report) Error(d Diagnostic) {
	d.Severity = SeverityError
	r.errors = append(r.errors, d)
}

// Warn appends a warning diagnostic.
func (r *Report) Warn(d Diagnostic) {
	d.Severity = SeverityWarning
	r.warnings = append(r.warnings, d)
}

// Succeed records one successfully processed record.
func (r *Report) Succeed() { r.success++ }

// Count adds n to an auxiliary counter.
func (r *Report) Count(key string, n int) {
	if r.counters == nil {
		r.counters = make(map[string]int)
	}
	r.counters[key] += n
}

// Merge appends o's diagnostics and adds its counts.
func (r *Report) Merge(o Report) {
	r.errors = append(r.errors, o.errors...)
	r.warnings = append(r.warnings, o.warnings...)
	r.success += o.success
	for k, v := range o.counters {
		r.Count(k, v)
	}
}

func (r *Report) ErrorCount() int   { return len(r.errors) }
func (r *Report) WarningCount() int { return len(r.warnings) }
func (r *Report) SuccessCount() int { return r.success }

// FileInfo describes the batch input.
type FileInfo struct {
	Name   string
	Format Format
	Size   int64
}

// Finalize stamps timing and produces the immutable result.
func (r *Report) Finalize(batchID string, kind catalog.Kind, file FileInfo, dryRun bool, started, now time.Time) *BatchResult {
	counters := make(map[string]int, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	return &BatchResult{
		BatchID:        batchID,
		Kind:           kind,
		DryRun:         dryRun,
		SuccessCount:   r.success,
		ErrorCount:     len(r.errors),
		WarningCount:   len(r.warnings),
		Errors:         append([]Diagnostic(nil), r.errors...),
		Warnings:       append([]Diagnostic(nil), r.warnings...),
		FileName:       file.Name,
		FileType:       string(file.Format),
		FileSize:       file.Size,
		ProcessedAt:    now.UTC(),
		ProcessingTime: now.Sub(started),
		Counters:       counters,
	}
}

// Outcome classifies a finished batch.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomePartialSuccess  Outcome = "partial_success"
	OutcomeCompleteFailure Outcome = "complete_failure"
)

// BatchResult is the report returned for one ingestion call.
type BatchResult struct {
	BatchID        string
	Kind           catalog.Kind
	DryRun         bool
	SuccessCount   int
	ErrorCount     int
	WarningCount   int
	Errors         []Diagnostic
	Warnings       []Diagnostic
	FileName       string
	FileType       string
	FileSize       int64
	ProcessedAt    time.Time
	ProcessingTime time.Duration
	Counters       map[string]int
}

// Outcome is derived from the success and error counts.
func (b *BatchResult) Outcome() Outcome {
	switch {
	case b.ErrorCount == 0:
		return OutcomeSuccess
	case b.SuccessCount == 0:
		return OutcomeCompleteFailure
	default:
		return OutcomePartialSuccess
	}
}

// ErrorMessages returns the error texts in order.
func (b *BatchResult) ErrorMessages() []string { return messages(b.Errors) }

// WarningMessages returns the warning texts in order.
func (b *BatchResult) WarningMessages() []string { return messages(b.Warnings) }

func messages(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

// ToMap renders the result with the keys clients expect.
func (b *BatchResult) ToMap() map[string]any {
	m := map[string]any{
		"batchId":          b.BatchID,
		"kind":             string(b.Kind),
		"dryRun":           b.DryRun,
		"outcome":          string(b.Outcome()),
		"successCount":     b.SuccessCount,
		"errorCount":       b.ErrorCount,
		"warningCount":     b.WarningCount,
		"errors":           b.ErrorMessages(),
		"warnings":         b.WarningMessages(),
		"errorDetails":     nonNil(b.Errors),
		"warningDetails":   nonNil(b.Warnings),
		"fileName":         b.FileName,
		"fileType":         b.FileType,
		"fileSize":         b.FileSize,
		"processedAt":      b.ProcessedAt.Format(time.RFC3339),
		"processingTimeMs": b.ProcessingTime.Milliseconds(),
	}
	for k, v := range b.Counters {
		m[k] = v
	}
	return m
}

func nonNil(ds []Diagnostic) []Diagnostic {
	if ds == nil {
		return []Diagnostic{}
	}
	return ds
}

func (b *BatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.ToMap())
}
