package storage

import (
	"context"
	"errors"
	"time"

	"github.com/formlab/formsql/internal/schema"
)

// ErrRawQueryUnavailable signals that the storage backend cannot execute
// generated SQL directly. The query engine treats it as the trigger for the
// client-side sampling fallback; every other error is surfaced as-is.
var ErrRawQueryUnavailable = errors.New("raw query capability unavailable")

// Repository defines the interface for database operations
type Repository interface {
	Initialize(ctx context.Context) error

	// Form and field definitions (the dynamic schema)
	CreateForm(ctx context.Context, name string) (*Form, error)
	GetForm(ctx context.Context, formID string) (*Form, error)
	ListForms(ctx context.Context) ([]Form, error)
	DeleteForm(ctx context.Context, formID string) error
	CreateField(ctx context.Context, formID, label, fieldType string) (*FieldDef, error)
	UpdateFieldLabel(ctx context.Context, fieldID, label string) error
	DeleteField(ctx context.Context, fieldID string) error
	ListFields(ctx context.Context, formID string) ([]FieldDef, error)

	// Submissions
	CreateSubmission(ctx context.Context, formID, createdBy string, data map[string]any) (*Submission, error)
	GetSubmission(ctx context.Context, formID, submissionID string) (*Submission, error)
	ListSubmissions(ctx context.Context, formID string, limit, offset int) ([]Submission, error)

	// Execution target for generated SQL
	RawQuery(ctx context.Context, query string) (*RawResult, error)
	RawExec(ctx context.Context, statement string) (int64, error)

	// Schema source for the validation cache
	GetFormSchema(ctx context.Context, formID string) (*schema.FormSchema, error)

	GetStats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Form is a logical partition of submissions sharing one field set.
type Form struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// FieldDef is one user-defined field of a form. The ID is the generated
// document key submissions store their values under.
type FieldDef struct {
	ID        string    `json:"id"`
	FormID    string    `json:"form_id"`
	Label     string    `json:"label"`
	FieldType string    `json:"field_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Submission is one collected record. Data holds the schema-less
// field-id -> value document.
type Submission struct {
	ID        string         `json:"id"`
	FormID    string         `json:"form_id"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
}

// RawResult is the shape returned by direct SQL execution.
type RawResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Stats represents database statistics
type Stats struct {
	TotalForms       int            `json:"total_forms"`
	TotalFields      int            `json:"total_fields"`
	TotalSubmissions int            `json:"total_submissions"`
	LastSubmission   time.Time      `json:"last_submission"`
	DatabaseSizeMB   float64        `json:"database_size_mb"`
	FormBreakdown    map[string]int `json:"form_breakdown"`
}
