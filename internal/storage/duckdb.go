package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	apperrors "github.com/formlab/formsql/internal/errors"
	"github.com/formlab/formsql/internal/schema"
)

// DuckDBRepository implements the Repository interface using DuckDB
type DuckDBRepository struct {
	db          *sql.DB
	path        string
	rawDisabled bool
}

// Option configures a DuckDBRepository.
type Option func(*DuckDBRepository)

// WithoutRawQuery disables direct execution of generated SQL. RawQuery and
// RawExec return ErrRawQueryUnavailable, which pushes the query engine onto
// its client-side sampling path.
func WithoutRawQuery() Option {
	return func(r *DuckDBRepository) {
		r.rawDisabled = true
	}
}

// NewDuckDBRepository creates a new DuckDB repository instance with connection pooling
func NewDuckDBRepository(dbPath string, opts ...Option) (*DuckDBRepository, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &DuckDBRepository{
		db:   db,
		path: dbPath,
	}

	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

// Initialize creates the database schema using migrations
func (r *DuckDBRepository) Initialize(ctx context.Context) error {
	migrationManager := NewMigrationManager(r.db)

	return migrationManager.MigrateUp(ctx)
}

// CreateForm creates a new form definition
func (r *DuckDBRepository) CreateForm(ctx context.Context, name string) (*Form, error) {
	form := &Form{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO forms (id, name, created_at) VALUES (?, ?, ?)",
		form.ID, form.Name, form.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert form: %w", err)
	}

	return form, nil
}

// GetForm fetches a form by identifier
func (r *DuckDBRepository) GetForm(ctx context.Context, formID string) (*Form, error) {
	var form Form

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM forms WHERE id = ?", formID).
		Scan(&form.ID, &form.Name, &form.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrTypeNotFound, "form %s not found", formID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	return &form, nil
}

// ListForms returns all form definitions ordered by creation time
func (r *DuckDBRepository) ListForms(ctx context.Context) ([]Form, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM forms ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	defer rows.Close()

	var forms []Form

	for rows.Next() {
		var form Form
		if err := rows.Scan(&form.ID, &form.Name, &form.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}

		forms = append(forms, form)
	}

	return forms, rows.Err()
}

// DeleteForm removes a form with its fields and submissions
func (r *DuckDBRepository) DeleteForm(ctx context.Context, formID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM submissions WHERE form_id = ?", formID); err != nil {
		return fmt.Errorf("failed to delete submissions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM fields WHERE form_id = ?", formID); err != nil {
		return fmt.Errorf("failed to delete fields: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM forms WHERE id = ?", formID); err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}

	return tx.Commit()
}

// CreateField adds a field definition to a form. The generated identifier is
// the document key submissions store this field's value under.
func (r *DuckDBRepository) CreateField(ctx context.Context, formID, label, fieldType string) (*FieldDef, error) {
	if _, err := r.GetForm(ctx, formID); err != nil {
		return nil, err
	}

	field := &FieldDef{
		ID:        uuid.New().String(),
		FormID:    formID,
		Label:     label,
		FieldType: fieldType,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO fields (id, form_id, label, field_type, created_at) VALUES (?, ?, ?, ?, ?)",
		field.ID, field.FormID, field.Label, field.FieldType, field.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert field: %w", err)
	}

	return field, nil
}

// UpdateFieldLabel renames a field
func (r *DuckDBRepository) UpdateFieldLabel(ctx context.Context, fieldID, label string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE fields SET label = ? WHERE id = ?", label, fieldID)
	if err != nil {
		return fmt.Errorf("failed to update field: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return apperrors.Newf(apperrors.ErrTypeNotFound, "field %s not found", fieldID)
	}

	return nil
}

// DeleteField removes a field definition. Existing submissions keep the
// orphaned document key; it simply stops validating.
func (r *DuckDBRepository) DeleteField(ctx context.Context, fieldID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", fieldID)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return apperrors.Newf(apperrors.ErrTypeNotFound, "field %s not found", fieldID)
	}

	return nil
}

// ListFields returns a form's field definitions ordered by creation time
func (r *DuckDBRepository) ListFields(ctx context.Context, formID string) ([]FieldDef, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, form_id, label, field_type, created_at FROM fields WHERE form_id = ? ORDER BY created_at",
		formID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}

	defer rows.Close()

	var fields []FieldDef

	for rows.Next() {
		var field FieldDef
		if err := rows.Scan(&field.ID, &field.FormID, &field.Label, &field.FieldType, &field.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}

		fields = append(fields, field)
	}

	return fields, rows.Err()
}

// CreateSubmission stores a new submission document
func (r *DuckDBRepository) CreateSubmission(ctx context.Context, formID, createdBy string, data map[string]any) (*Submission, error) {
	if _, err := r.GetForm(ctx, formID); err != nil {
		return nil, err
	}

	if data == nil {
		data = map[string]any{}
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission data: %w", err)
	}

	sub := &Submission{
		ID:        uuid.New().String(),
		FormID:    formID,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO submissions (id, form_id, created_by, created_at, submission_data) VALUES (?, ?, ?, ?, ?)",
		sub.ID, sub.FormID, sub.CreatedBy, sub.CreatedAt, string(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	return sub, nil
}

// GetSubmission fetches one submission of a form
func (r *DuckDBRepository) GetSubmission(ctx context.Context, formID, submissionID string) (*Submission, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, form_id, created_by, created_at, submission_data FROM submissions WHERE form_id = ? AND id = ?",
		formID, submissionID)

	sub, err := scanSubmission(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrTypeNotFound, "submission %s not found", submissionID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// ListSubmissions returns a bounded page of a form's submissions in
// insertion order. The query engine's fallback path samples through this.
func (r *DuckDBRepository) ListSubmissions(ctx context.Context, formID string, limit, offset int) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, form_id, created_by, created_at, submission_data FROM submissions WHERE form_id = ? ORDER BY created_at LIMIT ? OFFSET ?",
		formID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	defer rows.Close()

	var subs []Submission

	for rows.Next() {
		sub, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

func scanSubmission(scan func(...any) error) (*Submission, error) {
	var (
		sub Submission
		doc sql.NullString
	)

	if err := scan(&sub.ID, &sub.FormID, &sub.CreatedBy, &sub.CreatedAt, &doc); err != nil {
		return nil, err
	}

	sub.Data = map[string]any{}
	if doc.Valid && doc.String != "" {
		if err := json.Unmarshal([]byte(doc.String), &sub.Data); err != nil {
			return nil, fmt.Errorf("failed to decode submission document: %w", err)
		}
	}

	return &sub, nil
}

// RawQuery executes generated SQL and returns columns and rows
func (r *DuckDBRepository) RawQuery(ctx context.Context, query string) (*RawResult, error) {
	if r.rawDisabled {
		return nil, ErrRawQueryUnavailable
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &RawResult{Columns: columns, Rows: [][]any{}}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		result.Rows = append(result.Rows, values)
	}

	return result, rows.Err()
}

// RawExec executes a generated statement and returns the affected row count
func (r *DuckDBRepository) RawExec(ctx context.Context, statement string) (int64, error) {
	if r.rawDisabled {
		return 0, ErrRawQueryUnavailable
	}

	result, err := r.db.ExecContext(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("statement execution failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected row count: %w", err)
	}

	return affected, nil
}

// GetFormSchema assembles the validation schema for one form
func (r *DuckDBRepository) GetFormSchema(ctx context.Context, formID string) (*schema.FormSchema, error) {
	form, err := r.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	fields, err := r.ListFields(ctx, formID)
	if err != nil {
		return nil, err
	}

	out := &schema.FormSchema{
		FormID: form.ID,
		Name:   form.Name,
		Fields: make(map[string]schema.Field, len(fields)),
	}

	for _, field := range fields {
		out.Fields[field.ID] = schema.Field{
			ID:    field.ID,
			Label: field.Label,
			Type:  field.FieldType,
		}
	}

	return out, nil
}

// GetStats returns database statistics
func (r *DuckDBRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{FormBreakdown: make(map[string]int)}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forms").Scan(&stats.TotalForms); err != nil {
		return nil, fmt.Errorf("failed to count forms: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fields").Scan(&stats.TotalFields); err != nil {
		return nil, fmt.Errorf("failed to count fields: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions").Scan(&stats.TotalSubmissions); err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(created_at) FROM submissions").Scan(&last); err == nil && last.Valid {
		stats.LastSubmission = last.Time
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT f.name, COUNT(s.id)
		FROM forms f LEFT JOIN submissions s ON s.form_id = f.id
		GROUP BY f.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query form breakdown: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			count int
		)

		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan form breakdown: %w", err)
		}

		stats.FormBreakdown[name] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.path != "" {
		if info, err := os.Stat(r.path); err == nil {
			stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
		}
	}

	return stats, nil
}

// Clear removes all data from the database
func (r *DuckDBRepository) Clear(ctx context.Context) error {
	for _, table := range []string{"submissions", "fields", "forms"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return nil
}

// Close closes the database connection
func (r *DuckDBRepository) Close() error {
	return r.db.Close()
}
