package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/formlab/formsql/internal/errors"
)

func testRepo(t *testing.T, opts ...Option) *DuckDBRepository {
	t.Helper()

	repo, err := NewDuckDBRepository(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)

	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.Initialize(context.Background()))

	return repo
}

func TestDuckDBRepository_FormLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Customer Survey")
	require.NoError(t, err)
	require.NotEmpty(t, form.ID)

	fetched, err := repo.GetForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Customer Survey", fetched.Name)

	forms, err := repo.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 1)

	require.NoError(t, repo.DeleteForm(ctx, form.ID))

	_, err = repo.GetForm(ctx, form.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestDuckDBRepository_Fields(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	field, err := repo.CreateField(ctx, form.ID, "Score", "number")
	require.NoError(t, err)
	assert.Equal(t, form.ID, field.FormID)

	_, err = repo.CreateField(ctx, "no-such-form", "Orphan", "text")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	require.NoError(t, repo.UpdateFieldLabel(ctx, field.ID, "Rating"))

	fields, err := repo.ListFields(ctx, form.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Rating", fields[0].Label)

	err = repo.UpdateFieldLabel(ctx, "no-such-field", "x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	require.NoError(t, repo.DeleteField(ctx, field.ID))

	fields, err = repo.ListFields(ctx, form.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestDuckDBRepository_Submissions(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	field, err := repo.CreateField(ctx, form.ID, "Score", "number")
	require.NoError(t, err)

	sub, err := repo.CreateSubmission(ctx, form.ID, "alice", map[string]any{field.ID: 42.0})
	require.NoError(t, err)

	fetched, err := repo.GetSubmission(ctx, form.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", fetched.CreatedBy)
	assert.Equal(t, 42.0, fetched.Data[field.ID])

	// Nil document stores as an empty object.
	empty, err := repo.CreateSubmission(ctx, form.ID, "bob", nil)
	require.NoError(t, err)

	fetched, err = repo.GetSubmission(ctx, form.ID, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.Data)

	subs, err := repo.ListSubmissions(ctx, form.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = repo.ListSubmissions(ctx, form.ID, 1, 0)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestDuckDBRepository_RawQuery(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	field, err := repo.CreateField(ctx, form.ID, "Score", "number")
	require.NoError(t, err)

	_, err = repo.CreateSubmission(ctx, form.ID, "alice", map[string]any{field.ID: 10.0})
	require.NoError(t, err)
	_, err = repo.CreateSubmission(ctx, form.ID, "bob", map[string]any{field.ID: 20.0})
	require.NoError(t, err)

	result, err := repo.RawQuery(ctx,
		"SELECT SUM(CAST(submission_data ->> '"+field.ID+"' AS DOUBLE)) FROM submissions WHERE form_id = '"+form.ID+"'")
	require.NoError(t, err)
	require.Len(t, result.Columns, 1)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 30.0, result.Rows[0][0])
}

func TestDuckDBRepository_RawExecMergePatch(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	field, err := repo.CreateField(ctx, form.ID, "Status", "text")
	require.NoError(t, err)

	sub, err := repo.CreateSubmission(ctx, form.ID, "alice", map[string]any{field.ID: "open", "other": "kept"})
	require.NoError(t, err)

	affected, err := repo.RawExec(ctx,
		"UPDATE submissions SET submission_data = json_merge_patch(submission_data, json_object('"+field.ID+"', 'done')) "+
			"WHERE form_id = '"+form.ID+"' AND id = '"+sub.ID+"'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	fetched, err := repo.GetSubmission(ctx, form.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", fetched.Data[field.ID])
	assert.Equal(t, "kept", fetched.Data["other"], "merge patch must preserve sibling keys")
}

// countlessDriver executes statements but cannot report an affected row
// count, mimicking a driver without RowsAffected support.
type countlessDriver struct{}

func (countlessDriver) Open(string) (driver.Conn, error) { return countlessConn{}, nil }

type countlessConn struct{}

func (countlessConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (countlessConn) Close() error                        { return nil }
func (countlessConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (countlessConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return countlessResult{}, nil
}

type countlessResult struct{}

func (countlessResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (countlessResult) RowsAffected() (int64, error) { return 0, errors.New("row count unavailable") }

func init() {
	sql.Register("countless", countlessDriver{})
}

func TestDuckDBRepository_RawExecRowCountError(t *testing.T) {
	db, err := sql.Open("countless", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := &DuckDBRepository{db: db}

	_, err = repo.RawExec(context.Background(), "UPDATE submissions SET form_id = form_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "affected row count")
}

func TestDuckDBRepository_WithoutRawQuery(t *testing.T) {
	repo := testRepo(t, WithoutRawQuery())
	ctx := context.Background()

	_, err := repo.RawQuery(ctx, "SELECT 1")
	assert.True(t, errors.Is(err, ErrRawQueryUnavailable))

	_, err = repo.RawExec(ctx, "SELECT 1")
	assert.True(t, errors.Is(err, ErrRawQueryUnavailable))

	// Structured access still works.
	_, err = repo.CreateForm(ctx, "Survey")
	assert.NoError(t, err)
}

func TestDuckDBRepository_GetFormSchema(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	fieldA, err := repo.CreateField(ctx, form.ID, "Score", "number")
	require.NoError(t, err)
	fieldB, err := repo.CreateField(ctx, form.ID, "Comment", "text")
	require.NoError(t, err)

	s, err := repo.GetFormSchema(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, s.FormID)
	assert.Equal(t, "Survey", s.Name)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "Score", s.Fields[fieldA.ID].Label)
	assert.Equal(t, "text", s.Fields[fieldB.ID].Type)

	_, err = repo.GetFormSchema(ctx, "no-such-form")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestDuckDBRepository_StatsAndClear(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	form, err := repo.CreateForm(ctx, "Survey")
	require.NoError(t, err)

	_, err = repo.CreateField(ctx, form.ID, "Score", "number")
	require.NoError(t, err)

	_, err = repo.CreateSubmission(ctx, form.ID, "alice", nil)
	require.NoError(t, err)

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalForms)
	assert.Equal(t, 1, stats.TotalFields)
	assert.Equal(t, 1, stats.TotalSubmissions)
	assert.False(t, stats.LastSubmission.IsZero())
	assert.Equal(t, 1, stats.FormBreakdown["Survey"])

	require.NoError(t, repo.Clear(ctx))

	stats, err = repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalForms)
	assert.Zero(t, stats.TotalSubmissions)
}
