// Package query drives the compile pipeline: lex, parse, validate against
// the schema cache, generate SQL, and execute. Compilation stages are pure;
// execution is the only suspension point.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/formlab/formsql/internal/dsl"
	"github.com/formlab/formsql/internal/logging"
	"github.com/formlab/formsql/internal/schema"
	"github.com/formlab/formsql/internal/storage"
)

// Result is the single shape every execution path funnels into. Column
// order matches the projection order of the query. An error state carries
// no rows; absence of data and absence of validity stay distinguishable.
type Result struct {
	Columns      []string         `json:"columns"`
	Rows         [][]any          `json:"rows"`
	Errors       []dsl.ParseError `json:"errors,omitempty"`
	Note         string           `json:"note,omitempty"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
}

// OK reports whether the query ran without errors.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Engine executes DSL queries against the submission store.
type Engine struct {
	repo        storage.Repository
	schemas     *schema.Cache
	sampleLimit int
}

// NewEngine creates a query engine. sampleLimit caps the number of rows the
// client-side fallback will fetch.
func NewEngine(repo storage.Repository, schemas *schema.Cache, sampleLimit int) *Engine {
	return &Engine{
		repo:        repo,
		schemas:     schemas,
		sampleLimit: sampleLimit,
	}
}

// Normalize prepares raw input for lexing: whitespace runs outside quoted
// spans collapse to a single space, and trailing semicolons are stripped.
// Quoted spans are copied byte for byte so string literals keep their
// interior spacing.
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	var quote byte
	pendingSpace := false

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if quote != 0 {
			b.WriteByte(ch)
			if ch == quote {
				quote = 0
			}

			continue
		}

		switch ch {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			pendingSpace = true
			continue
		}

		if pendingSpace {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
		}

		b.WriteByte(ch)
		if ch == '\'' || ch == '"' {
			quote = ch
		}
	}

	normalized := b.String()

	// An unterminated quote owns the rest of the input, semicolons included.
	if quote == 0 {
		for strings.HasSuffix(normalized, ";") {
			normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))
		}
	}

	return normalized
}

// Compile translates a DSL statement to SQL without consulting any schema.
// Useful for inspecting what would run; validation still happens at
// execution time.
func Compile(input string) (string, []dsl.ParseError) {
	normalized := Normalize(input)
	if normalized == "" {
		return "", []dsl.ParseError{{Kind: dsl.ErrSyntax, Message: "empty query"}}
	}

	stmt, perr := dsl.Parse(dsl.Tokenize(normalized))
	if perr != nil {
		return "", []dsl.ParseError{*perr}
	}

	generated, err := dsl.GenerateSQL(stmt)
	if err != nil {
		return "", []dsl.ParseError{executionError(err)}
	}

	return generated, nil
}

// Execute runs one DSL statement end to end. Compile errors terminate the
// query; there is no retry loop here.
func (e *Engine) Execute(ctx context.Context, input string) Result {
	normalized := Normalize(input)
	if normalized == "" {
		return errorResult(dsl.ParseError{Kind: dsl.ErrSyntax, Message: "empty query"})
	}

	tokens := dsl.Tokenize(normalized)

	stmt, perr := dsl.Parse(tokens)
	if perr != nil {
		return errorResult(*perr)
	}

	formID := statementFormID(stmt)

	snap, err := e.schemas.Snapshot(ctx, formID)
	if err != nil {
		return errorResult(executionError(err))
	}

	if verrs := dsl.Validate(stmt, snap); len(verrs) > 0 {
		return Result{Columns: []string{}, Rows: [][]any{}, Errors: verrs}
	}

	generated, err := dsl.GenerateSQL(stmt)
	if err != nil {
		return errorResult(executionError(err))
	}

	logging.Debugf("generated SQL for form %s: %s", formID, generated)

	if stmt.Update != nil {
		return e.executeUpdate(ctx, generated)
	}

	return e.executeSelect(ctx, stmt.Select, snap, generated)
}

func (e *Engine) executeSelect(
	ctx context.Context,
	sel *dsl.SelectStatement,
	snap *schema.Snapshot,
	generated string,
) Result {
	raw, err := e.repo.RawQuery(ctx, generated)
	if err == nil {
		columns := raw.Columns
		if !sel.Select.Star {
			columns = displayColumns(sel, snap)
		}

		return Result{Columns: columns, Rows: raw.Rows}
	}

	if !errors.Is(err, storage.ErrRawQueryUnavailable) {
		return errorResult(executionError(err))
	}

	logging.Warnf("raw query unavailable for form %s, degrading to client-side evaluation", sel.From.Name)

	return e.executeFallback(ctx, sel, snap)
}

func (e *Engine) executeUpdate(ctx context.Context, generated string) Result {
	affected, err := e.repo.RawExec(ctx, generated)
	if err != nil {
		// The sampling fallback cannot write; capability loss is terminal
		// for updates.
		return errorResult(executionError(err))
	}

	return Result{
		Columns:      []string{},
		Rows:         [][]any{},
		RowsAffected: affected,
	}
}

// displayColumns builds result column names in projection order: plain
// columns first, then aggregates, mirroring the generated SQL. Field columns
// use their schema display labels.
func displayColumns(sel *dsl.SelectStatement, snap *schema.Snapshot) []string {
	var columns []string

	for _, col := range sel.Select.Columns {
		columns = append(columns, columnDisplayName(col, sel.From.Name, snap))
	}

	for _, agg := range sel.Select.Aggregates {
		columns = append(columns, aggregateDisplayName(agg, sel.From.Name, snap))
	}

	return columns
}

func columnDisplayName(col dsl.ColumnRef, formID string, snap *schema.Snapshot) string {
	if col.Pseudo {
		return col.Name
	}

	return snap.FieldLabel(formID, col.Name)
}

func aggregateDisplayName(agg dsl.AggregateCall, formID string, snap *schema.Snapshot) string {
	if agg.Star {
		return "count(*)"
	}

	return fmt.Sprintf("%s(%s)",
		strings.ToLower(string(agg.Func)),
		columnDisplayName(*agg.Column, formID, snap))
}

func statementFormID(stmt *dsl.Statement) string {
	if stmt.Update != nil {
		return stmt.Update.FormID
	}

	return stmt.Select.From.Name
}

func executionError(err error) dsl.ParseError {
	return dsl.ParseError{Kind: dsl.ErrExecution, Message: err.Error()}
}

func errorResult(errs ...dsl.ParseError) Result {
	return Result{Columns: []string{}, Rows: [][]any{}, Errors: errs}
}
