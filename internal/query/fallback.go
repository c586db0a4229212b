package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/formlab/formsql/internal/dsl"
	"github.com/formlab/formsql/internal/schema"
	"github.com/formlab/formsql/internal/storage"
)

// executeFallback re-implements projection, filtering, and aggregation over
// a bounded unfiltered sample of the partition when the backend cannot run
// generated SQL. The result shape matches the primary path; the Note marks
// it as best-effort.
func (e *Engine) executeFallback(
	ctx context.Context,
	sel *dsl.SelectStatement,
	snap *schema.Snapshot,
) Result {
	subs, err := e.repo.ListSubmissions(ctx, sel.From.Name, e.sampleLimit, 0)
	if err != nil {
		return errorResult(executionError(err))
	}

	var filtered []row

	for _, sub := range subs {
		r := row{sub: sub}
		if sel.Where == nil || matchesWhere(sel.Where, r) {
			filtered = append(filtered, r)
		}
	}

	result := projectRows(sel, snap, filtered)
	result.Note = fmt.Sprintf(
		"best-effort result computed client-side over a sample of %d row(s) (cap %d)",
		len(subs), e.sampleLimit)

	return result
}

type row struct {
	sub storage.Submission
}

// value resolves a column reference against one row. Missing document keys
// yield ("", false), mirroring SQL NULL from the JSON extraction.
func (r row) value(col dsl.ColumnRef) (string, bool) {
	if col.Pseudo {
		switch col.Name {
		case dsl.PseudoSubmissionID:
			return r.sub.ID, true
		case dsl.PseudoCreatedAt:
			return r.sub.CreatedAt.Format(time.RFC3339), true
		case dsl.PseudoCreatedBy:
			return r.sub.CreatedBy, true
		}

		return "", false
	}

	v, ok := r.sub.Data[col.Name]
	if !ok || v == nil {
		return "", false
	}

	return stringifyValue(v), true
}

// stringifyValue renders a document value the way the JSON text extraction
// would: scalars as text, nested values as compact JSON.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}

		return string(data)
	}
}

// matchesWhere folds conditions strictly left to right through their
// connectors, without precedence or grouping.
func matchesWhere(where *dsl.WhereClause, r row) bool {
	acc := matchesCondition(where.Conditions[0], r)

	for i, conn := range where.Connectors {
		next := matchesCondition(where.Conditions[i+1], r)

		if conn == dsl.ConnAnd {
			acc = acc && next
		} else {
			acc = acc || next
		}
	}

	return acc
}

func matchesCondition(cond dsl.Condition, r row) bool {
	raw, present := r.value(cond.Column)
	if !present {
		return false
	}

	if cond.Value.Numeric {
		lhs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}

		rhs, err := strconv.ParseFloat(cond.Value.Text, 64)
		if err != nil {
			return false
		}

		return compareFloats(lhs, rhs, cond.Operator)
	}

	return compareStrings(raw, cond.Value.Text, cond.Operator)
}

func compareFloats(a, b float64, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	}

	return false
}

func compareStrings(a, b, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	}

	return false
}

// projectRows renders the filtered sample into the final result shape,
// mirroring the generated SQL's projection rules.
func projectRows(sel *dsl.SelectStatement, snap *schema.Snapshot, rows []row) Result {
	if sel.Select.Star {
		return projectStar(rows)
	}

	hasAggregates := len(sel.Select.Aggregates) > 0
	hasColumns := len(sel.Select.Columns) > 0

	columns := displayColumns(sel, snap)

	switch {
	case hasAggregates && hasColumns:
		return Result{Columns: columns, Rows: groupedAggregateRows(sel, rows)}
	case hasAggregates:
		return Result{Columns: columns, Rows: [][]any{aggregateRow(sel.Select.Aggregates, rows)}}
	default:
		out := make([][]any, 0, len(rows))
		for _, r := range rows {
			out = append(out, plainRow(sel.Select.Columns, r))
		}

		return Result{Columns: columns, Rows: out}
	}
}

// projectStar mirrors `SELECT *` on the physical table: every physical
// column including the raw document.
func projectStar(rows []row) Result {
	columns := []string{"id", "form_id", "created_by", "created_at", "submission_data"}
	out := make([][]any, 0, len(rows))

	for _, r := range rows {
		doc, _ := json.Marshal(r.sub.Data)
		out = append(out, []any{
			r.sub.ID,
			r.sub.FormID,
			r.sub.CreatedBy,
			r.sub.CreatedAt.Format(time.RFC3339),
			string(doc),
		})
	}

	return Result{Columns: columns, Rows: out}
}

func plainRow(cols []dsl.ColumnRef, r row) []any {
	out := make([]any, 0, len(cols))

	for _, col := range cols {
		v, present := r.value(col)
		if !present {
			out = append(out, nil)
			continue
		}

		out = append(out, v)
	}

	return out
}

// groupedAggregateRows mirrors the GROUP BY the generator emits when plain
// fields and aggregates are mixed: one output row per distinct combination
// of the plain column values, in first-seen order.
func groupedAggregateRows(sel *dsl.SelectStatement, rows []row) [][]any {
	type group struct {
		key    []any
		member []row
	}

	var (
		order  []string
		groups = map[string]*group{}
	)

	for _, r := range rows {
		key := plainRow(sel.Select.Columns, r)

		// JSON keeps tuple boundaries unambiguous; a plain string join would
		// merge groups whose values flatten to the same text.
		encoded, err := json.Marshal(key)
		if err != nil {
			encoded = []byte(fmt.Sprintf("%#v", key))
		}

		keyText := string(encoded)
		if _, ok := groups[keyText]; !ok {
			groups[keyText] = &group{key: key}
			order = append(order, keyText)
		}

		groups[keyText].member = append(groups[keyText].member, r)
	}

	out := make([][]any, 0, len(order))

	for _, keyText := range order {
		g := groups[keyText]
		rowOut := append([]any{}, g.key...)
		rowOut = append(rowOut, aggregateRow(sel.Select.Aggregates, g.member)...)
		out = append(out, rowOut)
	}

	return out
}

func aggregateRow(aggs []dsl.AggregateCall, rows []row) []any {
	out := make([]any, 0, len(aggs))

	for _, agg := range aggs {
		out = append(out, evalAggregate(agg, rows))
	}

	return out
}

func evalAggregate(agg dsl.AggregateCall, rows []row) any {
	if agg.Star {
		return int64(len(rows))
	}

	var (
		texts []string
		nums  []float64
	)

	for _, r := range rows {
		v, present := r.value(*agg.Column)
		if !present {
			continue
		}

		texts = append(texts, v)

		if f, err := strconv.ParseFloat(v, 64); err == nil {
			nums = append(nums, f)
		}
	}

	switch agg.Func {
	case dsl.AggCount:
		return int64(len(texts))
	case dsl.AggSum:
		return sum(nums)
	case dsl.AggAvg:
		if len(nums) == 0 {
			return nil
		}

		return sum(nums) / float64(len(nums))
	case dsl.AggMedian:
		return median(nums)
	case dsl.AggMin:
		if len(texts) == 0 {
			return nil
		}

		return minString(texts)
	case dsl.AggMax:
		if len(texts) == 0 {
			return nil
		}

		return maxString(texts)
	}

	return nil
}

func sum(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}

	return total
}

func median(nums []float64) any {
	if len(nums) == 0 {
		return nil
	}

	sorted := append([]float64{}, nums...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	return (sorted[mid-1] + sorted[mid]) / 2
}

func minString(values []string) string {
	out := values[0]
	for _, v := range values[1:] {
		if strings.Compare(v, out) < 0 {
			out = v
		}
	}

	return out
}

func maxString(values []string) string {
	out := values[0]
	for _, v := range values[1:] {
		if strings.Compare(v, out) > 0 {
			out = v
		}
	}

	return out
}
