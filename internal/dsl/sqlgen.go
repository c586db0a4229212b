package dsl

import (
	"fmt"
	"strings"
)

// Physical layout: every logical form is a partition of one submissions
// table, discriminated by form_id, with per-row field values held in the
// submission_data JSON document column.
const (
	SubmissionsTable    = "submissions"
	PartitionColumn     = "form_id"
	DocumentColumn      = "submission_data"
	physicalIDColumn    = "id"
	numericCastTemplate = "CAST(%s AS DOUBLE)"
)

// GenerateSQL translates a validated statement into executable SQL against
// the physical submissions table.
func GenerateSQL(stmt *Statement) (string, error) {
	if stmt.Update != nil {
		return generateUpdate(stmt.Update)
	}

	if stmt.Select != nil {
		return generateSelect(stmt.Select)
	}

	return "", fmt.Errorf("empty statement")
}

func generateSelect(sel *SelectStatement) (string, error) {
	var b strings.Builder

	b.WriteString("SELECT ")

	if sel.Select.Star {
		b.WriteString("*")
	} else {
		var items []string

		for _, col := range sel.Select.Columns {
			items = append(items, projectionExpr(col))
		}

		for _, agg := range sel.Select.Aggregates {
			expr, err := aggregateExpr(agg)
			if err != nil {
				return "", err
			}

			items = append(items, expr)
		}

		b.WriteString(strings.Join(items, ", "))
	}

	b.WriteString(" FROM ")
	b.WriteString(SubmissionsTable)
	b.WriteString(" WHERE ")
	b.WriteString(PartitionColumn)
	b.WriteString(" = ")
	b.WriteString(quoteString(sel.From.Name))

	if sel.Where != nil && len(sel.Where.Conditions) > 0 {
		b.WriteString(" AND (")
		b.WriteString(whereExpr(sel.Where))
		b.WriteString(")")
	}

	// Mixing plain fields with aggregates groups on the plain fields.
	if !sel.Select.Star && len(sel.Select.Aggregates) > 0 && len(sel.Select.Columns) > 0 {
		var groups []string
		for _, col := range sel.Select.Columns {
			groups = append(groups, columnExpr(col))
		}

		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groups, ", "))
	}

	return b.String(), nil
}

// columnExpr returns the bare value expression for a column reference:
// the physical column for pseudo-columns, the JSON path extraction for
// document fields. Extraction always yields text.
func columnExpr(col ColumnRef) string {
	if col.Pseudo {
		return pseudoColumns[col.Name]
	}

	return fmt.Sprintf("%s ->> %s", DocumentColumn, quoteString(col.Name))
}

// projectionExpr aliases document-field extractions to the original field
// identifier so result columns keep a stable name.
func projectionExpr(col ColumnRef) string {
	expr := columnExpr(col)
	if col.Pseudo {
		return expr
	}

	return fmt.Sprintf("%s AS %s", expr, quoteIdent(col.Name))
}

// aggregateExpr renders an aggregate call. SUM, AVG, and MEDIAN do arithmetic
// over extracted text and require an explicit numeric cast; COUNT, MIN, and
// MAX never cast.
func aggregateExpr(agg AggregateCall) (string, error) {
	if agg.Star {
		return `COUNT(*) AS "count(*)"`, nil
	}

	if agg.Column == nil {
		return "", fmt.Errorf("aggregate %s has no argument", agg.Func)
	}

	arg := columnExpr(*agg.Column)

	switch agg.Func {
	case AggSum, AggAvg, AggMedian:
		arg = fmt.Sprintf(numericCastTemplate, arg)
	case AggCount, AggMin, AggMax:
		// text argument as-is
	default:
		return "", fmt.Errorf("unsupported aggregate %s", agg.Func)
	}

	alias := fmt.Sprintf("%s(%s)", strings.ToLower(string(agg.Func)), agg.Column.Name)

	return fmt.Sprintf("%s(%s) AS %s", agg.Func, arg, quoteIdent(alias)), nil
}

// whereExpr concatenates conditions with their connectors; evaluation order
// is the input order, no grouping.
func whereExpr(where *WhereClause) string {
	var b strings.Builder

	for i, cond := range where.Conditions {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(where.Connectors[i-1]))
			b.WriteString(" ")
		}

		b.WriteString(conditionExpr(cond))
	}

	return b.String()
}

func conditionExpr(cond Condition) string {
	lhs := columnExpr(cond.Column)

	if cond.Value.Numeric {
		if !cond.Column.Pseudo {
			lhs = fmt.Sprintf(numericCastTemplate, lhs)
		}

		return fmt.Sprintf("%s %s %s", lhs, cond.Operator, cond.Value.Text)
	}

	return fmt.Sprintf("%s %s %s", lhs, cond.Operator, quoteString(cond.Value.Text))
}

// generateUpdate compiles the single-key update dialect to a JSON merge
// patch scoped by both the partition and the row identifier.
func generateUpdate(upd *UpdateStatement) (string, error) {
	expr, err := valueExprSQL(&upd.Value)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"UPDATE %s SET %s = json_merge_patch(%s, json_object(%s, %s)) WHERE %s = %s AND %s = %s",
		SubmissionsTable,
		DocumentColumn,
		DocumentColumn,
		quoteString(upd.FieldID),
		expr,
		PartitionColumn,
		quoteString(upd.FormID),
		physicalIDColumn,
		quoteString(upd.SubmissionID),
	), nil
}

func valueExprSQL(expr *ValueExpr) (string, error) {
	switch {
	case expr.Literal != nil:
		if expr.Literal.Numeric {
			return expr.Literal.Text, nil
		}

		return quoteString(expr.Literal.Text), nil
	case expr.Field != nil:
		return columnExpr(*expr.Field), nil
	case expr.Func != nil:
		arg, err := valueExprSQL(expr.Func.Arg)
		if err != nil {
			return "", err
		}

		switch expr.Func.Name {
		case "LEFT", "RIGHT":
			return fmt.Sprintf("%s(%s, %s)", expr.Func.Name, arg, expr.Func.Length.Text), nil
		case "UPPER", "LOWER", "TRIM":
			return fmt.Sprintf("%s(%s)", expr.Func.Name, arg), nil
		default:
			return "", fmt.Errorf("unsupported string function %s", expr.Func.Name)
		}
	default:
		return "", fmt.Errorf("empty expression")
	}
}

// quoteString single-quotes a string value, doubling embedded quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent double-quotes an identifier for use as a column alias.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
