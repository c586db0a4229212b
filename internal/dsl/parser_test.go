package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, input string) *Statement {
	t.Helper()

	stmt, perr := Parse(Tokenize(input))
	require.Nil(t, perr, "unexpected parse error")
	require.NotNil(t, stmt)

	return stmt
}

func parseErr(t *testing.T, input string) *ParseError {
	t.Helper()

	stmt, perr := Parse(Tokenize(input))
	require.Nil(t, stmt)
	require.NotNil(t, perr, "expected a parse error")
	assert.Equal(t, ErrSyntax, perr.Kind)

	return perr
}

func TestParse_SelectStar(t *testing.T) {
	stmt := parse(t, `SELECT * FROM "`+formUUID+`"`)
	require.NotNil(t, stmt.Select)
	assert.True(t, stmt.Select.Select.Star)
	assert.Equal(t, formUUID, stmt.Select.From.Name)
	assert.Nil(t, stmt.Select.Where)
}

func TestParse_SelectFieldList(t *testing.T) {
	stmt := parse(t, `SELECT FIELD("`+fieldUUID+`"), submission_id, created_at FROM "`+formUUID+`"`)
	sel := stmt.Select
	require.NotNil(t, sel)
	require.Len(t, sel.Select.Columns, 3)

	assert.Equal(t, fieldUUID, sel.Select.Columns[0].Name)
	assert.False(t, sel.Select.Columns[0].Pseudo)

	assert.Equal(t, "submission_id", sel.Select.Columns[1].Name)
	assert.True(t, sel.Select.Columns[1].Pseudo)

	assert.Equal(t, "created_at", sel.Select.Columns[2].Name)
	assert.True(t, sel.Select.Columns[2].Pseudo)
}

func TestParse_BareQuotedFieldReference(t *testing.T) {
	// A quoted UUID outside FROM position works without the FIELD wrapper.
	stmt := parse(t, `SELECT "`+fieldUUID+`" FROM "`+formUUID+`"`)
	require.Len(t, stmt.Select.Select.Columns, 1)
	assert.Equal(t, fieldUUID, stmt.Select.Select.Columns[0].Name)
}

func TestParse_Aggregates(t *testing.T) {
	stmt := parse(t, `SELECT COUNT(*), SUM(FIELD("`+fieldUUID+`")), AVG("`+fieldUUID+`") FROM "`+formUUID+`"`)
	aggs := stmt.Select.Select.Aggregates
	require.Len(t, aggs, 3)

	assert.Equal(t, AggCount, aggs[0].Func)
	assert.True(t, aggs[0].Star)
	assert.Nil(t, aggs[0].Column)

	assert.Equal(t, AggSum, aggs[1].Func)
	require.NotNil(t, aggs[1].Column)
	assert.Equal(t, fieldUUID, aggs[1].Column.Name)

	assert.Equal(t, AggAvg, aggs[2].Func)
}

func TestParse_StarOnlyForCount(t *testing.T) {
	perr := parseErr(t, `SELECT SUM(*) FROM "`+formUUID+`"`)
	assert.Contains(t, perr.Message, "COUNT")
}

func TestParse_WhereChain(t *testing.T) {
	stmt := parse(t, `SELECT * FROM "`+formUUID+`" WHERE FIELD("`+fieldUUID+`") > 10 AND created_by = 'alice' OR FIELD("`+fieldUUID+`") <> 'x'`)
	where := stmt.Select.Where
	require.NotNil(t, where)
	require.Len(t, where.Conditions, 3)
	require.Len(t, where.Connectors, 2)

	assert.Equal(t, ConnAnd, where.Connectors[0])
	assert.Equal(t, ConnOr, where.Connectors[1])

	assert.Equal(t, ">", where.Conditions[0].Operator)
	assert.True(t, where.Conditions[0].Value.Numeric)
	assert.Equal(t, "10", where.Conditions[0].Value.Text)

	assert.Equal(t, "=", where.Conditions[1].Operator)
	assert.True(t, where.Conditions[1].Column.Pseudo)

	// <> normalizes to !=
	assert.Equal(t, "!=", where.Conditions[2].Operator)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing FROM", `SELECT *`},
		{"empty select list", `SELECT FROM "` + formUUID + `"`},
		{"unquoted form", `SELECT * FROM submissions`},
		{"trailing tokens", `SELECT * FROM "` + formUUID + `" garbage`},
		{"condition missing value", `SELECT * FROM "` + formUUID + `" WHERE submission_id =`},
		{"unknown bare identifier", `SELECT name FROM "` + formUUID + `"`},
		{"not a statement", `DELETE FROM "` + formUUID + `"`},
		{"empty input", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parseErr(t, tt.input)
		})
	}
}

func TestParse_SyntaxErrorIsSingle(t *testing.T) {
	// The first syntax error rejects the query; no recovery pass.
	stmt, perr := Parse(Tokenize(`SELECT FROM WHERE`))
	assert.Nil(t, stmt)
	require.NotNil(t, perr)
	assert.Equal(t, ErrSyntax, perr.Kind)
}

func TestParse_Update(t *testing.T) {
	stmt := parse(t, `UPDATE FORM '`+formUUID+`' SET FIELD('`+fieldUUID+`') = 'done' WHERE submission_id = '`+rowUUID+`'`)
	upd := stmt.Update
	require.NotNil(t, upd)

	assert.Equal(t, formUUID, upd.FormID)
	assert.Equal(t, fieldUUID, upd.FieldID)
	assert.Equal(t, rowUUID, upd.SubmissionID)
	require.NotNil(t, upd.Value.Literal)
	assert.Equal(t, "done", upd.Value.Literal.Text)
}

func TestParse_UpdateWithFunction(t *testing.T) {
	stmt := parse(t, `UPDATE FORM '`+formUUID+`' SET FIELD('`+fieldUUID+`') = LEFT(UPPER(FIELD('`+fieldUUID+`')), 3) WHERE submission_id = '`+rowUUID+`'`)
	upd := stmt.Update
	require.NotNil(t, upd)

	fn := upd.Value.Func
	require.NotNil(t, fn)
	assert.Equal(t, "LEFT", fn.Name)
	require.NotNil(t, fn.Length)
	assert.Equal(t, "3", fn.Length.Text)

	inner := fn.Arg.Func
	require.NotNil(t, inner)
	assert.Equal(t, "UPPER", inner.Name)
	require.NotNil(t, inner.Arg.Field)
	assert.Equal(t, fieldUUID, inner.Arg.Field.Name)
}

func TestParse_UpdateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing WHERE", `UPDATE FORM '` + formUUID + `' SET FIELD('` + fieldUUID + `') = 1`},
		{"row filter not submission_id", `UPDATE FORM '` + formUUID + `' SET FIELD('` + fieldUUID + `') = 1 WHERE created_by = 'x'`},
		{"row filter not equality", `UPDATE FORM '` + formUUID + `' SET FIELD('` + fieldUUID + `') = 1 WHERE submission_id > '` + rowUUID + `'`},
		{"missing SET", `UPDATE FORM '` + formUUID + `' FIELD('` + fieldUUID + `') = 1 WHERE submission_id = '` + rowUUID + `'`},
		{"assignment not equality", `UPDATE FORM '` + formUUID + `' SET FIELD('` + fieldUUID + `') > 1 WHERE submission_id = '` + rowUUID + `'`},
		{"LEFT length not numeric", `UPDATE FORM '` + formUUID + `' SET FIELD('` + fieldUUID + `') = LEFT('abc', 'x') WHERE submission_id = '` + rowUUID + `'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parseErr(t, tt.input)
		})
	}
}

func TestParse_NonUUIDIdentifiersStillParse(t *testing.T) {
	// Short identifiers lex as strings but remain valid form/field names.
	stmt := parse(t, `SELECT FIELD("c1") FROM "f1" WHERE FIELD("c2") = 'x'`)
	sel := stmt.Select
	require.NotNil(t, sel)
	assert.Equal(t, "f1", sel.From.Name)
	require.Len(t, sel.Select.Columns, 1)
	assert.Equal(t, "c1", sel.Select.Columns[0].Name)
}
