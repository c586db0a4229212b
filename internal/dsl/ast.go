package dsl

import "fmt"

// ErrorKind classifies compile-stage errors.
type ErrorKind string

const (
	ErrSyntax       ErrorKind = "syntax"
	ErrUnknownForm  ErrorKind = "unknown_table"
	ErrUnknownField ErrorKind = "unknown_column"
	ErrUnsupported  ErrorKind = "unsupported"
	ErrExecution    ErrorKind = "execution"
)

// ParseError describes a single compile-stage error with the byte offset of
// the offending token in the normalized input.
type ParseError struct {
	Kind    ErrorKind
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Message)
}

// Pseudo-column names resolve to physical columns of the submissions table
// rather than document keys.
const (
	PseudoSubmissionID = "submission_id"
	PseudoCreatedAt    = "created_at"
	PseudoCreatedBy    = "created_by"
)

// pseudoColumns maps pseudo-column names to their physical column names.
var pseudoColumns = map[string]string{
	PseudoSubmissionID: "id",
	PseudoCreatedAt:    "created_at",
	PseudoCreatedBy:    "created_by",
}

// IsPseudoColumn reports whether name is one of the fixed pseudo-columns.
func IsPseudoColumn(name string) bool {
	_, ok := pseudoColumns[name]
	return ok
}

// AggFunc is an aggregate function name.
type AggFunc string

const (
	AggCount  AggFunc = "COUNT"
	AggSum    AggFunc = "SUM"
	AggAvg    AggFunc = "AVG"
	AggMin    AggFunc = "MIN"
	AggMax    AggFunc = "MAX"
	AggMedian AggFunc = "MEDIAN"
)

// ColumnRef names either a document field (by generated identifier) or a
// pseudo-column.
type ColumnRef struct {
	Name   string
	Pseudo bool
	Pos    int
}

// AggregateCall is FUNC(column) or COUNT(*). Star implies Column is unset.
type AggregateCall struct {
	Func   AggFunc
	Column *ColumnRef
	Star   bool
	Pos    int
}

// SelectClause is the ordered projection of a SELECT statement. Star means
// `SELECT *`; Columns and Aggregates keep their source order.
type SelectClause struct {
	Star       bool
	Columns    []ColumnRef
	Aggregates []AggregateCall
}

// Condition is one `column op value` comparison in a WHERE clause.
type Condition struct {
	Column   ColumnRef
	Operator string
	Value    Literal
}

// Literal is a string or numeric constant.
type Literal struct {
	Text    string
	Numeric bool
	Pos     int
}

// Connector joins adjacent WHERE conditions.
type Connector string

const (
	ConnAnd Connector = "AND"
	ConnOr  Connector = "OR"
)

// WhereClause holds conditions and the connectors between them;
// len(Connectors) == len(Conditions)-1. Evaluation is strictly left to
// right with no grouping.
type WhereClause struct {
	Conditions []Condition
	Connectors []Connector
}

// ValueExpr is the right-hand side of an UPDATE assignment: a literal, a
// field reference, or a string function applied to nested expressions.
type ValueExpr struct {
	Literal *Literal
	Field   *ColumnRef
	Func    *FuncCall
}

// FuncCall is one of the fixed string functions. LEFT and RIGHT carry a
// numeric length argument.
type FuncCall struct {
	Name   string
	Arg    *ValueExpr
	Length *Literal
	Pos    int
}

// SelectStatement is the complete AST of a SELECT query.
type SelectStatement struct {
	Select SelectClause
	From   ColumnRef // form identifier; Pseudo is always false
	Where  *WhereClause
}

// UpdateStatement sets exactly one document key of one submission.
type UpdateStatement struct {
	FormID       string
	FieldID      string
	Value        ValueExpr
	SubmissionID string
}

// Statement is the result of parsing: exactly one of Select or Update is set.
type Statement struct {
	Select *SelectStatement
	Update *UpdateStatement
}
