package dsl

import "fmt"

// SchemaLookup is a point-in-time view of the known forms and their fields.
// Validation reads it without any I/O; the caller is responsible for taking a
// snapshot before validating.
type SchemaLookup interface {
	HasForm(formID string) bool
	HasField(formID, fieldID string) bool
}

// Validate checks every form and field reference in a parsed statement
// against the schema. Field errors are collected so that a user can fix all
// invalid references in one pass; an unknown form short-circuits with a
// single error because there is no field set to check against.
func Validate(stmt *Statement, schema SchemaLookup) []ParseError {
	if stmt.Update != nil {
		return validateUpdate(stmt.Update, schema)
	}

	return validateSelect(stmt.Select, schema)
}

func validateSelect(sel *SelectStatement, schema SchemaLookup) []ParseError {
	if !schema.HasForm(sel.From.Name) {
		return []ParseError{{
			Kind:    ErrUnknownForm,
			Message: fmt.Sprintf("unknown form %q", sel.From.Name),
			Pos:     sel.From.Pos,
		}}
	}

	var errs []ParseError

	check := func(col ColumnRef) {
		if col.Pseudo {
			return
		}

		if !schema.HasField(sel.From.Name, col.Name) {
			errs = append(errs, ParseError{
				Kind:    ErrUnknownField,
				Message: fmt.Sprintf("unknown field %q", col.Name),
				Pos:     col.Pos,
			})
		}
	}

	for _, col := range sel.Select.Columns {
		check(col)
	}

	for _, agg := range sel.Select.Aggregates {
		if agg.Column != nil {
			check(*agg.Column)
		}
	}

	if sel.Where != nil {
		for _, cond := range sel.Where.Conditions {
			check(cond.Column)
		}
	}

	return errs
}

func validateUpdate(upd *UpdateStatement, schema SchemaLookup) []ParseError {
	if !schema.HasForm(upd.FormID) {
		return []ParseError{{
			Kind:    ErrUnknownForm,
			Message: fmt.Sprintf("unknown form %q", upd.FormID),
		}}
	}

	var errs []ParseError

	if !schema.HasField(upd.FormID, upd.FieldID) {
		errs = append(errs, ParseError{
			Kind:    ErrUnknownField,
			Message: fmt.Sprintf("unknown field %q", upd.FieldID),
		})
	}

	errs = append(errs, validateValueExpr(&upd.Value, upd.FormID, schema)...)

	return errs
}

func validateValueExpr(expr *ValueExpr, formID string, schema SchemaLookup) []ParseError {
	switch {
	case expr.Field != nil:
		if expr.Field.Pseudo || schema.HasField(formID, expr.Field.Name) {
			return nil
		}

		return []ParseError{{
			Kind:    ErrUnknownField,
			Message: fmt.Sprintf("unknown field %q", expr.Field.Name),
			Pos:     expr.Field.Pos,
		}}
	case expr.Func != nil:
		return validateValueExpr(expr.Func.Arg, formID, schema)
	default:
		return nil
	}
}
