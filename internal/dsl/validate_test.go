package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSchema maps form IDs to their field sets.
type fakeSchema map[string]map[string]bool

func (s fakeSchema) HasForm(formID string) bool {
	_, ok := s[formID]
	return ok
}

func (s fakeSchema) HasField(formID, fieldID string) bool {
	return s[formID][fieldID]
}

func testSchema() fakeSchema {
	return fakeSchema{
		"f1": {"c1": true, "c2": true},
	}
}

func TestValidate_UnknownFormShortCircuits(t *testing.T) {
	// An unknown form yields exactly one error even when the statement also
	// references fields that could never resolve.
	stmt := parse(t, `SELECT FIELD("zzz"), FIELD("yyy") FROM "missing" WHERE FIELD("xxx") = 1`)

	errs := Validate(stmt, testSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownForm, errs[0].Kind)
	assert.Contains(t, errs[0].Message, "missing")
}

func TestValidate_UnknownFieldsCollected(t *testing.T) {
	stmt := parse(t, `SELECT FIELD("c1"), FIELD("zzz") FROM "f1" WHERE FIELD("www") = 1`)

	errs := Validate(stmt, testSchema())
	require.Len(t, errs, 2)

	for _, verr := range errs {
		assert.Equal(t, ErrUnknownField, verr.Kind)
	}

	assert.Contains(t, errs[0].Message, "zzz")
	assert.Contains(t, errs[1].Message, "www")
}

func TestValidate_SingleUnknownField(t *testing.T) {
	stmt := parse(t, `SELECT FIELD("c1"), FIELD("zzz") FROM "f1"`)

	errs := Validate(stmt, testSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownField, errs[0].Kind)
	assert.Contains(t, errs[0].Message, "zzz")
}

func TestValidate_ValidStatement(t *testing.T) {
	stmt := parse(t, `SELECT FIELD("c1"), COUNT(*), SUM(FIELD("c2")) FROM "f1" WHERE FIELD("c2") > 5`)

	errs := Validate(stmt, testSchema())
	assert.Empty(t, errs)
}

func TestValidate_PseudoColumnsSkipSchemaCheck(t *testing.T) {
	stmt := parse(t, `SELECT submission_id, created_at, created_by FROM "f1" WHERE created_by = 'alice'`)

	errs := Validate(stmt, testSchema())
	assert.Empty(t, errs)
}

func TestValidate_AggregateArgumentChecked(t *testing.T) {
	stmt := parse(t, `SELECT AVG(FIELD("nope")) FROM "f1"`)

	errs := Validate(stmt, testSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownField, errs[0].Kind)
}

func TestValidate_Update(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		stmt := parse(t, `UPDATE FORM 'f1' SET FIELD('c1') = UPPER(FIELD('c2')) WHERE submission_id = 'r1'`)
		assert.Empty(t, Validate(stmt, testSchema()))
	})

	t.Run("unknown form", func(t *testing.T) {
		stmt := parse(t, `UPDATE FORM 'nope' SET FIELD('c1') = 1 WHERE submission_id = 'r1'`)
		errs := Validate(stmt, testSchema())
		require.Len(t, errs, 1)
		assert.Equal(t, ErrUnknownForm, errs[0].Kind)
	})

	t.Run("unknown target and source fields both reported", func(t *testing.T) {
		stmt := parse(t, `UPDATE FORM 'f1' SET FIELD('zzz') = TRIM(FIELD('yyy')) WHERE submission_id = 'r1'`)
		errs := Validate(stmt, testSchema())
		require.Len(t, errs, 2)
		assert.Equal(t, ErrUnknownField, errs[0].Kind)
		assert.Equal(t, ErrUnknownField, errs[1].Kind)
	})
}
