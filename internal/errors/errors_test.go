package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrTypeSyntax, "unexpected token")

	assert.Equal(t, ErrTypeSyntax, err.Type)
	assert.Equal(t, "unexpected token", err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "query_syntax: unexpected token", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrTypeNotFound, "form %s not found", "f1")
	assert.Equal(t, "not_found: form f1 not found", err.Error())
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrTypeDatabase, "failed to query submissions")

	assert.Equal(t, ErrTypeDatabase, err.Type)
	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "connection refused")

	// Unwrap preserves the chain for errors.Is/As.
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsType(t *testing.T) {
	err := New(ErrTypeUnknownForm, "no such form")

	assert.True(t, IsType(err, ErrTypeUnknownForm))
	assert.False(t, IsType(err, ErrTypeSyntax))
	assert.False(t, IsType(stderrors.New("plain"), ErrTypeUnknownForm))
	assert.False(t, IsType(nil, ErrTypeUnknownForm))
}

func TestIsType_Wrapped(t *testing.T) {
	inner := New(ErrTypeNotFound, "form missing")
	outer := fmt.Errorf("loading schema: %w", inner)

	assert.True(t, IsType(outer, ErrTypeNotFound))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeValidation, GetType(New(ErrTypeValidation, "bad input")))
	assert.Equal(t, ErrTypeInternal, GetType(stderrors.New("plain")))
}

func TestWithSuggestion(t *testing.T) {
	err := New(ErrTypeConfig, "bad value").
		WithSuggestion("check the config file").
		WithSuggestion("run with --help")

	require.Len(t, err.Suggestions, 2)
	assert.Equal(t, "check the config file", err.Suggestions[0])
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("invalid log level", "logging.level")

	assert.Equal(t, ErrTypeConfig, err.Type)
	assert.Contains(t, err.Message, "logging.level")
	assert.NotEmpty(t, err.Suggestions)
}
