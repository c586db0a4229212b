package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	formUUID  = "2f0c8f6e-9a31-4c6e-8b1a-3d8f2a61c905"
	fieldUUID = "7b1d2c3a-4e5f-4a6b-8c9d-0e1f2a3b4c5d"
	rowUUID   = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"
)

func TestTokenize_Keywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []TokenKind
	}{
		{
			name:  "uppercase keywords",
			input: "SELECT FROM WHERE AND OR",
			kinds: []TokenKind{TokenSelect, TokenFrom, TokenWhere, TokenAnd, TokenOr},
		},
		{
			name:  "lowercase keywords",
			input: "select from where",
			kinds: []TokenKind{TokenSelect, TokenFrom, TokenWhere},
		},
		{
			name:  "mixed case",
			input: "SeLeCt CoUnT",
			kinds: []TokenKind{TokenSelect, TokenAggFunc},
		},
		{
			name:  "aggregate functions",
			input: "COUNT SUM AVG MIN MAX MEDIAN",
			kinds: []TokenKind{TokenAggFunc, TokenAggFunc, TokenAggFunc, TokenAggFunc, TokenAggFunc, TokenAggFunc},
		},
		{
			name:  "string functions",
			input: "LEFT RIGHT UPPER LOWER TRIM",
			kinds: []TokenKind{TokenStrFunc, TokenStrFunc, TokenStrFunc, TokenStrFunc, TokenStrFunc},
		},
		{
			name:  "update dialect keywords",
			input: "UPDATE FORM SET FIELD",
			kinds: []TokenKind{TokenUpdate, TokenForm, TokenSet, TokenField},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			require.Len(t, tokens, len(tt.kinds))

			for i, kind := range tt.kinds {
				assert.Equal(t, kind, tokens[i].Kind, "token %d", i)
			}
		})
	}
}

func TestTokenize_QuotedSpanClassification(t *testing.T) {
	t.Run("uuid after FROM is a form reference", func(t *testing.T) {
		tokens := Tokenize(`SELECT * FROM "` + formUUID + `"`)
		require.Len(t, tokens, 4)
		assert.Equal(t, TokenFormRef, tokens[3].Kind)
		assert.Equal(t, formUUID, tokens[3].Text)
	})

	t.Run("uuid after FORM is a form reference", func(t *testing.T) {
		tokens := Tokenize(`UPDATE FORM '` + formUUID + `'`)
		require.Len(t, tokens, 3)
		assert.Equal(t, TokenFormRef, tokens[2].Kind)
	})

	t.Run("uuid elsewhere is a field reference", func(t *testing.T) {
		tokens := Tokenize(`SELECT "` + fieldUUID + `"`)
		require.Len(t, tokens, 2)
		assert.Equal(t, TokenFieldRef, tokens[1].Kind)
		assert.Equal(t, fieldUUID, tokens[1].Text)
	})

	t.Run("non-uuid content is a string literal", func(t *testing.T) {
		tokens := Tokenize(`SELECT 'hello world'`)
		require.Len(t, tokens, 2)
		assert.Equal(t, TokenString, tokens[1].Kind)
		assert.Equal(t, "hello world", tokens[1].Text)
	})

	t.Run("uuid shaped but invalid hex is a string", func(t *testing.T) {
		tokens := Tokenize(`SELECT 'zzzzzzzz-9a31-4c6e-8b1a-3d8f2a61c905'`)
		require.Len(t, tokens, 2)
		assert.Equal(t, TokenString, tokens[1].Kind)
	})

	t.Run("single and double quotes are interchangeable", func(t *testing.T) {
		single := Tokenize(`SELECT '` + fieldUUID + `'`)
		double := Tokenize(`SELECT "` + fieldUUID + `"`)
		require.Len(t, single, 2)
		require.Len(t, double, 2)
		assert.Equal(t, single[1].Kind, double[1].Kind)
		assert.Equal(t, single[1].Text, double[1].Text)
	})

	t.Run("unterminated quote becomes unknown token", func(t *testing.T) {
		tokens := Tokenize(`SELECT 'oops`)
		require.Len(t, tokens, 2)
		assert.Equal(t, TokenUnknown, tokens[1].Kind)
		assert.Equal(t, "'oops", tokens[1].Text)
	})
}

func TestTokenize_Operators(t *testing.T) {
	tests := []struct {
		input string
		text  string
		kind  TokenKind
	}{
		{"=", "=", TokenOperator},
		{"!=", "!=", TokenOperator},
		{"<>", "<>", TokenOperator},
		{">=", ">=", TokenOperator},
		{"<=", "<=", TokenOperator},
		{"<", "<", TokenOperator},
		{">", ">", TokenOperator},
		{"!", "!", TokenUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			require.Len(t, tokens, 1)
			assert.Equal(t, tt.kind, tokens[0].Kind)
			assert.Equal(t, tt.text, tokens[0].Text)
		})
	}
}

func TestTokenize_Numbers(t *testing.T) {
	tokens := Tokenize("42 3.14 0.5")
	require.Len(t, tokens, 3)

	for _, tok := range tokens {
		assert.Equal(t, TokenNumber, tok.Kind)
	}

	assert.Equal(t, "42", tokens[0].Text)
	assert.Equal(t, "3.14", tokens[1].Text)
}

func TestTokenize_Positions(t *testing.T) {
	tokens := Tokenize("SELECT * FROM")
	require.Len(t, tokens, 3)
	assert.Equal(t, 0, tokens[0].Pos)
	assert.Equal(t, 7, tokens[1].Pos)
	assert.Equal(t, 9, tokens[2].Pos)
}

func TestTokenize_NonPseudoWord(t *testing.T) {
	tokens := Tokenize("submission_id created_at custom_thing")
	require.Len(t, tokens, 3)

	for _, tok := range tokens {
		assert.Equal(t, TokenWord, tok.Kind)
	}

	assert.True(t, IsPseudoColumn(tokens[0].Text))
	assert.True(t, IsPseudoColumn(tokens[1].Text))
	assert.False(t, IsPseudoColumn(tokens[2].Text))
}
