package dsl

import (
	"strings"

	"github.com/google/uuid"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenSelect TokenKind = iota + 1
	TokenUpdate
	TokenForm
	TokenSet
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenField    // the FIELD(...) wrapper keyword
	TokenAggFunc  // COUNT, SUM, AVG, MIN, MAX, MEDIAN
	TokenStrFunc  // LEFT, RIGHT, UPPER, LOWER, TRIM
	TokenFormRef  // quoted UUID immediately after FROM or FORM
	TokenFieldRef // quoted UUID elsewhere
	TokenString
	TokenNumber
	TokenOperator // = != <> > < >= <=
	TokenComma
	TokenSemicolon
	TokenLParen
	TokenRParen
	TokenStar
	TokenWord // bare word that is not a keyword (pseudo-column candidate)
	TokenUnknown
)

// Token is one lexical unit of a query. Pos is the byte offset of the token's
// first character in the normalized input.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (k TokenKind) String() string {
	switch k {
	case TokenSelect:
		return "SELECT"
	case TokenUpdate:
		return "UPDATE"
	case TokenForm:
		return "FORM"
	case TokenSet:
		return "SET"
	case TokenFrom:
		return "FROM"
	case TokenWhere:
		return "WHERE"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenField:
		return "FIELD"
	case TokenAggFunc:
		return "aggregate"
	case TokenStrFunc:
		return "string function"
	case TokenFormRef:
		return "form reference"
	case TokenFieldRef:
		return "field reference"
	case TokenString:
		return "string literal"
	case TokenNumber:
		return "number"
	case TokenOperator:
		return "operator"
	case TokenComma:
		return "comma"
	case TokenSemicolon:
		return "semicolon"
	case TokenLParen:
		return "opening parenthesis"
	case TokenRParen:
		return "closing parenthesis"
	case TokenStar:
		return "star"
	case TokenWord:
		return "identifier"
	default:
		return "unknown"
	}
}

// keywords maps upper-cased bare words to their token kinds.
var keywords = map[string]TokenKind{
	"SELECT": TokenSelect,
	"UPDATE": TokenUpdate,
	"FORM":   TokenForm,
	"SET":    TokenSet,
	"FROM":   TokenFrom,
	"WHERE":  TokenWhere,
	"AND":    TokenAnd,
	"OR":     TokenOr,
	"FIELD":  TokenField,
	"COUNT":  TokenAggFunc,
	"SUM":    TokenAggFunc,
	"AVG":    TokenAggFunc,
	"MIN":    TokenAggFunc,
	"MAX":    TokenAggFunc,
	"MEDIAN": TokenAggFunc,
	"LEFT":   TokenStrFunc,
	"RIGHT":  TokenStrFunc,
	"UPPER":  TokenStrFunc,
	"LOWER":  TokenStrFunc,
	"TRIM":   TokenStrFunc,
}

// isIdentifierRef reports whether a quoted span holds a generated field/form
// identifier rather than a plain string value. Identifiers are canonical
// 8-4-4-4-12 hex UUIDs.
func isIdentifierRef(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}

	_, err := uuid.Parse(s)

	return err == nil
}
