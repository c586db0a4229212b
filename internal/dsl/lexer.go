package dsl

import (
	"strings"
)

// Tokenize converts query text into an ordered token sequence. It never
// fails: characters that do not belong to the language are emitted as
// TokenUnknown so the parser can report a precise position.
func Tokenize(input string) []Token {
	l := &lexer{input: input}

	return l.run()
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
}

func (l *lexer) run() []Token {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '\'' || ch == '"':
			l.scanQuoted(ch)
		case ch >= '0' && ch <= '9':
			l.scanNumber()
		case isWordStart(ch):
			l.scanWord()
		case ch == ',':
			l.emit(TokenComma, ",", 1)
		case ch == ';':
			l.emit(TokenSemicolon, ";", 1)
		case ch == '(':
			l.emit(TokenLParen, "(", 1)
		case ch == ')':
			l.emit(TokenRParen, ")", 1)
		case ch == '*':
			l.emit(TokenStar, "*", 1)
		case ch == '!' || ch == '<' || ch == '>' || ch == '=':
			l.scanOperator()
		default:
			l.emit(TokenUnknown, string(ch), 1)
		}
	}

	return l.tokens
}

func (l *lexer) emit(kind TokenKind, text string, width int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Pos: l.pos})
	l.pos += width
}

// scanQuoted reads a '...' or "..." span. UUID-shaped content is classified
// contextually: a form reference directly after FROM or FORM, a field
// reference anywhere else. Everything else is a plain string literal. An
// unterminated quote becomes a TokenUnknown covering the rest of the input.
func (l *lexer) scanQuoted(quote byte) {
	start := l.pos
	end := strings.IndexByte(l.input[start+1:], quote)

	if end < 0 {
		l.tokens = append(l.tokens, Token{Kind: TokenUnknown, Text: l.input[start:], Pos: start})
		l.pos = len(l.input)

		return
	}

	content := l.input[start+1 : start+1+end]

	kind := TokenString
	if isIdentifierRef(content) {
		if l.afterFormIntroducer() {
			kind = TokenFormRef
		} else {
			kind = TokenFieldRef
		}
	}

	l.tokens = append(l.tokens, Token{Kind: kind, Text: content, Pos: start})
	l.pos = start + end + 2
}

// afterFormIntroducer reports whether the previous token introduces a form
// reference (FROM in the SELECT dialect, FORM in the UPDATE dialect).
func (l *lexer) afterFormIntroducer() bool {
	if len(l.tokens) == 0 {
		return false
	}

	prev := l.tokens[len(l.tokens)-1].Kind

	return prev == TokenFrom || prev == TokenForm
}

func (l *lexer) scanNumber() {
	start := l.pos
	seenDot := false

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch >= '0' && ch <= '9' {
			l.pos++
			continue
		}

		if ch == '.' && !seenDot {
			seenDot = true
			l.pos++

			continue
		}

		break
	}

	l.tokens = append(l.tokens, Token{Kind: TokenNumber, Text: l.input[start:l.pos], Pos: start})
}

func (l *lexer) scanWord() {
	start := l.pos

	for l.pos < len(l.input) && isWordPart(l.input[l.pos]) {
		l.pos++
	}

	word := l.input[start:l.pos]

	if kind, ok := keywords[strings.ToUpper(word)]; ok {
		l.tokens = append(l.tokens, Token{Kind: kind, Text: strings.ToUpper(word), Pos: start})
		return
	}

	l.tokens = append(l.tokens, Token{Kind: TokenWord, Text: word, Pos: start})
}

// scanOperator matches two-character operators before single-character ones.
func (l *lexer) scanOperator() {
	start := l.pos

	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		switch two {
		case "!=", "<>", ">=", "<=":
			l.tokens = append(l.tokens, Token{Kind: TokenOperator, Text: two, Pos: start})
			l.pos += 2

			return
		}
	}

	ch := l.input[l.pos]
	switch ch {
	case '=', '<', '>':
		l.tokens = append(l.tokens, Token{Kind: TokenOperator, Text: string(ch), Pos: start})
	default:
		// A lone '!' is not an operator.
		l.tokens = append(l.tokens, Token{Kind: TokenUnknown, Text: string(ch), Pos: start})
	}

	l.pos++
}

func isWordStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9')
}
