package dsl

import "fmt"

// Parse builds a statement from a token sequence. Parsing is a single
// recursive-descent pass with no backtracking; the first syntax error rejects
// the whole query.
func Parse(tokens []Token) (*Statement, *ParseError) {
	p := &parser{tokens: tokens}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if !p.atEnd() {
		return nil, p.errorf("unexpected %s %q after end of statement", p.peek().Kind, p.peek().Text)
	}

	return stmt, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() Token {
	if p.atEnd() {
		return Token{Kind: 0, Text: "", Pos: p.eofPos()}
	}

	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	if !p.atEnd() {
		p.pos++
	}

	return tok
}

func (p *parser) eofPos() int {
	if len(p.tokens) == 0 {
		return 0
	}

	last := p.tokens[len(p.tokens)-1]

	return last.Pos + len(last.Text)
}

func (p *parser) errorf(format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:    ErrSyntax,
		Message: fmt.Sprintf(format, args...),
		Pos:     p.peek().Pos,
	}
}

// expect consumes the next token if it has the wanted kind.
func (p *parser) expect(kind TokenKind) (Token, *ParseError) {
	tok := p.peek()
	if tok.Kind != kind {
		if p.atEnd() {
			return Token{}, p.errorf("expected %s, found end of input", kind)
		}

		return Token{}, p.errorf("expected %s, found %q", kind, tok.Text)
	}

	return p.next(), nil
}

func (p *parser) parseStatement() (*Statement, *ParseError) {
	switch p.peek().Kind {
	case TokenSelect:
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}

		return &Statement{Select: sel}, nil
	case TokenUpdate:
		upd, err := p.parseUpdate()
		if err != nil {
			return nil, err
		}

		return &Statement{Update: upd}, nil
	default:
		return nil, p.errorf("query must start with SELECT or UPDATE")
	}
}

func (p *parser) parseSelect() (*SelectStatement, *ParseError) {
	if _, err := p.expect(TokenSelect); err != nil {
		return nil, err
	}

	sel, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenFrom); err != nil {
		return nil, err
	}

	form, err := p.parseFormRef()
	if err != nil {
		return nil, err
	}

	stmt := &SelectStatement{Select: *sel, From: form}

	if p.peek().Kind == TokenWhere {
		p.next()

		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}

		stmt.Where = where
	}

	return stmt, nil
}

// parseSelectList accumulates projection items until FROM.
func (p *parser) parseSelectList() (*SelectClause, *ParseError) {
	clause := &SelectClause{}

	if p.peek().Kind == TokenStar {
		p.next()
		clause.Star = true

		return clause, nil
	}

	for {
		if err := p.parseSelectItem(clause); err != nil {
			return nil, err
		}

		if p.peek().Kind != TokenComma {
			break
		}

		p.next()
	}

	if len(clause.Columns) == 0 && len(clause.Aggregates) == 0 {
		return nil, p.errorf("select list is empty")
	}

	return clause, nil
}

func (p *parser) parseSelectItem(clause *SelectClause) *ParseError {
	tok := p.peek()

	switch tok.Kind {
	case TokenAggFunc:
		agg, err := p.parseAggregate()
		if err != nil {
			return err
		}

		clause.Aggregates = append(clause.Aggregates, *agg)

		return nil
	case TokenField, TokenFieldRef, TokenWord:
		col, err := p.parseColumnRef()
		if err != nil {
			return err
		}

		clause.Columns = append(clause.Columns, *col)

		return nil
	default:
		if p.atEnd() {
			return p.errorf("expected a projection item, found end of input")
		}

		return p.errorf("expected a projection item, found %q", tok.Text)
	}
}

// parseAggregate parses FUNC(column) or COUNT(*).
func (p *parser) parseAggregate() (*AggregateCall, *ParseError) {
	fn := p.next()

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	call := &AggregateCall{Func: AggFunc(fn.Text), Pos: fn.Pos}

	if p.peek().Kind == TokenStar {
		if call.Func != AggCount {
			return nil, p.errorf("* is only valid as an argument to COUNT")
		}

		p.next()
		call.Star = true
	} else {
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}

		call.Column = col
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	return call, nil
}

// parseColumnRef parses FIELD("<id>"), a bare quoted identifier, or a
// pseudo-column word.
func (p *parser) parseColumnRef() (*ColumnRef, *ParseError) {
	tok := p.peek()

	switch tok.Kind {
	case TokenField:
		p.next()

		if _, err := p.expect(TokenLParen); err != nil {
			return nil, err
		}

		id, err := p.parseFieldID()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}

		return &ColumnRef{Name: id.Text, Pos: tok.Pos}, nil
	case TokenFieldRef:
		p.next()

		return &ColumnRef{Name: tok.Text, Pos: tok.Pos}, nil
	case TokenWord:
		if !IsPseudoColumn(tok.Text) {
			return nil, p.errorf("unrecognized identifier %q", tok.Text)
		}

		p.next()

		return &ColumnRef{Name: tok.Text, Pseudo: true, Pos: tok.Pos}, nil
	default:
		if p.atEnd() {
			return nil, p.errorf("expected a field reference, found end of input")
		}

		return nil, p.errorf("expected a field reference, found %q", tok.Text)
	}
}

// parseFieldID consumes the quoted identifier inside FIELD(...). The quoted
// span may have been lexed as a field reference (UUID shaped) or as a plain
// string; both carry the identifier as their text.
func (p *parser) parseFieldID() (Token, *ParseError) {
	tok := p.peek()

	if tok.Kind != TokenFieldRef && tok.Kind != TokenString {
		if p.atEnd() {
			return Token{}, p.errorf("expected a quoted field identifier, found end of input")
		}

		return Token{}, p.errorf("expected a quoted field identifier, found %q", tok.Text)
	}

	return p.next(), nil
}

// parseFormRef consumes the quoted form identifier after FROM or FORM.
func (p *parser) parseFormRef() (ColumnRef, *ParseError) {
	tok := p.peek()

	if tok.Kind != TokenFormRef && tok.Kind != TokenString {
		if p.atEnd() {
			return ColumnRef{}, p.errorf("expected a quoted form identifier, found end of input")
		}

		return ColumnRef{}, p.errorf("expected a quoted form identifier, found %q", tok.Text)
	}

	p.next()

	return ColumnRef{Name: tok.Text, Pos: tok.Pos}, nil
}

// parseWhere parses `column op value` conditions joined by AND/OR until the
// next token is not a connector.
func (p *parser) parseWhere() (*WhereClause, *ParseError) {
	where := &WhereClause{}

	for {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}

		where.Conditions = append(where.Conditions, *cond)

		switch p.peek().Kind {
		case TokenAnd:
			p.next()
			where.Connectors = append(where.Connectors, ConnAnd)
		case TokenOr:
			p.next()
			where.Connectors = append(where.Connectors, ConnOr)
		default:
			return where, nil
		}
	}
}

func (p *parser) parseCondition() (*Condition, *ParseError) {
	col, err := p.parseColumnRef()
	if err != nil {
		return nil, err
	}

	op, err := p.expect(TokenOperator)
	if err != nil {
		return nil, err
	}

	val, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &Condition{Column: *col, Operator: normalizeOperator(op.Text), Value: *val}, nil
}

func (p *parser) parseLiteral() (*Literal, *ParseError) {
	tok := p.peek()

	switch tok.Kind {
	case TokenString:
		p.next()

		return &Literal{Text: tok.Text, Pos: tok.Pos}, nil
	case TokenNumber:
		p.next()

		return &Literal{Text: tok.Text, Numeric: true, Pos: tok.Pos}, nil
	default:
		if p.atEnd() {
			return nil, p.errorf("expected a literal value, found end of input")
		}

		return nil, p.errorf("expected a literal value, found %q", tok.Text)
	}
}

// normalizeOperator folds the <> spelling into !=.
func normalizeOperator(op string) string {
	if op == "<>" {
		return "!="
	}

	return op
}

// parseUpdate parses the single-key update dialect:
// UPDATE FORM '<form>' SET FIELD('<field>') = <expr> WHERE submission_id = '<row>'
func (p *parser) parseUpdate() (*UpdateStatement, *ParseError) {
	if _, err := p.expect(TokenUpdate); err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenForm); err != nil {
		return nil, err
	}

	form, err := p.parseFormRef()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenSet); err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenField); err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	field, err := p.parseFieldID()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	eq, err := p.expect(TokenOperator)
	if err != nil {
		return nil, err
	}

	if eq.Text != "=" {
		return nil, &ParseError{Kind: ErrSyntax, Message: "expected = in SET assignment", Pos: eq.Pos}
	}

	value, perr := p.parseValueExpr()
	if perr != nil {
		return nil, perr
	}

	if _, err := p.expect(TokenWhere); err != nil {
		return nil, err
	}

	rowCol := p.peek()
	if rowCol.Kind != TokenWord || rowCol.Text != PseudoSubmissionID {
		return nil, p.errorf("UPDATE requires a WHERE %s = '<row>' clause", PseudoSubmissionID)
	}

	p.next()

	eq, err = p.expect(TokenOperator)
	if err != nil {
		return nil, err
	}

	if eq.Text != "=" {
		return nil, &ParseError{Kind: ErrSyntax, Message: "row filter must use =", Pos: eq.Pos}
	}

	row := p.peek()
	if row.Kind != TokenString && row.Kind != TokenFieldRef {
		return nil, p.errorf("expected a quoted submission identifier")
	}

	p.next()

	return &UpdateStatement{
		FormID:       form.Name,
		FieldID:      field.Text,
		Value:        *value,
		SubmissionID: row.Text,
	}, nil
}

// parseValueExpr parses the assignment expression: a literal, FIELD(...), or
// a string function over a nested expression.
func (p *parser) parseValueExpr() (*ValueExpr, *ParseError) {
	tok := p.peek()

	switch tok.Kind {
	case TokenString, TokenNumber:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}

		return &ValueExpr{Literal: lit}, nil
	case TokenField:
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}

		return &ValueExpr{Field: col}, nil
	case TokenFieldRef:
		p.next()

		return &ValueExpr{Field: &ColumnRef{Name: tok.Text, Pos: tok.Pos}}, nil
	case TokenStrFunc:
		fn, err := p.parseFuncCall()
		if err != nil {
			return nil, err
		}

		return &ValueExpr{Func: fn}, nil
	default:
		if p.atEnd() {
			return nil, p.errorf("expected an expression, found end of input")
		}

		return nil, p.errorf("expected an expression, found %q", tok.Text)
	}
}

func (p *parser) parseFuncCall() (*FuncCall, *ParseError) {
	fn := p.next()

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	arg, err := p.parseValueExpr()
	if err != nil {
		return nil, err
	}

	call := &FuncCall{Name: fn.Text, Arg: arg, Pos: fn.Pos}

	// LEFT and RIGHT take a required length argument.
	if fn.Text == "LEFT" || fn.Text == "RIGHT" {
		if _, err := p.expect(TokenComma); err != nil {
			return nil, err
		}

		length, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}

		if !length.Numeric {
			return nil, &ParseError{
				Kind:    ErrSyntax,
				Message: fmt.Sprintf("%s length must be numeric", fn.Text),
				Pos:     length.Pos,
			}
		}

		call.Length = length
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	return call, nil
}
