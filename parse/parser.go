// Package parse implements the recursive-descent parser: a token vector to
// a statement list, with panic-mode error recovery.
//
// Grammar:
//
//	program     → declaration* EOF
//	declaration → classDecl | fnDecl | letDecl | statement
//	classDecl   → "class" IDENT ("<" IDENT)? "{" function* "}"
//	fnDecl      → "fn" function
//	function    → IDENT "(" params? ")" block
//	letDecl     → "let" IDENT ("=" expression)? ";"
//	statement   → exprStmt | forStmt | ifStmt | echoStmt
//	            | returnStmt | whileStmt | breakStmt | continueStmt | block
//	expression  → assignment
//	assignment  → (call ".")? IDENT "=" assignment | logic_or
//	logic_or    → logic_and ("or" logic_and)*
//	logic_and   → conditional ("and" conditional)*
//	conditional → equality ("?" expression ":" conditional)?
//	equality    → comparison (("!=" | "==") comparison)*
//	comparison  → term ((">"|">="|"<"|"<=") term)*
//	term        → factor (("-"|"+") factor)*
//	factor      → unary (("/"|"*") unary)*
//	unary       → ("!"|"-") unary | call
//	call        → primary ("(" args? ")" | "." IDENT)*
//	primary     → "true" | "false" | "nil" | "this"
//	            | NUMBER | STRING | IDENT | "(" expression ")"
//	            | "super" "." IDENT | "fn" functionBody
package parse

import (
	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
)

const maxArgs = 255

// parseError unwinds the recursive descent to the nearest statement
// boundary. It is caught by declarationRecovering, which both the top-level
// loop and block parsing use, and by ParseExpression.
type parseError struct{}

// Parser parses a token slice into a statement list, reporting syntax
// errors to sink as it goes.
type Parser struct {
	tokens  []ast.Token
	current int
	sink    *diag.Sink
}

// New returns a Parser over tokens, reporting to sink.
func New(tokens []ast.Token, sink *diag.Sink) *Parser {
	return &Parser{tokens: tokens, sink: sink}
}

// Parse consumes the whole token stream and returns the resulting
// statement list. Errors are reported via the sink; callers should check
// sink.HadError before passing the result to the resolver.
func (p *Parser) Parse() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if stmt := p.declarationRecovering(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ParseExpression parses a single standalone expression, for the REPL's
// `.expr` command. Returns nil on a syntax error.
func (p *Parser) ParseExpression() (expr ast.Expr) {
	defer func() {
		if recover() != nil {
			expr = nil
		}
	}()
	return p.expression()
}

func (p *Parser) declarationRecovering() ast.Stmt {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseError); ok {
				p.synchronize()
				return
			}
			panic(r)
		}
	}()
	return p.declaration()
}

func (p *Parser) declaration() ast.Stmt {
	switch {
	case p.match(ast.TokenClass):
		return p.classDeclaration()
	case p.check(ast.TokenFn) && p.current+1 < len(p.tokens) &&
		p.tokens[p.current+1].TokenType == ast.TokenIdentifier:
		p.advance()
		return p.function("function")
	case p.match(ast.TokenLet):
		return p.letDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) classDeclaration() ast.Stmt {
	name := p.consume(ast.TokenIdentifier, "Expect class name.")

	var superclass *ast.VariableExpr
	if p.match(ast.TokenLess) {
		p.consume(ast.TokenIdentifier, "Expect superclass name.")
		superclass = &ast.VariableExpr{Name: p.previous()}
	}

	p.consume(ast.TokenLeftBrace, "Expect '{' before class body.")

	var methods []*ast.FunctionStmt
	for !p.check(ast.TokenRightBrace) && !p.isAtEnd() {
		methods = append(methods, p.function("method").(*ast.FunctionStmt))
	}

	p.consume(ast.TokenRightBrace, "Expect '}' after class body.")

	return &ast.ClassStmt{Name: name, Superclass: superclass, Methods: methods}
}

// function parses `IDENT "(" params? ")" block`, shared by fnDecl and
// method declarations inside a class body.
func (p *Parser) function(kind string) ast.Stmt {
	name := p.consume(ast.TokenIdentifier, "Expect "+kind+" name.")
	params, body := p.functionRest(kind)
	return &ast.FunctionStmt{Name: name, Params: params, Body: body}
}

func (p *Parser) functionRest(kind string) ([]ast.Token, []ast.Stmt) {
	p.consume(ast.TokenLeftParen, "Expect '(' after "+kind+" name.")

	var params []ast.Token
	if !p.check(ast.TokenRightParen) {
		for {
			if len(params) >= maxArgs {
				p.error(p.peek(), "Can't have more than 255 parameters.")
			}
			params = append(params, p.consume(ast.TokenIdentifier, "Expect parameter name."))
			if !p.match(ast.TokenComma) {
				break
			}
		}
	}
	p.consume(ast.TokenRightParen, "Expect ')' after parameters.")

	p.consume(ast.TokenLeftBrace, "Expect '{' before "+kind+" body.")
	body := p.block()

	return params, body
}

func (p *Parser) letDeclaration() ast.Stmt {
	name := p.consume(ast.TokenIdentifier, "Expect variable name.")

	var initializer ast.Expr
	if p.match(ast.TokenEqual) {
		initializer = p.expression()
	}

	p.consume(ast.TokenSemicolon, "Expect ';' after variable declaration.")
	return &ast.LetStmt{Name: name, Initializer: initializer}
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(ast.TokenFor):
		return p.forStatement()
	case p.match(ast.TokenIf):
		return p.ifStatement()
	case p.match(ast.TokenEcho):
		return p.echoStatement()
	case p.match(ast.TokenReturn):
		return p.returnStatement()
	case p.match(ast.TokenWhile):
		return p.whileStatement()
	case p.match(ast.TokenBreak):
		return p.breakStatement()
	case p.match(ast.TokenContinue):
		return p.continueStatement()
	case p.match(ast.TokenLeftBrace):
		return &ast.BlockStmt{Statements: p.block()}
	default:
		return p.expressionStatement()
	}
}

// forStatement desugars `for (init; cond; incr) body` into
// `{ init; while (cond) body Increment: incr }` at parse time. A missing
// condition becomes the literal `true`; a missing initializer or increment
// is simply elided. The increment is kept as its own field on the resulting
// WhileStmt rather than appended to body in a block, so that a `continue`
// inside body still lets the increment run before the next condition check.
func (p *Parser) forStatement() ast.Stmt {
	p.consume(ast.TokenLeftParen, "Expect '(' after 'for'.")

	var initializer ast.Stmt
	switch {
	case p.match(ast.TokenSemicolon):
		initializer = nil
	case p.match(ast.TokenLet):
		initializer = p.letDeclaration()
	default:
		initializer = p.expressionStatement()
	}

	var condition ast.Expr
	if !p.check(ast.TokenSemicolon) {
		condition = p.expression()
	}
	p.consume(ast.TokenSemicolon, "Expect ';' after loop condition.")

	var increment ast.Expr
	if !p.check(ast.TokenRightParen) {
		increment = p.expression()
	}
	p.consume(ast.TokenRightParen, "Expect ')' after for clauses.")

	body := p.statement()

	var incrementStmt ast.Stmt
	if increment != nil {
		incrementStmt = &ast.ExpressionStmt{Expression: increment}
	}

	if condition == nil {
		condition = &ast.LiteralExpr{Value: true}
	}
	loop := ast.Stmt(&ast.WhileStmt{Condition: condition, Body: body, Increment: incrementStmt})

	if initializer != nil {
		loop = &ast.BlockStmt{Statements: []ast.Stmt{initializer, loop}}
	}

	return loop
}

func (p *Parser) ifStatement() ast.Stmt {
	p.consume(ast.TokenLeftParen, "Expect '(' after 'if'.")
	condition := p.expression()
	p.consume(ast.TokenRightParen, "Expect ')' after if condition.")

	thenBranch := p.statement()
	var elseBranch ast.Stmt
	if p.match(ast.TokenElse) {
		elseBranch = p.statement()
	}

	return &ast.IfStmt{Condition: condition, ThenBranch: thenBranch, ElseBranch: elseBranch}
}

func (p *Parser) echoStatement() ast.Stmt {
	value := p.expression()
	p.consume(ast.TokenSemicolon, "Expect ';' after value.")
	return &ast.EchoStmt{Expression: value}
}

func (p *Parser) returnStatement() ast.Stmt {
	keyword := p.previous()

	var value ast.Expr
	if !p.check(ast.TokenSemicolon) {
		value = p.expression()
	}

	p.consume(ast.TokenSemicolon, "Expect ';' after return value.")
	return &ast.ReturnStmt{Keyword: keyword, Value: value}
}

func (p *Parser) whileStatement() ast.Stmt {
	p.consume(ast.TokenLeftParen, "Expect '(' after 'while'.")
	condition := p.expression()
	p.consume(ast.TokenRightParen, "Expect ')' after condition.")
	body := p.statement()

	return &ast.WhileStmt{Condition: condition, Body: body}
}

func (p *Parser) breakStatement() ast.Stmt {
	keyword := p.previous()
	p.consume(ast.TokenSemicolon, "Expect ';' after 'break'.")
	return &ast.BreakStmt{Keyword: keyword}
}

func (p *Parser) continueStatement() ast.Stmt {
	keyword := p.previous()
	p.consume(ast.TokenSemicolon, "Expect ';' after 'continue'.")
	return &ast.ContinueStmt{Keyword: keyword}
}

func (p *Parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(ast.TokenRightBrace) && !p.isAtEnd() {
		if stmt := p.declarationRecovering(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.consume(ast.TokenRightBrace, "Expect '}' after block.")
	return stmts
}

func (p *Parser) expressionStatement() ast.Stmt {
	expr := p.expression()
	p.consume(ast.TokenSemicolon, "Expect ';' after expression.")
	return &ast.ExpressionStmt{Expression: expr}
}

func (p *Parser) expression() ast.Expr {
	return p.assignment()
}

// assignment parses the left side as an rvalue, then rewrites it to an
// Assign/Set node if followed by `=`. Anything else on the left of `=`
// reports "Invalid assignment target." without throwing, so parsing
// continues.
func (p *Parser) assignment() ast.Expr {
	expr := p.or()

	if p.match(ast.TokenEqual) {
		equals := p.previous()
		value := p.assignment()

		switch e := expr.(type) {
		case *ast.VariableExpr:
			return &ast.AssignExpr{Name: e.Name, Value: value}
		case *ast.GetExpr:
			return &ast.SetExpr{Object: e.Object, Name: e.Name, Value: value}
		default:
			p.error(equals, "Invalid assignment target.")
		}
	}

	return expr
}

func (p *Parser) or() ast.Expr {
	expr := p.and()
	for p.match(ast.TokenOr) {
		operator := p.previous()
		right := p.and()
		expr = &ast.LogicalExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (p *Parser) and() ast.Expr {
	expr := p.conditional()
	for p.match(ast.TokenAnd) {
		operator := p.previous()
		right := p.conditional()
		expr = &ast.LogicalExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

// conditional is the ternary `?:`, right-associative, sitting between
// logical-and and equality: `equality ("?" expression ":" conditional)?`.
func (p *Parser) conditional() ast.Expr {
	expr := p.equality()
	if p.match(ast.TokenQuestionMark) {
		then := p.expression()
		p.consume(ast.TokenColon, "Expect ':' after then branch of conditional expression.")
		elseBranch := p.conditional()
		expr = &ast.ConditionalExpr{Cond: expr, Then: then, Else: elseBranch}
	}
	return expr
}

func (p *Parser) equality() ast.Expr {
	expr := p.comparison()
	for p.match(ast.TokenBangEqual, ast.TokenEqualEqual) {
		operator := p.previous()
		right := p.comparison()
		expr = &ast.BinaryExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (p *Parser) comparison() ast.Expr {
	expr := p.term()
	for p.match(ast.TokenGreater, ast.TokenGreaterEqual, ast.TokenLess, ast.TokenLessEqual) {
		operator := p.previous()
		right := p.term()
		expr = &ast.BinaryExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (p *Parser) term() ast.Expr {
	expr := p.factor()
	for p.match(ast.TokenMinus, ast.TokenPlus) {
		operator := p.previous()
		right := p.factor()
		expr = &ast.BinaryExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (p *Parser) factor() ast.Expr {
	expr := p.unary()
	for p.match(ast.TokenSlash, ast.TokenStar) {
		operator := p.previous()
		right := p.unary()
		expr = &ast.BinaryExpr{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (p *Parser) unary() ast.Expr {
	if p.match(ast.TokenBang, ast.TokenMinus) {
		operator := p.previous()
		right := p.unary()
		return &ast.UnaryExpr{Operator: operator, Right: right}
	}
	return p.call()
}

// call parses a left-associative chain of invocations and property
// accesses: `primary ("(" args? ")" | "." IDENT)*`.
func (p *Parser) call() ast.Expr {
	expr := p.primary()

	for {
		switch {
		case p.match(ast.TokenLeftParen):
			expr = p.finishCall(expr)
		case p.match(ast.TokenDot):
			name := p.consume(ast.TokenIdentifier, "Expect property name after '.'.")
			expr = &ast.GetExpr{Object: expr, Name: name}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	var args []ast.Expr
	if !p.check(ast.TokenRightParen) {
		for {
			if len(args) >= maxArgs {
				p.error(p.peek(), "Can't have more than 255 arguments.")
			}
			args = append(args, p.expression())
			if !p.match(ast.TokenComma) {
				break
			}
		}
	}

	paren := p.consume(ast.TokenRightParen, "Expect ')' after arguments.")
	return &ast.CallExpr{Callee: callee, Paren: paren, Arguments: args}
}

// primary treats `fn` as a function expression. At the start of a
// declaration, `fn` followed by an identifier has already been taken as a
// function declaration by declaration()'s one-token lookahead; a `fn`
// reaching here may still carry a name, making a self-referencing named
// function expression.
func (p *Parser) primary() ast.Expr {
	switch {
	case p.match(ast.TokenFalse):
		return &ast.LiteralExpr{Value: false}
	case p.match(ast.TokenTrue):
		return &ast.LiteralExpr{Value: true}
	case p.match(ast.TokenNil):
		return &ast.LiteralExpr{Value: nil}
	case p.match(ast.TokenNumber, ast.TokenString):
		return &ast.LiteralExpr{Value: p.previous().Literal}
	case p.match(ast.TokenSuper):
		keyword := p.previous()
		p.consume(ast.TokenDot, "Expect '.' after 'super'.")
		method := p.consume(ast.TokenIdentifier, "Expect superclass method name.")
		return &ast.SuperExpr{Keyword: keyword, Method: method}
	case p.match(ast.TokenThis):
		return &ast.ThisExpr{Keyword: p.previous()}
	case p.match(ast.TokenIdentifier):
		return &ast.VariableExpr{Name: p.previous()}
	case p.match(ast.TokenLeftParen):
		expr := p.expression()
		p.consume(ast.TokenRightParen, "Expect ')' after expression.")
		return &ast.GroupingExpr{Expression: expr}
	case p.match(ast.TokenFn):
		return p.functionExpression()
	}

	panic(p.error(p.peek(), "Expect expression."))
}

func (p *Parser) functionExpression() ast.Expr {
	var name *ast.Token
	if p.check(ast.TokenIdentifier) {
		n := p.advance()
		name = &n
	}
	params, body := p.functionRest("function")
	return &ast.FunctionExpr{Name: name, Params: params, Body: body}
}

func (p *Parser) synchronize() {
	p.advance()

	for !p.isAtEnd() {
		if p.previous().TokenType == ast.TokenSemicolon {
			return
		}

		switch p.peek().TokenType {
		case ast.TokenClass, ast.TokenEcho, ast.TokenFn, ast.TokenFor,
			ast.TokenIf, ast.TokenLet, ast.TokenWhile, ast.TokenReturn:
			return
		}

		p.advance()
	}
}

func (p *Parser) match(types ...ast.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(t ast.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().TokenType == t
}

func (p *Parser) advance() ast.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.peek().TokenType == ast.TokenEof
}

func (p *Parser) peek() ast.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() ast.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) consume(t ast.TokenType, message string) ast.Token {
	if p.check(t) {
		return p.advance()
	}
	panic(p.error(p.peek(), message))
}

func (p *Parser) error(token ast.Token, message string) parseError {
	if p.sink != nil {
		p.sink.TokenError(token, message)
	}
	return parseError{}
}
