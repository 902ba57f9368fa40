// Package resolve implements the static resolver: a single pass over the
// AST that computes the lexical distance of every variable reference and
// enforces scoping rules ahead of evaluation.
package resolve

import (
	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
)

type functionType int

const (
	functionTypeNone functionType = iota
	functionTypeFunction
	functionTypeInitializer
	functionTypeMethod
)

type classType int

const (
	classTypeNone classType = iota
	classTypeClass
	classTypeSubclass
)

// variableState is the tri-state lifecycle of a local binding inside a
// scope: declared, then defined, then (optionally) read.
type variableState int

const (
	stateDeclared variableState = iota
	stateDefined
	stateRead
)

type scopeVar struct {
	token ast.Token
	state variableState
}

type scope map[string]*scopeVar

// Interpreter is the subset of interpret.Interpreter the resolver talks to:
// it records the computed depth for each resolved expression.
type Interpreter interface {
	Resolve(expr ast.Expr, depth int)
}

// Resolver walks a statement list, populating the interpreter's resolution
// map and reporting static errors and unused-local warnings to its sink.
type Resolver struct {
	interpreter     Interpreter
	scopes          []scope
	currentFunction functionType
	currentClass    classType
	sink            *diag.Sink
}

// New returns a Resolver reporting to sink and recording depths on
// interpreter.
func New(interpreter Interpreter, sink *diag.Sink) *Resolver {
	return &Resolver{interpreter: interpreter, sink: sink}
}

// ResolveStmts resolves a top-level statement list. Globals are never
// pushed onto the scope stack, so this can be called repeatedly across REPL
// turns without leaking scope state between calls.
func (r *Resolver) ResolveStmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		r.resolveStmt(stmt)
	}
}

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		r.beginScope()
		r.ResolveStmts(s.Statements)
		r.endScope()
	case *ast.BreakStmt:
	case *ast.ClassStmt:
		r.resolveClassStmt(s)
	case *ast.ContinueStmt:
	case *ast.EchoStmt:
		r.resolveExpr(s.Expression)
	case *ast.ExpressionStmt:
		r.resolveExpr(s.Expression)
	case *ast.FunctionStmt:
		r.declare(s.Name)
		r.define(s.Name)
		r.resolveFunction(s.Params, s.Body, functionTypeFunction)
	case *ast.IfStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.ThenBranch)
		if s.ElseBranch != nil {
			r.resolveStmt(s.ElseBranch)
		}
	case *ast.LetStmt:
		r.declare(s.Name)
		if s.Initializer != nil {
			r.resolveExpr(s.Initializer)
		}
		r.define(s.Name)
	case *ast.ReturnStmt:
		r.resolveReturnStmt(s)
	case *ast.WhileStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Body)
		if s.Increment != nil {
			r.resolveStmt(s.Increment)
		}
	default:
		panic("resolve: unknown statement type")
	}
}

func (r *Resolver) resolveReturnStmt(s *ast.ReturnStmt) {
	if r.currentFunction == functionTypeNone {
		r.error(s.Keyword, "Can't return from top-level code.")
	}
	if s.Value != nil {
		if r.currentFunction == functionTypeInitializer {
			r.error(s.Keyword, "Can't return a value from an initializer.")
		}
		r.resolveExpr(s.Value)
	}
}

func (r *Resolver) resolveClassStmt(s *ast.ClassStmt) {
	r.declare(s.Name)
	r.define(s.Name)

	enclosingClass := r.currentClass
	r.currentClass = classTypeClass

	if s.Superclass != nil {
		if s.Superclass.Name.Lexeme == s.Name.Lexeme {
			r.error(s.Superclass.Name, "A class cannot inherit from itself.")
		}
		r.currentClass = classTypeSubclass
		r.resolveExpr(s.Superclass)

		r.beginScope()
		r.scopes[len(r.scopes)-1]["super"] = &scopeVar{state: stateRead}
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = &scopeVar{state: stateRead}

	for _, method := range s.Methods {
		fnType := functionTypeMethod
		if method.Name.Lexeme == "init" {
			fnType = functionTypeInitializer
		}
		r.resolveFunction(method.Params, method.Body, fnType)
	}

	r.endScope()

	if s.Superclass != nil {
		r.endScope()
	}

	r.currentClass = enclosingClass
}

// resolveFunctionExpr resolves an anonymous function expression. When it
// carries a self-reference name (`fn fact(n) { ... fact(n-1) ... }`), that
// name is declared in its own scope enclosing the parameter scope, mirroring
// the extra closure scope evaluateFunctionExpr defines it in at runtime.
// Without this, a self-reference inside the body would resolve as global
// and fail at runtime with an undefined-variable error.
func (r *Resolver) resolveFunctionExpr(e *ast.FunctionExpr) {
	if e.Name == nil {
		r.resolveFunction(e.Params, e.Body, functionTypeFunction)
		return
	}

	r.beginScope()
	r.declare(*e.Name)
	r.define(*e.Name)
	r.resolveFunction(e.Params, e.Body, functionTypeFunction)
	r.endScope()
}

func (r *Resolver) resolveFunction(params []ast.Token, body []ast.Stmt, fnType functionType) {
	enclosingFunction := r.currentFunction
	r.currentFunction = fnType

	r.beginScope()
	for _, param := range params {
		r.declare(param)
		r.define(param)
	}
	r.ResolveStmts(body)
	r.endScope()

	r.currentFunction = enclosingFunction
}

func (r *Resolver) resolveExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		r.resolveExpr(e.Value)
		r.resolveLocal(e, e.Name, false)
	case *ast.BinaryExpr:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.CallExpr:
		r.resolveExpr(e.Callee)
		for _, arg := range e.Arguments {
			r.resolveExpr(arg)
		}
	case *ast.ConditionalExpr:
		r.resolveExpr(e.Cond)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)
	case *ast.FunctionExpr:
		r.resolveFunctionExpr(e)
	case *ast.GetExpr:
		r.resolveExpr(e.Object)
	case *ast.GroupingExpr:
		r.resolveExpr(e.Expression)
	case *ast.LiteralExpr:
	case *ast.LogicalExpr:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.SetExpr:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Object)
	case *ast.SuperExpr:
		r.resolveSuperExpr(e)
	case *ast.ThisExpr:
		if r.currentClass == classTypeNone {
			r.error(e.Keyword, "Can't use 'this' outside of a class.")
			return
		}
		r.resolveLocal(e, e.Keyword, true)
	case *ast.UnaryExpr:
		r.resolveExpr(e.Right)
	case *ast.VariableExpr:
		r.resolveVariableExpr(e)
	default:
		panic("resolve: unknown expression type")
	}
}

func (r *Resolver) resolveSuperExpr(e *ast.SuperExpr) {
	switch r.currentClass {
	case classTypeNone:
		r.error(e.Keyword, "Can't use 'super' outside of a class.")
	case classTypeClass:
		r.error(e.Keyword, "Can't use 'super' in a class with no superclass.")
	}
	r.resolveLocal(e, e.Keyword, true)
}

func (r *Resolver) resolveVariableExpr(e *ast.VariableExpr) {
	if len(r.scopes) > 0 {
		if v, ok := r.scopes[len(r.scopes)-1][e.Name.Lexeme]; ok && v.state == stateDeclared {
			r.error(e.Name, "Cannot read local variable in its own initializer.")
		}
	}
	r.resolveLocal(e, e.Name, true)
}

// resolveLocal walks the scope stack from innermost outward; at the first
// match it records the depth on the interpreter. No match means the name is
// assumed global and no map entry is recorded. markRead controls whether a
// match promotes the slot to stateRead: a read does, an Assign does not.
func (r *Resolver) resolveLocal(expr ast.Expr, name ast.Token, markRead bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name.Lexeme]; ok {
			r.interpreter.Resolve(expr, len(r.scopes)-1-i)
			if markRead {
				v.state = stateRead
			}
			return
		}
	}
}

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, scope{})
}

func (r *Resolver) endScope() {
	top := r.scopes[len(r.scopes)-1]
	for _, v := range top {
		if v.state == stateDefined {
			r.warning(v.token, "Local variable is defined but never used.")
		}
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) declare(name ast.Token) {
	if len(r.scopes) == 0 {
		return
	}
	top := r.scopes[len(r.scopes)-1]
	if _, ok := top[name.Lexeme]; ok {
		r.error(name, "Variable with this name already declared in this scope.")
	}
	top[name.Lexeme] = &scopeVar{token: name, state: stateDeclared}
}

func (r *Resolver) define(name ast.Token) {
	if len(r.scopes) == 0 {
		return
	}
	if v, ok := r.scopes[len(r.scopes)-1][name.Lexeme]; ok {
		v.state = stateDefined
	}
}

func (r *Resolver) error(token ast.Token, message string) {
	if r.sink != nil {
		r.sink.TokenError(token, message)
	}
}

func (r *Resolver) warning(token ast.Token, message string) {
	if r.sink != nil {
		r.sink.Warning(token, message)
	}
}
