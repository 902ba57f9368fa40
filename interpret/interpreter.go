// Package interpret implements the tree-walking evaluator: lexically
// scoped environments, first-class closures, single-inheritance classes
// with method binding, and structured non-local control flow for `return`,
// `break`, and `continue` via an explicit signal rather than panic/recover.
package interpret

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
	"github.com/lox-lang/lox/env"
)

type controlKind int

const (
	controlNone controlKind = iota
	controlReturn
	controlBreak
	controlContinue
)

// control is the explicit signal statement execution returns in place of
// the panic-based return/break/continue used by exception-flavored ports.
// A *diag.RuntimeError is returned alongside it as a normal Go error,
// distinct from this value, exactly where the two can occur together only
// at the boundary (they never do in well-formed programs, since hitting an
// error stops evaluation of the statement that would have produced a
// control value).
type control struct {
	kind  controlKind
	value any
}

var none = control{kind: controlNone}

// controlEscapeError converts a break/continue signal that reached a
// function-call boundary without being caught by an enclosing while loop
// into the runtime error the language specifies for that case. A `return`
// signal is not an error here, since that's exactly what a function call
// boundary is for.
func controlEscapeError(ctrl control) *diag.RuntimeError {
	keyword, _ := ctrl.value.(ast.Token)
	switch ctrl.kind {
	case controlBreak:
		return diag.NewRuntimeError(keyword, "Break statement used outside of loop.")
	case controlContinue:
		return diag.NewRuntimeError(keyword, "Continue statement used outside of loop.")
	}
	return nil
}

// Interpreter holds the globals and current execution environment for a
// program, persisting across REPL turns so that bindings, resolved
// references, and class/function definitions survive between inputs.
type Interpreter struct {
	environment *env.Environment
	globals     *env.Environment
	stdOut      io.Writer
	// locals maps expression identity (pointer identity, since every Expr
	// node is used behind a pointer) to the scope depth the resolver
	// computed for it. Absence means "global".
	locals map[ast.Expr]int
}

// New returns an Interpreter writing echo/display output to stdOut, with
// the three native functions and the PI global already bound.
func New(stdOut io.Writer) *Interpreter {
	globals := env.New(nil)
	in := &Interpreter{
		environment: globals,
		globals:     globals,
		stdOut:      stdOut,
		locals:      make(map[ast.Expr]int),
	}
	in.defineNatives()
	return in
}

func (in *Interpreter) defineNatives() {
	in.globals.Define("PI", math.Pi)

	in.globals.Define("clock", &NativeFunction{FnName: "clock", FnAr: 0, Fn: func(*Interpreter, ast.Token, []any) (any, *diag.RuntimeError) {
		return float64(time.Now().UnixMilli()), nil
	}})

	in.globals.Define("len", &NativeFunction{FnName: "len", FnAr: 1, Fn: func(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError) {
		s, ok := args[0].(string)
		if !ok {
			return nil, diag.NewRuntimeError(callToken, "len() requires a string argument.")
		}
		return float64(len([]rune(s))), nil
	}})

	in.globals.Define("type", &NativeFunction{FnName: "type", FnAr: 1, Fn: func(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError) {
		return typeName(args[0]), nil
	}})
}

// Resolve records the scope depth the resolver computed for expr.
func (in *Interpreter) Resolve(expr ast.Expr, depth int) {
	in.locals[expr] = depth
}

// Interpret executes a top-level statement list. A runtime error or break
// signal escaping a statement is caught here, reported, and execution
// continues with the next top-level statement. File mode abandons only the
// offending statement, not the rest of the program. An escaping `return`
// signal is a defect the grammar and resolver already make impossible in
// valid programs, so it is not specially handled here.
func (in *Interpreter) Interpret(stmts []ast.Stmt, sink *diag.Sink, replDisplay bool) {
	for _, stmt := range stmts {
		if es, ok := stmt.(*ast.ExpressionStmt); ok && replDisplay {
			value, err := in.evaluate(es.Expression)
			if err != nil {
				sink.RuntimeError(err)
				continue
			}
			_, _ = fmt.Fprintln(in.stdOut, stringify(value))
			continue
		}

		ctrl, err := in.execute(stmt)
		if err != nil {
			sink.RuntimeError(err)
			continue
		}
		if runtimeErr := controlEscapeError(ctrl); runtimeErr != nil {
			sink.RuntimeError(runtimeErr)
		}
	}
}

func (in *Interpreter) execute(stmt ast.Stmt) (control, *diag.RuntimeError) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return in.executeBlock(s.Statements, env.New(in.environment))
	case *ast.BreakStmt:
		return control{kind: controlBreak, value: s.Keyword}, nil
	case *ast.ClassStmt:
		return in.executeClassStmt(s)
	case *ast.ContinueStmt:
		return control{kind: controlContinue, value: s.Keyword}, nil
	case *ast.EchoStmt:
		value, err := in.evaluate(s.Expression)
		if err != nil {
			return none, err
		}
		_, _ = fmt.Fprintln(in.stdOut, stringify(value))
		return none, nil
	case *ast.ExpressionStmt:
		_, err := in.evaluate(s.Expression)
		return none, err
	case *ast.FunctionStmt:
		fn := &Function{Name: &s.Name, Params: s.Params, Body: s.Body, Closure: in.environment}
		in.environment.Define(s.Name.Lexeme, fn)
		return none, nil
	case *ast.IfStmt:
		return in.executeIfStmt(s)
	case *ast.LetStmt:
		var value any
		if s.Initializer != nil {
			v, err := in.evaluate(s.Initializer)
			if err != nil {
				return none, err
			}
			value = v
		}
		in.environment.Define(s.Name.Lexeme, value)
		return none, nil
	case *ast.ReturnStmt:
		var value any
		if s.Value != nil {
			v, err := in.evaluate(s.Value)
			if err != nil {
				return none, err
			}
			value = v
		}
		return control{kind: controlReturn, value: value}, nil
	case *ast.WhileStmt:
		return in.executeWhileStmt(s)
	default:
		panic("interpret: unknown statement type")
	}
}

func (in *Interpreter) executeIfStmt(s *ast.IfStmt) (control, *diag.RuntimeError) {
	cond, err := in.evaluate(s.Condition)
	if err != nil {
		return none, err
	}
	if isTruthy(cond) {
		return in.execute(s.ThenBranch)
	}
	if s.ElseBranch != nil {
		return in.execute(s.ElseBranch)
	}
	return none, nil
}

// executeWhileStmt loops until the condition is falsy, collapsing a
// `break` signal from the body into loop exit and a `continue` signal into
// the next iteration. Any other control value (a `return`) or error
// propagates straight out to the caller. Increment, when present (a
// desugared `for` loop's increment clause), runs after the body on every
// iteration that reaches the bottom of the loop, including one a
// `continue` cut short. It is a separate step rather than part of Body so
// that a `continue` inside Body can never skip it.
func (in *Interpreter) executeWhileStmt(s *ast.WhileStmt) (control, *diag.RuntimeError) {
	for {
		cond, err := in.evaluate(s.Condition)
		if err != nil {
			return none, err
		}
		if !isTruthy(cond) {
			return none, nil
		}

		ctrl, err := in.execute(s.Body)
		if err != nil {
			return none, err
		}
		switch ctrl.kind {
		case controlBreak:
			return none, nil
		case controlReturn:
			return ctrl, nil
		}

		if s.Increment != nil {
			if _, err := in.execute(s.Increment); err != nil {
				return none, err
			}
		}
	}
}

func (in *Interpreter) executeClassStmt(s *ast.ClassStmt) (control, *diag.RuntimeError) {
	var superclass *Class
	if s.Superclass != nil {
		superVal, err := in.evaluate(s.Superclass)
		if err != nil {
			return none, err
		}
		sc, ok := superVal.(*Class)
		if !ok {
			return none, diag.NewRuntimeError(s.Superclass.Name, "Superclass must be a class.")
		}
		superclass = sc
	}

	in.environment.Define(s.Name.Lexeme, nil)

	if superclass != nil {
		in.environment = env.New(in.environment)
		in.environment.Define("super", superclass)
	}

	methods := make(map[string]*Function, len(s.Methods))
	for _, method := range s.Methods {
		methods[method.Name.Lexeme] = &Function{
			Name:          &method.Name,
			Params:        method.Params,
			Body:          method.Body,
			Closure:       in.environment,
			IsInitializer: method.Name.Lexeme == "init",
		}
	}

	class := &Class{Name: s.Name.Lexeme, Methods: methods, Superclass: superclass}

	if superclass != nil {
		in.environment = in.environment.Enclosing
	}

	if err := in.environment.Assign(s.Name.Lexeme, class); err != nil {
		return none, diag.NewRuntimeError(s.Name, "Undefined variable '"+s.Name.Lexeme+"'.")
	}
	return none, nil
}

// executeBlock runs statements in env, restoring the previous environment
// on every exit path: normal completion, an escaping control signal, or a
// runtime error. This defer-based restore is the one resource with an
// RAII-like invariant in the whole evaluator.
func (in *Interpreter) executeBlock(statements []ast.Stmt, blockEnv *env.Environment) (control, *diag.RuntimeError) {
	previous := in.environment
	defer func() { in.environment = previous }()

	in.environment = blockEnv
	for _, stmt := range statements {
		ctrl, err := in.execute(stmt)
		if err != nil || ctrl.kind != controlNone {
			return ctrl, err
		}
	}
	return none, nil
}

func (in *Interpreter) evaluate(expr ast.Expr) (any, *diag.RuntimeError) {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		return in.evaluateAssignExpr(e)
	case *ast.BinaryExpr:
		return in.evaluateBinaryExpr(e)
	case *ast.CallExpr:
		return in.evaluateCallExpr(e)
	case *ast.ConditionalExpr:
		return in.evaluateConditionalExpr(e)
	case *ast.FunctionExpr:
		return in.evaluateFunctionExpr(e), nil
	case *ast.GetExpr:
		return in.evaluateGetExpr(e)
	case *ast.GroupingExpr:
		return in.evaluate(e.Expression)
	case *ast.LiteralExpr:
		return e.Value, nil
	case *ast.LogicalExpr:
		return in.evaluateLogicalExpr(e)
	case *ast.SetExpr:
		return in.evaluateSetExpr(e)
	case *ast.SuperExpr:
		return in.evaluateSuperExpr(e)
	case *ast.ThisExpr:
		return in.lookupVariable(e.Keyword, e)
	case *ast.UnaryExpr:
		return in.evaluateUnaryExpr(e)
	case *ast.VariableExpr:
		return in.lookupVariable(e.Name, e)
	default:
		panic("interpret: unknown expression type")
	}
}

func (in *Interpreter) evaluateAssignExpr(e *ast.AssignExpr) (any, *diag.RuntimeError) {
	value, err := in.evaluate(e.Value)
	if err != nil {
		return nil, err
	}

	if distance, ok := in.locals[e]; ok {
		in.environment.AssignAt(distance, e.Name.Lexeme, value)
	} else if assignErr := in.globals.Assign(e.Name.Lexeme, value); assignErr != nil {
		return nil, diag.NewRuntimeError(e.Name, "Undefined variable '"+e.Name.Lexeme+"'.")
	}

	return value, nil
}

func (in *Interpreter) evaluateConditionalExpr(e *ast.ConditionalExpr) (any, *diag.RuntimeError) {
	cond, err := in.evaluate(e.Cond)
	if err != nil {
		return nil, err
	}
	if isTruthy(cond) {
		return in.evaluate(e.Then)
	}
	return in.evaluate(e.Else)
}

func (in *Interpreter) evaluateLogicalExpr(e *ast.LogicalExpr) (any, *diag.RuntimeError) {
	left, err := in.evaluate(e.Left)
	if err != nil {
		return nil, err
	}

	if e.Operator.TokenType == ast.TokenOr {
		if isTruthy(left) {
			return left, nil
		}
	} else {
		if !isTruthy(left) {
			return left, nil
		}
	}

	return in.evaluate(e.Right)
}

func (in *Interpreter) evaluateCallExpr(e *ast.CallExpr) (any, *diag.RuntimeError) {
	callee, err := in.evaluate(e.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(e.Arguments))
	for i, arg := range e.Arguments {
		v, argErr := in.evaluate(arg)
		if argErr != nil {
			return nil, argErr
		}
		args[i] = v
	}

	fn, ok := callee.(Callable)
	if !ok {
		return nil, diag.NewRuntimeError(e.Paren, "Can only call functions and classes.")
	}

	if len(args) != fn.Arity() {
		return nil, diag.NewRuntimeError(e.Paren, fmt.Sprintf("Expected %d arguments but got %d.", fn.Arity(), len(args)))
	}

	return fn.Call(in, e.Paren, args)
}

func (in *Interpreter) evaluateGetExpr(e *ast.GetExpr) (any, *diag.RuntimeError) {
	object, err := in.evaluate(e.Object)
	if err != nil {
		return nil, err
	}

	instance, ok := object.(*Instance)
	if !ok {
		return nil, diag.NewRuntimeError(e.Name, "Only instances have properties.")
	}
	return instance.Get(e.Name)
}

func (in *Interpreter) evaluateSetExpr(e *ast.SetExpr) (any, *diag.RuntimeError) {
	object, err := in.evaluate(e.Object)
	if err != nil {
		return nil, err
	}

	instance, ok := object.(*Instance)
	if !ok {
		return nil, diag.NewRuntimeError(e.Name, "Only instances have fields.")
	}

	value, err := in.evaluate(e.Value)
	if err != nil {
		return nil, err
	}
	instance.Set(e.Name, value)
	return value, nil
}

func (in *Interpreter) evaluateSuperExpr(e *ast.SuperExpr) (any, *diag.RuntimeError) {
	distance := in.locals[e]
	superclass := in.environment.GetAt(distance, "super").(*Class)
	object := in.environment.GetAt(distance-1, "this").(*Instance)

	method, ok := superclass.findMethod(e.Method.Lexeme)
	if !ok {
		return nil, diag.NewRuntimeError(e.Method, "Undefined property '"+e.Method.Lexeme+"'.")
	}
	return method.bind(object), nil
}

func (in *Interpreter) evaluateFunctionExpr(e *ast.FunctionExpr) any {
	if e.Name == nil {
		return &Function{Params: e.Params, Body: e.Body, Closure: in.environment}
	}
	closure := env.New(in.environment)
	fn := &Function{Name: e.Name, Params: e.Params, Body: e.Body, Closure: closure}
	closure.Define(e.Name.Lexeme, fn)
	return fn
}

func (in *Interpreter) evaluateUnaryExpr(e *ast.UnaryExpr) (any, *diag.RuntimeError) {
	right, err := in.evaluate(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator.TokenType {
	case ast.TokenBang:
		return !isTruthy(right), nil
	case ast.TokenMinus:
		n, ok := right.(float64)
		if !ok {
			return nil, diag.NewRuntimeError(e.Operator, "Operand must be a number.")
		}
		return -n, nil
	}
	panic("interpret: unknown unary operator")
}

func (in *Interpreter) evaluateBinaryExpr(e *ast.BinaryExpr) (any, *diag.RuntimeError) {
	left, err := in.evaluate(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := in.evaluate(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator.TokenType {
	case ast.TokenPlus:
		return in.evaluateAdd(e.Operator, left, right)
	case ast.TokenMinus:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln - rn, nil
	case ast.TokenSlash:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		if rn == 0 {
			return nil, diag.NewRuntimeError(e.Operator, "Division by zero is not allowed.")
		}
		return ln / rn, nil
	case ast.TokenStar:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln * rn, nil
	case ast.TokenGreater:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln > rn, nil
	case ast.TokenGreaterEqual:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln >= rn, nil
	case ast.TokenLess:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln < rn, nil
	case ast.TokenLessEqual:
		ln, rn, numErr := checkNumberOperands(e.Operator, left, right)
		if numErr != nil {
			return nil, numErr
		}
		return ln <= rn, nil
	case ast.TokenEqualEqual:
		return isEqual(left, right), nil
	case ast.TokenBangEqual:
		return !isEqual(left, right), nil
	}
	panic("interpret: unknown binary operator")
}

func (in *Interpreter) evaluateAdd(operator ast.Token, left, right any) (any, *diag.RuntimeError) {
	if ln, ok := left.(float64); ok {
		if rn, ok := right.(float64); ok {
			return ln + rn, nil
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
	}
	_, leftIsString := left.(string)
	_, rightIsString := right.(string)
	if leftIsString || rightIsString {
		return stringify(left) + stringify(right), nil
	}
	return nil, diag.NewRuntimeError(operator, "Operands must be two numbers or two strings.")
}

func checkNumberOperands(operator ast.Token, left, right any) (float64, float64, *diag.RuntimeError) {
	ln, lok := left.(float64)
	rn, rok := right.(float64)
	if !lok || !rok {
		return 0, 0, diag.NewRuntimeError(operator, "Operands must be numbers.")
	}
	return ln, rn, nil
}

// lookupVariable consults the resolution map: present means local, found
// by walking exactly that many scopes outward; absent falls back to the
// late-bound global lookup by name.
func (in *Interpreter) lookupVariable(name ast.Token, expr ast.Expr) (any, *diag.RuntimeError) {
	if distance, ok := in.locals[expr]; ok {
		return in.environment.GetAt(distance, name.Lexeme), nil
	}
	value, err := in.globals.Get(name.Lexeme)
	if err != nil {
		return nil, diag.NewRuntimeError(name, "Undefined variable '"+name.Lexeme+"'.")
	}
	return value, nil
}

// Globals exposes the global environment.
func (in *Interpreter) Globals() *env.Environment {
	return in.globals
}

// Environment exposes the current environment for the REPL's `.env`
// command.
func (in *Interpreter) Environment() *env.Environment {
	return in.environment
}
