package interpret

import (
	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
	"github.com/lox-lang/lox/env"
)

// Function is a user-defined function or method value: its declaration,
// the environment captured at the moment of creation (a closure), and
// whether it's a class initializer. Both `fn name(...) {}` declarations and
// anonymous `fn (...) {}` expressions are represented by the same type;
// Name is nil for the latter.
type Function struct {
	Name          *ast.Token
	Params        []ast.Token
	Body          []ast.Stmt
	Closure       *env.Environment
	IsInitializer bool
}

func (f *Function) Arity() int { return len(f.Params) }

// Call runs the function body in a fresh environment enclosing its
// closure. A `return` inside the body surfaces as the control signal
// executeBlock returns, which is collapsed here into Call's return value
// instead of propagating further: it can never legally reach the caller
// of Call as a control value.
func (f *Function) Call(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError) {
	callEnv := env.New(f.Closure)
	for i, param := range f.Params {
		callEnv.Define(param.Lexeme, args[i])
	}

	ctrl, err := in.executeBlock(f.Body, callEnv)
	if err != nil {
		return nil, err
	}
	if runtimeErr := controlEscapeError(ctrl); runtimeErr != nil {
		return nil, runtimeErr
	}

	if f.IsInitializer {
		return f.Closure.GetAt(0, "this"), nil
	}

	if ctrl.kind == controlReturn {
		return ctrl.value, nil
	}
	return nil, nil
}

// bind produces a new function whose closure is a fresh scope enclosing
// the original closure, defining `this` as the receiving instance. Used
// both for plain method dispatch and for super calls.
func (f *Function) bind(instance *Instance) *Function {
	bound := env.New(f.Closure)
	bound.Define("this", instance)
	return &Function{
		Name:          f.Name,
		Params:        f.Params,
		Body:          f.Body,
		Closure:       bound,
		IsInitializer: f.IsInitializer,
	}
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<fn>"
	}
	return "<fn " + f.Name.Lexeme + ">"
}
