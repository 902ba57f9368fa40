package interpret

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
)

// Callable is satisfied by every value that can appear on the left of a
// call expression: user functions, bound methods, classes, and natives.
// callToken is the call expression's closing paren, carried through so a
// native can report a runtime error at the actual call site rather than a
// zero-value line.
type Callable interface {
	Arity() int
	Call(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError)
}

// NativeFunction wraps a host closure as a callable value. clock, len, and
// type are all instances of this one type rather than bespoke structs, so
// adding another native is one more Define call in defineNatives. Natives are always
// stored and passed around as *NativeFunction: a struct holding a func
// field is not comparable with `==`, so boxing one by value in an `any` and
// later comparing it (as isEqual does for `==`/`!=`) would panic. A pointer
// is always comparable and gives the identity comparison a native should
// have anyway.
type NativeFunction struct {
	FnName string
	FnAr   int
	Fn     func(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError)
}

func (n *NativeFunction) Arity() int { return n.FnAr }

func (n *NativeFunction) Call(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError) {
	return n.Fn(in, callToken, args)
}

func (n *NativeFunction) String() string { return "<native fn>" }

// isTruthy implements the language's truthiness rule: nil and false are
// falsy, everything else (including 0 and "") is truthy.
func isTruthy(value any) bool {
	if value == nil {
		return false
	}
	if b, ok := value.(bool); ok {
		return b
	}
	return true
}

// isEqual implements `==`: nil equals only nil; primitives compare
// structurally; everything else (functions, classes, instances) compares by
// reference identity, which Go's `==` already gives for pointer types.
func isEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a == b
}

// stringify renders a value the way `echo` and REPL auto-display do.
// Integral doubles are printed without a trailing ".0".
func stringify(value any) string {
	if value == nil {
		return "nil"
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// typeName implements the `type()` native: the value's primitive tag, or a
// more specific tag for callables and instances.
func typeName(value any) string {
	switch v := value.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Class:
		return "class"
	case *Instance:
		return "object"
	case Callable:
		return "function"
	default:
		return strings.ToLower(fmt.Sprintf("%T", v))
	}
}
