package interpret

import (
	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
)

// Class is a class value: a name, methods, and an optional superclass to
// fall back to on method lookup misses.
type Class struct {
	Name       string
	Methods    map[string]*Function
	Superclass *Class
}

// Arity equals the arity of the class's `init` method, or 0 if it has
// none.
func (c *Class) Arity() int {
	if init, ok := c.findMethod("init"); ok {
		return init.Arity()
	}
	return 0
}

// Call constructs an instance and, if the class (or an ancestor) defines
// `init`, binds and invokes it with the supplied arguments. The instance
// is returned regardless of what `init` returns.
func (c *Class) Call(in *Interpreter, callToken ast.Token, args []any) (any, *diag.RuntimeError) {
	instance := &Instance{Class: c}

	if init, ok := c.findMethod("init"); ok {
		if _, err := init.bind(instance).Call(in, callToken, args); err != nil {
			return nil, err
		}
	}

	return instance, nil
}

func (c *Class) findMethod(name string) (*Function, bool) {
	if method, ok := c.Methods[name]; ok {
		return method, true
	}
	if c.Superclass != nil {
		return c.Superclass.findMethod(name)
	}
	return nil, false
}

func (c *Class) String() string {
	return c.Name
}

// Instance is an instance of a class: a backing class reference and a
// mutable field map, populated lazily as fields are assigned.
type Instance struct {
	Class  *Class
	fields map[string]any
}

// Get resolves a property access: fields first, then methods bound to this
// instance. Neither found is a runtime error.
func (i *Instance) Get(name ast.Token) (any, *diag.RuntimeError) {
	if val, ok := i.fields[name.Lexeme]; ok {
		return val, nil
	}

	if method, ok := i.Class.findMethod(name.Lexeme); ok {
		return method.bind(i), nil
	}

	return nil, diag.NewRuntimeError(name, "Undefined property '"+name.Lexeme+"'.")
}

// Set always installs in the field map, creating the field on first write.
func (i *Instance) Set(name ast.Token, value any) {
	if i.fields == nil {
		i.fields = make(map[string]any)
	}
	i.fields[name.Lexeme] = value
}

func (i *Instance) String() string {
	return "'" + i.Class.Name + "' instance"
}
