package ast

import (
	"fmt"
	"strings"
)

// Print returns a Lisp-style parenthesized rendering of an expression,
// serving the REPL's `.expr` meta-command.
func Print(expr Expr) string {
	if expr == nil {
		return "nil"
	}
	switch e := expr.(type) {
	case *AssignExpr:
		return parenthesize("= "+e.Name.Lexeme, e.Value)
	case *BinaryExpr:
		return parenthesize(e.Operator.Lexeme, e.Left, e.Right)
	case *CallExpr:
		return parenthesize("call", append([]Expr{e.Callee}, e.Arguments...)...)
	case *ConditionalExpr:
		return parenthesize("?:", e.Cond, e.Then, e.Else)
	case *FunctionExpr:
		return "(fn " + joinParams(e.Params) + " ...)"
	case *GetExpr:
		return parenthesize("get "+e.Name.Lexeme, e.Object)
	case *GroupingExpr:
		return parenthesize("group", e.Expression)
	case *LiteralExpr:
		if e.Value == nil {
			return "nil"
		}
		return fmt.Sprint(e.Value)
	case *LogicalExpr:
		return parenthesize(e.Operator.Lexeme, e.Left, e.Right)
	case *SetExpr:
		return parenthesize("set "+e.Name.Lexeme, e.Object, e.Value)
	case *SuperExpr:
		return "(super " + e.Method.Lexeme + ")"
	case *ThisExpr:
		return "this"
	case *UnaryExpr:
		return parenthesize(e.Operator.Lexeme, e.Right)
	case *VariableExpr:
		return e.Name.Lexeme
	default:
		return fmt.Sprintf("<unknown expr %T>", e)
	}
}

// PrintStmt returns a parenthesized rendering of a statement, one line per
// node, serving the REPL's `.ast` meta-command.
func PrintStmt(stmt Stmt) string {
	return printStmtIndent(stmt, 0)
}

func printStmtIndent(stmt Stmt, depth int) string {
	indent := strings.Repeat("  ", depth)
	switch s := stmt.(type) {
	case *BlockStmt:
		lines := []string{indent + "(block"}
		for _, inner := range s.Statements {
			lines = append(lines, printStmtIndent(inner, depth+1))
		}
		lines = append(lines, indent+")")
		return strings.Join(lines, "\n")
	case *BreakStmt:
		return indent + "(break)"
	case *ClassStmt:
		header := indent + "(class " + s.Name.Lexeme
		if s.Superclass != nil {
			header += " < " + s.Superclass.Name.Lexeme
		}
		lines := []string{header}
		for _, m := range s.Methods {
			lines = append(lines, printStmtIndent(m, depth+1))
		}
		lines = append(lines, indent+")")
		return strings.Join(lines, "\n")
	case *ContinueStmt:
		return indent + "(continue)"
	case *EchoStmt:
		return indent + "(echo " + Print(s.Expression) + ")"
	case *ExpressionStmt:
		return indent + Print(s.Expression)
	case *FunctionStmt:
		return indent + "(fn " + s.Name.Lexeme + " " + joinParams(s.Params) + ")"
	case *IfStmt:
		lines := []string{indent + "(if " + Print(s.Condition)}
		lines = append(lines, printStmtIndent(s.ThenBranch, depth+1))
		if s.ElseBranch != nil {
			lines = append(lines, printStmtIndent(s.ElseBranch, depth+1))
		}
		lines = append(lines, indent+")")
		return strings.Join(lines, "\n")
	case *LetStmt:
		if s.Initializer == nil {
			return indent + "(let " + s.Name.Lexeme + ")"
		}
		return indent + "(let " + s.Name.Lexeme + " " + Print(s.Initializer) + ")"
	case *ReturnStmt:
		if s.Value == nil {
			return indent + "(return)"
		}
		return indent + "(return " + Print(s.Value) + ")"
	case *WhileStmt:
		lines := []string{indent + "(while " + Print(s.Condition)}
		lines = append(lines, printStmtIndent(s.Body, depth+1))
		if s.Increment != nil {
			lines = append(lines, printStmtIndent(s.Increment, depth+1))
		}
		lines = append(lines, indent+")")
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%s<unknown stmt %T>", indent, s)
	}
}

func joinParams(params []Token) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Lexeme
	}
	return "(" + strings.Join(names, " ") + ")"
}

func parenthesize(name string, exprs ...Expr) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(name)
	for _, expr := range exprs {
		b.WriteString(" ")
		b.WriteString(Print(expr))
	}
	b.WriteString(")")
	return b.String()
}
