package parse

import (
	"bytes"
	"testing"

	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
	"github.com/lox-lang/lox/scan"
)

func parseSource(t *testing.T, source string) ([]ast.Stmt, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink(&bytes.Buffer{})
	tokens := scan.New(source, sink).ScanTokens()
	stmts := New(tokens, sink).Parse()
	return stmts, sink
}

func TestConditionalPrecedenceAboveLogicAnd(t *testing.T) {
	// `a and b ? c : d` must parse as `a and (b ? c : d)`, matching the
	// grammar's `logic_and → conditional` placement.
	stmts, sink := parseSource(t, "echo a and b ? c : d;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}

	echo := stmts[0].(*ast.EchoStmt)
	logical, ok := echo.Expression.(*ast.LogicalExpr)
	if !ok {
		t.Fatalf("expected top-level LogicalExpr, got %T", echo.Expression)
	}
	if _, ok := logical.Right.(*ast.ConditionalExpr); !ok {
		t.Fatalf("expected conditional on the right of 'and', got %T", logical.Right)
	}
}

func TestConditionalIsRightAssociative(t *testing.T) {
	stmts, sink := parseSource(t, "echo a ? b : c ? d : e;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}

	echo := stmts[0].(*ast.EchoStmt)
	outer, ok := echo.Expression.(*ast.ConditionalExpr)
	if !ok {
		t.Fatalf("expected ConditionalExpr, got %T", echo.Expression)
	}
	if _, ok := outer.Else.(*ast.ConditionalExpr); !ok {
		t.Fatalf("expected nested conditional in else branch, got %T", outer.Else)
	}
}

func TestForDesugarsToWhile(t *testing.T) {
	stmts, sink := parseSource(t, "for (let i = 0; i < 3; i = i + 1) echo i;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}

	block, ok := stmts[0].(*ast.BlockStmt)
	if !ok || len(block.Statements) != 2 {
		t.Fatalf("expected a 2-statement block, got %#v", stmts[0])
	}
	if _, ok := block.Statements[0].(*ast.LetStmt); !ok {
		t.Fatalf("expected initializer as first statement, got %T", block.Statements[0])
	}
	whileStmt, ok := block.Statements[1].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected while statement, got %T", block.Statements[1])
	}
	// The increment clause must be its own field, not folded into Body
	// alongside it, otherwise a `continue` inside Body would skip it.
	if _, ok := whileStmt.Body.(*ast.EchoStmt); !ok {
		t.Fatalf("expected Body to be just the loop body, got %T", whileStmt.Body)
	}
	if whileStmt.Increment == nil {
		t.Fatalf("expected a non-nil Increment clause")
	}
	if _, ok := whileStmt.Increment.(*ast.ExpressionStmt); !ok {
		t.Fatalf("expected Increment to be an expression statement, got %T", whileStmt.Increment)
	}
}

func TestForWithoutConditionDefaultsToTrue(t *testing.T) {
	stmts, sink := parseSource(t, "for (;;) break;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}
	whileStmt := stmts[0].(*ast.WhileStmt)
	lit, ok := whileStmt.Condition.(*ast.LiteralExpr)
	if !ok || lit.Value != true {
		t.Fatalf("expected literal true condition, got %#v", whileStmt.Condition)
	}
}

func TestAssignmentRewritesVariableToAssign(t *testing.T) {
	stmts, sink := parseSource(t, "x = 1;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}
	exprStmt := stmts[0].(*ast.ExpressionStmt)
	if _, ok := exprStmt.Expression.(*ast.AssignExpr); !ok {
		t.Fatalf("expected AssignExpr, got %T", exprStmt.Expression)
	}
}

func TestAssignmentRewritesGetToSet(t *testing.T) {
	stmts, sink := parseSource(t, "a.b = 1;")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}
	exprStmt := stmts[0].(*ast.ExpressionStmt)
	if _, ok := exprStmt.Expression.(*ast.SetExpr); !ok {
		t.Fatalf("expected SetExpr, got %T", exprStmt.Expression)
	}
}

func TestInvalidAssignmentTargetReportsButContinues(t *testing.T) {
	stmts, sink := parseSource(t, "1 = 2; echo 3;")
	if !sink.HadError {
		t.Fatalf("expected an error for an invalid assignment target")
	}
	if len(stmts) != 2 {
		t.Fatalf("expected parsing to continue past the error, got %d statements", len(stmts))
	}
}

func TestClassDeclarationWithSuperclass(t *testing.T) {
	stmts, sink := parseSource(t, "class B < A { greet() { echo 1; } }")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}
	class := stmts[0].(*ast.ClassStmt)
	if class.Superclass == nil || class.Superclass.Name.Lexeme != "A" {
		t.Fatalf("expected superclass A, got %#v", class.Superclass)
	}
	if len(class.Methods) != 1 || class.Methods[0].Name.Lexeme != "greet" {
		t.Fatalf("expected one method named greet, got %#v", class.Methods)
	}
}

func TestFnDisambiguatesDeclarationVsExpression(t *testing.T) {
	stmts, sink := parseSource(t, "fn f() {} let g = fn () {};")
	if sink.HadError {
		t.Fatalf("unexpected parse error")
	}
	if _, ok := stmts[0].(*ast.FunctionStmt); !ok {
		t.Fatalf("expected function declaration, got %T", stmts[0])
	}
	let := stmts[1].(*ast.LetStmt)
	if _, ok := let.Initializer.(*ast.FunctionExpr); !ok {
		t.Fatalf("expected function expression, got %T", let.Initializer)
	}
}

func TestSynchronizeResumesAtNextStatement(t *testing.T) {
	// A bad token inside the first statement should not swallow the second.
	stmts, sink := parseSource(t, "let = ; echo 1;")
	if !sink.HadError {
		t.Fatalf("expected a parse error")
	}
	found := false
	for _, s := range stmts {
		if es, ok := s.(*ast.EchoStmt); ok {
			if lit, ok := es.Expression.(*ast.LiteralExpr); ok && lit.Value == float64(1) {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected synchronize to recover and still parse 'echo 1;', got %#v", stmts)
	}
}
