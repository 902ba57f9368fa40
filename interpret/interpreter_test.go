package interpret

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lox-lang/lox/diag"
	"github.com/lox-lang/lox/parse"
	"github.com/lox-lang/lox/resolve"
	"github.com/lox-lang/lox/scan"
)

// run lexes, parses, resolves, and interprets source against a fresh
// interpreter, returning everything written to its output stream and the
// sink that collected diagnostics.
func run(t *testing.T, source string) (string, *diag.Sink) {
	t.Helper()
	out := &bytes.Buffer{}
	sink := diag.NewSink(out)
	in := New(out)

	tokens := scan.New(source, sink).ScanTokens()
	stmts := parse.New(tokens, sink).Parse()
	if sink.HadError {
		return out.String(), sink
	}

	resolve.New(in, sink).ResolveStmts(stmts)
	if sink.HadError {
		return out.String(), sink
	}

	in.Interpret(stmts, sink, false)
	return out.String(), sink
}

func TestClosureCapturesEnclosingVariable(t *testing.T) {
	out, sink := run(t, `
		fn makeCounter() {
			let count = 0;
			fn counter() {
				count = count + 1;
				return count;
			}
			return counter;
		}
		let counter = makeCounter();
		echo counter();
		echo counter();
		echo counter();
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "1\n2\n3\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInheritanceAndSuperDispatch(t *testing.T) {
	out, sink := run(t, `
		class Animal {
			speak() { echo "..."; }
			describe() { echo "An animal says: " + this.speak2(); }
			speak2() { return "?"; }
		}
		class Dog < Animal {
			speak2() { return "Woof, via " + super.speak2(); }
		}
		let d = Dog();
		echo d.speak2();
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "Woof, via ?\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTernaryAndShortCircuitLogic(t *testing.T) {
	out, sink := run(t, `
		fn sideEffect() {
			echo "called";
			return true;
		}
		echo true or sideEffect();
		echo false and sideEffect();
		echo 1 < 2 ? "yes" : "no";
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	// Neither side-effecting operand should run: `or` short-circuits on a
	// truthy left, `and` short-circuits on a falsy left.
	if strings.Contains(out, "called") {
		t.Fatalf("expected short-circuit to skip sideEffect(), got %q", out)
	}
	want := "true\nfalse\nyes\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestBreakExitsLoopAndRuntimeErrorContinuesNextStatement(t *testing.T) {
	out, sink := run(t, `
		for (let i = 0; i < 10; i = i + 1) {
			if (i == 3) break;
			echo i;
		}
		echo 1 / 0;
		echo "after error";
	`)
	if !sink.HadRuntimeError {
		t.Fatalf("expected a runtime error from division by zero")
	}
	if !strings.Contains(out, "0\n1\n2\n") {
		t.Fatalf("expected the loop to print 0,1,2 before breaking, got %q", out)
	}
	if !strings.Contains(out, "after error") {
		t.Fatalf("expected execution to continue with the next top-level statement, got %q", out)
	}
}

func TestContinueSkipsRestOfLoopBody(t *testing.T) {
	out, sink := run(t, `
		for (let i = 0; i < 5; i = i + 1) {
			if (i == 2) continue;
			echo i;
		}
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "0\n1\n3\n4\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBreakOutsideLoopIsARuntimeError(t *testing.T) {
	_, sink := run(t, `break;`)
	if !sink.HadRuntimeError {
		t.Fatalf("expected a runtime error for break outside a loop")
	}
}

func TestInitializerAlwaysReturnsThisEvenWithBareReturn(t *testing.T) {
	out, sink := run(t, `
		class Box {
			init(v) {
				this.v = v;
				return;
			}
		}
		let b = Box(42);
		echo b.v;
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "42\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUnusedLocalWarningDoesNotAffectExitStatus(t *testing.T) {
	out, sink := run(t, `
		fn f() {
			let unused = 1;
			echo "done";
		}
		f();
	`)
	if sink.HadRuntimeError {
		t.Fatalf("an unused-local warning must not be a runtime error")
	}
	if !strings.Contains(out, "done") {
		t.Fatalf("expected the function body to still run, got %q", out)
	}
}

func TestNativeFunctions(t *testing.T) {
	out, sink := run(t, `
		echo len("hello");
		echo type(1);
		echo type("s");
		echo type(true);
		echo type(nil);
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "5\nnumber\nstring\nboolean\nnil\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNativeFunctionRuntimeErrorReportsCallSiteLine(t *testing.T) {
	out, sink := run(t, "\n\necho len(42);\n")
	if !sink.HadRuntimeError {
		t.Fatalf("expected a runtime error for len() on a non-string argument")
	}
	if !strings.Contains(out, "[line 3]") {
		t.Fatalf("expected the error to report the call's actual line, got %q", out)
	}
}

func TestStringNumberConcatenationStringifiesOtherOperand(t *testing.T) {
	out, sink := run(t, `echo "n=" + 3;`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "n=3\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFunctionExpressionAsValue(t *testing.T) {
	out, sink := run(t, `
		let add = fn (a, b) { return a + b; };
		echo add(2, 3);
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "5\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNamedFunctionExpressionCanCallItself(t *testing.T) {
	out, sink := run(t, `
		let fact = fn fact(n) {
			if (n <= 1) return 1;
			return n * fact(n - 1);
		};
		echo fact(5);
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "120\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNativeFunctionEqualityDoesNotPanic(t *testing.T) {
	out, sink := run(t, `
		echo clock == clock;
		echo type == len;
	`)
	if sink.HadError || sink.HadRuntimeError {
		t.Fatalf("unexpected error, output: %q", out)
	}
	if got, want := out, "true\nfalse\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
