// Command lox runs the interpreter from a file or an interactive prompt.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/lox-lang/lox/ast"
	"github.com/lox-lang/lox/diag"
	"github.com/lox-lang/lox/interpret"
	"github.com/lox-lang/lox/parse"
	"github.com/lox-lang/lox/resolve"
	"github.com/lox-lang/lox/scan"
)

const (
	historyFile = ".lox_history"
	prompt      = "[lox]> "
)

func main() {
	switch len(os.Args) {
	case 1:
		runPrompt()
	case 2:
		os.Exit(runFile(os.Args[1]))
	default:
		fmt.Println("Usage: lox [script]")
		os.Exit(69)
	}
}

func runFile(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Can't read file %s.\n", path)
		return 69
	}

	sink := diag.NewSink(os.Stdout)
	interpreter := interpret.New(os.Stdout)
	run(string(source), sink, interpreter, false)

	switch {
	case sink.HadError:
		return 65
	case sink.HadRuntimeError:
		return 70
	default:
		return 0
	}
}

// run lexes, parses, resolves, and interprets source against an existing
// interpreter and resolution map, so that globals and resolved references
// persist across REPL turns. replDisplay makes the interpreter print the
// value of bare expression statements, as the REPL does.
func run(source string, sink *diag.Sink, interpreter *interpret.Interpreter, replDisplay bool) []ast.Stmt {
	scanner := scan.New(source, sink)
	tokens := scanner.ScanTokens()

	parser := parse.New(tokens, sink)
	stmts := parser.Parse()
	if sink.HadError {
		return stmts
	}

	resolver := resolve.New(interpreter, sink)
	resolver.ResolveStmts(stmts)
	if sink.HadError {
		return stmts
	}

	interpreter.Interpret(stmts, sink, replDisplay)
	return stmts
}

func runPrompt() {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
		ln.Close()
		os.Exit(130)
	}()

	sink := diag.NewSink(os.Stdout)
	interpreter := interpret.New(os.Stdout)

	session := &replSession{ln: ln, sink: sink, interpreter: interpreter}
	session.run()
}

// replSession holds the state a REPL turn needs beyond the driver's own
// persistent interpreter: the `.ast`/`.expr` display toggles, which stay on
// across turns once enabled.
type replSession struct {
	ln          *liner.State
	sink        *diag.Sink
	interpreter *interpret.Interpreter
	astMode     bool
	exprMode    bool
}

func (s *replSession) run() {
	for {
		line, err := s.ln.Prompt(prompt)
		if err != nil {
			fmt.Println()
			return
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		s.ln.AppendHistory(line)

		if strings.HasPrefix(line, ".") {
			if s.metaCommand(line) {
				return
			}
			continue
		}

		s.evalTurn(line)
		s.sink.Reset()
	}
}

func (s *replSession) evalTurn(line string) {
	if s.exprMode {
		s.printExpr(line)
	}
	stmts := run(line, s.sink, s.interpreter, true)
	if s.astMode {
		for _, stmt := range stmts {
			fmt.Println(ast.PrintStmt(stmt))
		}
	}
}

func (s *replSession) printExpr(line string) {
	scanner := scan.New(line, nil)
	tokens := scanner.ScanTokens()
	parser := parse.New(tokens, nil)
	if expr := parser.ParseExpression(); expr != nil {
		fmt.Println(ast.Print(expr))
	}
}

// metaCommand handles a `.`-prefixed input. Returns true when the REPL
// should exit.
func (s *replSession) metaCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit":
		return true
	case ".ast":
		s.astMode = !s.astMode
		fmt.Printf("AST dump %s\n", onOff(s.astMode))
	case ".expr":
		s.exprMode = !s.exprMode
		fmt.Printf("Expression print %s\n", onOff(s.exprMode))
	case ".env":
		s.dumpEnv()
	case ".load":
		if len(fields) < 2 {
			fmt.Println("Usage: .load <path>")
			return false
		}
		s.loadFile(fields[1])
	default:
		fmt.Printf("Unknown command '%s'\n", line)
	}
	return false
}

func (s *replSession) dumpEnv() {
	for _, name := range s.interpreter.Environment().Names() {
		fmt.Println(name)
	}
}

func (s *replSession) loadFile(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Can't read file %s.\n", path)
		return
	}
	run(string(source), s.sink, s.interpreter, true)
	s.sink.Reset()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
