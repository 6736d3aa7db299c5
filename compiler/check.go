package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Static checks: every problem the executor would report, found up front
// ---------------------------------------------------------------------------

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one problem found by Check.
type Diagnostic struct {
	Pos      Position
	Severity Severity
	Msg      string
}

// SymbolKind distinguishes the names a document declares.
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolLabel
	SymbolStruct
)

// Symbol is a function, label or struct declared in a document.
type Symbol struct {
	Kind     SymbolKind
	Name     string
	Pos      Position
	Argc     int    // functions only
	Function string // enclosing function, labels only
}

// Report is the result of checking a document.
type Report struct {
	Lines       []TokenLine
	Diagnostics []Diagnostic
	Symbols     []Symbol
}

// ContextError returns the failure message for a statement used in the
// wrong place, or "" when the statement is allowed there.
func ContextError(s Stmt, inFunction bool) string {
	switch s.(type) {
	case *ImportStmt:
		if inFunction {
			return "cannot import a module inside of a function"
		}
	case *FunStmt:
		if inFunction {
			return "cannot define a function inside of a function"
		}
	case *StructStmt:
		if inFunction {
			return "cannot define a struct inside of a function"
		}
	case *EndStmt:
		return "unexpected token 'end'"
	case *LabelStmt, *GotoStmt, *DefStmt, *SetStmt, *CallStmt, *RetStmt, *IfStmt:
		if !inFunction {
			return fmt.Sprintf("cannot use '%s' operation outside of function", keywordOf(s))
		}
	}
	return ""
}

func keywordOf(s Stmt) string {
	switch st := s.(type) {
	case *LabelStmt:
		return "lbl"
	case *GotoStmt:
		return "goto"
	case *DefStmt:
		return "def"
	case *SetStmt:
		return "set"
	case *CallStmt:
		return "call"
	case *RetStmt:
		return "ret"
	case *IfStmt:
		if st.Negate {
			return "ifn"
		}
		return "if"
	}
	return strings.Fields(String(s))[0]
}

// Check lexes and decodes a whole document without executing it. Unlike
// Lex it keeps going after a bad line so that every problem is reported.
func Check(text string) *Report {
	r := &Report{}

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		tl, err := newLineLexer(raw, i+1).lex()
		if err != nil {
			r.addError(err)
			continue
		}
		if len(tl) > 0 {
			r.Lines = append(r.Lines, tl)
		}
	}

	functions := make(map[string]Position)
	for ln := 0; ln < len(r.Lines); ln++ {
		stmt, err := Decode(r.Lines[ln])
		if err != nil {
			r.addError(err)
			continue
		}
		if msg := ContextError(stmt, false); msg != "" {
			r.errorf(stmt.Pos(), "%s", msg)
			continue
		}
		fun, ok := stmt.(*FunStmt)
		if !ok {
			if st, ok := stmt.(*StructStmt); ok {
				r.Symbols = append(r.Symbols, Symbol{Kind: SymbolStruct, Name: st.Name, Pos: st.At})
			}
			continue
		}

		if prev, dup := functions[fun.Name]; dup {
			r.errorf(fun.At, "cannot redefine existing function '%s' (first defined on line %d)", fun.Name, prev.Line)
		} else {
			functions[fun.Name] = fun.At
		}
		r.Symbols = append(r.Symbols, Symbol{Kind: SymbolFunction, Name: fun.Name, Pos: fun.At, Argc: fun.Argc})

		end := FindEnd(r.Lines, ln+1)
		if end < 0 {
			r.errorf(fun.At, "unterminated function definition")
			break
		}
		r.checkBody(fun.Name, r.Lines[ln+1:end])
		ln = end
	}

	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		a, b := r.Diagnostics[i].Pos, r.Diagnostics[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return r
}

// FindEnd returns the index of the first end line at or after from, or -1.
func FindEnd(lines []TokenLine, from int) int {
	for i := from; i < len(lines); i++ {
		if lines[i].Keyword() == "end" {
			return i
		}
	}
	return -1
}

func (r *Report) checkBody(fn string, body []TokenLine) {
	labels := make(map[string]int)
	type jump struct {
		at   Position
		name string
		line int
	}
	var gotos []jump

	for i, tl := range body {
		stmt, err := Decode(tl)
		if err != nil {
			r.addError(err)
			continue
		}
		if msg := ContextError(stmt, true); msg != "" {
			r.errorf(stmt.Pos(), "%s", msg)
			continue
		}
		switch st := stmt.(type) {
		case *LabelStmt:
			if _, dup := labels[st.Name]; dup {
				r.errorf(st.At, "cannot redefine label '%s'", st.Name)
				continue
			}
			labels[st.Name] = i
			r.Symbols = append(r.Symbols, Symbol{Kind: SymbolLabel, Name: st.Name, Pos: st.At, Function: fn})
		case *GotoStmt:
			gotos = append(gotos, jump{at: st.At, name: st.Name, line: i})
		case *DefStmt:
			r.checkOperand(st.Value)
		case *SetStmt:
			r.checkOperand(st.Value)
		case *RetStmt:
			r.checkOperand(st.Value)
		case *IfStmt:
			r.checkExpr(st.Cond)
		}
	}

	for _, g := range gotos {
		at, ok := labels[g.name]
		switch {
		case !ok:
			r.errorf(g.at, "unknown label '%s'", g.name)
		case at > g.line:
			r.warnf(g.at, "label '%s' is defined later; goto only reaches labels that already ran", g.name)
		}
	}
}

func (r *Report) checkOperand(o Operand) {
	if !o.IsString {
		r.checkExpr(o.Expr)
	}
}

func (r *Report) checkExpr(toks []Token) {
	for _, t := range toks {
		if t.IsString() {
			r.errorf(t.Pos, "cannot use strings in expressions")
			return
		}
	}
}

func (r *Report) addError(err error) {
	if se, ok := err.(*SyntaxError); ok {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{Pos: se.Pos, Severity: SeverityError, Msg: se.Msg})
		return
	}
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityError, Msg: err.Error()})
}

func (r *Report) errorf(pos Position, format string, args ...interface{}) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Pos: pos, Severity: SeverityError, Msg: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(pos Position, format string, args ...interface{}) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Pos: pos, Severity: SeverityWarning, Msg: fmt.Sprintf(format, args...)})
}
