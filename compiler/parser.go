package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: decodes one TokenLine into a Stmt
// ---------------------------------------------------------------------------

// Decode turns a token line into its statement variant, checking the token
// shape the statement expects. Context rules (top level vs function body)
// are left to the executor.
func Decode(tl TokenLine) (Stmt, error) {
	if len(tl) == 0 {
		return nil, errorAt(Position{}, "empty statement")
	}
	p := &lineParser{tl: tl}
	first := tl[0]
	if first.IsString() {
		return nil, errorAt(first.Pos, "unexpected string")
	}

	switch first.Literal {
	case "rem":
		return &RemStmt{At: first.Pos}, nil

	case "lbl", "goto":
		name, err := p.ident(1)
		if err != nil {
			return nil, err
		}
		if err := p.eol(2); err != nil {
			return nil, err
		}
		if first.Literal == "lbl" {
			return &LabelStmt{At: first.Pos, Name: name}, nil
		}
		return &GotoStmt{At: first.Pos, Name: name}, nil

	case "import":
		path, err := p.str(1)
		if err != nil {
			return nil, err
		}
		if err := p.eol(2); err != nil {
			return nil, err
		}
		return &ImportStmt{At: first.Pos, Path: path}, nil

	case "fun":
		return p.parseFun()

	case "end":
		if err := p.eol(1); err != nil {
			return nil, err
		}
		return &EndStmt{At: first.Pos}, nil

	case "struct":
		name, err := p.ident(1)
		if err != nil {
			return nil, err
		}
		if err := p.eol(2); err != nil {
			return nil, err
		}
		return &StructStmt{At: first.Pos, Name: name}, nil

	case "def", "set":
		name, err := p.ident(1)
		if err != nil {
			return nil, err
		}
		value, err := p.operand(2)
		if err != nil {
			return nil, err
		}
		if first.Literal == "def" {
			return &DefStmt{At: first.Pos, Name: name, Value: value}, nil
		}
		return &SetStmt{At: first.Pos, Name: name, Value: value}, nil

	case "call":
		return p.parseCall()

	case "ret":
		value, err := p.operand(1)
		if err != nil {
			return nil, err
		}
		return &RetStmt{At: first.Pos, Value: value}, nil

	case "if", "ifn":
		if len(tl) == 1 {
			return nil, p.expected(1, "expression")
		}
		return &IfStmt{At: first.Pos, Negate: first.Literal == "ifn", Cond: tl[1:]}, nil
	}

	return nil, errorAt(first.Pos, "unexpected token '%s'", first.Literal)
}

// lineParser holds the token line being decoded.
type lineParser struct {
	tl TokenLine
}

// expected builds the "expected X, but found Y instead" error for index i.
func (p *lineParser) expected(i int, what string) error {
	if i >= len(p.tl) {
		pos := p.tl[len(p.tl)-1].Pos
		return errorAt(pos, "expected %s, but found EOL instead", what)
	}
	return errorAt(p.tl[i].Pos, "expected %s, but found %s instead", what, p.tl[i].describe())
}

func (p *lineParser) ident(i int) (string, error) {
	if i >= len(p.tl) || p.tl[i].Type != TokenIdent {
		return "", p.expected(i, "identifier")
	}
	return p.tl[i].Literal, nil
}

func (p *lineParser) str(i int) (string, error) {
	if i >= len(p.tl) || p.tl[i].Type != TokenString {
		return "", p.expected(i, "string")
	}
	return p.tl[i].Literal, nil
}

func (p *lineParser) eol(i int) error {
	if i < len(p.tl) {
		return p.expected(i, "EOL")
	}
	return nil
}

// operand decodes tokens from index i on: a lone string literal, or a
// postfix expression.
func (p *lineParser) operand(i int) (Operand, error) {
	if i >= len(p.tl) {
		return Operand{}, p.expected(i, "expression")
	}
	rest := p.tl[i:]
	if len(rest) == 1 && rest[0].IsString() {
		return Operand{IsString: true, Text: rest[0].Literal}, nil
	}
	return Operand{Expr: rest}, nil
}

func (p *lineParser) parseFun() (Stmt, error) {
	name, err := p.ident(1)
	if err != nil {
		return nil, err
	}
	stmt := &FunStmt{At: p.tl[0].Pos, Name: name}
	if len(p.tl) > 2 {
		tok := p.tl[2]
		argc, convErr := strconv.Atoi(tok.Literal)
		if tok.IsString() || convErr != nil {
			return nil, errorAt(tok.Pos, "function argument count must be a number")
		}
		if argc < 0 {
			return nil, errorAt(tok.Pos, "function argument count cannot be negative")
		}
		stmt.Argc = argc
		if err := p.eol(3); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *lineParser) parseCall() (Stmt, error) {
	stmt := &CallStmt{At: p.tl[0].Pos}
	i := 1
	if i < len(p.tl) && p.tl[i].Is("into") {
		out, err := p.ident(2)
		if err != nil {
			return nil, err
		}
		stmt.Into = out
		i = 3
	}

	fn, err := p.ident(i)
	if err != nil {
		return nil, err
	}
	stmt.Func = fn
	i++

	if i < len(p.tl) && p.tl[i].Is("with") {
		i++
		if i >= len(p.tl) {
			return nil, p.expected(i, "argument")
		}
	}
	for _, tok := range p.tl[i:] {
		if tok.IsString() {
			return nil, errorAt(tok.Pos, "expected variable name, but found %s instead", tok.describe())
		}
		stmt.Args = append(stmt.Args, tok)
	}
	return stmt, nil
}

// String renders a statement back into source form, mostly for debug logs.
func String(s Stmt) string {
	switch st := s.(type) {
	case *RemStmt:
		return "rem"
	case *LabelStmt:
		return "lbl " + st.Name
	case *GotoStmt:
		return "goto " + st.Name
	case *ImportStmt:
		return fmt.Sprintf("import %q", st.Path)
	case *FunStmt:
		return fmt.Sprintf("fun %s %d", st.Name, st.Argc)
	case *EndStmt:
		return "end"
	case *StructStmt:
		return "struct " + st.Name
	case *DefStmt:
		return "def " + st.Name + " " + st.Value.String()
	case *SetStmt:
		return "set " + st.Name + " " + st.Value.String()
	case *CallStmt:
		out := "call "
		if st.Into != "" {
			out += "into " + st.Into + " "
		}
		out += st.Func
		for _, a := range st.Args {
			out += " " + a.Literal
		}
		return out
	case *RetStmt:
		return "ret " + st.Value.String()
	case *IfStmt:
		kw := "if"
		if st.Negate {
			kw = "ifn"
		}
		return kw + " " + joinTokens(st.Cond)
	}
	return fmt.Sprintf("%T", s)
}

func (o Operand) String() string {
	if o.IsString {
		return strconv.Quote(o.Text)
	}
	return joinTokens(o.Expr)
}

func joinTokens(toks []Token) string {
	out := ""
	for i, t := range toks {
		if i > 0 {
			out += " "
		}
		if t.IsString() {
			out += strconv.Quote(t.Literal)
		} else {
			out += t.Literal
		}
	}
	return out
}
