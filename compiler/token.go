package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the JIL line lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// TokenNone marks a placeholder token used only for positioned errors.
	TokenNone TokenType = iota

	TokenIdent  // any whitespace-delimited word: keywords, names, numbers, operators
	TokenString // "quoted text" with escapes resolved
)

var tokenNames = map[TokenType]string{
	TokenNone:   "NONE",
	TokenIdent:  "IDENT",
	TokenString: "STRING",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position represents a source location.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, col %d", p.Line, p.Column)
}

// Token represents a lexical token. Tokens are immutable once produced.
type Token struct {
	Type    TokenType
	Literal string   // identifier text, or string contents with escapes applied
	Pos     Position // start position (opening quote for strings)
}

// Is reports whether the token is an identifier with exactly the given text.
func (t Token) Is(text string) bool {
	return t.Type == TokenIdent && t.Literal == text
}

// IsString reports whether the token is a string literal.
func (t Token) IsString() bool {
	return t.Type == TokenString
}

func (t Token) String() string {
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token the way error messages quote it.
func (t Token) describe() string {
	if t.Type == TokenString {
		return fmt.Sprintf("string %q", t.Literal)
	}
	return fmt.Sprintf("'%s'", t.Literal)
}

// TokenLine is one source statement worth of tokens. The lexer never
// produces an empty TokenLine.
type TokenLine []Token

// Pos returns the position of the first token of the line.
func (tl TokenLine) Pos() Position {
	if len(tl) == 0 {
		return Position{}
	}
	return tl[0].Pos
}

// Keyword returns the leading identifier, or "" when the line starts with a
// string literal.
func (tl TokenLine) Keyword() string {
	if len(tl) == 0 || tl[0].Type != TokenIdent {
		return ""
	}
	return tl[0].Literal
}
