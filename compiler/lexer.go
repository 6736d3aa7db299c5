package compiler

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Lexer: splits source text into token lines
// ---------------------------------------------------------------------------

// Lexer tokenizes JIL source text. Every non-empty source line becomes one
// TokenLine; there is no continuation across lines.
type Lexer struct {
	input string
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Lex returns the token lines of the input. Lines that hold no tokens are
// dropped, but line numbers keep counting them.
func (l *Lexer) Lex() ([]TokenLine, error) {
	var lines []TokenLine
	for i, raw := range strings.Split(l.input, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		ll := newLineLexer(raw, i+1)
		tl, err := ll.lex()
		if err != nil {
			return nil, err
		}
		if len(tl) > 0 {
			lines = append(lines, tl)
		}
	}
	return lines, nil
}

// Lex is shorthand for NewLexer(input).Lex().
func Lex(input string) ([]TokenLine, error) {
	return NewLexer(input).Lex()
}

// lineLexer scans a single source line.
type lineLexer struct {
	line []rune
	idx  int  // index of ch in line
	col  int  // 1-based column of ch
	ln   int  // 1-based line number
	ch   rune // current character
	eol  bool // true once idx has run past the line
}

func newLineLexer(line string, ln int) *lineLexer {
	l := &lineLexer{line: []rune(line), idx: -1, ln: ln}
	l.advance()
	return l
}

func (l *lineLexer) advance() {
	l.idx++
	l.col++
	if l.idx < len(l.line) {
		l.ch = l.line[l.idx]
	} else {
		l.ch = 0
		l.eol = true
	}
}

func (l *lineLexer) position() Position {
	return Position{Line: l.ln, Column: l.col}
}

func (l *lineLexer) lex() (TokenLine, error) {
	var tokens TokenLine
	var acc strings.Builder
	var start Position
	inWord := false

	flush := func() {
		if inWord {
			tokens = append(tokens, Token{Type: TokenIdent, Literal: acc.String(), Pos: start})
			acc.Reset()
			inWord = false
		}
	}

	for !l.eol {
		switch {
		case l.ch == '"':
			flush()
			tok, err := l.readString()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		case isSeparator(l.ch):
			flush()
			l.advance()
		default:
			if !inWord {
				start = l.position()
				inWord = true
			}
			acc.WriteRune(l.ch)
			l.advance()
		}
	}
	flush()

	return tokens, nil
}

// readString consumes a quoted literal starting at the opening quote.
func (l *lineLexer) readString() (Token, error) {
	start := l.position()
	var sb strings.Builder
	escaped := false

	l.advance()
	for !l.eol {
		if escaped {
			r, ok := escapes[l.ch]
			if !ok {
				return Token{}, errorAt(l.position(), "invalid escape character '%c'", l.ch)
			}
			sb.WriteRune(r)
			escaped = false
		} else if l.ch == '\\' {
			escaped = true
		} else if l.ch == '"' {
			break
		} else {
			sb.WriteRune(l.ch)
		}
		l.advance()
	}

	if l.eol {
		return Token{}, errorAt(start, "unterminated string literal")
	}
	l.advance() // closing quote

	return Token{Type: TokenString, Literal: sb.String(), Pos: start}, nil
}

// escapes maps the character after a backslash to the rune it denotes.
var escapes = map[rune]rune{
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'n':  '\n',
	't':  '\t',
	'v':  '\v',
	'a':  '\a',
	'f':  '\f',
	'r':  '\r',
	'0':  0,
}

// isSeparator reports whether r separates tokens outside of string literals.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
