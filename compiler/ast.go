package compiler

// ---------------------------------------------------------------------------
// Statements: the decoded form of a TokenLine
// ---------------------------------------------------------------------------

// Stmt is the interface implemented by every decoded statement. The set of
// implementations is closed; executors switch over it exhaustively.
type Stmt interface {
	Pos() Position
	stmt() // marker method
}

// Operand is the value part of def, set and ret: either a single string
// literal or a postfix expression.
type Operand struct {
	IsString bool
	Text     string  // string contents when IsString
	Expr     []Token // postfix tokens otherwise
}

// RemStmt is a comment line (rem ...).
type RemStmt struct {
	At Position
}

func (s *RemStmt) Pos() Position { return s.At }
func (s *RemStmt) stmt()         {}

// LabelStmt registers a resume point (lbl name).
type LabelStmt struct {
	At   Position
	Name string
}

func (s *LabelStmt) Pos() Position { return s.At }
func (s *LabelStmt) stmt()         {}

// GotoStmt jumps back to an already-registered label (goto name).
type GotoStmt struct {
	At   Position
	Name string
}

func (s *GotoStmt) Pos() Position { return s.At }
func (s *GotoStmt) stmt()         {}

// ImportStmt loads a native module (import "path").
type ImportStmt struct {
	At   Position
	Path string
}

func (s *ImportStmt) Pos() Position { return s.At }
func (s *ImportStmt) stmt()         {}

// FunStmt opens a function definition (fun name [argc]). The body is the
// run of lines up to the matching end line.
type FunStmt struct {
	At   Position
	Name string
	Argc int
}

func (s *FunStmt) Pos() Position { return s.At }
func (s *FunStmt) stmt()         {}

// EndStmt closes a function definition.
type EndStmt struct {
	At Position
}

func (s *EndStmt) Pos() Position { return s.At }
func (s *EndStmt) stmt()         {}

// StructStmt declares a struct name. It has no runtime effect yet.
type StructStmt struct {
	At   Position
	Name string
}

func (s *StructStmt) Pos() Position { return s.At }
func (s *StructStmt) stmt()         {}

// DefStmt defines a new variable (def name value).
type DefStmt struct {
	At    Position
	Name  string
	Value Operand
}

func (s *DefStmt) Pos() Position { return s.At }
func (s *DefStmt) stmt()         {}

// SetStmt assigns to an existing variable (set name value).
type SetStmt struct {
	At    Position
	Name  string
	Value Operand
}

func (s *SetStmt) Pos() Position { return s.At }
func (s *SetStmt) stmt()         {}

// CallStmt invokes a function with variable handles as arguments
// (call [into out] func [with] args...).
type CallStmt struct {
	At   Position
	Into string // empty when the result is discarded
	Func string
	Args []Token
}

func (s *CallStmt) Pos() Position { return s.At }
func (s *CallStmt) stmt()         {}

// RetStmt returns from the current function (ret value).
type RetStmt struct {
	At    Position
	Value Operand
}

func (s *RetStmt) Pos() Position { return s.At }
func (s *RetStmt) stmt()         {}

// IfStmt skips the next line unless its condition holds (if expr / ifn expr).
type IfStmt struct {
	At     Position
	Negate bool
	Cond   []Token
}

func (s *IfStmt) Pos() Position { return s.At }
func (s *IfStmt) stmt()         {}

// Keywords lists every statement keyword with a one-line synopsis.
var Keywords = map[string]string{
	"rem":    "rem ... (comment)",
	"lbl":    "lbl <name> (function body only)",
	"goto":   "goto <name> (function body only, backward jumps)",
	"import": "import \"<module>\" (top level only)",
	"fun":    "fun <name> [argc] ... end (top level only)",
	"end":    "end (closes fun)",
	"struct": "struct <name> (top level only, no effect)",
	"def":    "def <name> <\"string\" | postfix expr> (function body only)",
	"set":    "set <name> <\"string\" | postfix expr> (function body only)",
	"call":   "call [into <out>] <func> [with] [args...] (function body only)",
	"ret":    "ret <\"string\" | postfix expr> (function body only)",
	"if":     "if <postfix expr> (skips the next line when false)",
	"ifn":    "ifn <postfix expr> (skips the next line when true)",
}
