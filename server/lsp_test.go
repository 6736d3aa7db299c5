package server

import (
	"io"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/jil/vm/stdlib"
)

const sampleDoc = `import "std/io"
fun double 1
  lbl top
  ret $0 2 *
end
fun main
  def x 3
  call into y double x
  call println y
  ret y
end`

func newTestServer(t *testing.T, text string) (*LspServer, *document) {
	t.Helper()
	s := NewLSP(stdlib.Modules(io.Discard))
	doc := s.update("file:///sample.jil", text)
	return s, doc
}

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "call into r double"
	pos := protocol.Position{Line: 0, Character: 18}
	prefix := extractPrefix(text, pos)
	if prefix != "double" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "double")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "fun main\n  def x 1\n  pri"
	pos := protocol.Position{Line: 2, Character: 5}
	prefix := extractPrefix(text, pos)
	if prefix != "pri" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "pri")
	}
}

func TestExtractPrefix_Parameter(t *testing.T) {
	text := "  ret $1"
	pos := protocol.Position{Line: 0, Character: 8}
	prefix := extractPrefix(text, pos)
	if prefix != "$1" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "$1")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

// ---------------------------------------------------------------------------
// extractWord
// ---------------------------------------------------------------------------

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"goto top", protocol.Position{Line: 0, Character: 6}, "top"},
		{"goto top", protocol.Position{Line: 0, Character: 4}, "goto"},
		{"ret $0 2 *", protocol.Position{Line: 0, Character: 5}, "$0"},
		{"first\nmy_var", protocol.Position{Line: 1, Character: 3}, "my_var"},
		{"ret 1 2 +", protocol.Position{Line: 0, Character: 9}, ""},
		{"", protocol.Position{Line: 0, Character: 0}, ""},
		{"single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tc := range tests {
		if got := extractWord(tc.text, tc.pos); got != tc.want {
			t.Errorf("extractWord(%q, %d:%d) = %q, want %q", tc.text, tc.pos.Line, tc.pos.Character, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// boolPtr
// ---------------------------------------------------------------------------

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestLSP_DiagnosticsCleanDocument(t *testing.T) {
	_, doc := newTestServer(t, sampleDoc)
	if got := diagnostics(doc); len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestLSP_Diagnostics(t *testing.T) {
	_, doc := newTestServer(t, "def x 1\nfun main\n  goto nowhere\n  ret 0\nend")
	diags := diagnostics(doc)
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %d, want 2: %v", len(diags), diags)
	}

	first := diags[0]
	if first.Message != "cannot use 'def' operation outside of function" {
		t.Errorf("first message = %q", first.Message)
	}
	if first.Range.Start.Line != 0 || first.Range.Start.Character != 0 || first.Range.End.Character != 3 {
		t.Errorf("first range = %+v, want 0:0-0:3", first.Range)
	}
	if first.Severity == nil || *first.Severity != protocol.DiagnosticSeverityError {
		t.Error("first diagnostic should be an error")
	}

	second := diags[1]
	if second.Message != "unknown label 'nowhere'" {
		t.Errorf("second message = %q", second.Message)
	}
	if second.Range.Start.Line != 2 || second.Range.Start.Character != 2 {
		t.Errorf("second range start = %+v, want 2:2", second.Range.Start)
	}
	if second.Source == nil || *second.Source != lspName {
		t.Errorf("source = %v, want %s", second.Source, lspName)
	}
}

func TestLSP_DiagnosticsForwardGotoIsWarning(t *testing.T) {
	_, doc := newTestServer(t, "fun main\n  goto later\n  lbl later\n  ret 0\nend")
	diags := diagnostics(doc)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want one warning", diags)
	}
	if *diags[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("severity = %v, want warning", *diags[0].Severity)
	}
}

// ---------------------------------------------------------------------------
// Completion and hover
// ---------------------------------------------------------------------------

func completionLabels(items []protocol.CompletionItem) map[string]protocol.CompletionItemKind {
	labels := make(map[string]protocol.CompletionItemKind)
	for _, item := range items {
		labels[item.Label] = *item.Kind
	}
	return labels
}

func TestLSP_Complete(t *testing.T) {
	s, doc := newTestServer(t, sampleDoc)

	labels := completionLabels(s.complete(doc, "d"))
	if labels["def"] != protocol.CompletionItemKindKeyword {
		t.Errorf("def kind = %v, want keyword", labels["def"])
	}
	if labels["double"] != protocol.CompletionItemKindFunction {
		t.Errorf("double kind = %v, want function", labels["double"])
	}
	if _, ok := labels["main"]; ok {
		t.Error("main does not match prefix d")
	}
}

func TestLSP_CompleteImportedNatives(t *testing.T) {
	s, doc := newTestServer(t, sampleDoc)

	labels := completionLabels(s.complete(doc, "print"))
	for _, want := range []string{"print", "println", "prints", "printsln"} {
		if _, ok := labels[want]; !ok {
			t.Errorf("completion missing %q: %v", want, labels)
		}
	}
	if _, ok := labels["malloc"]; ok {
		t.Error("std/mem is not imported but malloc was offered")
	}
}

func TestLSP_CompleteWithoutLoader(t *testing.T) {
	s := NewLSP(nil)
	doc := s.update("file:///x.jil", sampleDoc)
	if labels := completionLabels(s.complete(doc, "print")); len(labels) != 0 {
		t.Errorf("completion = %v, want none without a loader", labels)
	}
}

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

func TestLSP_Hover(t *testing.T) {
	s, doc := newTestServer(t, sampleDoc)

	tests := []struct {
		word string
		want string
	}{
		{"call", "call [into <out>] <func>"},
		{"double", "1 argument, defined on line 2"},
		{"main", "0 arguments, defined on line 6"},
		{"top", "Label in `double`"},
		{"println", "Native function from `std/io`"},
	}
	for _, tc := range tests {
		if got := hoverText(t, s.hover(doc, tc.word)); !strings.Contains(got, tc.want) {
			t.Errorf("hover(%s) = %q, want it to contain %q", tc.word, got, tc.want)
		}
	}

	if h := s.hover(doc, "nosuchthing"); h != nil {
		t.Errorf("hover for unknown word = %v, want nil", h)
	}
}

// ---------------------------------------------------------------------------
// Definition and document symbols
// ---------------------------------------------------------------------------

func TestLSP_Definition(t *testing.T) {
	_, doc := newTestServer(t, sampleDoc)
	uri := protocol.DocumentUri("file:///sample.jil")

	locs := definition(uri, doc, "double", 8)
	if len(locs) != 1 {
		t.Fatalf("definition(double) = %v, want one location", locs)
	}
	if got := locs[0].Range.Start; got.Line != 1 || got.Character != 4 {
		t.Errorf("double starts at %d:%d, want 1:4", got.Line, got.Character)
	}

	locs = definition(uri, doc, "top", 4)
	if len(locs) != 1 || locs[0].Range.Start.Line != 2 || locs[0].Range.Start.Character != 6 {
		t.Errorf("definition(top) = %v, want 2:6", locs)
	}

	if locs := definition(uri, doc, "top", 9); len(locs) != 0 {
		t.Errorf("label of another function resolved: %v", locs)
	}
	if locs := definition(uri, doc, "x", 8); len(locs) != 0 {
		t.Errorf("variables have no definition location, got %v", locs)
	}
}

func TestLSP_DocumentSymbols(t *testing.T) {
	_, doc := newTestServer(t, sampleDoc+"\nstruct point")

	syms := documentSymbols(doc)
	if len(syms) != 3 {
		t.Fatalf("symbols = %d, want 3: %+v", len(syms), syms)
	}

	double := syms[0]
	if double.Name != "double" || double.Kind != protocol.SymbolKindFunction {
		t.Errorf("first symbol = %s (%v)", double.Name, double.Kind)
	}
	if double.Range.Start.Line != 1 || double.Range.End.Line != 4 {
		t.Errorf("double range = %d-%d, want 1-4", double.Range.Start.Line, double.Range.End.Line)
	}
	if len(double.Children) != 1 || double.Children[0].Name != "top" {
		t.Errorf("double children = %+v, want [top]", double.Children)
	}
	if syms[1].Name != "main" || len(syms[1].Children) != 0 {
		t.Errorf("second symbol = %+v", syms[1])
	}
	if syms[2].Name != "point" || syms[2].Kind != protocol.SymbolKindStruct {
		t.Errorf("third symbol = %+v", syms[2])
	}
}

func TestLSP_UnterminatedFunctionRange(t *testing.T) {
	_, doc := newTestServer(t, "fun main\n  ret 0\n")
	syms := documentSymbols(doc)
	if len(syms) != 1 {
		t.Fatalf("symbols = %+v", syms)
	}
	if got := syms[0].Range.End.Line; got != 2 {
		t.Errorf("range end line = %d, want 2 (end of document)", got)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	s := NewLSP(nil)
	uri := protocol.DocumentUri("file:///test.jil")

	s.update(uri, "fun main\nend")
	doc, ok := s.document(uri)
	if !ok {
		t.Fatal("document should be stored after open")
	}
	if len(doc.report.Lines) != 2 {
		t.Errorf("analysed lines = %d, want 2", len(doc.report.Lines))
	}

	s.update(uri, "fun main\n  ret 1\nend")
	doc, _ = s.document(uri)
	if !strings.Contains(doc.text, "ret 1") {
		t.Errorf("document text = %q, want updated content", doc.text)
	}

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()
	if _, ok := s.document(uri); ok {
		t.Error("document should be removed after close")
	}
}
