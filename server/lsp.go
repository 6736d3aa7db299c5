package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/jil/compiler"
	"github.com/chazu/jil/vm"
)

const lspName = "jil-lsp"

var lspLog = commonlog.GetLogger("jil.lsp")

// LspServer provides editor features for JIL source files. Every request is
// answered from a static check of the open document; nothing is executed.
type LspServer struct {
	modules vm.ModuleLoader

	mu   sync.Mutex
	docs map[string]*document // URI → latest analysed content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

type document struct {
	text   string
	lines  []string
	report *compiler.Report
}

func newDocument(text string) *document {
	return &document{
		text:   text,
		lines:  strings.Split(text, "\n"),
		report: compiler.Check(text),
	}
}

// NewLSP creates a language server. Imported modules are resolved through
// modules so their exports show up in completion and hover; a nil loader
// disables that.
func NewLSP(modules vm.ModuleLoader) *LspServer {
	s := &LspServer{
		modules: modules,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("JIL LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"$"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := newDocument(text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	lspLog.Debugf("%s: %d lines, %d diagnostics", uri, len(doc.report.Lines), len(doc.report.Diagnostics))
	return doc
}

func (s *LspServer) document(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(doc, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return s.hover(doc, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	locs := definition(uri, doc, word, int(params.Position.Line)+1)
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return documentSymbols(doc), nil
}

// --- Analysis ---

// imports resolves the modules a document imports. Modules the loader cannot
// find are skipped; the runtime reports them when the script is executed.
func (s *LspServer) imports(doc *document) []*vm.Module {
	if s.modules == nil {
		return nil
	}
	var mods []*vm.Module
	for _, tl := range doc.report.Lines {
		if tl.Keyword() != "import" {
			continue
		}
		stmt, err := compiler.Decode(tl)
		if err != nil {
			continue
		}
		m, err := s.modules.Load(stmt.(*compiler.ImportStmt).Path)
		if err != nil {
			lspLog.Debugf("import: %v", err)
			continue
		}
		mods = append(mods, m)
	}
	return mods
}

func (s *LspServer) complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	keywords := make([]string, 0, len(compiler.Keywords))
	for kw := range compiler.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, compiler.Keywords[kw], protocol.CompletionItemKindKeyword)
	}

	for _, sym := range doc.report.Symbols {
		switch sym.Kind {
		case compiler.SymbolFunction:
			add(sym.Name, fmt.Sprintf("fun %s %d", sym.Name, sym.Argc), protocol.CompletionItemKindFunction)
		case compiler.SymbolLabel:
			add(sym.Name, "label in "+sym.Function, protocol.CompletionItemKindReference)
		case compiler.SymbolStruct:
			add(sym.Name, "struct", protocol.CompletionItemKindStruct)
		}
	}

	for _, m := range s.imports(doc) {
		for _, d := range m.Exports {
			add(d.ExportName(), fmt.Sprintf("native %s (%d args) from %s", d.ExportName(), len(d.Params)-2, m.Name), protocol.CompletionItemKindFunction)
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(doc *document, word string) *protocol.Hover {
	var b strings.Builder

	if synopsis, ok := compiler.Keywords[word]; ok {
		fmt.Fprintf(&b, "**%s**\n\n`%s`", word, synopsis)
		return markdown(b.String())
	}

	for _, sym := range doc.report.Symbols {
		if sym.Name != word {
			continue
		}
		switch sym.Kind {
		case compiler.SymbolFunction:
			fmt.Fprintf(&b, "**fun %s**\n\n%s, defined on line %d", sym.Name, plural(sym.Argc, "argument"), sym.Pos.Line)
		case compiler.SymbolLabel:
			fmt.Fprintf(&b, "**lbl %s**\n\nLabel in `%s`, line %d", sym.Name, sym.Function, sym.Pos.Line)
		case compiler.SymbolStruct:
			fmt.Fprintf(&b, "**struct %s**\n\nDeclared on line %d", sym.Name, sym.Pos.Line)
		}
		return markdown(b.String())
	}

	for _, m := range s.imports(doc) {
		for _, d := range m.Exports {
			if d.ExportName() != word {
				continue
			}
			fmt.Fprintf(&b, "**%s**\n\nNative function from `%s`, %s", word, m.Name, plural(len(d.Params)-2, "argument"))
			if d.Symbol != d.ExportName() {
				fmt.Fprintf(&b, "\n\nBound to `%s`", d.Symbol)
			}
			return markdown(b.String())
		}
	}
	return nil
}

// definition finds the fun or lbl line declaring word. Labels are resolved
// within the function enclosing line.
func definition(uri protocol.DocumentUri, doc *document, word string, line int) []protocol.Location {
	var locs []protocol.Location
	enclosing := enclosingFunction(doc, line)
	for _, sym := range doc.report.Symbols {
		if sym.Name != word {
			continue
		}
		if sym.Kind == compiler.SymbolLabel && sym.Function != enclosing {
			continue
		}
		locs = append(locs, protocol.Location{URI: uri, Range: wordRange(doc, sym.Pos, sym.Name)})
	}
	return locs
}

func enclosingFunction(doc *document, line int) string {
	name := ""
	for _, sym := range doc.report.Symbols {
		if sym.Kind == compiler.SymbolFunction && sym.Pos.Line <= line {
			name = sym.Name
		}
	}
	return name
}

func documentSymbols(doc *document) []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	for _, sym := range doc.report.Symbols {
		switch sym.Kind {
		case compiler.SymbolFunction:
			detail := plural(sym.Argc, "argument")
			out = append(out, protocol.DocumentSymbol{
				Name:           sym.Name,
				Detail:         &detail,
				Kind:           protocol.SymbolKindFunction,
				Range:          functionRange(doc, sym.Pos),
				SelectionRange: wordRange(doc, sym.Pos, sym.Name),
			})
		case compiler.SymbolLabel:
			r := wordRange(doc, sym.Pos, sym.Name)
			child := protocol.DocumentSymbol{Name: sym.Name, Kind: protocol.SymbolKindKey, Range: r, SelectionRange: r}
			for i := len(out) - 1; i >= 0; i-- {
				if out[i].Kind == protocol.SymbolKindFunction && out[i].Name == sym.Function {
					out[i].Children = append(out[i].Children, child)
					break
				}
			}
		case compiler.SymbolStruct:
			r := wordRange(doc, sym.Pos, sym.Name)
			out = append(out, protocol.DocumentSymbol{Name: sym.Name, Kind: protocol.SymbolKindStruct, Range: r, SelectionRange: r})
		}
	}
	return out
}

// functionRange spans a fun line through its end line, or to the end of the
// document when the definition is unterminated.
func functionRange(doc *document, at compiler.Position) protocol.Range {
	endLine := len(doc.lines)
	for i, tl := range doc.report.Lines {
		if tl.Pos() != at {
			continue
		}
		if end := compiler.FindEnd(doc.report.Lines, i+1); end >= 0 {
			endLine = doc.report.Lines[end].Pos().Line
		}
		break
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(at.Line - 1), Character: 0},
		End:   protocol.Position{Line: protocol.UInteger(endLine - 1), Character: protocol.UInteger(lineLen(doc, endLine))},
	}
}

// wordRange locates name on the declaring line, falling back to the
// statement position.
func wordRange(doc *document, at compiler.Position, name string) protocol.Range {
	line := at.Line - 1
	col := at.Column - 1
	if line >= 0 && line < len(doc.lines) {
		if i := strings.Index(doc.lines[line][min(col, len(doc.lines[line])):], name); i >= 0 {
			col += i
		}
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col + len(name))},
	}
}

func lineLen(doc *document, line int) int {
	if line < 1 || line > len(doc.lines) {
		return 0
	}
	return len(doc.lines[line-1])
}

// --- Diagnostics ---

func diagnostics(doc *document) []protocol.Diagnostic {
	source := lspName
	out := []protocol.Diagnostic{}
	for _, d := range doc.report.Diagnostics {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range:    tokenRange(doc, d.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  d.Msg,
		})
	}
	return out
}

// tokenRange covers the run of non-space characters starting at pos.
func tokenRange(doc *document, pos compiler.Position) protocol.Range {
	line, col := pos.Line-1, pos.Column-1
	if line < 0 {
		line, col = 0, 0
	}
	if col < 0 {
		col = 0
	}
	end := col
	if line < len(doc.lines) {
		text := doc.lines[line]
		for end < len(text) && !unicode.IsSpace(rune(text[end])) {
			end++
		}
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(end)},
	}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

// --- Text extraction helpers ---

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func markdown(text string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: text,
		},
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func boolPtr(b bool) *bool {
	return &b
}
