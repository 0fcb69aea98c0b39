package pyright

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonmmease/jons-pyright-mcp/internal/config"
	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

type positionArgs struct {
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
	pageParams
}

type referencesArgs struct {
	positionArgs
	IncludeDeclaration *bool `json:"includeDeclaration,omitempty"`
}

type fileArgs struct {
	Path string `json:"path"`
	pageParams
}

type rangeArgs struct {
	Path           string `json:"path"`
	StartLine      int    `json:"startLine"`
	StartCharacter int    `json:"startCharacter"`
	EndLine        int    `json:"endLine"`
	EndCharacter   int    `json:"endCharacter"`
}

type renameArgs struct {
	positionArgs
	NewName string `json:"newName"`
	Apply   bool   `json:"apply"`
}

type formatArgs struct {
	rangeArgs
	TabSize      *int  `json:"tabSize,omitempty"`
	InsertSpaces *bool `json:"insertSpaces,omitempty"`
	Apply        bool  `json:"apply"`
}

type diagnosticsArgs struct {
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"`
	pageParams
}

type addImportArgs struct {
	Path      string `json:"path"`
	Statement string `json:"statement"`
	Apply     bool   `json:"apply"`
}

type applyFileArgs struct {
	Path  string `json:"path"`
	Apply bool   `json:"apply"`
}

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func (r *Router) buildHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"hover":             r.handleHover,
		"completion":        r.handleCompletion,
		"definition":        r.locationsHandler("textDocument/definition"),
		"type_definition":   r.locationsHandler("textDocument/typeDefinition"),
		"implementation":    r.locationsHandler("textDocument/implementation"),
		"references":        r.handleReferences,
		"document_symbols":  r.handleDocumentSymbols,
		"workspace_symbols": r.handleWorkspaceSymbols,
		"diagnostics":       r.handleDiagnostics,
		"code_actions":      r.handleCodeActions,
		"rename":            r.handleRename,
		"semantic_tokens":   r.handleSemanticTokens,
		"signature_help":    r.handleSignatureHelp,
		"format_document":   r.handleFormatDocument,
		"format_range":      r.handleFormatRange,
		"organize_imports":  r.handleOrganizeImports,
		"add_import":        r.handleAddImport,
		"create_config":     r.handleCreateConfig,
		"restart_server":    r.handleRestartServer,
	}
}

// openDocument resolves a tool path, makes sure the document is open on the
// current session, and returns both.
func (r *Router) openDocument(path string) (LanguageClient, lsp.DocumentURI, error) {
	client, err := r.currentClient()
	if err != nil {
		return nil, "", err
	}
	abs, err := r.absPath(path)
	if err != nil {
		return nil, "", err
	}
	uri, err := r.docs.ensureOpen(client, abs)
	if err != nil {
		return nil, "", err
	}
	return client, uri, nil
}

func positionParams(uri lsp.DocumentURI, line, character int) lsp.TextDocumentPositionParams {
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Position:     lsp.Position{Line: line, Character: character},
	}
}

// --- Query tools ---

func (r *Router) handleHover(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[positionArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var hover lsp.Hover
	if err := client.Call(ctx, "textDocument/hover", positionParams(uri, args.Line, args.Character), &hover); err != nil {
		return nil, err
	}

	text := lsp.RenderHoverContents(hover.Contents)
	if text == "" {
		return "No hover information at this position.", nil
	}
	result := map[string]any{"contents": text}
	if hover.Range != nil {
		result["range"] = hover.Range
	}
	return result, nil
}

var completionKindNames = map[int]string{
	1: "text", 2: "method", 3: "function", 4: "constructor", 5: "field",
	6: "variable", 7: "class", 8: "interface", 9: "module", 10: "property",
	11: "unit", 12: "value", 13: "enum", 14: "keyword", 15: "snippet",
	16: "color", 17: "file", 18: "reference", 19: "folder", 20: "enummember",
	21: "constant", 22: "struct", 23: "event", 24: "operator", 25: "typeparameter",
}

func (r *Router) handleCompletion(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[positionArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	params := lsp.CompletionParams{TextDocumentPositionParams: positionParams(uri, args.Line, args.Character)}
	if err := client.Call(ctx, "textDocument/completion", params, &result); err != nil {
		return nil, err
	}
	list, err := lsp.ParseCompletionResult(result)
	if err != nil {
		return nil, err
	}

	sorted := append([]lsp.CompletionItem(nil), list.Items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].SortText, sorted[j].SortText
		if a == "" {
			a = sorted[i].Label
		}
		if b == "" {
			b = sorted[j].Label
		}
		return a < b
	})

	items := make([]map[string]any, 0, len(sorted))
	for _, item := range sorted {
		entry := map[string]any{"label": item.Label}
		if name, ok := completionKindNames[item.Kind]; ok {
			entry["kind"] = name
		}
		if item.Detail != "" {
			entry["detail"] = item.Detail
		}
		items = append(items, entry)
	}
	return paginate(items, args.pageParams), nil
}

// locationsHandler serves the definition-family methods, which all share
// parameter and result shapes.
func (r *Router) locationsHandler(method string) toolHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		args, err := decodeArgs[positionArgs](raw)
		if err != nil {
			return nil, err
		}
		client, uri, err := r.openDocument(args.Path)
		if err != nil {
			return nil, err
		}

		var result json.RawMessage
		if err := client.Call(ctx, method, positionParams(uri, args.Line, args.Character), &result); err != nil {
			return nil, err
		}
		locations, err := lsp.ParseLocationResult(result)
		if err != nil {
			return nil, err
		}
		return paginate(r.locationItems(locations), args.pageParams), nil
	}
}

func (r *Router) locationItems(locations []lsp.Location) []map[string]any {
	items := make([]map[string]any, 0, len(locations))
	for _, loc := range locations {
		items = append(items, map[string]any{
			"path":      r.relPath(loc.URI),
			"line":      loc.Range.Start.Line,
			"character": loc.Range.Start.Character,
		})
	}
	return items
}

func (r *Router) handleReferences(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[referencesArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	includeDeclaration := true
	if args.IncludeDeclaration != nil {
		includeDeclaration = *args.IncludeDeclaration
	}

	var locations []lsp.Location
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: positionParams(uri, args.Line, args.Character),
		Context:                    lsp.ReferenceContext{IncludeDeclaration: includeDeclaration},
	}
	if err := client.Call(ctx, "textDocument/references", params, &locations); err != nil {
		return nil, err
	}
	return paginate(r.locationItems(locations), args.pageParams), nil
}

func (r *Router) handleDocumentSymbols(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[fileArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	params := lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	if err := client.Call(ctx, "textDocument/documentSymbol", params, &result); err != nil {
		return nil, err
	}

	var items []map[string]any

	// The flat SymbolInformation shape carries a location; the hierarchical
	// DocumentSymbol shape does not, which is how the two are told apart.
	var flat []lsp.SymbolInformation
	if err := json.Unmarshal(result, &flat); err == nil && len(flat) > 0 && flat[0].Location.URI != "" {
		for _, sym := range flat {
			items = append(items, map[string]any{
				"name":      sym.Name,
				"kind":      sym.Kind.String(),
				"container": sym.ContainerName,
				"line":      sym.Location.Range.Start.Line,
				"character": sym.Location.Range.Start.Character,
			})
		}
		return paginate(items, args.pageParams), nil
	}

	var tree []lsp.DocumentSymbol
	if len(result) > 0 {
		if err := json.Unmarshal(result, &tree); err != nil {
			return nil, fmt.Errorf("%w: unrecognized symbol shape", lsp.ErrInvalidResponse)
		}
	}
	flattenSymbols(tree, "", &items)
	return paginate(items, args.pageParams), nil
}

// flattenSymbols walks the symbol tree depth first, recording each symbol's
// enclosing container by name.
func flattenSymbols(symbols []lsp.DocumentSymbol, container string, out *[]map[string]any) {
	for _, sym := range symbols {
		entry := map[string]any{
			"name":      sym.Name,
			"kind":      sym.Kind.String(),
			"line":      sym.SelectionRange.Start.Line,
			"character": sym.SelectionRange.Start.Character,
		}
		if container != "" {
			entry["container"] = container
		}
		if sym.Detail != "" {
			entry["detail"] = sym.Detail
		}
		*out = append(*out, entry)
		flattenSymbols(sym.Children, sym.Name, out)
	}
}

func (r *Router) handleWorkspaceSymbols(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[struct {
		Query string `json:"query"`
		pageParams
	}](raw)
	if err != nil {
		return nil, err
	}
	client, err := r.currentClient()
	if err != nil {
		return nil, err
	}

	var symbols []lsp.SymbolInformation
	if err := client.Call(ctx, "workspace/symbol", lsp.WorkspaceSymbolParams{Query: args.Query}, &symbols); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(symbols))
	for _, sym := range symbols {
		entry := map[string]any{
			"name":      sym.Name,
			"kind":      sym.Kind.String(),
			"path":      r.relPath(sym.Location.URI),
			"line":      sym.Location.Range.Start.Line,
			"character": sym.Location.Range.Start.Character,
		}
		if sym.ContainerName != "" {
			entry["container"] = sym.ContainerName
		}
		items = append(items, entry)
	}
	return paginate(items, args.pageParams), nil
}

func (r *Router) handleDiagnostics(_ context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[diagnosticsArgs](raw)
	if err != nil {
		return nil, err
	}

	byURI := r.diags.all()
	if args.Path != "" {
		abs, err := r.absPath(args.Path)
		if err != nil {
			return nil, err
		}
		uri := lsp.FilePathToURI(abs)
		byURI = map[lsp.DocumentURI][]lsp.Diagnostic{uri: byURI[uri]}
	}

	uris := make([]lsp.DocumentURI, 0, len(byURI))
	for uri := range byURI {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	var items []map[string]any
	for _, uri := range uris {
		rel := r.relPath(uri)
		// Config include/exclude filters apply to workspace files only;
		// anything outside the root has a ../ prefix and passes through.
		if !strings.HasPrefix(rel, "../") && !r.matcher.Allowed(rel) {
			continue
		}
		for _, diag := range byURI[uri] {
			if args.Severity != "" && diag.Severity.String() != args.Severity {
				continue
			}
			entry := map[string]any{
				"path":      rel,
				"line":      diag.Range.Start.Line,
				"character": diag.Range.Start.Character,
				"severity":  diag.Severity.String(),
				"message":   diag.Message,
			}
			if diag.Code != nil {
				entry["rule"] = diag.Code
			}
			if diag.Source != "" {
				entry["source"] = diag.Source
			}
			items = append(items, entry)
		}
	}
	return paginate(items, args.pageParams), nil
}

func (r *Router) handleCodeActions(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[rangeArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	rng := lsp.Range{
		Start: lsp.Position{Line: args.StartLine, Character: args.StartCharacter},
		End:   lsp.Position{Line: args.EndLine, Character: args.EndCharacter},
	}

	// The context carries the known diagnostics overlapping the range so the
	// server can offer targeted fixes.
	var overlapping []lsp.Diagnostic
	for _, diag := range r.diags.get(uri) {
		if diag.Range.Start.Line <= rng.End.Line && diag.Range.End.Line >= rng.Start.Line {
			overlapping = append(overlapping, diag)
		}
	}

	var actions []lsp.CodeAction
	params := lsp.CodeActionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Range:        rng,
		Context:      lsp.CodeActionContext{Diagnostics: overlapping},
	}
	if err := client.Call(ctx, "textDocument/codeAction", params, &actions); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(actions))
	for _, action := range actions {
		entry := map[string]any{
			"title":   action.Title,
			"hasEdit": action.Edit != nil,
		}
		if action.Kind != "" {
			entry["kind"] = action.Kind
		}
		if action.IsPreferred {
			entry["isPreferred"] = true
		}
		if action.Command != nil {
			entry["command"] = action.Command.Command
		}
		out = append(out, entry)
	}
	return map[string]any{"actions": out, "count": len(out)}, nil
}

func (r *Router) handleSemanticTokens(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[fileArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	provider := client.Capabilities().SemanticTokensProvider
	if provider == nil {
		return nil, errors.New("the language server does not provide semantic tokens")
	}

	var tokens lsp.SemanticTokens
	params := lsp.SemanticTokensParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	if err := client.Call(ctx, "textDocument/semanticTokens/full", params, &tokens); err != nil {
		return nil, err
	}

	decoded := decodeSemanticTokens(tokens.Data, provider.Legend)
	items := make([]map[string]any, 0, len(decoded))
	for _, tok := range decoded {
		entry := map[string]any{
			"line":      tok.Line,
			"character": tok.Character,
			"length":    tok.Length,
			"type":      tok.Type,
		}
		if len(tok.Modifiers) > 0 {
			entry["modifiers"] = tok.Modifiers
		}
		items = append(items, entry)
	}
	return paginate(items, args.pageParams), nil
}

func (r *Router) handleSignatureHelp(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[positionArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var help lsp.SignatureHelp
	params := lsp.SignatureHelpParams{TextDocumentPositionParams: positionParams(uri, args.Line, args.Character)}
	if err := client.Call(ctx, "textDocument/signatureHelp", params, &help); err != nil {
		return nil, err
	}
	if len(help.Signatures) == 0 {
		return "No signature help at this position.", nil
	}

	signatures := make([]map[string]any, 0, len(help.Signatures))
	for i, sig := range help.Signatures {
		active := i == help.ActiveSignature
		entry := map[string]any{
			"label":  sig.Label,
			"active": active,
		}
		params := make([]map[string]any, 0, len(sig.Parameters))
		for j, p := range sig.Parameters {
			params = append(params, map[string]any{
				"label":  parameterLabel(sig.Label, p.Label),
				"active": active && j == help.ActiveParameter,
			})
		}
		if len(params) > 0 {
			entry["parameters"] = params
		}
		signatures = append(signatures, entry)
	}
	return map[string]any{
		"signatures":      signatures,
		"activeSignature": help.ActiveSignature,
		"activeParameter": help.ActiveParameter,
	}, nil
}

// parameterLabel resolves a parameter label, which the protocol allows to be
// either a string or [start, end] offsets into the signature label.
func parameterLabel(signatureLabel string, label any) string {
	switch v := label.(type) {
	case string:
		return v
	case []any:
		if len(v) == 2 {
			start, okS := v[0].(float64)
			end, okE := v[1].(float64)
			if okS && okE && int(start) >= 0 && int(end) <= len(signatureLabel) && int(start) <= int(end) {
				return signatureLabel[int(start):int(end)]
			}
		}
	}
	return fmt.Sprintf("%v", label)
}

// --- Editing tools ---

func (r *Router) handleRename(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[renameArgs](raw)
	if err != nil {
		return nil, err
	}
	if args.NewName == "" {
		return nil, errors.New("newName is required")
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	// prepareRename acts as a gate: a failure or empty answer means the
	// position does not hold a renameable symbol.
	var prepared json.RawMessage
	if err := client.Call(ctx, "textDocument/prepareRename", positionParams(uri, args.Line, args.Character), &prepared); err != nil {
		return nil, fmt.Errorf("rename is not available here: %w", err)
	}
	if len(prepared) == 0 {
		return nil, errors.New("no renameable symbol at this position")
	}

	var edit lsp.WorkspaceEdit
	params := lsp.RenameParams{
		TextDocumentPositionParams: positionParams(uri, args.Line, args.Character),
		NewName:                    args.NewName,
	}
	if err := client.Call(ctx, "textDocument/rename", params, &edit); err != nil {
		return nil, err
	}

	return r.renderEditResult(&edit, args.Apply)
}

// renderEditResult previews a workspace edit and optionally writes it.
func (r *Router) renderEditResult(edit *lsp.WorkspaceEdit, apply bool) (any, error) {
	preview, err := previewWorkspaceEdit(edit, r.relPath)
	if err != nil {
		return nil, err
	}
	if preview.total == 0 {
		return "No changes.", nil
	}
	if apply {
		if err := preview.write(); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"filesChanged": len(preview.changes),
		"totalEdits":   preview.total,
		"changes":      preview.changes,
		"diff":         preview.diff,
		"applied":      apply,
	}, nil
}

func (r *Router) handleFormatDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[formatArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var edits []lsp.TextEdit
	params := lsp.DocumentFormattingParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Options:      formattingOptions(args),
	}
	if err := client.Call(ctx, "textDocument/formatting", params, &edits); err != nil {
		return nil, err
	}
	return r.renderEditResult(&lsp.WorkspaceEdit{
		Changes: map[lsp.DocumentURI][]lsp.TextEdit{uri: edits},
	}, args.Apply)
}

func (r *Router) handleFormatRange(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[formatArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	var edits []lsp.TextEdit
	params := lsp.DocumentRangeFormattingParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Range: lsp.Range{
			Start: lsp.Position{Line: args.StartLine, Character: args.StartCharacter},
			End:   lsp.Position{Line: args.EndLine, Character: args.EndCharacter},
		},
		Options: formattingOptions(args),
	}
	if err := client.Call(ctx, "textDocument/rangeFormatting", params, &edits); err != nil {
		return nil, err
	}
	return r.renderEditResult(&lsp.WorkspaceEdit{
		Changes: map[lsp.DocumentURI][]lsp.TextEdit{uri: edits},
	}, args.Apply)
}

func formattingOptions(args formatArgs) lsp.FormattingOptions {
	opts := lsp.FormattingOptions{TabSize: 4, InsertSpaces: true}
	if args.TabSize != nil && *args.TabSize > 0 {
		opts.TabSize = *args.TabSize
	}
	if args.InsertSpaces != nil {
		opts.InsertSpaces = *args.InsertSpaces
	}
	return opts
}

func (r *Router) handleOrganizeImports(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[applyFileArgs](raw)
	if err != nil {
		return nil, err
	}
	client, uri, err := r.openDocument(args.Path)
	if err != nil {
		return nil, err
	}

	// The edits arrive through the workspace/applyEdit reverse request while
	// the command is executing, not in the command's own response.
	collect := r.beginEditCapture()
	callErr := client.Call(ctx, "workspace/executeCommand", lsp.ExecuteCommandParams{
		Command:   "pyright.organizeimports",
		Arguments: []any{string(uri)},
	}, nil)
	edits := collect()
	if callErr != nil {
		return nil, callErr
	}

	merged := lsp.WorkspaceEdit{Changes: make(map[lsp.DocumentURI][]lsp.TextEdit)}
	for _, edit := range edits {
		for u, textEdits := range edit.AllChanges() {
			merged.Changes[u] = append(merged.Changes[u], textEdits...)
		}
	}
	if len(merged.Changes) == 0 {
		return "Imports are already organized.", nil
	}
	return r.renderEditResult(&merged, args.Apply)
}

func (r *Router) handleAddImport(_ context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs[addImportArgs](raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Statement) == "" {
		return nil, errors.New("statement is required")
	}

	abs, err := r.absPath(args.Path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}

	insertLine := importInsertionLine(string(content))
	edit := lsp.TextEdit{
		Range: lsp.Range{
			Start: lsp.Position{Line: insertLine},
			End:   lsp.Position{Line: insertLine},
		},
		NewText: strings.TrimRight(args.Statement, "\n") + "\n",
	}

	modified := applyEdits(string(content), []lsp.TextEdit{edit})
	rel := r.relPath(lsp.FilePathToURI(abs))
	diff := renderUnifiedDiff(rel, string(content), modified)

	if args.Apply {
		info, statErr := os.Stat(abs)
		mode := os.FileMode(0o644)
		if statErr == nil {
			mode = info.Mode()
		}
		if err := os.WriteFile(abs, []byte(modified), mode); err != nil {
			return nil, fmt.Errorf("write %s: %w", abs, err)
		}
	}

	return map[string]any{
		"path":           rel,
		"insertedAtLine": insertLine,
		"diff":           diff,
		"applied":        args.Apply,
	}, nil
}

// importInsertionLine returns the 0-based line after the last top-level
// import statement, or 0 when the file has none.
func importInsertionLine(content string) int {
	lines := strings.Split(content, "\n")
	insertAt := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "from ") {
			insertAt = i + 1
		}
	}
	return insertAt
}

// --- Lifecycle tools ---

func (r *Router) handleCreateConfig(_ context.Context, _ json.RawMessage) (any, error) {
	path := filepath.Join(r.root, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists; refusing to overwrite", config.ConfigFileName)
	}

	starter := map[string]any{
		"include":          []string{"."},
		"exclude":          []string{"**/node_modules", "**/__pycache__", ".venv"},
		"typeCheckingMode": config.DefaultTypeCheckingMode,
	}
	content, err := json.MarshalIndent(starter, "", "  ")
	if err != nil {
		return nil, err
	}
	content = append(content, '\n')

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return map[string]any{
		"path":    config.ConfigFileName,
		"created": true,
		"content": string(content),
	}, nil
}

func (r *Router) handleRestartServer(ctx context.Context, _ json.RawMessage) (any, error) {
	r.mu.Lock()
	old := r.client
	r.client = nil
	r.mu.Unlock()

	if old != nil {
		if err := old.Shutdown(ctx); err != nil {
			r.logger.Warn("shutdown of previous session failed", "err", err)
		}
	}

	client, err := r.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("restart language server: %w", err)
	}

	// Document and diagnostic state belongs to the dead session; files are
	// re-opened lazily as tools touch them.
	r.docs.reset()
	r.diags.reset()

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	return map[string]any{"restarted": true}, nil
}
