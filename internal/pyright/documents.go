package pyright

import (
	"fmt"
	"os"
	"sync"

	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

// documentTracker remembers which files have been announced to the server
// with didOpen. Positional requests against unopened documents return empty
// results, so every tool path goes through ensureOpen first.
type documentTracker struct {
	mu   sync.Mutex
	open map[lsp.DocumentURI]bool
}

func newDocumentTracker() *documentTracker {
	return &documentTracker{open: make(map[lsp.DocumentURI]bool)}
}

// ensureOpen sends didOpen for the file at absPath unless it was already
// opened on this session. Content is read from disk at open time.
func (d *documentTracker) ensureOpen(client LanguageClient, absPath string) (lsp.DocumentURI, error) {
	uri := lsp.FilePathToURI(absPath)

	d.mu.Lock()
	opened := d.open[uri]
	d.mu.Unlock()
	if opened {
		return uri, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", absPath, err)
	}

	err = client.Notify("textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        uri,
			LanguageID: "python",
			Version:    1,
			Text:       string(content),
		},
	})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.open[uri] = true
	d.mu.Unlock()
	return uri, nil
}

// reset forgets all open documents. Used after a server restart; files are
// re-opened lazily on their next use.
func (d *documentTracker) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = make(map[lsp.DocumentURI]bool)
}
