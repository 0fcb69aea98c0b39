package pyright

import (
	"sync"

	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

// diagnosticsStore accumulates the most recent publishDiagnostics payload
// per document. The server re-publishes the complete list for a file on
// every change, so each update replaces the previous entry wholesale.
type diagnosticsStore struct {
	mu    sync.Mutex
	byURI map[lsp.DocumentURI][]lsp.Diagnostic
}

func newDiagnosticsStore() *diagnosticsStore {
	return &diagnosticsStore{byURI: make(map[lsp.DocumentURI][]lsp.Diagnostic)}
}

func (d *diagnosticsStore) set(uri lsp.DocumentURI, diags []lsp.Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(diags) == 0 {
		delete(d.byURI, uri)
		return
	}
	d.byURI[uri] = diags
}

func (d *diagnosticsStore) get(uri lsp.DocumentURI) []lsp.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]lsp.Diagnostic(nil), d.byURI[uri]...)
}

// all returns a snapshot of every known diagnostic keyed by URI.
func (d *diagnosticsStore) all() map[lsp.DocumentURI][]lsp.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[lsp.DocumentURI][]lsp.Diagnostic, len(d.byURI))
	for uri, diags := range d.byURI {
		out[uri] = append([]lsp.Diagnostic(nil), diags...)
	}
	return out
}

func (d *diagnosticsStore) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byURI = make(map[lsp.DocumentURI][]lsp.Diagnostic)
}
