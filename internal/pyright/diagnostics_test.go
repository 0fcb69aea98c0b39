package pyright

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

func TestDiagnosticsStoreReplacesWholesale(t *testing.T) {
	store := newDiagnosticsStore()
	uri := lsp.DocumentURI("file:///ws/main.py")

	store.set(uri, []lsp.Diagnostic{
		{Message: "first", Severity: lsp.SeverityError},
		{Message: "second", Severity: lsp.SeverityWarning},
	})
	require.Len(t, store.get(uri), 2)

	// A new publish replaces, never appends.
	store.set(uri, []lsp.Diagnostic{{Message: "third", Severity: lsp.SeverityHint}})
	diags := store.get(uri)
	require.Len(t, diags, 1)
	assert.Equal(t, "third", diags[0].Message)

	// An empty publish clears the file.
	store.set(uri, nil)
	assert.Empty(t, store.get(uri))
	assert.Empty(t, store.all())
}

func TestDiagnosticsStoreSnapshotIsolation(t *testing.T) {
	store := newDiagnosticsStore()
	uri := lsp.DocumentURI("file:///ws/a.py")
	store.set(uri, []lsp.Diagnostic{{Message: "original"}})

	snapshot := store.all()
	snapshot[uri][0].Message = "mutated"

	assert.Equal(t, "original", store.get(uri)[0].Message)
}

func TestDiagnosticsStoreReset(t *testing.T) {
	store := newDiagnosticsStore()
	store.set("file:///ws/a.py", []lsp.Diagnostic{{Message: "x"}})
	store.set("file:///ws/b.py", []lsp.Diagnostic{{Message: "y"}})

	store.reset()
	assert.Empty(t, store.all())
}
