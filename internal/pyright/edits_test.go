package pyright

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		edits   []lsp.TextEdit
		want    string
	}{
		{
			name:    "no edits",
			content: "x = 1\n",
			want:    "x = 1\n",
		},
		{
			name:    "replace word",
			content: "old_name = 1\nprint(old_name)\n",
			edits: []lsp.TextEdit{
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 8}},
					NewText: "new_name",
				},
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 1, Character: 6}, End: lsp.Position{Line: 1, Character: 14}},
					NewText: "new_name",
				},
			},
			want: "new_name = 1\nprint(new_name)\n",
		},
		{
			name:    "insertion at line start",
			content: "import os\n\nx = 1\n",
			edits: []lsp.TextEdit{
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 1, Character: 0}, End: lsp.Position{Line: 1, Character: 0}},
					NewText: "import sys\n",
				},
			},
			want: "import os\nimport sys\n\nx = 1\n",
		},
		{
			name:    "multi-line deletion",
			content: "a\nb\nc\nd\n",
			edits: []lsp.TextEdit{
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 1, Character: 0}, End: lsp.Position{Line: 3, Character: 0}},
					NewText: "",
				},
			},
			want: "a\nd\n",
		},
		{
			name:    "insertion after a multi-byte rune",
			content: "xé = 1\n",
			edits: []lsp.TextEdit{
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 2}, End: lsp.Position{Line: 0, Character: 2}},
					NewText: "Z",
				},
			},
			want: "xéZ = 1\n",
		},
		{
			name:    "insertion after an astral-plane rune",
			content: "s = \"🙂\"\n",
			edits: []lsp.TextEdit{
				{
					// 🙂 occupies two UTF-16 code units, so the closing
					// quote sits at character 7, not 6.
					Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 7}, End: lsp.Position{Line: 0, Character: 7}},
					NewText: "!",
				},
			},
			want: "s = \"🙂!\"\n",
		},
		{
			name:    "position past end of file clamps",
			content: "x = 1",
			edits: []lsp.TextEdit{
				{
					Range:   lsp.Range{Start: lsp.Position{Line: 10, Character: 0}, End: lsp.Position{Line: 10, Character: 5}},
					NewText: "\ny = 2",
				},
			},
			want: "x = 1\ny = 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyEdits(tt.content, tt.edits))
		})
	}
}

func TestPositionToOffset(t *testing.T) {
	content := "ab\ncde\nf"

	tests := []struct {
		name string
		pos  lsp.Position
		want int
	}{
		{"start", lsp.Position{Line: 0, Character: 0}, 0},
		{"mid first line", lsp.Position{Line: 0, Character: 1}, 1},
		{"second line", lsp.Position{Line: 1, Character: 2}, 5},
		{"character past line end clamps", lsp.Position{Line: 0, Character: 99}, 2},
		{"line past end clamps", lsp.Position{Line: 99, Character: 0}, len(content)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positionToOffset(content, tt.pos))
		})
	}
}

func TestPositionToOffsetUTF16(t *testing.T) {
	// é is one UTF-16 unit over two bytes; 🙂 is two units over four bytes.
	content := "é🙂x\n"

	tests := []struct {
		name string
		pos  lsp.Position
		want int
	}{
		{"line start", lsp.Position{Line: 0, Character: 0}, 0},
		{"after two-byte rune", lsp.Position{Line: 0, Character: 1}, 2},
		{"after surrogate pair", lsp.Position{Line: 0, Character: 3}, 6},
		{"line end", lsp.Position{Line: 0, Character: 4}, 7},
		{"inside surrogate pair snaps to next boundary", lsp.Position{Line: 0, Character: 2}, 6},
		{"past line end clamps", lsp.Position{Line: 0, Character: 99}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positionToOffset(content, tt.pos))
		})
	}
}

func TestRenderUnifiedDiff(t *testing.T) {
	diff := renderUnifiedDiff("pkg/mod.py", "x = 1\n", "x = 2\n")

	require.NotEmpty(t, diff)
	assert.True(t, strings.HasPrefix(diff, "--- pkg/mod.py (original)\n+++ pkg/mod.py (modified)\n"))
	assert.Contains(t, diff, "@@")

	assert.Empty(t, renderUnifiedDiff("same.py", "x = 1\n", "x = 1\n"))
}

func TestImportInsertionLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty file", "", 0},
		{"no imports", "x = 1\n", 0},
		{"single import", "import os\n\nx = 1\n", 1},
		{"import block", "import os\nfrom sys import path\n\nx = 1\n", 2},
		{"indented import ignored", "def f():\n    import os\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importInsertionLine(tt.content))
		})
	}
}
