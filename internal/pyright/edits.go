package pyright

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

// applyEdits applies a set of text edits to a document. Edits are applied
// back to front so earlier offsets stay valid; overlapping edits are not
// expected from a well-behaved server and resolve last-wins.
func applyEdits(content string, edits []lsp.TextEdit) string {
	if len(edits) == 0 {
		return content
	}

	sorted := append([]lsp.TextEdit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})

	for _, edit := range sorted {
		start := positionToOffset(content, edit.Range.Start)
		end := positionToOffset(content, edit.Range.End)
		if end < start {
			end = start
		}
		content = content[:start] + edit.NewText + content[end:]
	}
	return content
}

// positionToOffset maps a 0-based line/character position to a byte offset.
// Character counts UTF-16 code units, the protocol's default position
// encoding, so the line is walked rune by rune rather than indexed by byte.
// Positions past the end of a line or of the document clamp.
func positionToOffset(content string, pos lsp.Position) int {
	offset := 0
	line := 0
	for line < pos.Line {
		next := strings.IndexByte(content[offset:], '\n')
		if next < 0 {
			return len(content)
		}
		offset += next + 1
		line++
	}

	lineEnd := strings.IndexByte(content[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content) - offset
	}

	units := 0
	for i, r := range content[offset : offset+lineEnd] {
		if units >= pos.Character {
			return offset + i
		}
		units += utf16.RuneLen(r)
	}
	return offset + lineEnd
}

// renderUnifiedDiff produces a patch-style preview of the change to one file.
func renderUnifiedDiff(path, original, modified string) string {
	if original == modified {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	patches := dmp.PatchMake(original, diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s (original)\n", path)
	fmt.Fprintf(&b, "+++ %s (modified)\n", path)
	b.WriteString(dmp.PatchToText(patches))
	return b.String()
}

// fileChange describes the effect of a workspace edit on a single file.
type fileChange struct {
	Path      string `json:"path"`
	EditCount int    `json:"editCount"`
}

// editPreview is the rendered form of a WorkspaceEdit: per-file summaries,
// a concatenated diff, and the modified contents keyed by absolute path so
// the caller can write them out when apply is requested.
type editPreview struct {
	changes  []fileChange
	diff     string
	modified map[string]string
	total    int
}

// previewWorkspaceEdit reads every touched file, applies its edits in
// memory, and renders the combined diff. relPath converts a URI to the
// workspace-relative display path.
func previewWorkspaceEdit(edit *lsp.WorkspaceEdit, relPath func(lsp.DocumentURI) string) (*editPreview, error) {
	byURI := edit.AllChanges()

	uris := make([]lsp.DocumentURI, 0, len(byURI))
	for uri := range byURI {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	preview := &editPreview{modified: make(map[string]string, len(uris))}
	var diffs []string
	for _, uri := range uris {
		edits := byURI[uri]
		absPath := lsp.URIToFilePath(uri)
		content, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", absPath, err)
		}

		updated := applyEdits(string(content), edits)
		preview.modified[absPath] = updated
		preview.changes = append(preview.changes, fileChange{
			Path:      relPath(uri),
			EditCount: len(edits),
		})
		preview.total += len(edits)

		if d := renderUnifiedDiff(relPath(uri), string(content), updated); d != "" {
			diffs = append(diffs, d)
		}
	}
	preview.diff = strings.Join(diffs, "\n")
	return preview, nil
}

// write persists the modified contents to disk.
func (p *editPreview) write() error {
	for absPath, content := range p.modified {
		info, err := os.Stat(absPath)
		mode := os.FileMode(0o644)
		if err == nil {
			mode = info.Mode()
		}
		if err := os.WriteFile(absPath, []byte(content), mode); err != nil {
			return fmt.Errorf("write %s: %w", absPath, err)
		}
	}
	return nil
}
