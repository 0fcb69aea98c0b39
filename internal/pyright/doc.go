// Package pyright exposes a pyright language server as a set of MCP tools.
// It owns the tool catalog, shapes LSP results into paginated JSON payloads,
// accumulates published diagnostics, tracks which documents have been opened,
// and renders workspace edits as unified diffs before optionally applying
// them to disk.
package pyright
