package pyright

import (
	"encoding/json"

	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

// Schema fragments shared by most tools. All paths are workspace-relative;
// positions are 0-based line/character pairs.
const (
	positionSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "line": {"type": "integer", "description": "0-based line number"},
    "character": {"type": "integer", "description": "0-based character offset"}
  },
  "required": ["path", "line", "character"]
}`

	positionPageSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "line": {"type": "integer", "description": "0-based line number"},
    "character": {"type": "integer", "description": "0-based character offset"},
    "offset": {"type": "integer", "description": "Pagination offset"},
    "limit": {"type": "integer", "description": "Page size, default 50, max 200"}
  },
  "required": ["path", "line", "character"]
}`

	filePageSchema = `{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "offset": {"type": "integer", "description": "Pagination offset"},
    "limit": {"type": "integer", "description": "Page size, default 50, max 200"}
  },
  "required": ["path"]
}`
)

func toolCatalog() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "hover",
			Description: "Get type information and documentation for the symbol at a position.",
			InputSchema: json.RawMessage(positionSchema),
		},
		{
			Name:        "completion",
			Description: "List code completion proposals at a position, sorted by relevance.",
			InputSchema: json.RawMessage(positionPageSchema),
		},
		{
			Name:        "definition",
			Description: "Find where the symbol at a position is defined.",
			InputSchema: json.RawMessage(positionPageSchema),
		},
		{
			Name:        "type_definition",
			Description: "Find the definition of the type of the symbol at a position.",
			InputSchema: json.RawMessage(positionPageSchema),
		},
		{
			Name:        "implementation",
			Description: "Find implementations of the symbol at a position.",
			InputSchema: json.RawMessage(positionPageSchema),
		},
		{
			Name:        "references",
			Description: "Find all references to the symbol at a position.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "line": {"type": "integer", "description": "0-based line number"},
    "character": {"type": "integer", "description": "0-based character offset"},
    "includeDeclaration": {"type": "boolean", "description": "Include the declaration itself", "default": true},
    "offset": {"type": "integer", "description": "Pagination offset"},
    "limit": {"type": "integer", "description": "Page size, default 50, max 200"}
  },
  "required": ["path", "line", "character"]
}`),
		},
		{
			Name:        "document_symbols",
			Description: "List the symbols declared in a file, flattened with container names.",
			InputSchema: json.RawMessage(filePageSchema),
		},
		{
			Name:        "workspace_symbols",
			Description: "Search for symbols across the workspace by name.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Symbol name query"},
    "offset": {"type": "integer", "description": "Pagination offset"},
    "limit": {"type": "integer", "description": "Page size, default 50, max 200"}
  },
  "required": ["query"]
}`),
		},
		{
			Name:        "diagnostics",
			Description: "Report accumulated type checking diagnostics, optionally for one file.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Restrict to one workspace-relative file"},
    "severity": {"type": "string", "enum": ["error", "warning", "information", "hint"], "description": "Restrict to one severity"},
    "offset": {"type": "integer", "description": "Pagination offset"},
    "limit": {"type": "integer", "description": "Page size, default 50, max 200"}
  }
}`),
		},
		{
			Name:        "code_actions",
			Description: "List quick fixes and refactorings available for a range.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "startLine": {"type": "integer", "description": "0-based start line"},
    "startCharacter": {"type": "integer", "description": "0-based start character"},
    "endLine": {"type": "integer", "description": "0-based end line"},
    "endCharacter": {"type": "integer", "description": "0-based end character"}
  },
  "required": ["path", "startLine", "startCharacter", "endLine", "endCharacter"]
}`),
		},
		{
			Name:        "rename",
			Description: "Rename the symbol at a position across the workspace. Previews a diff; set apply to write files.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "line": {"type": "integer", "description": "0-based line number"},
    "character": {"type": "integer", "description": "0-based character offset"},
    "newName": {"type": "string", "description": "Replacement name"},
    "apply": {"type": "boolean", "description": "Write the edits to disk", "default": false}
  },
  "required": ["path", "line", "character", "newName"]
}`),
		},
		{
			Name:        "semantic_tokens",
			Description: "List semantic token classifications for a file.",
			InputSchema: json.RawMessage(filePageSchema),
		},
		{
			Name:        "signature_help",
			Description: "Show call signatures at a position with the active parameter marked.",
			InputSchema: json.RawMessage(positionSchema),
		},
		{
			Name:        "format_document",
			Description: "Format a whole file. Previews a diff; set apply to write the file.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "tabSize": {"type": "integer", "description": "Spaces per indent level", "default": 4},
    "insertSpaces": {"type": "boolean", "description": "Indent with spaces instead of tabs", "default": true},
    "apply": {"type": "boolean", "description": "Write the edits to disk", "default": false}
  },
  "required": ["path"]
}`),
		},
		{
			Name:        "format_range",
			Description: "Format a range inside a file. Previews a diff; set apply to write the file.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "startLine": {"type": "integer", "description": "0-based start line"},
    "startCharacter": {"type": "integer", "description": "0-based start character"},
    "endLine": {"type": "integer", "description": "0-based end line"},
    "endCharacter": {"type": "integer", "description": "0-based end character"},
    "tabSize": {"type": "integer", "description": "Spaces per indent level", "default": 4},
    "insertSpaces": {"type": "boolean", "description": "Indent with spaces instead of tabs", "default": true},
    "apply": {"type": "boolean", "description": "Write the edits to disk", "default": false}
  },
  "required": ["path", "startLine", "startCharacter", "endLine", "endCharacter"]
}`),
		},
		{
			Name:        "organize_imports",
			Description: "Sort and deduplicate the imports of a file. Previews a diff; set apply to write the file.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "apply": {"type": "boolean", "description": "Write the edits to disk", "default": false}
  },
  "required": ["path"]
}`),
		},
		{
			Name:        "add_import",
			Description: "Insert an import statement after the last top-level import. Previews a diff; set apply to write the file.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Workspace-relative path to a Python file"},
    "statement": {"type": "string", "description": "Import statement, e.g. 'from os import path'"},
    "apply": {"type": "boolean", "description": "Write the edits to disk", "default": false}
  },
  "required": ["path", "statement"]
}`),
		},
		{
			Name:        "create_config",
			Description: "Write a starter pyrightconfig.json at the workspace root. Refuses to overwrite an existing one.",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        "restart_server",
			Description: "Restart the pyright language server. Open documents and accumulated diagnostics are discarded.",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}
