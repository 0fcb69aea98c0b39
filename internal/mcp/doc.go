// Package mcp implements the subset of the Model Context Protocol the
// bridge needs: a server exposing tools over stdio or Server-Sent Events,
// and a client used to drive that server in tests. Prompts, resources,
// sampling, and the other optional MCP surfaces are intentionally absent.
package mcp
