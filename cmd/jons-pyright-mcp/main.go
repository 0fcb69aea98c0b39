// jons-pyright-mcp bridges the pyright language server to MCP clients. It
// speaks MCP over stdio by default, or over Server-Sent Events with --sse.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
