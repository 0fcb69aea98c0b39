package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
)

type client struct {
	ctx context.Context
	cli *mcp.Client
}

func connect(ctx context.Context, reader io.Reader, writer io.Writer) (*client, error) {
	transport := mcp.NewStdIO(reader, writer)
	cli := mcp.NewClient(mcp.Info{
		Name:    "example-client",
		Version: "1.0",
	}, transport)
	if err := cli.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if !cli.ToolServerSupported() {
		cli.Close()
		return nil, errors.New("server does not support tools")
	}
	return &client{ctx: ctx, cli: cli}, nil
}

func (c *client) close() {
	c.cli.Close()
}

func (c *client) listTools() bool {
	cursor := ""
	for {
		result, err := c.cli.ListTools(c.ctx, mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true
			}
			fmt.Printf("list tools: %v\n", err)
			return false
		}

		fmt.Println("Tools:")
		fmt.Println()
		for _, tool := range result.Tools {
			fmt.Printf("%s: %s\n", tool.Name, tool.Description)
		}
		fmt.Println()

		if result.NextCursor == "" {
			return false
		}

		fmt.Print("Type 'n' for next page, or anything else to go back: ")
		input, err := waitStdIOInput(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true
			}
			fmt.Print(err)
			return false
		}
		if input != "n" {
			return false
		}
		cursor = result.NextCursor
	}
}

func (c *client) callTool() bool {
	fmt.Print("Tool name: ")
	name, err := waitStdIOInput(c.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true
		}
		fmt.Print(err)
		return false
	}

	fmt.Print(`Arguments as JSON (e.g. {"path": "main.py", "line": 0, "character": 4}): `)
	args, err := waitStdIOInput(c.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true
		}
		fmt.Print(err)
		return false
	}
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		fmt.Printf("invalid JSON: %s\n", args)
		return false
	}

	result, err := c.cli.CallTool(c.ctx, mcp.CallToolParams{
		Name:      name,
		Arguments: json.RawMessage(args),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true
		}
		fmt.Printf("call tool: %v\n", err)
		return false
	}

	fmt.Println()
	if result.IsError {
		fmt.Println("Tool error:")
	}
	for _, content := range result.Content {
		fmt.Println(content.Text)
	}
	fmt.Println()

	return false
}
