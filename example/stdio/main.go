// Command stdio is an interactive MCP client for jons-pyright-mcp. It
// launches the bridge as a subprocess, connects over stdio, and lets you
// list and call the pyright tools against a workspace from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
)

func main() {
	bin := flag.String("bin", "jons-pyright-mcp", "path to the jons-pyright-mcp binary")
	workspace := flag.String("workspace", ".", "Python workspace to analyze")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("Exiting...")
		cancel()
	}()

	cmd := exec.CommandContext(ctx, *bin, "--workspace", *workspace)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Fatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		stdin.Close()
		cmd.Wait()
	}()

	cli, err := connect(ctx, stdout, stdin)
	if err != nil {
		log.Fatal(err)
	}
	defer cli.close()

	for {
		fmt.Println("Choose commands number:")
		cmds := []string{"list tools", "call tool", "exit"}
		for i, cmd := range cmds {
			fmt.Printf("%d. %s\n", i+1, cmd)
		}

		input, err := waitStdIOInput(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Print(err)
			continue
		}
		inputNumber, err := strconv.Atoi(input)
		if err != nil || inputNumber < 1 || inputNumber > len(cmds) {
			fmt.Printf("Invalid input: %s\n", input)
			continue
		}

		exit := false
		switch cmds[inputNumber-1] {
		case "list tools":
			exit = cli.listTools()
		case "call tool":
			exit = cli.callTool()
		case "exit":
			exit = true
		}

		if exit {
			fmt.Println("Exiting...")
			return
		}
	}
}

func waitStdIOInput(ctx context.Context) (string, error) {
	inputChan := make(chan string)
	errsChan := make(chan error)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			inputChan <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errsChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errsChan:
		return "", err
	case input := <-inputChan:
		return input, nil
	}
}
