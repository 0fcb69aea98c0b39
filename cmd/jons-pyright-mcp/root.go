package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonmmease/jons-pyright-mcp/internal/config"
	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
	"github.com/jonmmease/jons-pyright-mcp/internal/mcp"
	"github.com/jonmmease/jons-pyright-mcp/internal/pyright"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:          "jons-pyright-mcp",
	Short:        "MCP server exposing pyright language intelligence for Python workspaces",
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().String("workspace", "", "workspace root to analyze (default: current directory)")
	rootCmd.Flags().String("sse", "", "serve MCP over SSE on this address instead of stdio (e.g. :8080)")
	rootCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")

	// Flags win over environment variables; both feed the same keys.
	cobra.CheckErr(viper.BindPFlag("workspace", rootCmd.Flags().Lookup("workspace")))
	cobra.CheckErr(viper.BindPFlag("sse", rootCmd.Flags().Lookup("sse")))
	cobra.CheckErr(viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level")))
	cobra.CheckErr(viper.BindEnv("workspace", "WORKSPACE_ROOT"))
	cobra.CheckErr(viper.BindEnv("log-level", "LOG_LEVEL"))
}

func run(cmd *cobra.Command, _ []string) error {
	// Stdout carries the MCP channel in stdio mode, so all logging goes to
	// stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(viper.GetString("log-level")),
	}))
	slog.SetDefault(logger)

	workspace, err := resolveWorkspace(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	logger.Info("starting", "version", version, "workspace", workspace)

	cfg, cfgPath, err := config.Discover(workspace)
	if err != nil {
		return err
	}
	if cfgPath != "" {
		logger.Info("using configuration", "path", cfgPath)
	}
	interpreter := config.ResolveInterpreter(workspace, cfg)
	if interpreter != "" {
		logger.Info("resolved interpreter", "path", interpreter)
	}

	factory := func(_ context.Context) (pyright.LanguageClient, error) {
		path, args, err := config.PyrightCommand()
		if err != nil {
			return nil, err
		}
		proc, err := lsp.StartServerProcess(path, args, workspace, lsp.WithProcessLogger(logger))
		if err != nil {
			return nil, err
		}
		// The router starts the session itself, after its handlers are wired.
		return lsp.NewSession(proc,
			lsp.WithLogger(logger),
			lsp.WithRootPath(workspace),
			lsp.WithRequestTimeout(config.RequestTimeout()),
			lsp.WithInitializationOptions(config.InitializationOptions(cfg, interpreter)),
		), nil
	}

	router, err := pyright.NewRouter(workspace, cfg, factory,
		pyright.WithRouterLogger(logger),
		pyright.WithInterpreter(interpreter),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := router.Start(ctx); err != nil {
		return err
	}

	var transport mcp.ServerTransport
	var httpServer *http.Server
	if addr := viper.GetString("sse"); addr != "" {
		sseServer := mcp.NewSSEServer(fmt.Sprintf("http://%s/message", addr))
		mux := http.NewServeMux()
		mux.Handle("/sse", sseServer.HandleSSE())
		mux.Handle("/message", sseServer.HandleMessage())

		httpServer = &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("serving MCP over SSE", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server failed", "err", err)
				stop()
			}
		}()
		transport = sseServer
	} else {
		logger.Info("serving MCP over stdio")
		transport = mcp.NewStdIO(os.Stdin, os.Stdout)
	}

	server := mcp.NewServer(mcp.Info{
		Name:    "jons-pyright-mcp",
		Version: version,
	}, transport, router, mcp.WithServerLogger(logger))

	go server.Serve()
	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutCtx); err != nil {
			logger.Warn("http server shutdown failed", "err", err)
		}
	}
	if err := server.Shutdown(shutCtx); err != nil {
		logger.Warn("mcp server shutdown failed", "err", err)
	}
	if err := router.Shutdown(shutCtx); err != nil {
		logger.Warn("language server shutdown failed", "err", err)
	}
	return nil
}

func resolveWorkspace(flag string) (string, error) {
	dir := flag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", abs)
	}
	return abs, nil
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
