package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/khirotaka/bmi-mcp/internal/config"
	"github.com/khirotaka/bmi-mcp/internal/http"
	"github.com/khirotaka/bmi-mcp/internal/llm"
	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/resolver"
	"golang.org/x/sync/errgroup"
)

const usage = `usage:
  bmi-client query <text...>   resolve one natural-language query
  bmi-client tools             list the registry's tools
  bmi-client serve             run the HTTP API`

const (
	commandQuery = "query"
	commandTools = "tools"
	commandServe = "serve"
)

func main() {
	command, query, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// stdout carries results outside serve mode
	if command == commandServe {
		setupLogger(os.Stdout)
	} else {
		setupLogger(os.Stderr)
	}

	if err := run(command, query); err != nil {
		slog.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// parseArgs splits the command line into a command and, for queries, the
// query text. Arguments without a known command are treated as a query.
func parseArgs(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", errors.New("missing command")
	}
	switch args[0] {
	case commandTools, commandServe:
		if len(args) > 1 {
			return "", "", fmt.Errorf("%s takes no arguments", args[0])
		}
		return args[0], "", nil
	case commandQuery:
		args = args[1:]
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return "", "", errors.New("query must not be empty")
	}
	return commandQuery, query, nil
}

func run(command, query string) error {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	slog.Info("Loading configuration", "path", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}

	processManager := mcp.NewProcessManager()
	launcher := mcp.NewLauncher(cfg.Server, processManager)
	r := resolver.New(resolver.DialLauncher(launcher), provider, resolver.Options{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.Timeout) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case commandTools:
		tools, err := r.Catalog(ctx)
		if err != nil {
			return err
		}
		printTools(os.Stdout, tools)
		return nil
	case commandServe:
		return serve(ctx, cfg.HTTP, r, processManager)
	default:
		res, err := r.Resolve(ctx, query)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Final Result: %v\n", res.Result.Value)
		return nil
	}
}

func printTools(w io.Writer, tools []mcp.ToolInfo) {
	for _, tool := range tools {
		fmt.Fprintf(w, "- %s: %s\n", tool.Name, tool.Description)
	}
}

func serve(ctx context.Context, cfg config.HTTPConfig, r *resolver.Resolver, pm *mcp.ProcessManager) error {
	handler := http.NewHandler(r, pm)
	router := http.SetupRouter(handler, cfg.RateLimitPerMinute)
	srv := http.NewServer(router, cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server exited")
	return nil
}

func setupLogger(w io.Writer) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if os.Getenv("LOG_LEVEL") == "DEBUG" {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(logger)
}
