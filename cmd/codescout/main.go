// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command codescout is the CLI for the read-only codebase analysis agent.
//
// Usage:
//
//	codescout query "where is the rate limiter configured?"
//	codescout query --config codescout.yaml --session abc123 "..."
//	codescout serve-stdio --config codescout.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/codescout/internal/accountant"
	"github.com/kadirpekel/codescout/internal/config"
	"github.com/kadirpekel/codescout/internal/llm"
	"github.com/kadirpekel/codescout/internal/pipeline"
	"github.com/kadirpekel/codescout/internal/service"
	"github.com/kadirpekel/codescout/internal/storage"
	"github.com/kadirpekel/codescout/internal/tools"
	"github.com/kadirpekel/codescout/pkg/logger"
	"github.com/kadirpekel/codescout/pkg/observability"
)

// CLI defines the command-line interface.
type CLI struct {
	Query      QueryCmd      `cmd:"" help:"Ask a read-only question about the codebase."`
	ServeStdio ServeStdioCmd `cmd:"" name:"serve-stdio" help:"Serve queries over stdin/stdout, one JSON request per line."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// QueryCmd runs a single query to completion and prints the answer.
type QueryCmd struct {
	Session string `help:"Session ID to thread conversational context through."`
	Text    string `arg:"" help:"The question to ask."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, shutdown, err := buildService(ctx, cli)
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	resp, err := svc.Query(ctx, c.Text, c.Session)
	if err != nil {
		return err
	}

	fmt.Println(resp.FinalResponse)
	if len(resp.CitedSources) > 0 {
		fmt.Println("\nSources:")
		for _, cite := range resp.CitedSources {
			fmt.Printf("  %s\n", cite)
		}
	}
	return nil
}

// ServeStdioCmd answers one JSON request per line of stdin, streaming each
// request's stage events and terminal event as JSON lines on stdout. It
// stands in for the out-of-scope HTTP gateway.
type ServeStdioCmd struct{}

// stdioRequest is one line of input: the query plus optional session id.
// A line that is not valid JSON is treated as a bare query string.
type stdioRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

func (c *ServeStdioCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, shutdown, err := buildService(ctx, cli)
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	out := json.NewEncoder(os.Stdout)
	decoder := newLineReader(os.Stdin)
	for {
		line, ok := decoder.Next()
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		var req stdioRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil || req.Query == "" {
			req = stdioRequest{Query: line}
		}

		_, err := svc.SubmitStream(ctx, service.Request{Query: req.Query, SessionID: req.SessionID}, func(evt any) {
			if err := out.Encode(evt); err != nil {
				slog.Error("encoding event", "error", err)
			}
		})
		if err != nil {
			slog.Error("query failed", "error", err)
		}
	}
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("codescout version %s\n", version)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// buildService wires config, storage, tools, LLM providers, and the
// accountant into one pipeline.Runtime behind a service.Service.
func buildService(ctx context.Context, cli *CLI) (*service.Service, func(context.Context), error) {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	closeLog := func() {}
	if cfg.Logging.File != "" {
		logFile, cleanup, err := logger.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.Init(level, logFile, cli.LogFormat)
		closeLog = cleanup
	}

	obs, err := observability.NewFromConfig(ctx, &cfg.Observability)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing observability: %w", err)
	}
	metrics := obs.Metrics()
	tracer := obs.Tracer()

	backend, sessions, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}

	primitives := tools.NewPrimitives(backend)
	registry := tools.NewRegistry(metrics, tracer)
	for _, t := range []tools.Tool{
		tools.NewSearchCode(primitives),
		tools.NewReadCode(primitives),
		tools.NewReadFileTool(primitives),
		tools.NewGlobFilesTool(primitives),
		tools.NewGrepSearchTool(primitives),
		tools.NewTreeTool(primitives),
		tools.NewFindSymbolTool(primitives),
		tools.NewGetFileSymbolsTool(primitives),
		tools.NewGetImportsTool(primitives),
		tools.NewGetImportersTool(primitives),
		tools.NewSemanticSearchTool(primitives),
		tools.NewFindSimilarFilesTool(primitives),
		tools.NewGitLogTool(primitives),
		tools.NewGitBlameTool(primitives),
		tools.NewGitDiffTool(primitives),
		tools.NewGitStatusTool(primitives),
	} {
		if err := registry.Register(t); err != nil {
			return nil, nil, fmt.Errorf("registering tool: %w", err)
		}
	}
	if err := registry.Register(tools.NewListTools(registry.Composed)); err != nil {
		return nil, nil, fmt.Errorf("registering tool: %w", err)
	}
	registry.Freeze()

	provider, err := buildLLMRegistry(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing LLM providers: %w", err)
	}

	acct := accountant.New(accountant.Bounds{
		MaxLLMCallsPerQuery:  cfg.Accountant.MaxLLMCallsPerQuery,
		MaxAgentHopsPerQuery: cfg.Accountant.MaxAgentHopsPerQuery,
		MaxTotalCodeTokens:   cfg.Accountant.MaxTotalCodeTokens,
		MaxToolCallsPerQuery: cfg.Accountant.MaxToolCallsPerQuery,
		MaxFilesPerQuery:     cfg.Accountant.MaxFilesPerQuery,
	}, metrics)

	deps := pipeline.Deps{
		Registry:   registry,
		Primitives: primitives,
		LLM:        provider,
		Accountant: acct,
		Metrics:    metrics,
		Tracer:     tracer,
	}

	var opts []service.Option
	if sessions != nil {
		deps.SessionDigest = service.SessionDigest(sessions)
		opts = append(opts, service.WithSessionStore(sessions), service.WithEventLog(sessions))
	}
	opts = append(opts, service.WithAccountant(acct))

	runtime := pipeline.New(deps)

	shutdown := func(ctx context.Context) {
		if sessions != nil {
			sessions.Close()
		}
		if err := obs.Shutdown(ctx); err != nil {
			slog.Error("observability shutdown failed", "error", err)
		}
		closeLog()
	}

	return service.New(runtime, opts...), shutdown, nil
}

func buildBackend(ctx context.Context, cfg *config.Config) (storage.Backend, *storage.PGStore, error) {
	dir := cfg.Storage.WorkingDirectory
	if dir == "" {
		dir = "."
	}

	symbols := storage.NewTreeSitterIndex(dir)
	fs := storage.NewFSBackend(dir)
	vectors, err := storage.NewChromemIndex(cfg.Storage.VectorPersistDir)
	if err != nil {
		return nil, nil, fmt.Errorf("chromem index: %w", err)
	}
	imports := storage.NewImportScanner(dir)
	git := storage.NewGitExecReader(dir)

	// Seed the vector index with one document per discovered symbol so the
	// semantic fallback strategy has something to search.
	syms, err := symbols.Symbols(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("building symbol index: %w", err)
	}
	for _, s := range syms {
		if err := vectors.Index(ctx, s.Path, s.Line, s.Name+" "+s.Signature); err != nil {
			return nil, nil, fmt.Errorf("seeding vector index: %w", err)
		}
	}
	slog.Debug("vector index seeded", "symbols", len(syms))

	var sessions *storage.PGStore
	if cfg.Storage.Postgres.DSN != "" {
		sessions, err = storage.NewPGStore(ctx, storage.PGConfig{
			DSN:      cfg.Storage.Postgres.DSN,
			MaxConns: cfg.Storage.Postgres.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres session store: %w", err)
		}
	}

	return storage.NewCompositeBackend(symbols, fs, vectors, imports, git, sessions), sessions, nil
}

func buildLLMRegistry(cfg *config.Config) (llm.Provider, error) {
	registry := llm.NewRegistry()

	if cfg.LLM.Anthropic.APIKey != "" {
		p, err := llm.NewAnthropic(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		if err := registry.Register("anthropic", p); err != nil {
			return nil, err
		}
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		p, err := llm.NewOpenAI(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		if err := registry.Register("openai", p); err != nil {
			return nil, err
		}
	}

	if err := registry.SetPrimary(cfg.LLM.Primary); err != nil {
		return nil, err
	}
	return registry.Primary()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("codescout"),
		kong.Description("Read-only codebase analysis agent."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "codescout:", err)
		os.Exit(1)
	}
}
