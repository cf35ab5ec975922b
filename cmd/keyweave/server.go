package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/keyweave/internal/api"
	"github.com/kalambet/keyweave/internal/collab"
	"github.com/kalambet/keyweave/internal/collabd"
	"github.com/kalambet/keyweave/internal/config"
	"github.com/kalambet/keyweave/internal/engine"
	"github.com/kalambet/keyweave/internal/session"
	"github.com/kalambet/keyweave/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keyweave server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running keyweave server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show keyweave system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var collabCmd = &cobra.Command{
	Use:   "collab",
	Short: "Serve the collaborator endpoints backed by a local or OpenAI-compatible model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheTTL, _ := cmd.Flags().GetDuration("cache-ttl")
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		return runCollab(cmd.Context(), cacheTTL, temperature)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the workspace as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("session")
		return runMCP(cmd.Context(), id)
	},
}

func init() {
	collabCmd.Flags().Duration("cache-ttl", 10*time.Minute, "how long concept details and search results are reused (0 disables)")
	collabCmd.Flags().Float64("temperature", 0, "sampling temperature for Ollama chat (0 uses the model default)")
}

// pidFile records the PID of a running `keyweave serve` under the data dir.
type pidFile string

func pidFileIn(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "keyweave.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (p pidFile) remove() { os.Remove(string(p)) }

// checkNotRunning fails when something already answers the health check on
// the configured port, naming the PID when the file has one.
func checkNotRunning(ctx context.Context, port int, pf pidFile) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	if probe(ctx, &http.Client{Timeout: 2 * time.Second}, url, "running") != "running" {
		return nil
	}
	if pid, err := pf.read(); err == nil {
		printWarning("keyweave is already running (PID %d)", pid)
		return fmt.Errorf("server already running (PID %d)", pid)
	}
	printWarning("port %d is already serving", port)
	return fmt.Errorf("server already running on port %d", port)
}

// workspaceDeps wires a workspace of session id to the collaborator client
// and the session store.
func workspaceDeps(cfg config.Config, client *collab.Client, store *session.Store, id string) workspace.Deps {
	return workspace.Deps{
		Concepts:  client,
		Merger:    client,
		Scorer:    client,
		Searcher:  client,
		Persister: store.Session(id),
		Logger:    slog.Default().With("session_id", id),
		Timeouts: workspace.Timeouts{
			Concept:    cfg.Collab.ConceptTimeout,
			Merge:      cfg.Collab.MergeTimeout,
			Similarity: cfg.Collab.SimilarityTimeout,
			Search:     cfg.Collab.SearchTimeout,
		},
		AlertDuration: cfg.Session.AlertDuration,
	}
}

func runServer(ctx context.Context) error {
	fmt.Fprintln(os.Stderr, versionLine())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	pf := pidFileIn(cfg.Storage.DataDir)
	if err := checkNotRunning(ctx, cfg.Server.Port, pf); err != nil {
		return err
	}
	if err := pf.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pf.remove()

	store, err := session.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	client := collab.New(cfg.Collab.BaseURL, nil, collab.NewMetrics(promReg))

	registry := workspace.NewRegistry(func(ctx context.Context, id string) (*workspace.Workspace, error) {
		return workspace.New(ctx, workspaceDeps(cfg, client, store, id))
	}, cfg.Session.IdleTimeout)
	promReg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "keyweave",
		Name:      "live_workspaces",
		Help:      "Workspaces currently held in memory.",
	}, func() float64 { return float64(registry.Len()) }))

	handler := api.NewHandler(api.Deps{
		Workspaces: registry,
		Sessions:   store,
		Token:      cfg.Server.APIToken,
		Metrics:    promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	})
	if cfg.Server.APIToken == "" {
		slog.Warn("no API token configured; /v1 routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitor := session.NewJanitor(store, cfg.Session.TTL, time.Minute, registry.Forget)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		janitor.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		slog.Info("keyweave listening", "addr", srv.Addr, "collab", cfg.Collab.BaseURL)
		return serveHTTP(gCtx, srv)
	})
	return g.Wait()
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCollab(ctx context.Context, cacheTTL time.Duration, temperature float64) error {
	fmt.Fprintln(os.Stderr, versionLine())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	chatModel, embedModel := cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel
	if cfg.Engine.Provider == config.ProviderOpenAI {
		if err := cfg.RequireOpenAIKey(); err != nil {
			return err
		}
		chatModel, embedModel = cfg.OpenAI.Model, cfg.OpenAI.EmbedModel
	}

	eng, err := engine.Select(engine.SelectConfig{
		Provider:      cfg.Engine.Provider,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
	})
	if err != nil {
		return fmt.Errorf("selecting inference engine: %w", err)
	}
	if oe, ok := eng.(*engine.OllamaEngine); ok && temperature > 0 {
		eng = oe.WithTemperature(temperature)
	}
	if err := engine.EnsureReady(ctx, eng, chatModel, embedModel, os.Stderr); err != nil {
		return err
	}

	svc := collabd.NewService(eng, collabd.Config{
		ChatModel:  chatModel,
		EmbedModel: embedModel,
		CacheTTL:   cacheTTL,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Engine.Port),
		Handler:           collabd.NewHandler(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("collaborator service listening", "addr", srv.Addr, "provider", cfg.Engine.Provider, "chat_model", chatModel, "embed_model", embedModel)
	return serveHTTP(ctx, srv)
}

// mcpSessionID is the stable session the MCP server works in unless one is given.
var mcpSessionID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("keyweave:mcp")).String()

func runMCP(ctx context.Context, id string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr.
	setupLogging(cfg.Log.Level)

	if id == "" {
		id = mcpSessionID
	}

	store, err := session.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	if err := store.Touch(ctx, id); err != nil {
		return err
	}

	client := collab.New(cfg.Collab.BaseURL, nil, nil)
	ws, err := workspace.New(ctx, workspaceDeps(cfg, client, store, id))
	if err != nil {
		return err
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{Workspace: ws, Version: version})
	slog.Info("MCP server started (stdio transport)", "session_id", id)
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pf := pidFileIn(cfg.Storage.DataDir)
	pid, err := pf.read()
	if err != nil {
		printError("keyweave is not running (no PID file at %s)", pf)
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		// The process is gone; the file is stale.
		printError("could not stop keyweave (PID %d): %v", pid, err)
		pf.remove()
		return err
	}

	printSuccess("Sent stop signal to keyweave (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	printStatus("Server", "%s", probe(ctx, client, serverURL+"/health", fmt.Sprintf("running on port %d", cfg.Server.Port)))
	printStatus("Collaborator", "%s", probe(ctx, client, strings.TrimRight(cfg.Collab.BaseURL, "/")+"/health", "running at "+cfg.Collab.BaseURL))

	switch cfg.Engine.Provider {
	case config.ProviderOpenAI:
		printStatus("Engine", "openai (%s, %s)", cfg.OpenAI.Model, cfg.OpenAI.EmbedModel)
	default:
		printStatus("Engine", "ollama (%s, %s)", cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel)
	}

	if id := readSessionFile(sessionFilePath(cfg.Storage.DataDir)); id != "" {
		printStatus("CLI session", "%s", id)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// probe describes the health of url: up, stopped, or the error status.
func probe(ctx context.Context, client *http.Client, url, up string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "invalid URL"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "stopped"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("error (HTTP %d)", resp.StatusCode)
	}
	return up
}
