package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/hearth/internal/api"
	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/config"
	"github.com/kalambet/hearth/internal/layout"
	"github.com/kalambet/hearth/internal/settings"
	"github.com/kalambet/hearth/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hearth server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running hearth server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hearth server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "hearth.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// ensureToken returns the configured API token, generating and saving one on
// first start.
func ensureToken(cfg config.Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}
	token := uuid.NewString()
	if err := config.SaveToken(token); err != nil {
		return "", err
	}
	slog.Info("generated API bearer token")
	return token, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "hearth version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// With MCP on stdio, stdout belongs to the protocol.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	token, err := ensureToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("hearth is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("hearth is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	catalog, err := apps.LoadCatalog(cfg.Apps.Catalog)
	if err != nil {
		return fmt.Errorf("loading app catalog: %w", err)
	}

	svc := settings.NewService(store,
		settings.WithLogger(slog.Default().With("component", "settings")),
		settings.WithGridReconciler(layout.Reconcile),
	)
	editor := layout.NewEditor(store,
		func() layout.Grid {
			snap := svc.Current()
			return layout.Grid{Rows: snap.GridRows, Columns: snap.GridColumns}
		},
		layout.WithLock(func() bool { return svc.Current().LockHomeScreen }),
	)
	resolver := layout.NewResolver(catalog, catalog,
		layout.WithTimeout(cfg.Layout.ResolveTimeout),
		layout.WithConcurrency(cfg.Layout.ResolveConcurrency),
		layout.WithResolverLogger(slog.Default().With("component", "resolver")),
	)

	handler := api.NewAppHandler(api.AppDeps{
		Settings: svc,
		Layout:   editor,
		Resolver: resolver,
		Apps:     catalog,
		Token:    token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := svc.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("settings service: %w", err)
		}
		return nil
	})

	if cfg.Server.MCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Settings: svc,
			Layout:   editor,
			Resolver: resolver,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		slog.Info("hearth listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("hearth is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop hearth (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to hearth (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	running := reportStatus(ctx, client, cfg.Server.Port)

	if running && cfg.Server.Token != "" {
		var snap struct {
			Revision uint64 `json:"revision"`
		}
		if resp, err := client.get(ctx, "/settings"); err == nil && decodeJSON(resp, &snap) == nil {
			printStatus("Settings revision", "%d", snap.Revision)
		}
		var items []any
		if resp, err := client.get(ctx, "/layout"); err == nil && decodeJSON(resp, &items) == nil {
			printStatus("Layout items", "%d", len(items))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config file", "%s", config.ConfigFilePath())
	return nil
}

// reportStatus prints whether the server answers its health check.
func reportStatus(ctx context.Context, client *apiClient, port int) bool {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return false
	}
	printStatus("Server", "running on port %d", port)
	return true
}
