// Projectd is a daemon that maintains several independent projects and
// switches the active one at runtime.
//
// Each project carries its own derived artifacts: a vector index of code
// embeddings, a fine-tuned adapter, and a running conversation context. The
// daemon exposes registration, switching, indexing and health over HTTP.
//
// Usage:
//
//	# Start with defaults
//	projectd
//
//	# Use a specific config file
//	projectd -config /etc/projectd/config.yaml
//
//	# Configure via environment
//	PROJECTD_SERVER_PORT=9091 projectd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/adapter"
	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/conversation"
	"github.com/fyrsmithlabs/projectd/internal/discovery"
	"github.com/fyrsmithlabs/projectd/internal/embedcache"
	"github.com/fyrsmithlabs/projectd/internal/embeddings"
	projecthttp "github.com/fyrsmithlabs/projectd/internal/http"
	"github.com/fyrsmithlabs/projectd/internal/indexer"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/orchestrator"
	"github.com/fyrsmithlabs/projectd/internal/registry"
	"github.com/fyrsmithlabs/projectd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  projectd           Start the projectd daemon\n")
			fmt.Fprintf(os.Stderr, "  projectd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("projectd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the projectd daemon and blocks until context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting projectd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
	)

	// Durable stores.
	reg, err := registry.NewRegistry(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}

	cache, err := embedcache.New(embedcache.Config{
		Dir:              cfg.Cache.Dir,
		MaxMemoryEntries: cfg.Cache.MaxMemoryEntries,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open embedding cache: %w", err)
	}

	// Embedding backend.
	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
		Revision: cfg.Embedding.Revision,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}

	// Per-project resource managers, in switch order.
	vectors, err := vectorstore.NewManager(vectorstore.Config{
		BasePath:   cfg.Artifacts.VectorStoreDir,
		VectorSize: cfg.Artifacts.VectorSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create vector store manager: %w", err)
	}
	adapters := adapter.NewLoader(adapter.Config{Dir: cfg.Artifacts.AdapterDir}, logger)
	conversations := conversation.NewManager(logger)

	orch := orchestrator.New(reg, []orchestrator.ResourceManager{
		vectors,
		adapters,
		conversations,
	}, logger)

	// Indexing pipeline.
	scanner := discovery.NewScanner(discovery.Config{
		Timeout:          cfg.Discovery.Timeout.Duration(),
		ProgressInterval: cfg.Discovery.ProgressInterval.Duration(),
	}, logger)
	indexSvc := indexer.NewService(indexer.Config{
		MaxFileSize: cfg.Discovery.MaxFileSize,
	}, scanner, cache, embedder, vectors, logger)

	srv, err := projecthttp.NewServer(projecthttp.Services{
		Orchestrator: orch,
		Registry:     reg,
		Conversation: conversations,
		Indexer:      indexSvc,
		Cache:        cache,
	}, logger, &projecthttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
