// Command shmbridge is the shared-memory inference worker. By default it
// creates the shared segment and semaphores, loads the model, and serves
// requests from a client process until that client requests shutdown. With
// --test it runs as a console chatbot instead, bypassing shared memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/shmbridge/internal/chat"
	"github.com/ekisa-team/shmbridge/internal/config"
	"github.com/ekisa-team/shmbridge/internal/engine/llama"
	"github.com/ekisa-team/shmbridge/internal/env"
	"github.com/ekisa-team/shmbridge/internal/envvar"
	"github.com/ekisa-team/shmbridge/internal/ipc"
	"github.com/ekisa-team/shmbridge/internal/logger"
	"github.com/ekisa-team/shmbridge/internal/worker"
)

func main() {
	var (
		flagTest      = flag.Bool("test", false, "Run in interactive test mode as a chatbot")
		flagSystem    = flag.String("system", "", "Custom system prompt for test mode")
		flagUser      = flag.String("user", "", "Single user prompt for one-shot test mode")
		flagStream    = flag.Bool("stream", false, "Enable streaming mode in test mode")
		flagMaxTokens = flag.Int("max-tokens", 4096, "Maximum tokens to generate (0 for unlimited)")

		flagConfigPath = flag.String("config", path.Join(configDir(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", path.Join(configDir(), "shmbridge.v1.schema.json"), "Path to schema file")
	)
	flag.Parse()

	if *flagMaxTokens < 0 {
		fmt.Fprintln(os.Stderr, "Error: --max-tokens must be non-negative (use 0 for unlimited)")
		os.Exit(1)
	}

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(!*flagTest),
			logger.WithLogFile("logs/shmbridge.log"),
		),
	)

	if *flagTest {
		cfg, err := config.LoadAndValidate(*flagConfigPath, *flagSchemaPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		os.Exit(runTest(cfg, *flagSystem, *flagUser, *flagStream, *flagMaxTokens))
	}

	os.Exit(runWorker(*flagConfigPath, *flagSchemaPath))
}

// runWorker runs shared-memory mode: session, engine, orchestrator loop.
func runWorker(configPath, schemaPath string) int {
	// The watcher goroutine may fire a reload before the worker exists, so
	// the worker is published to the callback through an atomic pointer.
	var wkRef atomic.Pointer[worker.Worker]

	watcher, err := config.NewWatcher(configPath, schemaPath, onReload(&wkRef))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}

	cfg := watcher.Snapshot()
	slog.Info("Config loaded successfully", "config", configPath, "schema", schemaPath)

	session, err := ipc.NewSession(resolvePrefix(cfg))
	if err != nil {
		slog.Error("Failed to initialize shared memory session", "error", err)
		return 1
	}
	slog.Info("Shared memory initialized", "segment", session.Names().Segment)

	slog.Info("Loading model", "path", cfg.Model.Path)
	eng, err := llama.Load(engineConfig(cfg))
	if err != nil {
		slog.Error("Failed to load model", "error", err)
		session.Teardown()
		return 1
	}

	wk := worker.New(session.Segment(), session.Semaphores(), eng, cfg.Generation.MaxTokens)
	wkRef.Store(wk)

	// Termination signals perform an orderly teardown and exit with the
	// signal number as status. A request in flight is abandoned.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Received signal, shutting down", "signal", sig.String())
		wk.RequestStop()
		session.Teardown()
		eng.Close()
		if s, ok := sig.(syscall.Signal); ok {
			os.Exit(int(s))
		}
		os.Exit(1)
	}()

	slog.Info("Model loaded, ready to process requests")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return wk.Run(ctx)
	})
	g.Go(func() error {
		heartbeat(ctx, wk)
		return nil
	})

	runErr := g.Wait()

	if err := session.Teardown(); err != nil {
		slog.Warn("Teardown reported errors", "error", err)
	}
	if err := eng.Close(); err != nil {
		slog.Warn("Failed to close engine", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Worker exited with error", "error", runErr)
		return 1
	}

	slog.Info("Shutdown complete", "requests_served", wk.RequestsServed())
	return 0
}

// runTest runs the console chatbot, interactive or one-shot.
func runTest(cfg *config.Config, systemPrompt, userPrompt string, stream bool, maxTokens int) int {
	if systemPrompt == "" {
		systemPrompt = cfg.Generation.SystemPrompt
	}
	if systemPrompt == "" {
		systemPrompt = config.DefaultSystemPrompt
	}

	slog.Info("Loading model", "path", cfg.Model.Path)
	eng, err := llama.Load(engineConfig(cfg))
	if err != nil {
		slog.Error("Failed to load model", "error", err)
		return 1
	}
	defer eng.Close()

	opts := chat.Options{
		SystemPrompt: systemPrompt,
		Stream:       stream,
		MaxTokens:    maxTokens,
		In:           os.Stdin,
		Out:          os.Stdout,
	}

	ctx := context.Background()
	if userPrompt != "" {
		err = chat.RunOnce(ctx, eng, opts, userPrompt)
	} else {
		err = chat.RunInteractive(ctx, eng, opts)
	}
	if err != nil {
		slog.Error("Chat session failed", "error", err)
		return 1
	}

	return 0
}

// heartbeat periodically logs loop progress until ctx is done.
func heartbeat(ctx context.Context, wk *worker.Worker) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Debug("Worker alive", "requests_served", wk.RequestsServed())
		}
	}
}

// engineConfig maps the model section of the config onto the llama engine.
func engineConfig(cfg *config.Config) llama.Config {
	return llama.Config{
		BinaryPath:    cfg.Model.Binary,
		ModelPath:     cfg.Model.Path,
		ContextSize:   cfg.Model.ContextSize,
		BatchSize:     cfg.Model.BatchSize,
		GPULayers:     cfg.Model.GPULayers,
		Threads:       cfg.Model.Threads,
		Temperature:   cfg.Model.Temperature,
		MinP:          cfg.Model.MinP,
		RepeatPenalty: cfg.Model.RepeatPenalty,
	}
}

// onReload applies validated config reloads to the running worker. Reloads
// arriving before the worker has been stored are ignored.
func onReload(wkRef *atomic.Pointer[worker.Worker]) func(*config.Config, error) {
	return func(cfg *config.Config, err error) {
		wk := wkRef.Load()
		if err != nil || wk == nil {
			return
		}
		wk.SetMaxTokens(cfg.Generation.MaxTokens)
		slog.Info("Applied generation defaults from config", "max_tokens", cfg.Generation.MaxTokens)
	}
}

// configDir returns the directory searched for the config and schema files,
// honoring the SHMBRIDGE_CONFIG_PATH override.
func configDir() string {
	if p := os.Getenv(envvar.ShmbridgeConfigPath); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

// resolvePrefix returns the shared resource name prefix.
// Precedence:
// 1. SHMBRIDGE_IPC_PREFIX environment variable.
// 2. Prefix field in the config.
// 3. Default prefix.
func resolvePrefix(cfg *config.Config) string {
	if p := os.Getenv(envvar.ShmbridgeIPCPrefix); p != "" {
		return p
	}
	if cfg.IPC.Prefix != "" {
		return cfg.IPC.Prefix
	}
	return ipc.DefaultPrefix
}
