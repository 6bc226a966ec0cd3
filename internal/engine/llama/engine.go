// Package llama implements the inference engine on top of a llama.cpp
// command-line binary run as a subprocess per request.
package llama

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ekisa-team/shmbridge/internal/engine"
)

// Config holds the engine parameters. Zero values fall back to the defaults
// below.
type Config struct {
	// BinaryPath is the llama.cpp CLI binary.
	BinaryPath string

	// ModelPath is the GGUF model file.
	ModelPath string

	ContextSize   int
	BatchSize     int
	GPULayers     int
	Threads       int
	Temperature   float64
	MinP          float64
	RepeatPenalty float64

	// Timeout bounds a single generation. Zero means no deadline.
	Timeout time.Duration
}

// Engine defaults matching the original worker's sampler and context setup.
const (
	DefaultContextSize   = 2048
	DefaultBatchSize     = 2048
	DefaultTemperature   = 0.7
	DefaultMinP          = 0.05
	DefaultRepeatPenalty = 1.1
)

// Engine runs llama.cpp as a subprocess. Each Generate call spawns a fresh
// process, so no conversation state survives between requests.
type Engine struct {
	cfg      Config
	executor *engine.Executor
}

// Load validates the model file and prepares the engine. A missing model or
// binary is a load failure, which the worker treats as fatal.
func Load(cfg Config) (*Engine, error) {
	if info, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("llama: model not found at %s: %w", cfg.ModelPath, err)
	} else if info.IsDir() {
		return nil, fmt.Errorf("llama: model path %s is a directory", cfg.ModelPath)
	}

	executor, err := engine.NewExecutor(cfg.BinaryPath, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("llama: %w", err)
	}

	return &Engine{cfg: cfg, executor: executor}, nil
}

// Generate runs one inference. Stdout fragments are forwarded to sink as the
// subprocess flushes them; on failure the partial text read so far is
// returned with the error so the caller can still commit it.
func (e *Engine) Generate(ctx context.Context, req *engine.Request, sink engine.TokenSink) (*engine.Result, error) {
	prompt := engine.BuildPrompt(req.SystemPrompt, req.UserPrompt)
	args := e.buildArgs(req.MaxTokens, prompt)

	tokens := 0
	var emit func([]byte)
	if sink != nil {
		emit = func(piece []byte) {
			tokens++
			sink(string(piece))
		}
	}

	out, err := e.executor.Stream(ctx, args, nil, emit)
	text := strings.TrimSpace(string(out))

	if sink == nil {
		// Without streaming the subprocess output arrives in arbitrary read
		// sizes, so only the total is meaningful.
		tokens = len(strings.Fields(text))
	}

	result := &engine.Result{Text: text, Tokens: tokens}
	if err != nil {
		return result, fmt.Errorf("llama: generation failed: %w", err)
	}

	return result, nil
}

// ResetSession is a no-op: each request runs in a fresh subprocess, so there
// is no conversation state to clear.
func (e *Engine) ResetSession() error {
	return nil
}

// Close releases the engine. Nothing is held between requests.
func (e *Engine) Close() error {
	return nil
}

// buildArgs assembles the llama.cpp command line.
func (e *Engine) buildArgs(maxTokens int, prompt string) []string {
	args := []string{"--model", e.cfg.ModelPath, "--prompt", prompt}

	if maxTokens == engine.UnlimitedTokens {
		args = append(args, "-n", "-1")
	} else {
		args = append(args, "-n", fmt.Sprintf("%d", maxTokens))
	}

	args = append(args, "--ctx-size", fmt.Sprintf("%d", intOr(e.cfg.ContextSize, DefaultContextSize)))
	args = append(args, "--batch-size", fmt.Sprintf("%d", intOr(e.cfg.BatchSize, DefaultBatchSize)))
	args = append(args, "--temp", fmt.Sprintf("%.2f", floatOr(e.cfg.Temperature, DefaultTemperature)))
	args = append(args, "--min-p", fmt.Sprintf("%.2f", floatOr(e.cfg.MinP, DefaultMinP)))
	args = append(args, "--repeat-penalty", fmt.Sprintf("%.2f", floatOr(e.cfg.RepeatPenalty, DefaultRepeatPenalty)))

	if e.cfg.GPULayers > 0 {
		args = append(args, "-ngl", fmt.Sprintf("%d", e.cfg.GPULayers))
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", e.cfg.Threads))
	}

	args = append(args,
		"--no-warmup",
		"--no-display-prompt",
		"--simple-io",
		"--no-conversation",
	)

	return args
}

func intOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func floatOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
