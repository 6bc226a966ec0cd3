// Package worker implements the request/response orchestrator: the loop that
// waits for a request in shared memory, runs the inference engine, commits
// the response, and signals the client. The worker handles exactly one
// request at a time; correctness depends on both sides honoring the
// semaphore handshake.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ekisa-team/shmbridge/internal/engine"
	"github.com/ekisa-team/shmbridge/internal/ipc"
)

// Worker drives the protocol state machine over one session.
type Worker struct {
	segment *ipc.Segment
	sems    *ipc.SemaphoreSet
	eng     engine.Engine

	maxTokens atomic.Int64
	stopping  atomic.Bool

	// Cycle counters, exposed for observability and tests.
	requestsServed atomic.Int64
}

// New creates a worker over an established session. maxTokens follows the
// protocol convention: zero means unlimited.
func New(segment *ipc.Segment, sems *ipc.SemaphoreSet, eng engine.Engine, maxTokens int) *Worker {
	w := &Worker{
		segment: segment,
		sems:    sems,
		eng:     eng,
	}
	w.maxTokens.Store(int64(maxTokens))

	return w
}

// SetMaxTokens updates the token budget applied to subsequent requests.
// Called by the config watcher on reload.
func (w *Worker) SetMaxTokens(n int) {
	w.maxTokens.Store(int64(n))
}

// MaxTokens returns the token budget currently applied to requests.
func (w *Worker) MaxTokens() int {
	return int(w.maxTokens.Load())
}

// RequestStop asks the loop to exit before dequeuing another request. The
// flag is only observed once the blocking wait returns; callers that need a
// prompt exit (the signal path) tear the session down and exit the process.
func (w *Worker) RequestStop() {
	w.stopping.Store(true)
}

// RequestsServed returns the number of completed request/response cycles.
func (w *Worker) RequestsServed() int {
	return int(w.requestsServed.Load())
}

// Run executes the orchestrator loop. The engine is assumed loaded; the
// first ready signal announces that. Run returns when the client sets the
// shutdown flag, when RequestStop was called, or when ctx is already
// canceled at the top of a cycle.
func (w *Worker) Run(ctx context.Context) error {
	for {
		w.sems.Ready.Signal(1)
		slog.Info("Waiting for request")

		w.sems.PromptsWritten.Wait()

		if w.stopping.Load() || ctx.Err() != nil {
			slog.Info("Worker stopping")
			return ctx.Err()
		}

		if w.segment.ShutdownRequested() {
			slog.Info("Shutdown requested by client")
			return nil
		}

		w.serve(ctx)
		w.requestsServed.Add(1)
	}
}

// serve handles one request end to end: read the request fields, reset the
// response stream, generate, commit, signal. Engine failures abort the
// generation early but still complete the handshake so the client is never
// left blocked; the client sees a short or empty response, since the
// protocol carries no error channel.
func (w *Worker) serve(ctx context.Context) {
	req := &engine.Request{
		SystemPrompt: w.segment.SystemPrompt(),
		UserPrompt:   w.segment.UserPrompt(),
		MaxTokens:    engine.NormalizeMaxTokens(int(w.maxTokens.Load())),
	}
	streaming := w.segment.StreamMode()

	slog.Info("Received request",
		"system_prompt_len", len(req.SystemPrompt),
		"user_prompt_len", len(req.UserPrompt),
		"stream", streaming,
	)

	w.segment.ResetStream()

	if streaming {
		pub := NewPublisher(w.segment, w.sems.ChunkReady)

		_, err := w.eng.Generate(ctx, req, pub.Publish)
		if err != nil {
			slog.Error("Generation failed, committing partial response", "error", err)
		}
		pub.Finish()
	} else {
		res, err := w.eng.Generate(ctx, req, nil)
		if err != nil {
			slog.Error("Generation failed, committing partial response", "error", err)
		}
		if res != nil {
			w.segment.SetResponse(res.Text)
			w.segment.SetTokensGenerated(res.Tokens)
		}
		w.segment.SetGenerationComplete(true)
		w.segment.IncrementUpdateCounter()
	}

	slog.Info("Response committed", "tokens", w.segment.TokensGenerated())
	w.sems.ResponseWritten.Signal(1)

	// Clear engine conversation state so the next request starts clean,
	// success or failure.
	if err := w.eng.ResetSession(); err != nil {
		slog.Warn("Failed to reset engine session", "error", err)
	}
}
