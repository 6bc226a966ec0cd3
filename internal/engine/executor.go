package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running engine subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
	Start(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command to completion.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	return outBuf.Bytes(), errBuf.Bytes(), cmd.Run()
}

// Start starts a command and hands back its output pipes.
func (ExecCommandRunner) Start(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}

	return stdoutPipe, stderrPipe, cmd.Wait, nil
}

// Executor runs an engine binary.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor. A zero timeout disables the per-call
// deadline, which unlimited generation requires.
func NewExecutor(binaryPath string, timeout time.Duration) (*Executor, error) {
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine: binary not found: %w", err)
	}

	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     ExecCommandRunner{},
	}, nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// Execute runs the command and returns its full output.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.runner.Run(ctx, e.binaryPath, args, stdin)
}

// Stream runs the command and invokes emit for each fragment of stdout as
// the process flushes it, returning the accumulated stdout. emit may be nil.
func (e *Executor) Stream(ctx context.Context, args []string, stdin io.Reader, emit func(piece []byte)) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	stdout, stderr, wait, err := e.runner.Start(ctx, e.binaryPath, args, stdin)
	if err != nil {
		return nil, fmt.Errorf("engine: executor: failed to start command: %w", err)
	}

	// Drain stderr in the background so the subprocess never blocks on it.
	stderrBuf := new(bytes.Buffer)
	stderrDone := make(chan struct{})
	go func() {
		if _, err := io.Copy(stderrBuf, stderr); err != nil {
			slog.Error("Failed to read stderr", "error", err)
		}
		close(stderrDone)
	}()

	var out bytes.Buffer
	buf := make([]byte, 256)
	var readErr error

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			if emit != nil {
				emit(buf[:n])
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	<-stderrDone
	waitErr := wait()

	switch {
	case readErr != nil:
		return out.Bytes(), fmt.Errorf("engine: executor: failed to read output: %w", readErr)
	case waitErr != nil:
		if s := stderrBuf.String(); s != "" {
			return out.Bytes(), fmt.Errorf("engine: executor: %w: %s", waitErr, s)
		}
		return out.Bytes(), fmt.Errorf("engine: executor: %w", waitErr)
	}

	return out.Bytes(), nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
