// Package chat implements the interactive test mode: a console chatbot that
// drives the inference engine directly, bypassing the shared-memory channel.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ekisa-team/shmbridge/internal/engine"
)

// Options configures a chat session.
type Options struct {
	// SystemPrompt is included in every request.
	SystemPrompt string

	// Stream prints tokens as they are generated instead of the full
	// response at once.
	Stream bool

	// MaxTokens is the per-request token budget; 0 means unlimited.
	MaxTokens int

	// In and Out default to the process's stdin and stdout when nil.
	In  io.Reader
	Out io.Writer
}

func (o *Options) setDefaults() {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// RunOnce performs a single request/response exchange and prints the result.
func RunOnce(ctx context.Context, eng engine.Engine, opts Options, userPrompt string) error {
	opts.setDefaults()

	_, err := ask(ctx, eng, opts, userPrompt)
	return err
}

// RunInteractive runs the console loop: read a line, generate, print, repeat.
// Typing "exit", "quit" or "bye" (or EOF) ends the session.
func RunInteractive(ctx context.Context, eng engine.Engine, opts Options) error {
	opts.setDefaults()
	out := opts.Out

	fmt.Fprintf(out, "System: %s\n", opts.SystemPrompt)
	if opts.Stream {
		fmt.Fprintln(out, "Mode: Streaming (tokens appear as they generate)")
	} else {
		fmt.Fprintln(out, "Mode: Normal (full response at once)")
	}
	if opts.MaxTokens == 0 {
		fmt.Fprintln(out, "Max Tokens: Unlimited (generates until naturally stops)")
	} else {
		fmt.Fprintf(out, "Max Tokens: %d\n", opts.MaxTokens)
	}
	fmt.Fprintln(out, "\nType your message and press Enter. Type 'exit' or 'quit' to end.")

	scanner := bufio.NewScanner(opts.In)
	for {
		fmt.Fprint(out, "\nYou: ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || input == "bye" {
			fmt.Fprintln(out, "\nGoodbye!")
			break
		}

		if _, err := ask(ctx, eng, opts, input); err != nil {
			slog.Error("Generation failed", "error", err)
		}
	}

	return scanner.Err()
}

// ask runs one generation and prints the response, streamed or buffered.
func ask(ctx context.Context, eng engine.Engine, opts Options, userPrompt string) (*engine.Result, error) {
	req := &engine.Request{
		SystemPrompt: opts.SystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    engine.NormalizeMaxTokens(opts.MaxTokens),
	}

	fmt.Fprint(opts.Out, "\nAssistant: ")

	var sink engine.TokenSink
	if opts.Stream {
		sink = func(piece string) {
			fmt.Fprint(opts.Out, piece)
		}
	}

	res, err := eng.Generate(ctx, req, sink)
	if err != nil {
		return res, err
	}

	if opts.Stream {
		fmt.Fprintln(opts.Out)
	} else {
		fmt.Fprintln(opts.Out, res.Text)
	}

	if err := eng.ResetSession(); err != nil {
		slog.Warn("Failed to reset engine session", "error", err)
	}

	return res, nil
}
