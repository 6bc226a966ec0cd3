package client_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/shmbridge/internal/client"
	"github.com/ekisa-team/shmbridge/internal/engine"
	"github.com/ekisa-team/shmbridge/internal/ipc"
	"github.com/ekisa-team/shmbridge/internal/worker"
)

// echoEngine answers with a fixed preamble plus the framed prompt, one word
// at a time, so tests can check prompt construction end to end.
type echoEngine struct {
	pieces func(req *engine.Request) []string
}

func (e *echoEngine) Generate(_ context.Context, req *engine.Request, sink engine.TokenSink) (*engine.Result, error) {
	pieces := e.pieces(req)

	var text strings.Builder
	for _, piece := range pieces {
		text.WriteString(piece)
		if sink != nil {
			sink(piece)
		}
	}

	return &engine.Result{Text: text.String(), Tokens: len(pieces)}, nil
}

func (e *echoEngine) ResetSession() error { return nil }
func (e *echoEngine) Close() error        { return nil }

// startWorker brings up a real session and a worker loop over it.
func startWorker(t *testing.T, eng engine.Engine) (prefix string, done chan error) {
	t.Helper()

	prefix = fmt.Sprintf("shmbridgeclient_%d", os.Getpid())

	session, err := ipc.NewSession(prefix)
	require.NoError(t, err)
	t.Cleanup(func() { session.Teardown() })

	wk := worker.New(session.Segment(), session.Semaphores(), eng, 0)

	done = make(chan error, 1)
	go func() {
		done <- wk.Run(context.Background())
	}()

	return prefix, done
}

func awaitExit(t *testing.T, done chan error) {
	t.Helper()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestClient_RoundTrip(t *testing.T) {
	eng := &echoEngine{pieces: func(req *engine.Request) []string {
		return []string{"echo:", engine.BuildPrompt(req.SystemPrompt, req.UserPrompt)}
	}}
	prefix, done := startWorker(t, eng)

	c, err := client.Dial(prefix)
	require.NoError(t, err)
	defer c.Close()

	c.WaitReady()

	resp, err := c.Do(&client.Request{UserPrompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo:<|user|>\nhello<|end|>\n<|assistant|>\n", resp,
		"an empty system prompt omits the system framing")

	resp, err = c.Do(&client.Request{SystemPrompt: "be kind", UserPrompt: "hello"})
	require.NoError(t, err)
	assert.Contains(t, resp, "<|system|>\nbe kind<|end|>\n")

	require.NoError(t, c.Shutdown())
	awaitExit(t, done)
}

func TestClient_Streaming(t *testing.T) {
	eng := &echoEngine{pieces: func(*engine.Request) []string {
		return []string{"to", "ken", " by", " token"}
	}}
	prefix, done := startWorker(t, eng)

	c, err := client.Dial(prefix)
	require.NoError(t, err)
	defer c.Close()

	c.WaitReady()

	var updates []client.Update
	resp, err := c.Do(&client.Request{
		UserPrompt: "stream",
		Stream:     true,
		OnUpdate:   func(u client.Update) { updates = append(updates, u) },
	})
	require.NoError(t, err)
	assert.Equal(t, "token by token", resp)

	require.NotEmpty(t, updates)

	// Counters observed across chunk signals never go backwards, and only
	// the last observed update carries the completion marker.
	last := 0
	for i, u := range updates {
		assert.GreaterOrEqual(t, u.Counter, last)
		last = u.Counter
		if i < len(updates)-1 {
			assert.False(t, u.Done)
		}
	}
	assert.True(t, updates[len(updates)-1].Done)
	assert.Equal(t, "token by token", updates[len(updates)-1].Text)
	assert.Equal(t, 4, updates[len(updates)-1].Tokens)

	require.NoError(t, c.Shutdown())
	awaitExit(t, done)
}

func TestClient_SequentialStreamsDrainStaleChunkSignals(t *testing.T) {
	eng := &echoEngine{pieces: func(req *engine.Request) []string {
		pieces := make([]string, 6)
		for i := range pieces {
			pieces[i] = fmt.Sprintf("%s%d ", req.UserPrompt, i)
		}
		return pieces
	}}
	prefix, done := startWorker(t, eng)

	c, err := client.Dial(prefix)
	require.NoError(t, err)
	defer c.Close()

	c.WaitReady()

	// A slow consumer falls behind the chunk signals, so this stream ends
	// having consumed fewer counts than the worker posted.
	first, err := c.Do(&client.Request{
		UserPrompt: "one",
		Stream:     true,
		OnUpdate:   func(client.Update) { time.Sleep(20 * time.Millisecond) },
	})
	require.NoError(t, err)

	var updates []client.Update
	second, err := c.Do(&client.Request{
		UserPrompt: "two",
		Stream:     true,
		OnUpdate:   func(u client.Update) { updates = append(updates, u) },
	})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NotEmpty(t, updates)
	for _, u := range updates {
		assert.NotEqual(t, first, u.Text, "leftover signals must not surface the previous request's state")
	}
	assert.True(t, updates[len(updates)-1].Done)
	assert.Equal(t, second, updates[len(updates)-1].Text)

	require.NoError(t, c.Shutdown())
	awaitExit(t, done)
}

func TestClient_SequentialRequestsAreIsolated(t *testing.T) {
	eng := &echoEngine{pieces: func(req *engine.Request) []string {
		return []string{"reply to ", req.UserPrompt}
	}}
	prefix, done := startWorker(t, eng)

	c, err := client.Dial(prefix)
	require.NoError(t, err)
	defer c.Close()

	c.WaitReady()

	first, err := c.Do(&client.Request{UserPrompt: "a much longer first question"})
	require.NoError(t, err)
	assert.Equal(t, "reply to a much longer first question", first)

	second, err := c.Do(&client.Request{UserPrompt: "b"})
	require.NoError(t, err)
	assert.Equal(t, "reply to b", second, "no residue from the previous, longer response")

	require.NoError(t, c.Shutdown())
	awaitExit(t, done)
}

func TestClient_DialFailsWithoutWorker(t *testing.T) {
	_, err := client.Dial(fmt.Sprintf("shmbridgenone_%d", os.Getpid()))
	assert.Error(t, err)
}

func TestClient_ClosedClientRejectsRequests(t *testing.T) {
	eng := &echoEngine{pieces: func(*engine.Request) []string { return []string{"x"} }}
	prefix, done := startWorker(t, eng)

	c, err := client.Dial(prefix)
	require.NoError(t, err)
	c.WaitReady()

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "close is idempotent")

	_, err = c.Do(&client.Request{UserPrompt: "nope"})
	assert.ErrorIs(t, err, client.ErrClosed)
	assert.ErrorIs(t, c.Shutdown(), client.ErrClosed)

	// Shut the worker down through a fresh client so the goroutine exits.
	c2, err := client.Dial(prefix)
	require.NoError(t, err)
	defer c2.Close()
	require.NoError(t, c2.Shutdown())
	awaitExit(t, done)
}
