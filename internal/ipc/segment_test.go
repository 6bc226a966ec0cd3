package ipc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSegment(t *testing.T) *Segment {
	t.Helper()

	seg, err := NewSegment(make([]byte, SegmentSize))
	require.NoError(t, err)

	return seg
}

func TestNewSegment_RejectsShortBuffer(t *testing.T) {
	_, err := NewSegment(make([]byte, SegmentSize-1))
	assert.Error(t, err)
}

func TestSegment_PromptRoundTrip(t *testing.T) {
	seg := newTestSegment(t)

	seg.SetSystemPrompt("You are a coding expert")
	seg.SetUserPrompt("What is Go?")

	assert.Equal(t, "You are a coding expert", seg.SystemPrompt())
	assert.Equal(t, "What is Go?", seg.UserPrompt())

	// Overwriting with a shorter value must not leak the old tail.
	seg.SetUserPrompt("Hi")
	assert.Equal(t, "Hi", seg.UserPrompt())
}

func TestSegment_PromptBoundary(t *testing.T) {
	seg := newTestSegment(t)

	exact := strings.Repeat("a", UserPromptCapacity)
	seg.SetUserPrompt(exact)
	assert.Equal(t, exact, seg.UserPrompt(), "a prompt of exactly the capacity is preserved in full")

	over := strings.Repeat("b", UserPromptCapacity+100)
	seg.SetUserPrompt(over)
	assert.Equal(t, over[:UserPromptCapacity], seg.UserPrompt(), "an oversized prompt is truncated to the capacity")
}

func TestSegment_TruncationDoesNotOverrunNeighboringField(t *testing.T) {
	seg := newTestSegment(t)

	seg.SetUserPrompt("untouched")
	seg.SetSystemPrompt(strings.Repeat("x", SystemPromptCapacity+500))

	assert.Equal(t, "untouched", seg.UserPrompt())
	assert.Len(t, seg.SystemPrompt(), SystemPromptCapacity)
}

func TestSegment_ResponseTruncation(t *testing.T) {
	seg := newTestSegment(t)

	over := strings.Repeat("r", ResponseCapacity+1)
	seg.SetResponse(over)

	assert.Len(t, seg.Response(), ResponseCapacity)

	// The shutdown flag lives directly after the response field.
	assert.False(t, seg.ShutdownRequested())
}

func TestSegment_StreamStateRoundTrip(t *testing.T) {
	seg := newTestSegment(t)

	assert.Equal(t, 0, seg.UpdateCounter())
	assert.Equal(t, 1, seg.IncrementUpdateCounter())
	assert.Equal(t, 2, seg.IncrementUpdateCounter())
	assert.Equal(t, 2, seg.UpdateCounter())

	seg.SetTokensGenerated(42)
	assert.Equal(t, 42, seg.TokensGenerated())

	seg.SetGenerationComplete(true)
	assert.True(t, seg.GenerationComplete())

	seg.SetStreamMode(true)
	assert.True(t, seg.StreamMode())
	seg.SetStreamMode(false)
	assert.False(t, seg.StreamMode())
}

func TestSegment_ResetStream(t *testing.T) {
	seg := newTestSegment(t)

	seg.SetResponse("previous response")
	seg.IncrementUpdateCounter()
	seg.SetTokensGenerated(7)
	seg.SetGenerationComplete(true)
	seg.SetSystemPrompt("keep me")

	seg.ResetStream()

	assert.Empty(t, seg.Response())
	assert.Equal(t, 0, seg.UpdateCounter())
	assert.Equal(t, 0, seg.TokensGenerated())
	assert.False(t, seg.GenerationComplete())

	// Request fields are client-owned and must survive a stream reset.
	assert.Equal(t, "keep me", seg.SystemPrompt())
}

func TestSegment_ShutdownFlagIsSticky(t *testing.T) {
	seg := newTestSegment(t)

	assert.False(t, seg.ShutdownRequested())
	seg.RequestShutdown()
	assert.True(t, seg.ShutdownRequested())

	// Nothing in the per-request reset path may clear it.
	seg.ResetStream()
	assert.True(t, seg.ShutdownRequested())
}

func TestNamesFor(t *testing.T) {
	names := NamesFor("myworker")

	assert.Equal(t, "myworker_shared_mem", names.Segment)
	assert.Equal(t, "myworker_sem_ready", names.Ready)
	assert.Equal(t, "myworker_sem_prompts_written", names.PromptsWritten)
	assert.Equal(t, "myworker_sem_response_written", names.ResponseWritten)
	assert.Equal(t, "myworker_sem_chunk_ready", names.ChunkReady)

	assert.Equal(t, DefaultPrefix+"_shared_mem", NamesFor("").Segment, "empty prefix falls back to the default")
}
