package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Segment provides typed access to the fields of the shared memory segment.
// It performs no locking of its own: the protocol guarantees a single writer
// per field during any given phase, and the semaphore handshake orders writes
// before the reads that observe them.
type Segment struct {
	data []byte
}

// NewSegment wraps a mapped byte slice. The slice must be at least
// SegmentSize bytes; only the first SegmentSize bytes are used.
func NewSegment(data []byte) (*Segment, error) {
	if len(data) < SegmentSize {
		return nil, fmt.Errorf("ipc: segment needs %d bytes, got %d", SegmentSize, len(data))
	}

	return &Segment{data: data[:SegmentSize]}, nil
}

// Zero clears the entire segment.
func (s *Segment) Zero() {
	clear(s.data)
}

// SystemPrompt returns the system prompt written by the client.
func (s *Segment) SystemPrompt() string {
	return s.readString(systemPromptOffset, systemPromptSize)
}

// SetSystemPrompt writes the system prompt, silently truncating to
// SystemPromptCapacity bytes.
func (s *Segment) SetSystemPrompt(v string) {
	s.writeString(systemPromptOffset, systemPromptSize, v)
}

// UserPrompt returns the user prompt written by the client.
func (s *Segment) UserPrompt() string {
	return s.readString(userPromptOffset, userPromptSize)
}

// SetUserPrompt writes the user prompt, silently truncating to
// UserPromptCapacity bytes.
func (s *Segment) SetUserPrompt(v string) {
	s.writeString(userPromptOffset, userPromptSize, v)
}

// Response returns the accumulated response text.
func (s *Segment) Response() string {
	return s.readString(responseOffset, responseSize)
}

// SetResponse overwrites the response field with the full text so far,
// silently truncating to ResponseCapacity bytes. Each streaming update is a
// complete replacement, not a delta.
func (s *Segment) SetResponse(v string) {
	s.writeString(responseOffset, responseSize, v)
}

// ShutdownRequested reports whether the client has set the shutdown flag.
func (s *Segment) ShutdownRequested() bool {
	return s.data[shutdownRequestedOffset] != 0
}

// RequestShutdown sets the sticky shutdown flag. It is never cleared.
func (s *Segment) RequestShutdown() {
	s.data[shutdownRequestedOffset] = 1
}

// StreamMode reports whether the client asked for streaming delivery.
func (s *Segment) StreamMode() bool {
	return s.data[streamModeOffset] != 0
}

// SetStreamMode sets the streaming flag for the next request.
func (s *Segment) SetStreamMode(v bool) {
	s.data[streamModeOffset] = boolByte(v)
}

// UpdateCounter returns the monotonic per-request update counter.
func (s *Segment) UpdateCounter() int {
	return int(int32(binary.LittleEndian.Uint32(s.data[updateCounterOffset:])))
}

// IncrementUpdateCounter bumps the update counter and returns the new value.
func (s *Segment) IncrementUpdateCounter() int {
	n := int32(binary.LittleEndian.Uint32(s.data[updateCounterOffset:])) + 1
	binary.LittleEndian.PutUint32(s.data[updateCounterOffset:], uint32(n))
	return int(n)
}

// GenerationComplete reports whether the current response stream is final.
func (s *Segment) GenerationComplete() bool {
	return s.data[generationCompleteOffset] != 0
}

// SetGenerationComplete marks the response stream final (or resets the mark
// at the start of a request).
func (s *Segment) SetGenerationComplete(v bool) {
	s.data[generationCompleteOffset] = boolByte(v)
}

// TokensGenerated returns the number of tokens emitted so far.
func (s *Segment) TokensGenerated() int {
	return int(int32(binary.LittleEndian.Uint32(s.data[tokensGeneratedOffset:])))
}

// SetTokensGenerated records the number of tokens emitted so far.
func (s *Segment) SetTokensGenerated(n int) {
	binary.LittleEndian.PutUint32(s.data[tokensGeneratedOffset:], uint32(int32(n)))
}

// ResetStream clears the response field and resets the streaming metadata.
// Called at the start of every request so each response stream starts from a
// clean state regardless of what the previous request left behind.
func (s *Segment) ResetStream() {
	clear(s.data[responseOffset : responseOffset+responseSize])
	binary.LittleEndian.PutUint32(s.data[updateCounterOffset:], 0)
	binary.LittleEndian.PutUint32(s.data[tokensGeneratedOffset:], 0)
	s.data[generationCompleteOffset] = 0
}

// readString returns the NUL-terminated string stored at the given field.
func (s *Segment) readString(off, size int) string {
	field := s.data[off : off+size]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// writeString stores v as a NUL-terminated string, truncating to size-1
// bytes. Truncation is silent; the write never overruns the field.
func (s *Segment) writeString(off, size int, v string) {
	if len(v) > size-1 {
		v = v[:size-1]
	}
	n := copy(s.data[off:off+size-1], v)
	s.data[off+n] = 0
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
