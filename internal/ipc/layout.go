// Package ipc implements the shared-memory request/response channel between
// the shmbridge worker and its client process: a fixed-layout memory segment
// carrying prompts and the response stream, plus four named counting
// semaphores that sequence the handshake.
//
// The segment layout is fixed-offset and fixed-size. It has no version field;
// any change to the offsets below breaks binary compatibility with existing
// clients.
package ipc

// Byte offsets and capacities of the shared segment fields. Integer fields
// are little-endian int32, boolean fields a single byte (0 or 1). Text fields
// are NUL-terminated within their capacity.
const (
	systemPromptOffset = 0
	systemPromptSize   = 4096

	userPromptOffset = systemPromptOffset + systemPromptSize
	userPromptSize   = 4096

	responseOffset = userPromptOffset + userPromptSize
	responseSize   = 32768

	shutdownRequestedOffset = responseOffset + responseSize
	streamModeOffset        = shutdownRequestedOffset + 1

	// int32 fields are 4-byte aligned, matching the original struct layout.
	updateCounterOffset      = shutdownRequestedOffset + 4
	generationCompleteOffset = updateCounterOffset + 4
	tokensGeneratedOffset    = generationCompleteOffset + 4

	// SegmentSize is the total size of the shared segment in bytes.
	SegmentSize = tokensGeneratedOffset + 4
)

// Usable text capacities, excluding the NUL terminator.
const (
	// SystemPromptCapacity is the maximum system prompt length in bytes.
	SystemPromptCapacity = systemPromptSize - 1

	// UserPromptCapacity is the maximum user prompt length in bytes.
	UserPromptCapacity = userPromptSize - 1

	// ResponseCapacity is the maximum response length in bytes.
	ResponseCapacity = responseSize - 1
)

// Suffixes appended to the session prefix to form the OS-level resource names.
const (
	segmentSuffix            = "_shared_mem"
	semReadySuffix           = "_sem_ready"
	semPromptsWrittenSuffix  = "_sem_prompts_written"
	semResponseWrittenSuffix = "_sem_response_written"
	semChunkReadySuffix      = "_sem_chunk_ready"
)

// DefaultPrefix is the resource name prefix used when none is configured.
const DefaultPrefix = "shmbridge"

// Names holds the OS-level names of the five shared resources of one session.
type Names struct {
	Segment         string
	Ready           string
	PromptsWritten  string
	ResponseWritten string
	ChunkReady      string
}

// NamesFor derives the resource names for the given prefix. Both processes
// must use the same prefix to rendezvous.
func NamesFor(prefix string) Names {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return Names{
		Segment:         prefix + segmentSuffix,
		Ready:           prefix + semReadySuffix,
		PromptsWritten:  prefix + semPromptsWrittenSuffix,
		ResponseWritten: prefix + semResponseWrittenSuffix,
		ChunkReady:      prefix + semChunkReadySuffix,
	}
}
