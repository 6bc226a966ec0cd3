package worker

import (
	"strings"

	"github.com/ekisa-team/shmbridge/internal/ipc"
)

// Publisher delivers incremental response updates during streaming
// generation. Each published token overwrites the response field with the
// full accumulated text, bumps the update counter, and signals chunk
// readiness. The publisher never waits for the client to consume an update;
// a slow reader simply observes the freshest state.
type Publisher struct {
	segment    *ipc.Segment
	chunkReady ipc.Semaphore

	text   strings.Builder
	tokens int
}

// NewPublisher creates a publisher for one request's response stream.
func NewPublisher(segment *ipc.Segment, chunkReady ipc.Semaphore) *Publisher {
	return &Publisher{segment: segment, chunkReady: chunkReady}
}

// Publish appends one generated fragment and pushes the new state out.
// Accumulated text beyond the response field's capacity is silently dropped;
// the counter and token count still advance.
func (p *Publisher) Publish(piece string) {
	if p.text.Len() < ipc.ResponseCapacity {
		p.text.WriteString(piece)
	}
	p.tokens++

	p.segment.SetResponse(p.text.String())
	p.segment.SetTokensGenerated(p.tokens)
	p.segment.IncrementUpdateCounter()
	p.chunkReady.Signal(1)
}

// Finish marks the stream complete: one more counter increment and one final
// chunk signal. Readers distinguish this final update from a token update
// only by observing the completion flag.
func (p *Publisher) Finish() {
	p.segment.SetGenerationComplete(true)
	p.segment.IncrementUpdateCounter()
	p.chunkReady.Signal(1)
}

// Tokens returns the number of fragments published so far.
func (p *Publisher) Tokens() int {
	return p.tokens
}
