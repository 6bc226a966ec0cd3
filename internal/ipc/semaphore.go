package ipc

import "time"

// Semaphore is the subset of named counting semaphore behavior the protocol
// relies on. bitbucket.org/avd/go-ipc/sync.Semaphore satisfies it; tests
// substitute in-process fakes.
type Semaphore interface {
	// Signal increments the count by count, waking waiting processes.
	Signal(count int)

	// Wait blocks until the count is positive, then decrements it. Waits are
	// unbounded; the protocol has no timeouts.
	Wait()

	// WaitTimeout is Wait bounded by timeout, reporting whether a count was
	// consumed. A zero timeout polls without blocking; clients use it to
	// drain chunk signals left over after a completed stream.
	WaitTimeout(timeout time.Duration) bool

	// Close releases the process-local handle without unlinking the object.
	Close() error
}

// SemaphoreSet holds the four semaphores of one protocol session. All start
// at count 0.
type SemaphoreSet struct {
	// Ready is signaled by the worker after engine load and after each
	// completed response: "worker is idle and able to accept a request."
	Ready Semaphore

	// PromptsWritten is signaled by the client once the request fields are
	// populated; the worker blocks on it to receive a request.
	PromptsWritten Semaphore

	// ResponseWritten is signaled by the worker exactly once per request,
	// after the final response state is committed.
	ResponseWritten Semaphore

	// ChunkReady is signaled once per partial update during streaming, and
	// once more for the final completion marker.
	ChunkReady Semaphore
}
