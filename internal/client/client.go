// Package client implements the client side of the shmbridge protocol: it
// attaches to the worker's shared segment and semaphores, writes requests,
// and reads buffered or streamed responses. It stands in for any foreign
// client speaking the same segment layout and resource names.
//
// The protocol is a strict single-request rendezvous: callers must not issue
// a new request before the previous one's response has been observed, and
// a Client must not be shared across goroutines.
package client

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"bitbucket.org/avd/go-ipc/mmf"
	"bitbucket.org/avd/go-ipc/shm"
	ipcsync "bitbucket.org/avd/go-ipc/sync"

	"github.com/ekisa-team/shmbridge/internal/ipc"
)

// ErrClosed is returned when a request is issued on a closed client.
var ErrClosed = errors.New("client: closed")

// Update is one observed state of the response stream during streaming.
type Update struct {
	// Text is the full accumulated response so far.
	Text string

	// Tokens is the number of tokens generated so far.
	Tokens int

	// Counter is the update counter value observed with this chunk.
	Counter int

	// Done reports whether this update carries the completion marker.
	Done bool
}

// Request is one inference request.
type Request struct {
	SystemPrompt string
	UserPrompt   string

	// Stream requests incremental delivery. OnUpdate, when non-nil, receives
	// each observed chunk state. Delivery is at-most-freshest-read: the
	// worker may overwrite a chunk before it is observed.
	Stream   bool
	OnUpdate func(Update)
}

// Client attaches to an existing worker session.
type Client struct {
	names ipc.Names

	mu      sync.Mutex
	obj     *shm.MemoryObject
	region  *mmf.MemoryRegion
	segment *ipc.Segment
	sems    ipc.SemaphoreSet
	closed  bool
}

// Dial opens the worker's shared memory and semaphores by name. The worker
// must already have created them; Dial never creates resources of its own.
func Dial(prefix string) (*Client, error) {
	c := &Client{names: ipc.NamesFor(prefix)}

	if err := c.attach(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) attach() error {
	obj, err := shm.NewMemoryObject(c.names.Segment, os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("client: failed to open shared memory %q: %w", c.names.Segment, err)
	}
	c.obj = obj

	region, err := mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, ipc.SegmentSize)
	if err != nil {
		return fmt.Errorf("client: failed to map shared memory %q: %w", c.names.Segment, err)
	}
	c.region = region

	segment, err := ipc.NewSegment(region.Data())
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	c.segment = segment

	for _, sem := range []struct {
		name   string
		target *ipc.Semaphore
	}{
		{c.names.Ready, &c.sems.Ready},
		{c.names.PromptsWritten, &c.sems.PromptsWritten},
		{c.names.ResponseWritten, &c.sems.ResponseWritten},
		{c.names.ChunkReady, &c.sems.ChunkReady},
	} {
		opened, err := ipcsync.NewSemaphore(sem.name, 0, 0o666, 0)
		if err != nil {
			return fmt.Errorf("client: failed to open semaphore %q: %w", sem.name, err)
		}
		*sem.target = opened
	}

	return nil
}

// WaitReady blocks until the worker signals readiness. Call once before the
// first request; after that, observing the response is the readiness signal.
func (c *Client) WaitReady() {
	c.sems.Ready.Wait()
}

// Do writes the request fields, signals the worker, and blocks until the
// final response is committed. In streaming mode each chunk state observed
// along the way is passed to req.OnUpdate before the final text is returned.
func (c *Client) Do(req *Request) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.mu.Unlock()

	c.segment.SetSystemPrompt(req.SystemPrompt)
	c.segment.SetUserPrompt(req.UserPrompt)
	c.segment.SetStreamMode(req.Stream)
	c.sems.PromptsWritten.Signal(1)

	if req.Stream {
		for {
			c.sems.ChunkReady.Wait()

			update := Update{
				Text:    c.segment.Response(),
				Tokens:  c.segment.TokensGenerated(),
				Counter: c.segment.UpdateCounter(),
				Done:    c.segment.GenerationComplete(),
			}
			if req.OnUpdate != nil {
				req.OnUpdate(update)
			}
			if update.Done {
				break
			}
		}
	}

	c.sems.ResponseWritten.Wait()

	if req.Stream {
		// Each wait can observe a state newer than the signal that posted
		// it, so the loop may exit having consumed fewer counts than the
		// worker signaled. Drain the leftovers now, while the worker is
		// between requests, so they cannot wake the next stream with this
		// request's completed state.
		for c.sems.ChunkReady.WaitTimeout(0) {
		}
	}

	return c.segment.Response(), nil
}

// Shutdown sets the sticky shutdown flag and wakes the worker so it exits
// its loop. No response follows; the worker tears the session down.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.segment.RequestShutdown()
	c.sems.PromptsWritten.Signal(1)

	return nil
}

// Close releases the client's handles. It never unlinks the named resources;
// those belong to the worker. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error

	if c.region != nil {
		if err := c.region.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client: failed to unmap segment: %w", err))
		}
		c.region = nil
		c.segment = nil
	}

	if c.obj != nil {
		if err := c.obj.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client: failed to close shared memory: %w", err))
		}
		c.obj = nil
	}

	for _, sem := range []*ipc.Semaphore{
		&c.sems.Ready, &c.sems.PromptsWritten, &c.sems.ResponseWritten, &c.sems.ChunkReady,
	} {
		if *sem == nil {
			continue
		}
		if err := (*sem).Close(); err != nil {
			errs = append(errs, fmt.Errorf("client: failed to close semaphore: %w", err))
		}
		*sem = nil
	}

	return errors.Join(errs...)
}
