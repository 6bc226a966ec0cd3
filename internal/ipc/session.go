package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"bitbucket.org/avd/go-ipc/mmf"
	"bitbucket.org/avd/go-ipc/shm"
	ipcsync "bitbucket.org/avd/go-ipc/sync"
)

// Session owns the worker-side shared resources of one protocol session: the
// shared memory object, its mapping, and the four semaphores. It is
// constructed once at process start and passed to the orchestrator; Teardown
// is idempotent and safe on a partially constructed session.
type Session struct {
	names Names

	mu       sync.Mutex
	obj      *shm.MemoryObject
	region   *mmf.MemoryRegion
	segment  *Segment
	sems     SemaphoreSet
	tornDown bool
}

// NewSession creates and zero-initializes the shared segment and creates the
// four semaphores at count 0. Stale same-named resources from a prior crashed
// run are unlinked first, so re-creation is idempotent. Any creation failure
// is fatal: the partial state is torn down and the error names the resource
// that failed.
func NewSession(prefix string) (*Session, error) {
	s := &Session{names: NamesFor(prefix)}

	if err := s.create(); err != nil {
		s.Teardown()
		return nil, err
	}

	return s, nil
}

func (s *Session) create() error {
	// Remove leftovers from a crashed run. Errors here only mean there was
	// nothing to remove.
	_ = shm.DestroyMemoryObject(s.names.Segment)

	obj, err := shm.NewMemoryObject(s.names.Segment, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("session: failed to create shared memory %q: %w", s.names.Segment, err)
	}
	s.obj = obj

	if err := obj.Truncate(SegmentSize); err != nil {
		return fmt.Errorf("session: failed to size shared memory %q: %w", s.names.Segment, err)
	}

	region, err := mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, SegmentSize)
	if err != nil {
		return fmt.Errorf("session: failed to map shared memory %q: %w", s.names.Segment, err)
	}
	s.region = region

	segment, err := NewSegment(region.Data())
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	segment.Zero()
	s.segment = segment

	for _, sem := range []struct {
		name   string
		target *Semaphore
	}{
		{s.names.Ready, &s.sems.Ready},
		{s.names.PromptsWritten, &s.sems.PromptsWritten},
		{s.names.ResponseWritten, &s.sems.ResponseWritten},
		{s.names.ChunkReady, &s.sems.ChunkReady},
	} {
		_ = ipcsync.DestroySemaphore(sem.name)

		created, err := ipcsync.NewSemaphore(sem.name, os.O_CREATE|os.O_EXCL, 0o666, 0)
		if err != nil {
			return fmt.Errorf("session: failed to create semaphore %q: %w", sem.name, err)
		}
		*sem.target = created
	}

	return nil
}

// Names returns the OS-level resource names of this session.
func (s *Session) Names() Names {
	return s.names
}

// Segment returns the mapped shared segment.
func (s *Session) Segment() *Segment {
	return s.segment
}

// Semaphores returns the session's semaphore set.
func (s *Session) Semaphores() *SemaphoreSet {
	return &s.sems
}

// Teardown unmaps and unlinks the shared segment and closes and unlinks each
// semaphore. It may be called multiple times and with partially initialized
// state; each resource is checked before release. The first call does the
// work, later calls return nil.
func (s *Session) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tornDown {
		return nil
	}
	s.tornDown = true

	var errs []error

	if s.region != nil {
		if err := s.region.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: failed to unmap segment: %w", err))
		}
		s.region = nil
		s.segment = nil
	}

	if s.obj != nil {
		if err := s.obj.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: failed to close shared memory: %w", err))
		}
		if err := shm.DestroyMemoryObject(s.names.Segment); err != nil {
			errs = append(errs, fmt.Errorf("session: failed to unlink shared memory %q: %w", s.names.Segment, err))
		}
		s.obj = nil
	}

	for _, sem := range []struct {
		name   string
		target *Semaphore
	}{
		{s.names.Ready, &s.sems.Ready},
		{s.names.PromptsWritten, &s.sems.PromptsWritten},
		{s.names.ResponseWritten, &s.sems.ResponseWritten},
		{s.names.ChunkReady, &s.sems.ChunkReady},
	} {
		if *sem.target == nil {
			continue
		}
		if err := (*sem.target).Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: failed to close semaphore %q: %w", sem.name, err))
		}
		if err := ipcsync.DestroySemaphore(sem.name); err != nil {
			errs = append(errs, fmt.Errorf("session: failed to unlink semaphore %q: %w", sem.name, err))
		}
		*sem.target = nil
	}

	if len(errs) > 0 {
		slog.Warn("Session teardown finished with errors", "count", len(errs))
	}

	return errors.Join(errs...)
}
