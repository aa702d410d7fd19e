package frame

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
)

// Scheduler runs background generations on a fixed worker pool. It never drops work:
// once capacity jobs are queued or running, further jobs run on the caller's goroutine.
type Scheduler struct {
	pool  pond.Pool
	limit int64

	mu     sync.RWMutex
	closed bool

	inflight  atomic.Int64
	saturated atomic.Uint64
	wg        sync.WaitGroup
}

func NewScheduler(workers, capacity int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if capacity <= 0 {
		capacity = 4 * workers
	}
	return &Scheduler{
		pool:  pond.NewPool(workers),
		limit: int64(capacity),
	}
}

// Go runs fn on a worker and reports true, or runs it inline and reports false when the
// pool is saturated or closed. A nil Scheduler always runs inline.
func (s *Scheduler) Go(fn func()) bool {
	if s == nil {
		fn()
		return false
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		fn()
		return false
	}
	if s.inflight.Add(1) > s.limit {
		s.inflight.Add(-1)
		s.mu.RUnlock()
		s.saturated.Add(1)
		fn()
		return false
	}
	s.wg.Add(1)
	s.pool.Submit(func() {
		defer s.wg.Done()
		defer s.inflight.Add(-1)
		fn()
	})
	s.mu.RUnlock()
	return true
}

// InFlight is the number of jobs queued or running on the pool.
func (s *Scheduler) InFlight() int {
	if s == nil {
		return 0
	}
	return int(s.inflight.Load())
}

// Saturated counts jobs that ran inline because the pool was full.
func (s *Scheduler) Saturated() uint64 {
	if s == nil {
		return 0
	}
	return s.saturated.Load()
}

// Wait blocks until every submitted job, and any job those jobs started, has finished.
func (s *Scheduler) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// Close waits for outstanding jobs and stops the pool. Later jobs run inline.
func (s *Scheduler) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	s.pool.StopAndWait()
}
