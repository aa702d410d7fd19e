package frame

import (
	"sync"

	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

type Status int

const (
	Idle Status = iota
	Generating
	Ready
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// job is one generation request. src is either the live block (immediate jobs started
// right away) or a private snapshot of the window plus its halo.
type job struct {
	key       ChunkKey
	window    mesh.Window
	alg       mesh.Algorithm
	params    mesh.Params
	src       voxel.Reader
	immediate bool
}

// ChunkState is the per-chunk generation state machine:
// Idle -> Generating -> Ready -> Idle (after Acknowledge).
//
// Requests made while Generating are coalesced into a single pending request, which
// replaces the in-flight result once that run completes.
type ChunkState struct {
	Key ChunkKey

	mu      sync.Mutex
	status  Status
	pending *job
	buffers *mesh.Buffers
	runs    uint64
}

func newChunkState(k ChunkKey) *ChunkState {
	return &ChunkState{Key: k}
}

func (c *ChunkState) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// HasPending reports whether a coalesced request is waiting on the in-flight run.
func (c *ChunkState) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Runs is the number of completed extractor runs, including superseded ones.
func (c *ChunkState) Runs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// begin moves the chunk to Generating and reports true if the caller should run j now.
// While a run is in flight j becomes the pending request instead, replacing any older
// one. A Ready chunk that was never acknowledged is superseded.
func (c *ChunkState) begin(j job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == Generating {
		c.pending = &j
		return false
	}
	c.status = Generating
	c.buffers = nil
	return true
}

// finish records a completed run. If a request was coalesced meanwhile the result is
// dropped, the chunk stays Generating and the pending job is returned for the caller
// to start.
func (c *ChunkState) finish(buf *mesh.Buffers) *job {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if c.pending != nil {
		next := c.pending
		c.pending = nil
		return next
	}
	c.status = Ready
	c.buffers = buf
	return nil
}

// Ready returns the finished buffers while the chunk is Ready. Repeated calls return the
// same buffers until Acknowledge. Empty buffers mean the chunk has no geometry.
func (c *ChunkState) Ready() (*mesh.Buffers, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Ready {
		return nil, false
	}
	return c.buffers, true
}

// Acknowledge returns a Ready chunk to Idle once its buffers have been consumed.
func (c *ChunkState) Acknowledge() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Ready {
		return false
	}
	c.status = Idle
	c.buffers = nil
	return true
}
