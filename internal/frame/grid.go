// Package frame tracks which chunks of a voxel block need new meshes and drives their
// generation, synchronously or on a worker pool.
package frame

import (
	"io"
	"log"
	"time"

	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

type Options struct {
	Algorithm mesh.Algorithm
	Params    mesh.Params

	// Scheduler runs background generations. Nil runs everything inline.
	Scheduler *Scheduler
	Logger    *log.Logger

	// OnGenerated is called after every extractor run, possibly from a worker goroutine.
	OnGenerated func(Generation)
}

// Generation describes one completed extractor run.
type Generation struct {
	Key        ChunkKey
	Window     mesh.Window
	Algorithm  mesh.Algorithm
	Vertices   int
	Triangles  int
	Fallbacks  int
	Digest     uint64
	Duration   time.Duration
	Immediate  bool
	Superseded bool

	// Frame is the grid's position in its volume.Sequence when the run finished, or -1
	// once the grid has been removed. Grids outside a sequence leave it at 0.
	Frame int
}

// ReadyChunk is a chunk whose buffers are waiting to be consumed.
type ReadyChunk struct {
	Key     ChunkKey
	Buffers *mesh.Buffers
}

// Grid partitions one voxel block into chunks and owns their generation state.
//
// All methods except the ChunkState accessors must be called from a single goroutine.
// Background runs read private snapshots, so the block may be mutated while they are
// in flight.
type Grid struct {
	block     *voxel.Block
	chunkSize [3]int
	counts    [3]int
	chunks    []*ChunkState
	queue     *Queue
	epoch     uint64

	alg    mesh.Algorithm
	params mesh.Params
	sched  *Scheduler
	log    *log.Logger
	onGen  func(Generation)
}

func NewGrid(b *voxel.Block, chunkSize [3]int, opts Options) *Grid {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if b == nil {
		b = voxel.NewBlock(0, 0, 0)
	}
	g := &Grid{
		block:  b,
		queue:  NewQueue(),
		alg:    opts.Algorithm,
		params: opts.Params,
		sched:  opts.Scheduler,
		log:    logger,
		onGen:  opts.OnGenerated,
	}
	g.partition(chunkSize)
	return g
}

func (g *Grid) Block() *voxel.Block       { return g.block }
func (g *Grid) ChunkSize() [3]int         { return g.chunkSize }
func (g *Grid) ChunkCounts() [3]int       { return g.counts }
func (g *Grid) Algorithm() mesh.Algorithm { return g.alg }
func (g *Grid) Params() mesh.Params       { return g.params }

// Epoch changes whenever the chunk partition is rebuilt. Consumers holding meshes keyed
// by chunk should drop them when it changes.
func (g *Grid) Epoch() uint64 { return g.epoch }

// Dirty returns the queued chunk keys in processing order.
func (g *Grid) Dirty() []ChunkKey { return g.queue.Keys() }

func (g *Grid) DirtyLen() int { return g.queue.Len() }

// Keys returns every chunk key, x fastest.
func (g *Grid) Keys() []ChunkKey {
	out := make([]ChunkKey, len(g.chunks))
	for i, st := range g.chunks {
		out[i] = st.Key
	}
	return out
}

func (g *Grid) Chunk(k ChunkKey) (*ChunkState, bool) {
	if !g.validKey(k) {
		return nil, false
	}
	return g.chunks[g.chunkIndex(k)], true
}

// partition discards all chunk state and rebuilds it for chunk size cs.
func (g *Grid) partition(cs [3]int) {
	dims := g.block.Dims()
	for a := 0; a < 3; a++ {
		if cs[a] < 1 {
			cs[a] = 1
		}
		g.counts[a] = (dims[a] + cs[a] - 1) / cs[a]
	}
	g.chunkSize = cs
	g.chunks = make([]*ChunkState, g.counts[0]*g.counts[1]*g.counts[2])
	for cz := 0; cz < g.counts[2]; cz++ {
		for cy := 0; cy < g.counts[1]; cy++ {
			for cx := 0; cx < g.counts[0]; cx++ {
				k := ChunkKey{CX: cx, CY: cy, CZ: cz}
				g.chunks[g.chunkIndex(k)] = newChunkState(k)
			}
		}
	}
	g.queue.Clear()
	g.epoch++
}

func (g *Grid) chunkIndex(k ChunkKey) int {
	return k.CX + g.counts[0]*(k.CY+g.counts[1]*k.CZ)
}

func (g *Grid) validKey(k ChunkKey) bool {
	return k.CX >= 0 && k.CY >= 0 && k.CZ >= 0 &&
		k.CX < g.counts[0] && k.CY < g.counts[1] && k.CZ < g.counts[2]
}

// Get returns the cell at (x,y,z) and false when out of range.
func (g *Grid) Get(x, y, z int) (voxel.Cell, bool) {
	return g.block.Get(x, y, z)
}

// SetVoxel writes c at (x,y,z). Out-of-range writes are ignored. When the write can
// change geometry the owning chunk is queued, plus the neighbour across every chunk
// face the voxel touches. It reports whether anything was queued.
func (g *Grid) SetVoxel(x, y, z int, c voxel.Cell) bool {
	prev, ok := g.block.Get(x, y, z)
	if !ok || prev == c {
		return false
	}
	g.block.Set(x, y, z, c)
	if !prev.AffectsMesh(c) {
		return false
	}
	g.markAround([3]int{x, y, z})
	return true
}

func (g *Grid) markAround(p [3]int) {
	own := [3]int{p[0] / g.chunkSize[0], p[1] / g.chunkSize[1], p[2] / g.chunkSize[2]}
	g.MarkDirty(keyOf(own))
	for a := 0; a < 3; a++ {
		local := p[a] % g.chunkSize[a]
		if local == 0 {
			n := own
			n[a]--
			g.MarkDirty(keyOf(n))
		}
		if local == g.chunkSize[a]-1 {
			n := own
			n[a]++
			g.MarkDirty(keyOf(n))
		}
	}
}

func keyOf(c [3]int) ChunkKey { return ChunkKey{CX: c[0], CY: c[1], CZ: c[2]} }

// MarkDirty queues k unless it is out of range or already queued.
func (g *Grid) MarkDirty(k ChunkKey) bool {
	if !g.validKey(k) {
		return false
	}
	return g.queue.Push(k)
}

// Window returns the voxel window of chunk k. Chunks on the far edges are clipped to
// the block; Upper always spans the whole block so halo lookups cross chunk borders.
func (g *Grid) Window(k ChunkKey) mesh.Window {
	dims := g.block.Dims()
	c := [3]int{k.CX, k.CY, k.CZ}
	var w mesh.Window
	for a := 0; a < 3; a++ {
		w.Offset[a] = c[a] * g.chunkSize[a]
		w.Size[a] = min(g.chunkSize[a], dims[a]-w.Offset[a])
		w.Upper[a] = dims[a] - 1
	}
	return w
}

// ProcessDirtyQueue drains the dirty queue in FIFO order and requests generation for
// each chunk. It returns the number of chunks processed.
func (g *Grid) ProcessDirtyQueue(immediate bool) int {
	return g.ProcessDirty(immediate, 0)
}

// ProcessDirty is ProcessDirtyQueue limited to limit chunks; limit <= 0 drains the queue.
func (g *Grid) ProcessDirty(immediate bool, limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		k, ok := g.queue.Pop()
		if !ok {
			break
		}
		g.Request(k, immediate)
		n++
	}
	return n
}

// RegenerateAll synchronously regenerates every chunk regardless of dirty state and
// clears the dirty queue. Chunks still generating in the background get a pending
// request instead.
func (g *Grid) RegenerateAll() {
	g.queue.Clear()
	for _, st := range g.chunks {
		g.Request(st.Key, true)
	}
}

// Request asks for chunk k to be regenerated. Immediate requests run on the calling
// goroutine; others go to the scheduler.
func (g *Grid) Request(k ChunkKey, immediate bool) {
	st, ok := g.Chunk(k)
	if !ok {
		return
	}
	w := g.Window(k)
	j := job{key: k, window: w, alg: g.alg, params: g.params, immediate: immediate, src: g.block}
	if !immediate || st.Status() == Generating {
		j.src = g.snapshot(w)
	}
	if !st.begin(j) {
		return
	}
	if immediate {
		g.run(st, j)
		return
	}
	g.sched.Go(func() { g.run(st, j) })
}

// snapshot copies the window plus a one-voxel halo.
func (g *Grid) snapshot(w mesh.Window) voxel.Reader {
	var lo, size [3]int
	for a := 0; a < 3; a++ {
		lo[a] = w.Offset[a] - 1
		size[a] = w.Size[a] + 2
	}
	return g.block.Snapshot(lo, size)
}

// run executes j and then any requests coalesced while it was running.
func (g *Grid) run(st *ChunkState, j job) {
	for {
		began := time.Now()
		buf := &mesh.Buffers{}
		mesh.Extract(j.alg, j.src, j.window, j.params, buf)
		next := st.finish(buf)
		g.report(j, buf, time.Since(began), next != nil)
		if next == nil {
			return
		}
		j = *next
	}
}

func (g *Grid) report(j job, buf *mesh.Buffers, d time.Duration, superseded bool) {
	if buf.ColorFallbacks > 0 {
		g.log.Printf("chunk %d,%d,%d: %d vertices used the fallback colour", j.key.CX, j.key.CY, j.key.CZ, buf.ColorFallbacks)
	}
	if g.onGen == nil {
		return
	}
	g.onGen(Generation{
		Key:        j.key,
		Window:     j.window,
		Algorithm:  j.alg,
		Vertices:   len(buf.Positions),
		Triangles:  buf.Triangles(),
		Fallbacks:  buf.ColorFallbacks,
		Digest:     mesh.Digest(buf),
		Duration:   d,
		Immediate:  j.immediate,
		Superseded: superseded,
	})
}

// ReadyChunks lists chunks in the Ready state, x fastest. Buffers stay owned by the grid
// until Acknowledge.
func (g *Grid) ReadyChunks() []ReadyChunk {
	var out []ReadyChunk
	for _, st := range g.chunks {
		if buf, ok := st.Ready(); ok {
			out = append(out, ReadyChunk{Key: st.Key, Buffers: buf})
		}
	}
	return out
}

// Acknowledge marks the buffers of chunk k as consumed, returning it to Idle.
func (g *Grid) Acknowledge(k ChunkKey) bool {
	st, ok := g.Chunk(k)
	if !ok {
		return false
	}
	return st.Acknowledge()
}

// Wait blocks until background generations started by this grid's scheduler finish.
func (g *Grid) Wait() { g.sched.Wait() }

// SetMeshing changes the algorithm and parameters and regenerates every chunk.
func (g *Grid) SetMeshing(alg mesh.Algorithm, p mesh.Params) {
	g.alg = alg
	g.params = p
	g.RegenerateAll()
}
