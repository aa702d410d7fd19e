// Package volume holds a sequence of animation frames, each a frame.Grid over its own
// voxel block, all sharing one size and chunk size.
package volume

import (
	"errors"
	"fmt"
	"sync"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

var (
	ErrFrameIndex = errors.New("volume: frame index out of range")
	ErrLastFrame  = errors.New("volume: cannot remove the only frame")
	ErrFrameSize  = errors.New("volume: frame size mismatch")
)

type Sequence struct {
	size      [3]int
	chunkSize [3]int
	opts      frame.Options

	frames  []*frame.Grid
	current int

	// pos maps each grid to its index. Generation hooks may read it from workers.
	mu  sync.RWMutex
	pos map[*frame.Grid]int
}

// New returns a sequence with one empty frame.
func New(size, chunkSize [3]int, opts frame.Options) *Sequence {
	s := &Sequence{size: size, chunkSize: chunkSize, opts: opts}
	g := s.newGrid(voxel.NewBlock(size[0], size[1], size[2]))
	s.frames = []*frame.Grid{g}
	s.reindex()
	g.RegenerateAll()
	return s
}

// FromBlocks builds a sequence over existing blocks, which must all have the same size.
// Every frame is generated before FromBlocks returns.
func FromBlocks(blocks []*voxel.Block, chunkSize [3]int, current int, opts frame.Options) (*Sequence, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("from blocks: %w", ErrFrameIndex)
	}
	size := blocks[0].Dims()
	s := &Sequence{size: size, chunkSize: chunkSize, opts: opts}
	for i, b := range blocks {
		if b.Dims() != size {
			return nil, fmt.Errorf("frame %d is %v, want %v: %w", i, b.Dims(), size, ErrFrameSize)
		}
		s.frames = append(s.frames, s.newGrid(b))
	}
	s.reindex()
	for _, g := range s.frames {
		g.RegenerateAll()
	}
	if current < 0 || current >= len(s.frames) {
		current = 0
	}
	s.current = current
	return s, nil
}

// newGrid builds an ungenerated grid whose generation hook reports the grid's current
// index. Callers place the grid, reindex, and only then regenerate it.
func (s *Sequence) newGrid(b *voxel.Block) *frame.Grid {
	opts := s.opts
	var g *frame.Grid
	if next := opts.OnGenerated; next != nil {
		opts.OnGenerated = func(gen frame.Generation) {
			gen.Frame = s.indexOf(g)
			next(gen)
		}
	}
	g = frame.NewGrid(b, s.chunkSize, opts)
	return g
}

func (s *Sequence) reindex() {
	pos := make(map[*frame.Grid]int, len(s.frames))
	for i, g := range s.frames {
		pos[g] = i
	}
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

func (s *Sequence) indexOf(g *frame.Grid) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.pos[g]; ok {
		return i
	}
	return -1
}

func (s *Sequence) Len() int             { return len(s.frames) }
func (s *Sequence) Size() [3]int         { return s.size }
func (s *Sequence) ChunkSize() [3]int    { return s.chunkSize }
func (s *Sequence) CurrentIndex() int    { return s.current }
func (s *Sequence) Current() *frame.Grid { return s.frames[s.current] }

func (s *Sequence) Frame(i int) (*frame.Grid, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	return s.frames[i], nil
}

// Blocks returns the voxel block of every frame in order.
func (s *Sequence) Blocks() []*voxel.Block {
	out := make([]*voxel.Block, len(s.frames))
	for i, g := range s.frames {
		out[i] = g.Block()
	}
	return out
}

func (s *Sequence) check(i int) error {
	if i < 0 || i >= len(s.frames) {
		return fmt.Errorf("frame %d of %d: %w", i, len(s.frames), ErrFrameIndex)
	}
	return nil
}

// keepCurrent runs op and then points current back at the grid it pointed at before,
// or clamps it when that grid is gone.
func (s *Sequence) keepCurrent(op func()) {
	cur := s.frames[s.current]
	op()
	s.reindex()
	for i, g := range s.frames {
		if g == cur {
			s.current = i
			return
		}
	}
	if s.current >= len(s.frames) {
		s.current = len(s.frames) - 1
	}
}

// AddFrame appends a frame, copying the last frame's voxels when copyPrevious is set.
// It returns the new frame's index.
func (s *Sequence) AddFrame(copyPrevious bool) int {
	g := s.makeFrame(copyPrevious, len(s.frames)-1)
	s.frames = append(s.frames, g)
	s.reindex()
	g.RegenerateAll()
	return len(s.frames) - 1
}

// InsertFrame inserts a frame at index at (0..Len). With copyFrom >= 0 the new frame
// starts as a copy of that frame; otherwise it is empty.
func (s *Sequence) InsertFrame(at, copyFrom int) error {
	if at < 0 || at > len(s.frames) {
		return fmt.Errorf("insert at %d of %d: %w", at, len(s.frames), ErrFrameIndex)
	}
	if copyFrom >= 0 {
		if err := s.check(copyFrom); err != nil {
			return err
		}
	}
	g := s.makeFrame(copyFrom >= 0, copyFrom)
	s.keepCurrent(func() {
		s.frames = append(s.frames, nil)
		copy(s.frames[at+1:], s.frames[at:])
		s.frames[at] = g
	})
	g.RegenerateAll()
	return nil
}

// DuplicateFrame inserts a copy of frame i right after it and returns the copy's index.
func (s *Sequence) DuplicateFrame(i int) (int, error) {
	if err := s.InsertFrame(i+1, i); err != nil {
		return 0, err
	}
	return i + 1, nil
}

func (s *Sequence) makeFrame(copyPrevious bool, from int) *frame.Grid {
	if copyPrevious && from >= 0 && from < len(s.frames) {
		return s.newGrid(s.frames[from].Block().Clone())
	}
	return s.newGrid(voxel.NewBlock(s.size[0], s.size[1], s.size[2]))
}

// RemoveFrame deletes frame i. The only remaining frame cannot be removed.
func (s *Sequence) RemoveFrame(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if len(s.frames) == 1 {
		return ErrLastFrame
	}
	s.keepCurrent(func() {
		s.frames = append(s.frames[:i], s.frames[i+1:]...)
	})
	return nil
}

// MoveFrame moves frame from to index to, shifting the frames in between.
func (s *Sequence) MoveFrame(from, to int) error {
	if err := s.check(from); err != nil {
		return err
	}
	if err := s.check(to); err != nil {
		return err
	}
	s.keepCurrent(func() {
		g := s.frames[from]
		s.frames = append(s.frames[:from], s.frames[from+1:]...)
		s.frames = append(s.frames[:to], append([]*frame.Grid{g}, s.frames[to:]...)...)
	})
	return nil
}

func (s *Sequence) SwapFrames(a, b int) error {
	if err := s.check(a); err != nil {
		return err
	}
	if err := s.check(b); err != nil {
		return err
	}
	s.keepCurrent(func() {
		s.frames[a], s.frames[b] = s.frames[b], s.frames[a]
	})
	return nil
}

func (s *Sequence) SetCurrent(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.current = i
	return nil
}

// Next advances the current frame, wrapping to the first.
func (s *Sequence) Next() int {
	s.current = (s.current + 1) % len(s.frames)
	return s.current
}

// Prev steps back, wrapping to the last frame.
func (s *Sequence) Prev() int {
	s.current = (s.current - 1 + len(s.frames)) % len(s.frames)
	return s.current
}

// Resize changes the size of every frame.
func (s *Sequence) Resize(sx, sy, sz int) {
	s.size = [3]int{sx, sy, sz}
	for _, g := range s.frames {
		g.Resize(sx, sy, sz)
	}
}

// SetChunkSize repartitions every frame.
func (s *Sequence) SetChunkSize(cs [3]int) {
	s.chunkSize = cs
	for _, g := range s.frames {
		g.SetChunkSize(cs)
	}
	s.chunkSize = s.frames[0].ChunkSize()
}

// Rotate turns every frame about Y. Odd quarter turns swap the X and Z sizes.
func (s *Sequence) Rotate(quarters int) {
	for _, g := range s.frames {
		g.Rotate(quarters)
	}
	s.size = s.frames[0].Block().Dims()
}

// SetMeshing changes the algorithm and parameters of every frame.
func (s *Sequence) SetMeshing(alg mesh.Algorithm, p mesh.Params) {
	s.opts.Algorithm = alg
	s.opts.Params = p
	for _, g := range s.frames {
		g.SetMeshing(alg, p)
	}
}
