package volume

import (
	"errors"
	"testing"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

var solid = voxel.Cell{State: voxel.Active, Color: voxel.RGBA8{R: 200, A: 255}}

func testOptions() frame.Options {
	return frame.Options{Algorithm: mesh.Culled, Params: mesh.Params{CellSize: 1}}
}

// tagged builds a sequence whose frame i has voxel (i,0,0) active, so frames can be
// told apart after reordering.
func tagged(t *testing.T, n int) *Sequence {
	t.Helper()
	s := New([3]int{8, 2, 2}, [3]int{4, 2, 2}, testOptions())
	for i := 1; i < n; i++ {
		s.AddFrame(false)
	}
	for i := 0; i < n; i++ {
		g, err := s.Frame(i)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		g.SetVoxel(i, 0, 0, solid)
	}
	return s
}

func order(s *Sequence) []int {
	out := make([]int, s.Len())
	for i, b := range s.Blocks() {
		out[i] = -1
		for x := 0; x < 8; x++ {
			if b.ActiveAt(x, 0, 0) {
				out[i] = x
				break
			}
		}
	}
	return out
}

func sameOrder(t *testing.T, s *Sequence, want ...int) {
	t.Helper()
	got := order(s)
	if len(got) != len(want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("order: got %v want %v", got, want)
		}
	}
}

func TestAddFrameCopiesPrevious(t *testing.T) {
	s := tagged(t, 1)
	i := s.AddFrame(true)
	if i != 1 || s.Len() != 2 {
		t.Fatalf("add: index %d len %d", i, s.Len())
	}
	sameOrder(t, s, 0, 0)

	// The copy is independent of its source.
	g, _ := s.Frame(1)
	g.SetVoxel(0, 0, 0, voxel.Cell{})
	sameOrder(t, s, 0, -1)

	s.AddFrame(false)
	sameOrder(t, s, 0, -1, -1)
}

func TestNewFramesAreGenerated(t *testing.T) {
	s := tagged(t, 1)
	s.AddFrame(true)
	g, _ := s.Frame(1)
	ready := g.ReadyChunks()
	if len(ready) != 2 {
		t.Fatalf("ready chunks: got %d want 2", len(ready))
	}
	if ready[0].Buffers.Triangles() != 12 {
		t.Fatalf("copied voxel mesh: got %d triangles want 12", ready[0].Buffers.Triangles())
	}
}

func TestInsertAndDuplicate(t *testing.T) {
	s := tagged(t, 3)
	if err := s.InsertFrame(1, -1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	sameOrder(t, s, 0, -1, 1, 2)
	if err := s.InsertFrame(4, 0); err != nil {
		t.Fatalf("insert at end: %v", err)
	}
	sameOrder(t, s, 0, -1, 1, 2, 0)
	i, err := s.DuplicateFrame(2)
	if err != nil || i != 3 {
		t.Fatalf("duplicate: %d %v", i, err)
	}
	sameOrder(t, s, 0, -1, 1, 1, 2, 0)

	if err := s.InsertFrame(7, -1); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("insert past end: got %v", err)
	}
	if err := s.InsertFrame(0, 9); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("insert copying missing frame: got %v", err)
	}
}

func TestRemoveFrame(t *testing.T) {
	s := tagged(t, 3)
	if err := s.SetCurrent(2); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveFrame(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	sameOrder(t, s, 1, 2)
	if s.CurrentIndex() != 1 {
		t.Fatalf("current should follow its frame: got %d", s.CurrentIndex())
	}
	if err := s.RemoveFrame(1); err != nil {
		t.Fatalf("remove current: %v", err)
	}
	if s.CurrentIndex() != 0 {
		t.Fatalf("current after removing last index: got %d", s.CurrentIndex())
	}
	if err := s.RemoveFrame(0); !errors.Is(err, ErrLastFrame) {
		t.Fatalf("removing the only frame: got %v", err)
	}
	if err := s.RemoveFrame(3); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("removing a missing frame: got %v", err)
	}
}

func TestMoveAndSwap(t *testing.T) {
	s := tagged(t, 4)
	if err := s.MoveFrame(0, 3); err != nil {
		t.Fatalf("move: %v", err)
	}
	sameOrder(t, s, 1, 2, 3, 0)
	if s.CurrentIndex() != 3 {
		t.Fatalf("current should follow the moved frame: got %d", s.CurrentIndex())
	}
	if err := s.MoveFrame(2, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	sameOrder(t, s, 3, 1, 2, 0)
	if err := s.SwapFrames(0, 3); err != nil {
		t.Fatalf("swap: %v", err)
	}
	sameOrder(t, s, 0, 1, 2, 3)
	if s.CurrentIndex() != 0 {
		t.Fatalf("current should follow the swapped frame: got %d", s.CurrentIndex())
	}
	if err := s.SwapFrames(0, 4); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("swap out of range: got %v", err)
	}
	if err := s.MoveFrame(-1, 0); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("move out of range: got %v", err)
	}
}

func TestNextPrevWrap(t *testing.T) {
	s := tagged(t, 3)
	if s.Prev() != 2 {
		t.Fatalf("prev from 0 should wrap to 2")
	}
	if s.Next() != 0 || s.Next() != 1 {
		t.Fatalf("next should wrap back to 0 then 1")
	}
	if err := s.SetCurrent(3); !errors.Is(err, ErrFrameIndex) {
		t.Fatalf("set current out of range: got %v", err)
	}
	if s.CurrentIndex() != 1 {
		t.Fatalf("failed SetCurrent changed the index")
	}
}

func TestResizeAndChunkSizeApplyToEveryFrame(t *testing.T) {
	s := tagged(t, 2)
	s.Resize(4, 2, 2)
	s.SetChunkSize([3]int{2, 2, 2})
	for i := 0; i < s.Len(); i++ {
		g, _ := s.Frame(i)
		if g.Block().Dims() != [3]int{4, 2, 2} {
			t.Fatalf("frame %d dims %v", i, g.Block().Dims())
		}
		if g.ChunkCounts() != [3]int{2, 1, 1} {
			t.Fatalf("frame %d counts %v", i, g.ChunkCounts())
		}
	}
	if s.Size() != [3]int{4, 2, 2} || s.ChunkSize() != [3]int{2, 2, 2} {
		t.Fatalf("sequence settings not updated")
	}
	s.AddFrame(false)
	g, _ := s.Frame(2)
	if g.ChunkCounts() != [3]int{2, 1, 1} {
		t.Fatalf("new frame ignores chunk size: %v", g.ChunkCounts())
	}
}

func TestRotateUpdatesSize(t *testing.T) {
	s := tagged(t, 2)
	s.Rotate(1)
	if s.Size() != [3]int{2, 2, 8} {
		t.Fatalf("size after rotate: %v", s.Size())
	}
	s.AddFrame(false)
	g, _ := s.Frame(2)
	if g.Block().Dims() != [3]int{2, 2, 8} {
		t.Fatalf("new frame dims: %v", g.Block().Dims())
	}
}

func TestFromBlocks(t *testing.T) {
	a := voxel.NewBlock(2, 2, 2)
	b := voxel.NewBlock(2, 2, 2)
	b.Set(1, 1, 1, solid)
	s, err := FromBlocks([]*voxel.Block{a, b}, [3]int{2, 2, 2}, 1, testOptions())
	if err != nil {
		t.Fatalf("from blocks: %v", err)
	}
	if s.Len() != 2 || s.CurrentIndex() != 1 {
		t.Fatalf("len %d current %d", s.Len(), s.CurrentIndex())
	}
	if len(s.Current().ReadyChunks()) != 1 {
		t.Fatalf("frames should be generated on load")
	}
	if _, err := FromBlocks([]*voxel.Block{a, voxel.NewBlock(3, 2, 2)}, [3]int{2, 2, 2}, 0, testOptions()); !errors.Is(err, ErrFrameSize) {
		t.Fatalf("mismatched sizes: got %v", err)
	}
}

func TestGenerationHookReportsFrameIndex(t *testing.T) {
	var frames []int
	opts := testOptions()
	opts.OnGenerated = func(g frame.Generation) { frames = append(frames, g.Frame) }

	s := New([3]int{4, 2, 2}, [3]int{4, 2, 2}, opts)
	s.AddFrame(false)
	if len(frames) != 2 || frames[0] != 0 || frames[1] != 1 {
		t.Fatalf("new and added frames: got %v want [0 1]", frames)
	}

	// Inserting at the front shifts the old frames.
	frames = nil
	if err := s.InsertFrame(0, -1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	last, _ := s.Frame(2)
	last.SetVoxel(0, 0, 0, solid)
	last.ProcessDirtyQueue(true)
	if len(frames) != 2 || frames[0] != 0 || frames[1] != 2 {
		t.Fatalf("after insert: got %v want [0 2]", frames)
	}

	// A removed grid no longer has an index.
	frames = nil
	if err := s.RemoveFrame(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	last.SetVoxel(1, 0, 0, solid)
	last.ProcessDirtyQueue(true)
	if len(frames) != 1 || frames[0] != -1 {
		t.Fatalf("removed frame: got %v want [-1]", frames)
	}
}
