package frame

import (
	"reflect"
	"sync"
	"testing"

	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

var solid = voxel.Cell{State: voxel.Active, Value: 9, Color: voxel.RGBA8{R: 10, G: 20, B: 30, A: 255}}

func newTestGrid(sx, sy, sz, cs int) *Grid {
	return NewGrid(voxel.NewBlock(sx, sy, sz), [3]int{cs, cs, cs}, Options{
		Algorithm: mesh.Culled,
		Params:    mesh.Params{CellSize: 1},
	})
}

func sameKeys(t *testing.T, got, want []ChunkKey) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("keys: got %+v want %+v", got, want)
	}
	seen := map[ChunkKey]bool{}
	for _, k := range got {
		seen[k] = true
	}
	for _, k := range want {
		if !seen[k] {
			t.Fatalf("keys: got %+v want %+v", got, want)
		}
	}
}

func TestSetVoxelOutOfRangeIsNoop(t *testing.T) {
	g := newTestGrid(8, 8, 8, 4)
	before := g.Block().Digest()
	for _, p := range [][3]int{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}, {8, 0, 0}, {0, 8, 0}, {0, 0, 8}} {
		if g.SetVoxel(p[0], p[1], p[2], solid) {
			t.Fatalf("SetVoxel%v reported a change", p)
		}
	}
	if g.DirtyLen() != 0 {
		t.Fatalf("dirty queue: got %d want 0", g.DirtyLen())
	}
	if g.Block().Digest() != before {
		t.Fatalf("block changed")
	}
}

func TestSetVoxelIdenticalRewriteIsFree(t *testing.T) {
	g := newTestGrid(8, 8, 8, 4)
	if !g.SetVoxel(1, 1, 1, solid) {
		t.Fatalf("first write should queue")
	}
	g.ProcessDirtyQueue(true)
	if g.SetVoxel(1, 1, 1, solid) {
		t.Fatalf("identical rewrite queued")
	}
	if g.DirtyLen() != 0 {
		t.Fatalf("dirty queue: got %d want 0", g.DirtyLen())
	}

	// Alpha and inactive-cell values never reach the mesh, but are still stored.
	c := solid
	c.Color.A = 7
	if g.SetVoxel(1, 1, 1, c) || g.DirtyLen() != 0 {
		t.Fatalf("alpha-only change queued")
	}
	if got, _ := g.Get(1, 1, 1); got != c {
		t.Fatalf("alpha change not stored: %+v", got)
	}
	if g.SetVoxel(6, 6, 6, voxel.Cell{Value: 5}) || g.DirtyLen() != 0 {
		t.Fatalf("inactive value change queued")
	}
}

func TestSetVoxelMarksBoundaryNeighbours(t *testing.T) {
	own := ChunkKey{CX: 1, CY: 1, CZ: 1}
	cases := []struct {
		name string
		p    [3]int
		want []ChunkKey
	}{
		{"interior", [3]int{5, 5, 5}, []ChunkKey{own}},
		{"-x", [3]int{4, 5, 5}, []ChunkKey{own, {CX: 0, CY: 1, CZ: 1}}},
		{"+x", [3]int{7, 5, 5}, []ChunkKey{own, {CX: 2, CY: 1, CZ: 1}}},
		{"-y", [3]int{5, 4, 5}, []ChunkKey{own, {CX: 1, CY: 0, CZ: 1}}},
		{"+y", [3]int{5, 7, 5}, []ChunkKey{own, {CX: 1, CY: 2, CZ: 1}}},
		{"-z", [3]int{5, 5, 4}, []ChunkKey{own, {CX: 1, CY: 1, CZ: 0}}},
		{"+z", [3]int{5, 5, 7}, []ChunkKey{own, {CX: 1, CY: 1, CZ: 2}}},
		{"corner", [3]int{4, 7, 5}, []ChunkKey{own, {CX: 0, CY: 1, CZ: 1}, {CX: 1, CY: 2, CZ: 1}}},
		{"grid edge", [3]int{0, 5, 5}, []ChunkKey{{CX: 0, CY: 1, CZ: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGrid(12, 12, 12, 4)
			g.SetVoxel(tc.p[0], tc.p[1], tc.p[2], solid)
			sameKeys(t, g.Dirty(), tc.want)
			if g.Dirty()[0] != tc.want[0] {
				t.Fatalf("owning chunk must be queued first: %+v", g.Dirty())
			}
		})
	}
}

func TestDirtyQueueHoldsEachChunkOnce(t *testing.T) {
	g := newTestGrid(8, 8, 8, 4)
	k := ChunkKey{CX: 1}
	g.MarkDirty(k)
	g.MarkDirty(k)
	if g.DirtyLen() != 1 {
		t.Fatalf("dirty queue: got %d want 1", g.DirtyLen())
	}
	if g.MarkDirty(ChunkKey{CX: 2}) {
		t.Fatalf("out-of-range chunk queued")
	}
}

func TestWindowClipsEdgeChunks(t *testing.T) {
	g := newTestGrid(10, 4, 6, 4)
	if got := g.ChunkCounts(); got != [3]int{3, 1, 2} {
		t.Fatalf("counts: got %v", got)
	}
	w := g.Window(ChunkKey{CX: 2, CZ: 1})
	want := mesh.Window{Offset: [3]int{8, 0, 4}, Size: [3]int{2, 4, 2}, Upper: [3]int{9, 3, 5}}
	if w != want {
		t.Fatalf("window: got %+v want %+v", w, want)
	}
}

func TestProcessDirtyQueueImmediate(t *testing.T) {
	g := newTestGrid(8, 4, 4, 4)
	g.FillRegion([3]int{}, [3]int{8, 4, 4}, solid)
	if n := g.ProcessDirtyQueue(true); n != 2 {
		t.Fatalf("processed: got %d want 2", n)
	}
	ready := g.ReadyChunks()
	if len(ready) != 2 {
		t.Fatalf("ready: got %d want 2", len(ready))
	}
	// Each chunk hides the face it shares with its neighbour: 5 exposed 4x4 sides.
	for _, rc := range ready {
		if got := rc.Buffers.Triangles(); got != 160 {
			t.Fatalf("chunk %+v triangles: got %d want 160", rc.Key, got)
		}
	}
	if !g.Acknowledge(ready[0].Key) {
		t.Fatalf("acknowledge failed")
	}
	if len(g.ReadyChunks()) != 1 {
		t.Fatalf("acknowledged chunk still ready")
	}
}

func TestProcessDirtyLimit(t *testing.T) {
	g := newTestGrid(12, 4, 4, 4)
	for cx := 0; cx < 3; cx++ {
		g.MarkDirty(ChunkKey{CX: cx})
	}
	if n := g.ProcessDirty(true, 2); n != 2 {
		t.Fatalf("processed: got %d want 2", n)
	}
	if d := g.Dirty(); len(d) != 1 || d[0] != (ChunkKey{CX: 2}) {
		t.Fatalf("remaining: got %+v", d)
	}
}

func TestEmptyChunkIsReadyWithNoGeometry(t *testing.T) {
	g := newTestGrid(4, 4, 4, 4)
	g.MarkDirty(ChunkKey{})
	g.ProcessDirtyQueue(true)
	st, _ := g.Chunk(ChunkKey{})
	buf, ok := st.Ready()
	if !ok || buf == nil || !buf.Empty() {
		t.Fatalf("empty chunk: ready=%v buf=%+v", ok, buf)
	}
}

func TestRegenerationIsIdempotent(t *testing.T) {
	for _, alg := range []mesh.Algorithm{mesh.Culled, mesh.Greedy, mesh.MarchingCubes} {
		g := NewGrid(voxel.NewBlock(6, 6, 6), [3]int{3, 3, 3}, Options{
			Algorithm: alg,
			Params:    mesh.Params{CellSize: 1, SelfShade: 0.5},
		})
		g.FillRegion([3]int{1, 1, 1}, [3]int{3, 2, 4}, solid)
		g.SetVoxel(2, 2, 2, voxel.Cell{})
		k := ChunkKey{}
		g.Request(k, true)
		st, _ := g.Chunk(k)
		first, _ := st.Ready()
		g.Request(k, true)
		second, _ := st.Ready()
		if first == second {
			t.Fatalf("%v: expected a fresh buffer", alg)
		}
		if !reflect.DeepEqual(first, second) || mesh.Digest(first) != mesh.Digest(second) {
			t.Fatalf("%v: regenerated buffers differ", alg)
		}
	}
}

func TestBackgroundMatchesImmediate(t *testing.T) {
	s := NewScheduler(3, 4)
	t.Cleanup(s.Close)

	var mu sync.Mutex
	gens := 0
	opts := Options{
		Algorithm: mesh.Greedy,
		Params:    mesh.Params{CellSize: 1, SelfShade: 0.3},
	}
	fg := NewGrid(voxel.NewBlock(10, 6, 10), [3]int{4, 4, 4}, opts)
	opts.Scheduler = s
	opts.OnGenerated = func(Generation) {
		mu.Lock()
		gens++
		mu.Unlock()
	}
	bg := NewGrid(voxel.NewBlock(10, 6, 10), [3]int{4, 4, 4}, opts)
	for _, g := range []*Grid{bg, fg} {
		g.FillRegion([3]int{0, 0, 0}, [3]int{10, 2, 10}, solid)
		g.FillRegion([3]int{3, 2, 3}, [3]int{3, 3, 5}, solid)
	}
	n := bg.ProcessDirtyQueue(false)
	// Mutating after the requests must not leak into background results.
	bg.SetVoxel(4, 4, 4, voxel.Cell{})
	bg.Wait()
	fg.ProcessDirtyQueue(true)

	want := map[ChunkKey]uint64{}
	for _, rc := range fg.ReadyChunks() {
		want[rc.Key] = mesh.Digest(rc.Buffers)
	}
	got := bg.ReadyChunks()
	if len(got) != len(want) || len(got) != n {
		t.Fatalf("ready chunks: got %d want %d (processed %d)", len(got), len(want), n)
	}
	for _, rc := range got {
		if mesh.Digest(rc.Buffers) != want[rc.Key] {
			t.Fatalf("chunk %+v differs from immediate generation", rc.Key)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if gens < n {
		t.Fatalf("generation reports: got %d want >= %d", gens, n)
	}
}

func TestRequestWhileGeneratingUsesSnapshot(t *testing.T) {
	g := newTestGrid(4, 4, 4, 4)
	k := ChunkKey{}
	st, _ := g.Chunk(k)
	st.begin(job{key: k, window: g.Window(k), src: g.Block()})

	g.SetVoxel(1, 1, 1, solid)
	g.Request(k, true)
	if st.Status() != Generating || !st.HasPending() {
		t.Fatalf("request during generation should be coalesced")
	}
	// Later edits must not affect the coalesced request.
	g.SetVoxel(2, 2, 2, solid)

	next := st.finish(&mesh.Buffers{})
	if next == nil {
		t.Fatalf("pending job missing")
	}
	if _, ok := next.src.(*voxel.Region); !ok {
		t.Fatalf("pending job reads %T, want a snapshot", next.src)
	}
	g.run(st, *next)
	buf, ok := st.Ready()
	if !ok || buf.Triangles() != 12 {
		t.Fatalf("coalesced result: ready=%v triangles=%d want 12", ok, buf.Triangles())
	}
}

func TestRegenerateAllIgnoresDirtyState(t *testing.T) {
	g := newTestGrid(8, 8, 4, 4)
	g.SetVoxel(0, 0, 0, solid)
	g.RegenerateAll()
	if g.DirtyLen() != 0 {
		t.Fatalf("dirty queue not cleared")
	}
	if got := len(g.ReadyChunks()); got != 4 {
		t.Fatalf("ready: got %d want 4", got)
	}
}

func TestFillAndCopyRegionQueueTouchedChunks(t *testing.T) {
	g := newTestGrid(8, 4, 4, 4)
	if n := g.FillRegion([3]int{1, 1, 1}, [3]int{2, 2, 2}, solid); n != 8 {
		t.Fatalf("filled: got %d want 8", n)
	}
	sameKeys(t, g.Dirty(), []ChunkKey{{}})
	g.ProcessDirtyQueue(true)

	src := voxel.NewBlock(2, 2, 2)
	src.Fill([3]int{}, [3]int{2, 2, 2}, solid)
	if n := g.CopyRegion(src, [3]int{}, [3]int{2, 2, 2}, [3]int{3, 0, 0}); n != 8 {
		t.Fatalf("copied: got %d want 8", n)
	}
	sameKeys(t, g.Dirty(), []ChunkKey{{}, {CX: 1}})
	if !g.Block().ActiveAt(4, 1, 1) {
		t.Fatalf("copy did not land")
	}
}

func TestStructuralChangesRepartition(t *testing.T) {
	g := newTestGrid(8, 4, 4, 4)
	g.SetVoxel(7, 0, 0, solid)
	epoch := g.Epoch()

	g.Rotate(1)
	if got := g.Block().Dims(); got != [3]int{4, 4, 8} {
		t.Fatalf("rotated dims: got %v", got)
	}
	if got := g.ChunkCounts(); got != [3]int{1, 1, 2} {
		t.Fatalf("rotated counts: got %v", got)
	}
	if !g.Block().ActiveAt(3, 0, 7) {
		t.Fatalf("rotated cell not at (3,0,7)")
	}
	if g.Epoch() == epoch || g.DirtyLen() != 0 || len(g.ReadyChunks()) != 2 {
		t.Fatalf("rotate should repartition and regenerate everything")
	}

	g.Resize(5, 4, 8)
	if got := g.ChunkCounts(); got != [3]int{2, 1, 2} {
		t.Fatalf("resized counts: got %v", got)
	}
	if w := g.Window(ChunkKey{CX: 1}); w.Size[0] != 1 || w.Upper[0] != 4 {
		t.Fatalf("resized window: %+v", w)
	}

	g.SetChunkSize([3]int{2, 2, 2})
	if got := g.ChunkCounts(); got != [3]int{3, 2, 4} {
		t.Fatalf("counts after chunk size change: got %v", got)
	}
	if len(g.ReadyChunks()) != 24 {
		t.Fatalf("ready after chunk size change: got %d want 24", len(g.ReadyChunks()))
	}

	g.Scroll(1, 0, 0, true)
	if !g.Block().ActiveAt(4, 0, 7) {
		t.Fatalf("scrolled cell not at (4,0,7)")
	}
	g.Scroll(1, 0, 0, true)
	if !g.Block().ActiveAt(0, 0, 7) {
		t.Fatalf("wrapped cell not at (0,0,7)")
	}
}
