package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

func TestCulledSolidCube(t *testing.T) {
	b := voxel.NewBlock(2, 2, 2)
	b.Fill([3]int{}, [3]int{2, 2, 2}, solidCell(200, 10, 10))

	var out Buffers
	ExtractCulled(b, fullWindow(b), unitParams, &out)
	if got := out.Triangles(); got != 48 {
		t.Fatalf("triangles: got %d want 48", got)
	}
	cov := coverage(t, &out)
	if len(cov) != 24 {
		t.Fatalf("unit faces: got %d want 24", len(cov))
	}
	for f, n := range cov {
		if n != 1 {
			t.Fatalf("face %+v emitted %d times", f, n)
		}
		want := 0
		if f.dir > 0 {
			want = 2
		}
		if f.plane != want {
			t.Fatalf("face %+v is not on the cube surface", f)
		}
	}
}

func TestCulledCornerRemoved(t *testing.T) {
	b := voxel.NewBlock(2, 2, 2)
	b.Fill([3]int{}, [3]int{2, 2, 2}, solidCell(200, 10, 10))

	var full Buffers
	ExtractCulled(b, fullWindow(b), unitParams, &full)

	b.Set(1, 1, 1, voxel.Cell{})
	var cut Buffers
	ExtractCulled(b, fullWindow(b), unitParams, &cut)

	// The removed cell takes its 3 outer faces with it and uncovers the 3 faces of
	// its neighbours that touched it.
	fullFaces := len(coverage(t, &full))
	cutFaces := len(coverage(t, &cut))
	if cutFaces-fullFaces != 3-3 {
		t.Fatalf("face delta: got %d want 0 (%d -> %d)", cutFaces-fullFaces, fullFaces, cutFaces)
	}
	cov := coverage(t, &cut)
	for _, f := range []unitFace{
		{d: 0, dir: 1, plane: 1, u: 1, v: 1},
		{d: 1, dir: 1, plane: 1, u: 1, v: 1},
		{d: 2, dir: 1, plane: 1, u: 1, v: 1},
	} {
		if cov[f] != 1 {
			t.Fatalf("expected uncovered inner face %+v", f)
		}
	}
}

func TestCulledNormalsPointOutward(t *testing.T) {
	b := voxel.NewBlock(3, 3, 3)
	b.Set(1, 1, 1, solidCell(1, 2, 3))
	var out Buffers
	ExtractCulled(b, fullWindow(b), unitParams, &out)
	if out.Triangles() != 12 {
		t.Fatalf("triangles: got %d want 12", out.Triangles())
	}
	for i := 0; i < len(out.Indices); i += 3 {
		a, c, d := out.Positions[out.Indices[i]], out.Positions[out.Indices[i+1]], out.Positions[out.Indices[i+2]]
		n := triNormal(a, c, d)
		centroid := a.Add(c).Add(d).Mul(1.0 / 3)
		if n.Dot(centroid.Sub(mgl32.Vec3{1.5, 1.5, 1.5})) <= 0 {
			t.Fatalf("triangle %d faces inward", i/3)
		}
	}
}

func TestCulledUsesHaloAcrossWindow(t *testing.T) {
	b := voxel.NewBlock(4, 1, 1)
	b.Fill([3]int{}, [3]int{4, 1, 1}, solidCell(9, 9, 9))

	w := Window{Offset: [3]int{0, 0, 0}, Size: [3]int{2, 1, 1}, Upper: [3]int{3, 0, 0}}
	var out Buffers
	ExtractCulled(b, w, unitParams, &out)
	cov := coverage(t, &out)
	if cov[unitFace{d: 0, dir: 1, plane: 2, u: 0, v: 0}] != 0 {
		t.Fatalf("face toward an active halo cell must be culled")
	}
	if cov[unitFace{d: 0, dir: -1, plane: 0, u: 0, v: 0}] != 1 {
		t.Fatalf("face at the block edge must be emitted")
	}

	// With Upper clipped to the window the same cell is treated as absent.
	w.Upper = [3]int{1, 0, 0}
	ExtractCulled(b, w, unitParams, &out)
	if coverage(t, &out)[unitFace{d: 0, dir: 1, plane: 2, u: 0, v: 0}] != 1 {
		t.Fatalf("cells beyond Upper must read as inactive")
	}
}

func TestEmptyWindowProducesNothing(t *testing.T) {
	b := voxel.NewBlock(2, 2, 2)
	b.Fill([3]int{}, [3]int{2, 2, 2}, solidCell(1, 1, 1))
	for _, alg := range []Algorithm{Culled, Greedy, MarchingCubes} {
		out := Buffers{Indices: []uint32{1, 2, 3}}
		Extract(alg, b, Window{Size: [3]int{2, 0, 2}, Upper: [3]int{1, 1, 1}}, unitParams, &out)
		if !out.Empty() || len(out.Positions) != 0 {
			t.Fatalf("%s: expected empty output", alg)
		}
	}
}

func TestInactiveWindowProducesNothing(t *testing.T) {
	b := voxel.NewBlock(4, 4, 4)
	b.Set(3, 3, 3, voxel.Cell{State: voxel.Hidden, Color: voxel.RGBA8{R: 1}})
	for _, alg := range []Algorithm{Culled, Greedy, MarchingCubes} {
		var out Buffers
		Extract(alg, b, fullWindow(b), unitParams, &out)
		if !out.Empty() {
			t.Fatalf("%s: hidden and inactive cells must not produce geometry", alg)
		}
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	b := randomBlock(5, 8, 8, 8, 0.4, 3)
	p := Params{CellSize: 0.5, Overlap: 0.01, SelfShade: 0.6}
	for _, alg := range []Algorithm{Culled, Greedy, MarchingCubes} {
		var a, c Buffers
		Extract(alg, b, fullWindow(b), p, &a)
		Extract(alg, b, fullWindow(b), p, &c)
		if Digest(&a) != Digest(&c) {
			t.Fatalf("%s: repeated extraction differs", alg)
		}
	}
}

func TestValueShadeSource(t *testing.T) {
	b := voxel.NewBlock(1, 1, 1)
	b.Set(0, 0, 0, voxel.Cell{State: voxel.Active, Value: 77, Color: voxel.RGBA8{R: 1, G: 2, B: 3, A: 4}})
	var out Buffers
	ExtractCulled(b, fullWindow(b), Params{CellSize: 1, Source: ShadeValue}, &out)
	for _, c := range out.Colors {
		if c != voxel.Gray(77) {
			t.Fatalf("value mode colour: got %+v want grey 77", c)
		}
	}
}

func TestOverlapInflatesFaces(t *testing.T) {
	b := voxel.NewBlock(1, 1, 1)
	b.Set(0, 0, 0, solidCell(1, 1, 1))
	var out Buffers
	ExtractCulled(b, fullWindow(b), Params{CellSize: 2, Overlap: 0.5}, &out)
	for _, p := range out.Positions {
		for a := 0; a < 3; a++ {
			if p[a] != -0.5 && p[a] != 2.5 {
				t.Fatalf("position %v not on inflated cube", p)
			}
		}
	}
}
