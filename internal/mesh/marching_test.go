package mesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

func TestTablesAreConsistent(t *testing.T) {
	if edgeTable[0] != 0 || edgeTable[255] != 0 {
		t.Fatalf("uniform configurations must cross no edges")
	}
	if triTable[0][0] != -1 || triTable[255][0] != -1 {
		t.Fatalf("uniform configurations must have no triangles")
	}
	for cfg := 0; cfg < 256; cfg++ {
		if edgeTable[cfg] != edgeTable[255-cfg] {
			t.Fatalf("cfg %d: complement crosses different edges", cfg)
		}
		used := uint16(0)
		n := 0
		for ; n < 16 && triTable[cfg][n] >= 0; n++ {
			used |= 1 << uint(triTable[cfg][n])
		}
		if n%3 != 0 || n > 15 {
			t.Fatalf("cfg %d: %d edge entries is not a triangle list", cfg, n)
		}
		if used != edgeTable[cfg] {
			t.Fatalf("cfg %d: triangles use edges %03x, table says %03x", cfg, used, edgeTable[cfg])
		}
	}
}

func TestMarchingCubesSingleCell(t *testing.T) {
	b := voxel.NewBlock(3, 3, 3)
	b.Set(1, 1, 1, solidCell(10, 20, 30))

	var out Buffers
	ExtractMarchingCubes(b, fullWindow(b), unitParams, &out)

	// The cell is a 2x2x2 block of inside lattice points. The cell fully inside it
	// (cfg 255) emits nothing; 8 corner cells emit 1 triangle, 12 edge cells and 6 face
	// cells emit 2 each.
	if got := out.Triangles(); got != 44 {
		t.Fatalf("triangles: got %d want 44", got)
	}
	if len(out.Positions) != 3*44 || len(out.UVs) != len(out.Positions) || len(out.Colors) != len(out.Positions) {
		t.Fatalf("buffer lengths out of step")
	}
	if out.ColorFallbacks != 0 {
		t.Fatalf("unexpected colour fallbacks: %d", out.ColorFallbacks)
	}

	// Crossings snap to inside lattice points at 1.25 and 1.75; the surviving area is
	// the six faces of that half-size cube.
	area := 0.0
	center := mgl32.Vec3{1.5, 1.5, 1.5}
	for i := 0; i < len(out.Indices); i += 3 {
		a, c, d := out.Positions[out.Indices[i]], out.Positions[out.Indices[i+1]], out.Positions[out.Indices[i+2]]
		for _, p := range []mgl32.Vec3{a, c, d} {
			for k := 0; k < 3; k++ {
				if p[k] != 1.25 && p[k] != 1.75 {
					t.Fatalf("vertex %v is not on an inside lattice point", p)
				}
			}
		}
		ar := triArea(a, c, d)
		area += ar
		if ar > 1e-6 {
			centroid := a.Add(c).Add(d).Mul(1.0 / 3)
			if triNormal(a, c, d).Dot(centroid.Sub(center)) <= 0 {
				t.Fatalf("triangle %d faces inward", i/3)
			}
		}
	}
	if math.Abs(area-1.5) > 1e-5 {
		t.Fatalf("area: got %v want 1.5", area)
	}
	for _, c := range out.Colors {
		if c != (voxel.RGBA8{R: 10, G: 20, B: 30, A: 255}) {
			t.Fatalf("vertex colour: got %+v", c)
		}
	}
}

func TestMarchingCubesSolidBlock(t *testing.T) {
	b := voxel.NewBlock(2, 2, 2)
	b.Fill([3]int{}, [3]int{2, 2, 2}, solidCell(1, 1, 1))
	var out Buffers
	ExtractMarchingCubes(b, fullWindow(b), unitParams, &out)
	if got := out.Triangles(); got != 188 {
		t.Fatalf("triangles: got %d want 188", got)
	}
}

func TestMarchingCubesWindowsTile(t *testing.T) {
	b := randomBlock(3, 8, 6, 8, 0.45, 2)
	full := fullWindow(b)
	var whole Buffers
	ExtractMarchingCubes(b, full, unitParams, &whole)

	tris := 0
	area := 0.0
	var part Buffers
	for _, x := range [][2]int{{0, 3}, {3, 4}, {7, 1}} {
		for _, z := range [][2]int{{0, 5}, {5, 3}} {
			w := Window{
				Offset: [3]int{x[0], 0, z[0]},
				Size:   [3]int{x[1], 6, z[1]},
				Upper:  full.Upper,
			}
			ExtractMarchingCubes(b, w, unitParams, &part)
			tris += part.Triangles()
			area += totalArea(&part)
		}
	}
	if tris != whole.Triangles() {
		t.Fatalf("tiled triangles: got %d want %d", tris, whole.Triangles())
	}
	if math.Abs(area-totalArea(&whole)) > 1e-3 {
		t.Fatalf("tiled area: got %v want %v", area, totalArea(&whole))
	}
}

func TestMarchingCubesOverlapPushesOutward(t *testing.T) {
	b := voxel.NewBlock(1, 1, 1)
	b.Set(0, 0, 0, solidCell(1, 1, 1))
	var out Buffers
	ExtractMarchingCubes(b, fullWindow(b), Params{CellSize: 1, Overlap: 0.25}, &out)
	lo, hi := float32(10), float32(-10)
	for _, p := range out.Positions {
		for k := 0; k < 3; k++ {
			if p[k] < lo {
				lo = p[k]
			}
			if p[k] > hi {
				hi = p[k]
			}
		}
	}
	if lo != 0 || hi != 1 {
		t.Fatalf("bounds: got [%v, %v] want [0, 1]", lo, hi)
	}
}

func TestCubeColorPriority(t *testing.T) {
	b := voxel.NewBlock(2, 2, 2)
	b.Set(1, 0, 0, solidCell(1, 0, 0))
	b.Set(0, 1, 0, solidCell(2, 0, 0))
	l := lattice{s: sampler{src: b, upper: [3]int{1, 1, 1}}}

	// Lattice cell at (1,1,1): its own corner lies in cell (0,0,0), which is empty;
	// the +x corner reaches cell (1,0,0) before +y reaches (0,1,0).
	c, ok := cubeColor(l, [3]int{1, 1, 1}, ShadeColor)
	if !ok || c.R != 1 {
		t.Fatalf("got %+v ok=%v want red 1", c, ok)
	}
	if c, ok := cubeColor(l, [3]int{-1, -1, -1}, ShadeColor); ok || c != FallbackColor {
		t.Fatalf("empty neighbourhood: got %+v ok=%v", c, ok)
	}
}

func totalArea(b *Buffers) float64 {
	a := 0.0
	for i := 0; i < len(b.Indices); i += 3 {
		a += triArea(b.Positions[b.Indices[i]], b.Positions[b.Indices[i+1]], b.Positions[b.Indices[i+2]])
	}
	return a
}
