package mesh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

var unitParams = Params{CellSize: 1}

func solidCell(r, g, b uint8) voxel.Cell {
	return voxel.Cell{State: voxel.Active, Value: r, Color: voxel.RGBA8{R: r, G: g, B: b, A: 255}}
}

func fullWindow(b *voxel.Block) Window {
	sx, sy, sz := b.Size()
	return Window{Size: [3]int{sx, sy, sz}, Upper: [3]int{sx - 1, sy - 1, sz - 1}}
}

func randomBlock(seed int64, sx, sy, sz int, fill float64, colors int) *voxel.Block {
	rng := rand.New(rand.NewSource(seed))
	b := voxel.NewBlock(sx, sy, sz)
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				if rng.Float64() < fill {
					c := uint8(rng.Intn(colors)) * 40
					b.Set(x, y, z, solidCell(c, 100, 100))
				}
			}
		}
	}
	return b
}

type unitFace struct {
	d, dir, plane, u, v int
}

// coverage expands every quad (4 vertices, 6 indices) into the unit faces it covers.
// It assumes CellSize 1 and no overlap.
func coverage(t *testing.T, b *Buffers) map[unitFace]int {
	t.Helper()
	if len(b.Positions)%4 != 0 || len(b.Indices) != len(b.Positions)/4*6 {
		t.Fatalf("buffers are not quads: %d positions, %d indices", len(b.Positions), len(b.Indices))
	}
	out := map[unitFace]int{}
	for q := 0; q < len(b.Positions)/4; q++ {
		lo := b.Positions[4*q]
		hi := lo
		for k := 1; k < 4; k++ {
			p := b.Positions[4*q+k]
			for a := 0; a < 3; a++ {
				lo[a] = float32(math.Min(float64(lo[a]), float64(p[a])))
				hi[a] = float32(math.Max(float64(hi[a]), float64(p[a])))
			}
		}
		d := -1
		for a := 0; a < 3; a++ {
			if lo[a] == hi[a] {
				d = a
			}
		}
		if d < 0 {
			t.Fatalf("quad %d is not axis aligned: %v..%v", q, lo, hi)
		}
		i0, i1, i2 := b.Indices[6*q], b.Indices[6*q+1], b.Indices[6*q+2]
		n := triNormal(b.Positions[i0], b.Positions[i1], b.Positions[i2])
		dir := 1
		if n[d] < 0 {
			dir = -1
		}
		u, v := faceAxes(d)
		for uu := int(lo[u]); uu < int(hi[u]); uu++ {
			for vv := int(lo[v]); vv < int(hi[v]); vv++ {
				out[unitFace{d: d, dir: dir, plane: int(lo[d]), u: uu, v: vv}]++
			}
		}
	}
	return out
}

func triNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	return b.Sub(a).Cross(c.Sub(a))
}

func triArea(a, b, c mgl32.Vec3) float64 {
	return float64(triNormal(a, b, c).Len()) / 2
}

func sameCoverage(t *testing.T, got, want map[unitFace]int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("coverage size: got %d want %d", len(got), len(want))
	}
	for k, n := range want {
		if got[k] != n {
			t.Fatalf("face %+v: got %d want %d", k, got[k], n)
		}
	}
}
