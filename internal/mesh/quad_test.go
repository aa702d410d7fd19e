package mesh

import (
	"testing"

	"voxelmesh.ai/internal/voxel"
)

func TestCornerMask(t *testing.T) {
	b := voxel.NewBlock(3, 2, 3)
	s := sampler{src: b, upper: [3]int{2, 1, 2}}
	p := [3]int{1, 0, 1}

	if got := cornerMask(s, p, 1, 1); got != 0 {
		t.Fatalf("open face: got %04b", got)
	}

	// Top face: u is z, v is x. A neighbour at +x above the face touches c2 and c3.
	b.Set(2, 1, 1, solidCell(1, 1, 1))
	if got := cornerMask(s, p, 1, 1); got != 0b1100 {
		t.Fatalf("one side: got %04b want 1100", got)
	}
	// Adding +z reaches c1 as well.
	b.Set(1, 1, 2, solidCell(1, 1, 1))
	if got := cornerMask(s, p, 1, 1); got != 0b1110 {
		t.Fatalf("two sides: got %04b want 1110", got)
	}
	// Diagonal alone.
	b2 := voxel.NewBlock(3, 2, 3)
	b2.Set(0, 1, 0, solidCell(1, 1, 1))
	if got := cornerMask(sampler{src: b2, upper: [3]int{2, 1, 2}}, p, 1, 1); got != 0b0001 {
		t.Fatalf("diagonal: got %04b want 0001", got)
	}
	// Neighbours beyond the upper limit read as empty.
	if got := cornerMask(sampler{src: b, upper: [3]int{2, 0, 2}}, p, 1, 1); got != 0 {
		t.Fatalf("clipped: got %04b", got)
	}
}

func TestShade(t *testing.T) {
	c := voxel.RGBA8{R: 200, G: 100, B: 40, A: 7}
	if got := shade(c, false, 1); got != c {
		t.Fatalf("unoccluded: got %+v", got)
	}
	if got := shade(c, true, 0); got != c {
		t.Fatalf("intensity 0: got %+v", got)
	}
	if got := shade(c, true, 0.25); got != (voxel.RGBA8{R: 150, G: 75, B: 30, A: 7}) {
		t.Fatalf("intensity 0.25: got %+v", got)
	}
	if got := shade(c, true, 1); got != (voxel.RGBA8{A: 7}) {
		t.Fatalf("intensity 1: got %+v", got)
	}
}

// A single occluder darkens the corners it touches by the full intensity and leaves
// the others untouched.
func TestSingleOccluderShadesByIntensity(t *testing.T) {
	b := voxel.NewBlock(3, 2, 3)
	b.Set(1, 0, 1, solidCell(90, 90, 90))
	b.Set(2, 1, 1, solidCell(200, 200, 200))
	p := Params{CellSize: 1, SelfShade: 0.9}

	for _, alg := range []Algorithm{Culled, Greedy} {
		var out Buffers
		Extract(alg, b, fullWindow(b), p, &out)

		found := false
		for q := 0; q+3 < len(out.Positions); q += 4 {
			top := true
			for k := 0; k < 4; k++ {
				pos := out.Positions[q+k]
				if pos[1] != 1 || pos[0] < 1 || pos[0] > 2 || pos[2] < 1 || pos[2] > 2 {
					top = false
					break
				}
			}
			if !top {
				continue
			}
			found = true
			for k := 0; k < 4; k++ {
				pos, c := out.Positions[q+k], out.Colors[q+k]
				want := uint8(90)
				if pos[0] == 2 {
					want = 9
				}
				if c.R != want {
					t.Fatalf("%s: corner %v R=%d want %d", alg, pos, c.R, want)
				}
			}
		}
		if !found {
			t.Fatalf("%s: top face of the lower voxel not emitted", alg)
		}
	}
}

func TestEmitQuadDiagonal(t *testing.T) {
	cases := []struct {
		shade uint8
		front bool
		want  []uint32
	}{
		{0, true, []uint32{0, 1, 2, 0, 2, 3}},
		{0b0101, true, []uint32{0, 1, 2, 0, 2, 3}},
		{0b1010, true, []uint32{1, 2, 3, 1, 3, 0}},
		{0b1011, true, []uint32{1, 2, 3, 1, 3, 0}},
		{0b0010, false, []uint32{1, 3, 2, 1, 0, 3}},
		{0, false, []uint32{0, 2, 1, 0, 3, 2}},
	}
	for i, tc := range cases {
		var out Buffers
		emitQuad(&out, quad{d: 2, front: tc.front, plane: 1, u1: 1, v1: 1, color: voxel.RGBA8{R: 9, A: 255}, shade: tc.shade}, unitParams)
		if len(out.Indices) != 6 {
			t.Fatalf("case %d: %d indices", i, len(out.Indices))
		}
		for k, v := range tc.want {
			if out.Indices[k] != v {
				t.Fatalf("case %d: indices %v want %v", i, out.Indices, tc.want)
			}
		}
		n := triNormal(out.Positions[out.Indices[0]], out.Positions[out.Indices[1]], out.Positions[out.Indices[2]])
		if (n[2] > 0) != tc.front {
			t.Fatalf("case %d: normal %v, front=%v", i, n, tc.front)
		}
	}
}

func TestEmitQuadGeometry(t *testing.T) {
	var out Buffers
	emitQuad(&out, quad{d: 0, front: true, plane: 3, u0: 1, v0: 2, u1: 4, v1: 3}, Params{CellSize: 2})
	// d=0: u is y, v is z.
	want := [4][3]float32{{6, 2, 4}, {6, 8, 4}, {6, 8, 6}, {6, 2, 6}}
	for i, w := range want {
		p := out.Positions[i]
		if p[0] != w[0] || p[1] != w[1] || p[2] != w[2] {
			t.Fatalf("corner %d: got %v want %v", i, p, w)
		}
	}
	if uv := out.UVs[2]; uv[0] != 3 || uv[1] != 1 {
		t.Fatalf("uv: got %v want (3,1)", uv)
	}
}
