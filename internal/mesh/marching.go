package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

// colorProbe is the order in which cell corners are tried when picking a colour: the
// cell's own corner, then single-axis, then two-axis, then the three-axis neighbour.
var colorProbe = [8][3]int{
	{0, 0, 0},
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, 0, 1}, {0, 1, 1},
	{1, 1, 1},
}

// lattice samples the block at twice its resolution. Lattice point q lies inside cell
// q/2; negative lattice coordinates are always outside.
type lattice struct {
	s sampler
}

func (l lattice) cell(q [3]int) (voxel.Cell, bool) {
	if q[0] < 0 || q[1] < 0 || q[2] < 0 {
		return voxel.Cell{}, false
	}
	c := l.s.cell(q[0]>>1, q[1]>>1, q[2]>>1)
	return c, c.Active()
}

func (l lattice) inside(q [3]int) bool {
	_, ok := l.cell(q)
	return ok
}

// cellRange returns the lattice cells [lo, hi) an axis of the window owns. Each voxel
// owns the two lattice cells starting at its own lattice points; the window touching the
// block origin also owns the cell reaching back to -1.
func cellRange(off, size int) (lo, hi int) {
	lo = 2 * off
	if off == 0 {
		lo = -1
	}
	return lo, 2 * (off + size)
}

// ExtractMarchingCubes runs marching cubes over the window at doubled resolution. Edge
// crossings snap to the inside corner, pushed outward along the edge by the overlap.
func ExtractMarchingCubes(src voxel.Reader, w Window, p Params, out *Buffers) {
	out.Reset()
	if w.Empty() {
		return
	}
	l := lattice{s: sampler{src: src, upper: w.Upper}}
	cs := p.CellSize
	push := p.Overlap
	if push > cs/2 {
		push = cs / 2
	}
	if push < -cs/2 {
		push = -cs / 2
	}

	x0, x1 := cellRange(w.Offset[0], w.Size[0])
	y0, y1 := cellRange(w.Offset[1], w.Size[1])
	z0, z1 := cellRange(w.Offset[2], w.Size[2])

	var corner [8]bool
	for cz := z0; cz < z1; cz++ {
		for cy := y0; cy < y1; cy++ {
			for cx := x0; cx < x1; cx++ {
				base := [3]int{cx, cy, cz}
				cfg := 0
				for i, o := range cornerOffset {
					corner[i] = l.inside([3]int{cx + o[0], cy + o[1], cz + o[2]})
					if corner[i] {
						cfg |= 1 << i
					}
				}
				if edgeTable[cfg] == 0 {
					continue
				}

				col, ok := cubeColor(l, base, p.Source)
				row := &triTable[cfg]
				for t := 0; row[t] >= 0; t += 3 {
					var tri [3]mgl32.Vec3
					for k := 0; k < 3; k++ {
						e := edgeCorners[row[t+k]]
						in, outC := e[0], e[1]
						if !corner[in] {
							in, outC = outC, in
						}
						var pos mgl32.Vec3
						for a := 0; a < 3; a++ {
							q := base[a] + cornerOffset[in][a]
							step := cornerOffset[outC][a] - cornerOffset[in][a]
							pos[a] = float32(2*q+1)*cs/4 + float32(step)*push
						}
						tri[k] = pos
					}
					uvA, uvB := dominantPlane(tri)
					idx := uint32(len(out.Positions))
					for k := 0; k < 3; k++ {
						out.Positions = append(out.Positions, tri[k])
						out.UVs = append(out.UVs, mgl32.Vec2{tri[k][uvA] / cs, tri[k][uvB] / cs})
						out.Colors = append(out.Colors, col)
						if !ok {
							out.ColorFallbacks++
						}
					}
					out.Indices = append(out.Indices, idx, idx+1, idx+2)
				}
			}
		}
	}
}

func cubeColor(l lattice, base [3]int, src ShadeSource) (voxel.RGBA8, bool) {
	for _, o := range colorProbe {
		c, ok := l.cell([3]int{base[0] + o[0], base[1] + o[1], base[2] + o[2]})
		if ok {
			return baseColor(c, src), true
		}
	}
	return FallbackColor, false
}

// dominantPlane returns the two axes orthogonal to the largest normal component.
func dominantPlane(t [3]mgl32.Vec3) (int, int) {
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	ax := 0
	best := abs32(n[0])
	if v := abs32(n[1]); v > best {
		ax, best = 1, v
	}
	if v := abs32(n[2]); v > best {
		ax = 2
	}
	return faceAxes(ax)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
