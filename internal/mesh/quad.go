package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

// faceAxes returns the two in-plane axes for a face normal along d. u x v = d.
func faceAxes(d int) (u, v int) {
	return (d + 1) % 3, (d + 2) % 3
}

// Quad corners in (u, v) order: c0 (u0,v0), c1 (u1,v0), c2 (u1,v1), c3 (u0,v1).
var cornerSign = [4][2]int{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// cornerMask reports which corners of the face of p that points along d in direction
// dir (+1 or -1) are occluded, one bit per corner. A corner is occluded when any of its
// three neighbours in the layer just outside the face is active: the two edge
// neighbours or the diagonal between them.
func cornerMask(s sampler, p [3]int, d, dir int) uint8 {
	u, v := faceAxes(d)
	q := p
	q[d] += dir
	var m uint8
	for i, sg := range cornerSign {
		a := q
		a[u] += sg[0]
		b := q
		b[v] += sg[1]
		c := q
		c[u] += sg[0]
		c[v] += sg[1]
		if s.solidAt(a) || s.solidAt(b) || s.solidAt(c) {
			m |= 1 << i
		}
	}
	return m
}

// shade darkens c by intensity when the corner is occluded.
func shade(c voxel.RGBA8, occluded bool, intensity float32) voxel.RGBA8 {
	if !occluded || intensity <= 0 {
		return c
	}
	f := 1 - intensity
	if f < 0 {
		f = 0
	}
	return voxel.RGBA8{
		R: uint8(float32(c.R)*f + 0.5),
		G: uint8(float32(c.G)*f + 0.5),
		B: uint8(float32(c.B)*f + 0.5),
		A: c.A,
	}
}

// quad describes one axis-aligned rectangle on the plane d = plane, covering cells
// [u0,u1) x [v0,v1). front means the normal points along +d.
type quad struct {
	d      int
	front  bool
	plane  int
	u0, v0 int
	u1, v1 int
	color  voxel.RGBA8
	shade  uint8
}

func emitQuad(out *Buffers, q quad, p Params) {
	u, v := faceAxes(q.d)
	cs := p.CellSize
	ov := p.Overlap
	base := uint32(len(out.Positions))

	dpos := float32(q.plane) * cs
	if q.front {
		dpos += ov
	} else {
		dpos -= ov
	}
	for i, sg := range cornerSign {
		var pos mgl32.Vec3
		pos[q.d] = dpos
		if sg[0] < 0 {
			pos[u] = float32(q.u0)*cs - ov
		} else {
			pos[u] = float32(q.u1)*cs + ov
		}
		if sg[1] < 0 {
			pos[v] = float32(q.v0)*cs - ov
		} else {
			pos[v] = float32(q.v1)*cs + ov
		}
		var uv mgl32.Vec2
		if sg[0] > 0 {
			uv[0] = float32(q.u1 - q.u0)
		}
		if sg[1] > 0 {
			uv[1] = float32(q.v1 - q.v0)
		}
		out.Positions = append(out.Positions, pos)
		out.UVs = append(out.UVs, uv)
		out.Colors = append(out.Colors, shade(q.color, bit(q.shade, i) == 1, p.SelfShade))
	}

	// Split through the corner pair carrying more shade; ties go through c0-c2.
	test1 := bit(q.shade, 0) + bit(q.shade, 2)
	test2 := bit(q.shade, 1) + bit(q.shade, 3)
	var tri [6]uint32
	if test1 >= test2 {
		tri = [6]uint32{0, 1, 2, 0, 2, 3}
	} else {
		tri = [6]uint32{1, 2, 3, 1, 3, 0}
	}
	if !q.front {
		tri[1], tri[2] = tri[2], tri[1]
		tri[4], tri[5] = tri[5], tri[4]
	}
	for _, t := range tri {
		out.Indices = append(out.Indices, base+t)
	}
}

func bit(m uint8, i int) int {
	return int(m>>i) & 1
}
