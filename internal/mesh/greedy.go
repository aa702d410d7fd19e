package mesh

import "voxelmesh.ai/internal/voxel"

// faceKey is one mask entry. The zero value means no visible face.
type faceKey struct {
	set   bool
	color uint32
	shade uint8
}

// ExtractGreedy produces the same visible surface as ExtractCulled but merges coplanar
// faces with equal colour and corner shading into maximal rectangles.
func ExtractGreedy(src voxel.Reader, w Window, p Params, out *Buffers) {
	out.Reset()
	if w.Empty() {
		return
	}
	s := sampler{src: src, upper: w.Upper}
	var mask []faceKey

	for d := 0; d < 3; d++ {
		u, v := faceAxes(d)
		nu, nv := w.Size[u], w.Size[v]
		if cap(mask) < nu*nv {
			mask = make([]faceKey, nu*nv)
		}
		mask = mask[:nu*nv]

		for _, front := range [2]bool{true, false} {
			dir := -1
			if front {
				dir = 1
			}
			for k := w.Offset[d]; k < w.Offset[d]+w.Size[d]; k++ {
				// Build the slice mask. The face belongs to the cell at depth k; it is
				// visible only when the cell across the plane is inactive.
				n := 0
				for j := 0; j < nv; j++ {
					for i := 0; i < nu; i++ {
						var pos [3]int
						pos[d] = k
						pos[u] = w.Offset[u] + i
						pos[v] = w.Offset[v] + j
						mask[n] = faceKey{}
						c := s.cell(pos[0], pos[1], pos[2])
						if c.Active() {
							across := pos
							across[d] += dir
							if !s.solidAt(across) {
								var corners uint8
								if p.SelfShade > 0 {
									corners = cornerMask(s, pos, d, dir)
								}
								mask[n] = faceKey{
									set:   true,
									color: baseColor(c, p.Source).Packed(),
									shade: corners,
								}
							}
						}
						n++
					}
				}

				plane := k
				if front {
					plane++
				}

				// Merge into rectangles: widest run along u first, then extend along v
				// while every column of the run repeats.
				n = 0
				for j := 0; j < nv; j++ {
					for i := 0; i < nu; {
						key := mask[n]
						if !key.set {
							i++
							n++
							continue
						}
						wd := 1
						for i+wd < nu && mask[n+wd] == key {
							wd++
						}
						ht := 1
					grow:
						for j+ht < nv {
							row := n + ht*nu
							for x := 0; x < wd; x++ {
								if mask[row+x] != key {
									break grow
								}
							}
							ht++
						}

						emitQuad(out, quad{
							d:     d,
							front: front,
							plane: plane,
							u0:    w.Offset[u] + i,
							v0:    w.Offset[v] + j,
							u1:    w.Offset[u] + i + wd,
							v1:    w.Offset[v] + j + ht,
							color: unpackColor(key.color),
							shade: key.shade,
						}, p)

						for y := 0; y < ht; y++ {
							row := n + y*nu
							for x := 0; x < wd; x++ {
								mask[row+x] = faceKey{}
							}
						}
						i += wd
						n += wd
					}
				}
			}
		}
	}
}

func unpackColor(v uint32) voxel.RGBA8 {
	return voxel.RGBA8{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}
