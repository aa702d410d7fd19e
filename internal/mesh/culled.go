package mesh

import "voxelmesh.ai/internal/voxel"

// ExtractCulled emits one quad for every face of an active cell in the window whose
// neighbour across that face is inactive.
func ExtractCulled(src voxel.Reader, w Window, p Params, out *Buffers) {
	out.Reset()
	if w.Empty() {
		return
	}
	s := sampler{src: src, upper: w.Upper}
	for z := w.Offset[2]; z < w.Offset[2]+w.Size[2]; z++ {
		for y := w.Offset[1]; y < w.Offset[1]+w.Size[1]; y++ {
			for x := w.Offset[0]; x < w.Offset[0]+w.Size[0]; x++ {
				c := s.cell(x, y, z)
				if !c.Active() {
					continue
				}
				pos := [3]int{x, y, z}
				col := baseColor(c, p.Source)
				for d := 0; d < 3; d++ {
					for _, dir := range [2]int{1, -1} {
						n := pos
						n[d] += dir
						if s.solidAt(n) {
							continue
						}
						var corners uint8
						if p.SelfShade > 0 {
							corners = cornerMask(s, pos, d, dir)
						}
						u, v := faceAxes(d)
						q := quad{
							d:     d,
							front: dir > 0,
							plane: pos[d],
							u0:    pos[u],
							v0:    pos[v],
							u1:    pos[u] + 1,
							v1:    pos[v] + 1,
							color: col,
							shade: corners,
						}
						if q.front {
							q.plane++
						}
						emitQuad(out, q, p)
					}
				}
			}
		}
	}
}
