package mesh

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Digest fingerprints the buffer contents. Equal buffers always give equal digests.
func Digest(b *Buffers) uint64 {
	if b == nil {
		return 0
	}
	h := xxhash.New()
	var tmp [4]byte
	putF := func(f float32) {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
		_, _ = h.Write(tmp[:])
	}
	for _, p := range b.Positions {
		putF(p[0])
		putF(p[1])
		putF(p[2])
	}
	for _, uv := range b.UVs {
		putF(uv[0])
		putF(uv[1])
	}
	for _, c := range b.Colors {
		_, _ = h.Write([]byte{c.R, c.G, c.B, c.A})
	}
	for _, i := range b.Indices {
		binary.LittleEndian.PutUint32(tmp[:], i)
		_, _ = h.Write(tmp[:])
	}
	return h.Sum64()
}
