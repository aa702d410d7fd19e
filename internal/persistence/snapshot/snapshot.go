package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelmesh.ai/internal/voxel"
)

const Version = 1

var (
	ErrVersion = errors.New("snapshot: unsupported version")
	ErrDigest  = errors.New("snapshot: frame digest mismatch")
)

type Header struct {
	Version  int    `json:"version"`
	VolumeID string `json:"volume_id"`
	Tick     uint64 `json:"tick"`
	Frames   int    `json:"frames"`
	Size     [3]int `json:"size"`

	// Per-frame content digests (voxel.Block.Digest) and active cell counts.
	Digests []uint64 `json:"digests,omitempty"`
	Active  []int    `json:"active,omitempty"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	ChunkSize   [3]int  `json:"chunk_size"`
	Current     int     `json:"current"`
	Algorithm   string  `json:"algorithm"`
	CellSize    float32 `json:"cell_size"`
	Overlap     float32 `json:"overlap"`
	SelfShade   float32 `json:"self_shade"`
	ShadeSource string  `json:"shade_source"`

	// Frames holds one 6-byte-per-cell record stream per frame, x fastest.
	Frames [][]byte `json:"frames"`
}

// FrameBlocks decodes every frame into a block of Header.Size. Frames with a recorded
// digest must match it.
func (s SnapshotV1) FrameBlocks() ([]*voxel.Block, error) {
	sz := s.Header.Size
	out := make([]*voxel.Block, 0, len(s.Frames))
	for i, data := range s.Frames {
		b, err := voxel.FromByteStream(data, sz[0], sz[1], sz[2])
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if i < len(s.Header.Digests) && b.Digest() != s.Header.Digests[i] {
			return nil, fmt.Errorf("frame %d: %w", i, ErrDigest)
		}
		out = append(out, b)
	}
	return out, nil
}

// SetFrames encodes blocks into Frames and updates the frame count, size, digests and
// active counts.
func (s *SnapshotV1) SetFrames(blocks []*voxel.Block) {
	s.Frames = make([][]byte, len(blocks))
	s.Header.Digests = make([]uint64, len(blocks))
	s.Header.Active = make([]int, len(blocks))
	for i, b := range blocks {
		s.Frames[i] = voxel.ToByteStream(b)
		s.Header.Digests[i] = b.Digest()
		s.Header.Active[i] = b.CountActive()
	}
	s.Header.Frames = len(blocks)
	if len(blocks) > 0 {
		s.Header.Size = blocks[0].Dims()
	}
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header json: %w", err)
	}
	return h, nil
}

// Path returns the conventional file name for a snapshot taken at tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}
