package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelmesh.ai/internal/export/glb"
	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/persistence/snapshot"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		outPath   = flag.String("out", "volume.glb", "output .glb path; with -frame=-1 the frame index is appended")
		frameIdx  = flag.Int("frame", -2, "frame to export (-2 = snapshot's current frame, -1 = every frame)")
		algorithm = flag.String("algorithm", "", "override the snapshot's algorithm (culled|greedy|marching)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d volume=%s tick=%d frames=%d size=%v chunk=%v algorithm=%s\n",
		snap.Header.Version, snap.Header.VolumeID, snap.Header.Tick, snap.Header.Frames, snap.Header.Size, snap.ChunkSize, snap.Algorithm)

	frames := []int{*frameIdx}
	switch *frameIdx {
	case -2:
		frames = []int{snap.Current}
	case -1:
		frames = frames[:0]
		for i := 0; i < len(snap.Frames); i++ {
			frames = append(frames, i)
		}
	}
	for _, i := range frames {
		out := *outPath
		if *frameIdx == -1 {
			out = framePath(out, i)
		}
		n, err := exportFrame(snap, i, *algorithm, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("frame %d: %d chunks -> %s\n", i, n, out)
	}
}

// exportFrame regenerates every chunk of frame i and writes the non-empty ones to out.
func exportFrame(snap snapshot.SnapshotV1, i int, algOverride, out string) (int, error) {
	blocks, err := snap.FrameBlocks()
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(blocks) {
		return 0, fmt.Errorf("frame %d out of range [0,%d)", i, len(blocks))
	}
	name := snap.Algorithm
	if strings.TrimSpace(algOverride) != "" {
		name = algOverride
	}
	alg, err := mesh.ParseAlgorithm(name)
	if err != nil {
		return 0, err
	}
	src, err := mesh.ParseShadeSource(snap.ShadeSource)
	if err != nil {
		return 0, err
	}
	cs := snap.ChunkSize
	if cs == [3]int{} {
		cs = [3]int{16, 16, 16}
	}
	cell := snap.CellSize
	if cell <= 0 {
		cell = 1
	}
	g := frame.NewGrid(blocks[i], cs, frame.Options{
		Algorithm: alg,
		Params: mesh.Params{
			CellSize:  cell,
			Overlap:   snap.Overlap,
			SelfShade: snap.SelfShade,
			Source:    src,
		},
	})
	g.RegenerateAll()
	chunks := g.ReadyChunks()
	if err := glb.Save(out, chunks, "voxelmesh meshexport"); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func framePath(out string, i int) string {
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s-%03d%s", strings.TrimSuffix(out, ext), i, ext)
}
