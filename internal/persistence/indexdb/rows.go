package indexdb

import (
	"fmt"
	"time"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/persistence/snapshot"
)

type generationRow struct {
	Frame      int    `json:"frame"`
	CX         int    `json:"cx"`
	CY         int    `json:"cy"`
	CZ         int    `json:"cz"`
	Algorithm  string `json:"algorithm"`
	Vertices   int    `json:"vertices"`
	Triangles  int    `json:"triangles"`
	Fallbacks  int    `json:"fallbacks"`
	Digest     string `json:"digest"`
	DurationUS int64  `json:"duration_us"`
	Immediate  bool   `json:"immediate"`
	Superseded bool   `json:"superseded"`
	RecordedAt string `json:"recorded_at"`
}

type snapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	VolumeID   string `json:"volume_id"`
	Frames     int    `json:"frames"`
	SX         int    `json:"sx"`
	SY         int    `json:"sy"`
	SZ         int    `json:"sz"`
	Algorithm  string `json:"algorithm"`
	RecordedAt string `json:"recorded_at"`
}

func newGenerationRow(frameIndex int, g frame.Generation) generationRow {
	return generationRow{
		Frame:      frameIndex,
		CX:         g.Key.CX,
		CY:         g.Key.CY,
		CZ:         g.Key.CZ,
		Algorithm:  g.Algorithm.String(),
		Vertices:   g.Vertices,
		Triangles:  g.Triangles,
		Fallbacks:  g.Fallbacks,
		Digest:     fmt.Sprintf("%016x", g.Digest),
		DurationUS: g.Duration.Microseconds(),
		Immediate:  g.Immediate,
		Superseded: g.Superseded,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func newSnapshotRow(path string, snap snapshot.SnapshotV1) snapshotRow {
	return snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		VolumeID:   snap.Header.VolumeID,
		Frames:     len(snap.Frames),
		SX:         snap.Header.Size[0],
		SY:         snap.Header.Size[1],
		SZ:         snap.Header.Size[2],
		Algorithm:  snap.Algorithm,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
