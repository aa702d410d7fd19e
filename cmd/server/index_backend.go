package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxelmesh.ai/internal/config"
	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/persistence/indexdb"
	"voxelmesh.ai/internal/persistence/snapshot"
)

type runtimeIndex interface {
	RecordGeneration(frameIndex int, g frame.Generation)
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	UpsertConfig(cfg config.Config) error
	Close() error
}

// snapshotLocator is implemented by backends that can answer queries locally.
type snapshotLocator interface {
	LatestSnapshot(ctx context.Context) (indexdb.SnapshotRecord, bool, error)
}

func openRuntimeIndex(volumeDir, volumeID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(volumeDir, "index", "volume.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "ingest":
		endpoint := strings.TrimSpace(os.Getenv("VM_INDEX_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("VM_INDEX_BACKEND=ingest but VM_INDEX_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("VM_INDEX_INGEST_TOKEN")),
			VolumeID:      volumeID,
			BatchSize:     envInt("VM_INDEX_INGEST_BATCH_SIZE", 256),
			FlushInterval: time.Duration(envInt("VM_INDEX_INGEST_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VM_INDEX_BACKEND: %s", backend)
	}
}
