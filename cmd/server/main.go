package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelmesh.ai/internal/config"
	"voxelmesh.ai/internal/engine"
	"voxelmesh.ai/internal/frame"
	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		volumeID   = flag.String("volume", "volume_1", "volume id")
		configPath = flag.String("config", "./configs/mesher.yaml", "path to mesher.yaml (missing file uses defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the generation/snapshot index")
		logFile    = flag.String("log_file", "", "write logs to this rotating file instead of stdout")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil && !os.IsNotExist(cfgErr) {
		log.Fatalf("load config: %v", cfgErr)
	}

	var out io.Writer = os.Stdout
	if strings.TrimSpace(*logFile) != "" {
		lj := &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxAge:     cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
		}
		defer lj.Close()
		out = lj
	}
	logger := log.New(out, "[server] ", log.LstdFlags|log.Lmicroseconds)
	if cfgErr != nil {
		logger.Printf("config not found (%s); using defaults", *configPath)
	}

	volumeDir := filepath.Join(*dataDir, "volumes", *volumeID)
	_ = os.MkdirAll(volumeDir, 0o755)

	idx, err := openRuntimeIndex(volumeDir, *volumeID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfig(cfg); err != nil {
			logger.Printf("index backend: upsert config: %v", err)
		}
	}

	mirror, err := buildMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mirror.Close()

	sched := frame.NewScheduler(cfg.Workers, cfg.QueueCapacity)
	ecfg := engine.Config{
		VolumeID:           *volumeID,
		TickRateHz:         cfg.TickRateHz,
		MaxChunksPerTick:   cfg.MaxChunksPerTick,
		SnapshotEveryTicks: cfg.SnapshotEveryTicks,
		Size:               cfg.VolumeSize,
		ChunkSize:          cfg.ChunkSize,
		Frames:             cfg.Frames,
		Grid: frame.Options{
			Algorithm: cfg.MeshAlgorithm(),
			Params:    cfg.MeshParams(),
			Scheduler: sched,
			Logger:    logger,
		},
	}

	// A nil runtimeIndex must reach the engine as a nil engine.Index.
	var eidx engine.Index
	if idx != nil {
		eidx = idx
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = resumePath(idx, volumeDir, logger)
	}

	var e *engine.Engine
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.VolumeID != "" && snap.Header.VolumeID != *volumeID {
			logger.Fatalf("snapshot volume id mismatch: flag=%s snap=%s", *volumeID, snap.Header.VolumeID)
		}
		e, err = engine.Restore(ecfg, snap, eidx, logger)
		if err != nil {
			logger.Fatalf("restore: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d frames=%d", filepath.Base(snapshotToLoad), e.CurrentTick(), snap.Header.Frames)
	} else {
		e = engine.New(ecfg, eidx, logger)
		logger.Printf("new volume=%s size=%v chunk=%v frames=%d algorithm=%s", *volumeID, cfg.VolumeSize, cfg.ChunkSize, cfg.Frames, cfg.Algorithm)
	}

	editLog := persistlog.NewEditLogger(volumeDir, persistlog.WriterOptions{OnClose: mirror.Enqueue})
	defer editLog.Close()
	e.SetEditLogger(editLog)

	ctx, cancel := signalContext()
	defer cancel()

	snapDir := filepath.Join(volumeDir, "snapshots")
	writeSnapshot := func(snap snapshot.SnapshotV1) {
		path := snapshot.Path(snapDir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		mirror.Enqueue(path)
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	e.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(snap)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	if envBool("VM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(e, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-runDone
	<-writerDone
	sched.Close()
	final := e.Snapshot()
	writeSnapshot(final)
	logger.Printf("final snapshot tick=%d", final.Header.Tick)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// resumePath asks the index for the newest snapshot and falls back to scanning the
// snapshot directory when the index has none or the file is gone.
func resumePath(idx runtimeIndex, volumeDir string, logger *log.Logger) string {
	if loc, ok := idx.(snapshotLocator); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, found, err := loc.LatestSnapshot(ctx)
		cancel()
		switch {
		case err != nil:
			logger.Printf("index backend: latest snapshot: %v", err)
		case found:
			if _, err := os.Stat(rec.Path); err == nil {
				return rec.Path
			}
		}
	}
	return latestSnapshot(volumeDir)
}

func latestSnapshot(volumeDir string) string {
	dir := filepath.Join(volumeDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
