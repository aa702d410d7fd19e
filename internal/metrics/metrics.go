// Package metrics exposes Prometheus collectors for chunk generation and the host loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voxelmesh.ai/internal/frame"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_generations_total",
		Help: "Completed chunk extractor runs",
	}, []string{"algorithm", "mode"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voxelmesh_generation_duration_seconds",
		Help:    "Duration of one chunk extractor run",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"algorithm"})

	trianglesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelmesh_triangles_generated_total",
		Help: "Triangles emitted by all extractor runs",
	})

	supersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelmesh_generations_superseded_total",
		Help: "Runs whose result was replaced by a coalesced request",
	})

	colorFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelmesh_color_fallbacks_total",
		Help: "Marching cubes vertices that received the fallback colour",
	})

	dirtyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelmesh_dirty_queue_depth",
		Help: "Chunks waiting in the current frame's dirty queue",
	})

	inFlightJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelmesh_scheduler_in_flight",
		Help: "Background generations queued or running",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxelmesh_tick_duration_seconds",
		Help:    "Duration of one host loop tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	viewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelmesh_viewers",
		Help: "Connected viewer sessions",
	})

	meshesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelmesh_chunk_meshes_sent_total",
		Help: "Chunk meshes handed to viewers",
	})

	mirrorQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxelmesh_mirror_queue_depth",
		Help: "Files waiting for upload to the object store",
	})

	mirrorDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelmesh_mirror_dropped_total",
		Help: "Files not mirrored because the upload queue stayed full",
	})

	mirrorUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxelmesh_mirror_uploads_total",
		Help: "Object store uploads after retries",
	}, []string{"result"})
)

// ObserveGeneration records one extractor run. Safe to call from worker goroutines.
func ObserveGeneration(g frame.Generation) {
	mode := "background"
	if g.Immediate {
		mode = "immediate"
	}
	alg := g.Algorithm.String()
	generationsTotal.WithLabelValues(alg, mode).Inc()
	generationDuration.WithLabelValues(alg).Observe(g.Duration.Seconds())
	trianglesTotal.Add(float64(g.Triangles))
	colorFallbacksTotal.Add(float64(g.Fallbacks))
	if g.Superseded {
		supersededTotal.Inc()
	}
}

// ObserveTick records the duration and queue state of one host loop tick.
func ObserveTick(d time.Duration, dirty, inFlight int) {
	tickDuration.Observe(d.Seconds())
	dirtyQueueDepth.Set(float64(dirty))
	inFlightJobs.Set(float64(inFlight))
}

func ViewerConnected()    { viewers.Inc() }
func ViewerDisconnected() { viewers.Dec() }

func MeshesSent(n int) { meshesSentTotal.Add(float64(n)) }

func MirrorQueued(depth int) { mirrorQueueDepth.Set(float64(depth)) }
func MirrorDropped()         { mirrorDroppedTotal.Inc() }

func MirrorUploaded(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	mirrorUploadsTotal.WithLabelValues(result).Inc()
}
