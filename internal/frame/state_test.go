package frame

import (
	"testing"

	"voxelmesh.ai/internal/mesh"
)

func TestChunkStateLifecycle(t *testing.T) {
	st := newChunkState(ChunkKey{})
	if st.Status() != Idle {
		t.Fatalf("initial status: got %v", st.Status())
	}
	if _, ok := st.Ready(); ok {
		t.Fatalf("idle chunk reported ready")
	}
	if !st.begin(job{}) {
		t.Fatalf("begin from idle should run")
	}
	if st.Status() != Generating {
		t.Fatalf("status: got %v want generating", st.Status())
	}
	buf := &mesh.Buffers{Indices: []uint32{0, 1, 2}}
	if next := st.finish(buf); next != nil {
		t.Fatalf("unexpected pending job")
	}
	got1, ok1 := st.Ready()
	got2, ok2 := st.Ready()
	if !ok1 || !ok2 || got1 != buf || got2 != buf {
		t.Fatalf("ready checks are not idempotent")
	}
	if !st.Acknowledge() || st.Status() != Idle {
		t.Fatalf("acknowledge should return to idle")
	}
	if st.Acknowledge() {
		t.Fatalf("second acknowledge should fail")
	}
}

func TestChunkStateCoalescesRequests(t *testing.T) {
	st := newChunkState(ChunkKey{})
	st.begin(job{window: mesh.Window{Size: [3]int{1, 1, 1}}})

	if st.begin(job{window: mesh.Window{Size: [3]int{2, 2, 2}}}) {
		t.Fatalf("request while generating must not run")
	}
	if st.begin(job{window: mesh.Window{Size: [3]int{3, 3, 3}}, immediate: true}) {
		t.Fatalf("immediate request while generating must not run")
	}
	if !st.HasPending() {
		t.Fatalf("pending request not recorded")
	}

	next := st.finish(&mesh.Buffers{})
	if next == nil || next.window.Size[0] != 3 || !next.immediate {
		t.Fatalf("pending job: got %+v, want the last request", next)
	}
	if st.Status() != Generating || st.HasPending() {
		t.Fatalf("after handing off pending: status %v pending %v", st.Status(), st.HasPending())
	}
	if _, ok := st.Ready(); ok {
		t.Fatalf("superseded result must not be ready")
	}

	final := &mesh.Buffers{}
	if st.finish(final) != nil {
		t.Fatalf("no pending job expected")
	}
	if got, ok := st.Ready(); !ok || got != final {
		t.Fatalf("final result not ready")
	}
	if st.Runs() != 2 {
		t.Fatalf("runs: got %d want 2", st.Runs())
	}
}

func TestChunkStateReadySupersededByNewRequest(t *testing.T) {
	st := newChunkState(ChunkKey{})
	st.begin(job{})
	st.finish(&mesh.Buffers{})
	if !st.begin(job{}) {
		t.Fatalf("request on an unconsumed ready chunk should run")
	}
	if _, ok := st.Ready(); ok {
		t.Fatalf("old buffers still offered")
	}
}
