package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelmesh.ai/internal/engine"
	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/persistence/indexdb"
	"voxelmesh.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "history":
			historyCmd(os.Args[2:])
			return
		case "latest":
			latestCmd(os.Args[2:])
			return
		case "edits":
			editsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "volumes"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func openIndex(dataDir, volumeID string) *indexdb.SQLiteIndex {
	if strings.TrimSpace(volumeID) == "" {
		fmt.Fprintln(os.Stderr, "missing -volume")
		os.Exit(2)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "volumes", volumeID, "index", "volume.sqlite"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	return idx
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	volumeID := fs.String("volume", "", "volume id")
	frameIdx := fs.Int("frame", 0, "frame index")
	chunk := fs.String("chunk", "0,0,0", "chunk coordinates cx,cy,cz")
	_ = fs.Parse(args)

	c, err := parseVec3(*chunk)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -chunk:", err)
		os.Exit(2)
	}
	idx := openIndex(*dataDir, *volumeID)
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	recs, err := idx.ChunkHistory(ctx, *frameIdx, frame.ChunkKey{CX: c[0], CY: c[1], CZ: c[2]})
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printJSON(recs)
}

func latestCmd(args []string) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	volumeID := fs.String("volume", "", "volume id")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir, *volumeID)
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec, ok, err := idx.LatestSnapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("no snapshots indexed")
		return
	}
	h, err := snapshot.ReadHeader(rec.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read header:", err)
		os.Exit(1)
	}
	printJSON(struct {
		Record indexdb.SnapshotRecord `json:"record"`
		Header snapshot.Header        `json:"header"`
	}{rec, h})
}

func editsCmd(args []string) {
	fs := flag.NewFlagSet("edits", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	volumeID := fs.String("volume", "", "volume id")
	sinceTick := fs.Uint64("since_tick", 0, "first tick to print (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick to print (inclusive, 0 = no limit)")
	rejected := fs.Bool("rejected", false, "only print rejected requests")
	_ = fs.Parse(args)

	if strings.TrimSpace(*volumeID) == "" {
		fmt.Fprintln(os.Stderr, "missing -volume")
		os.Exit(2)
	}
	entries, err := readEdits(filepath.Join(*dataDir, "volumes", *volumeID, "edits"), *sinceTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read edits:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if *rejected && e.Accepted {
			continue
		}
		_ = enc.Encode(e)
	}
}

// readEdits decodes every edits-*.jsonl.zst file in dir in name order and keeps the
// entries whose tick lies in [since, to]. to == 0 means no upper bound.
func readEdits(dir string, since, to uint64) ([]engine.EditLogEntry, error) {
	names, err := filepath.Glob(filepath.Join(dir, "edits-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []engine.EditLogEntry
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		recs, err := decodeEdits(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		for _, r := range recs {
			if r.Tick < since || (to != 0 && r.Tick > to) {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func decodeEdits(r io.Reader) ([]engine.EditLogEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []engine.EditLogEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e engine.EditLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func parseVec3(s string) ([3]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, err
		}
		v[i] = n
	}
	return v, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
