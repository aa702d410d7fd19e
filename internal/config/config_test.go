package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelmesh.ai/internal/mesh"
)

func TestLoad_MesherYAML(t *testing.T) {
	cfg, err := Load("../../configs/mesher.yaml")
	if err != nil {
		t.Fatalf("load mesher.yaml: %v", err)
	}
	if cfg.VolumeSize != [3]int{64, 32, 64} || cfg.ChunkSize != [3]int{16, 16, 16} {
		t.Fatalf("sizes: got %v %v", cfg.VolumeSize, cfg.ChunkSize)
	}
	if cfg.MeshAlgorithm() != mesh.Greedy {
		t.Fatalf("algorithm: got %v want greedy", cfg.MeshAlgorithm())
	}
	p := cfg.MeshParams()
	if p.CellSize != 1 || p.SelfShade != 0.5 || p.Source != mesh.ShadeColor {
		t.Fatalf("params: got %+v", p)
	}
	if cfg.Log.MaxSizeMB != 100 {
		t.Fatalf("log max size: got %d", cfg.Log.MaxSizeMB)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesher.yaml")
	if err := os.WriteFile(path, []byte("algorithm: MARCHING\nshade_source: Value\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MeshAlgorithm() != mesh.MarchingCubes || cfg.MeshParams().Source != mesh.ShadeValue {
		t.Fatalf("enums not normalized: %q %q", cfg.Algorithm, cfg.ShadeSource)
	}
	if cfg.ChunkSize != Defaults().ChunkSize {
		t.Fatalf("chunk size lost its default: %v", cfg.ChunkSize)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"volume_size":  func(c *Config) { c.VolumeSize[1] = 0 },
		"chunk_size":   func(c *Config) { c.ChunkSize[2] = -4 },
		"cell_size":    func(c *Config) { c.CellSize = 0 },
		"self_shade":   func(c *Config) { c.SelfShade = 1.5 },
		"algorithm":    func(c *Config) { c.Algorithm = "dual" },
		"shade source": func(c *Config) { c.ShadeSource = "normal" },
		"workers":      func(c *Config) { c.Workers = -1 },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
		if !strings.Contains(err.Error(), strings.Fields(name)[0]) {
			t.Fatalf("%s: error does not name the field: %v", name, err)
		}
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesher.yaml")
	if err := os.WriteFile(path, []byte("volume_size: [1, 2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a two-element volume_size")
	}
}
