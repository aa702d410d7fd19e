package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelmesh.ai/internal/mesh"
)

type Config struct {
	VolumeSize [3]int `yaml:"volume_size"`
	ChunkSize  [3]int `yaml:"chunk_size"`
	Frames     int    `yaml:"frames"`

	CellSize    float32 `yaml:"cell_size"`
	Overlap     float32 `yaml:"overlap"`
	Algorithm   string  `yaml:"algorithm"`
	SelfShade   float32 `yaml:"self_shade"`
	ShadeSource string  `yaml:"shade_source"`

	Workers          int `yaml:"workers"`
	QueueCapacity    int `yaml:"queue_capacity"`
	TickRateHz       int `yaml:"tick_rate_hz"`
	MaxChunksPerTick int `yaml:"max_chunks_per_tick"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxAgeDays int `yaml:"max_age_days"`
	MaxBackups int `yaml:"max_backups"`
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("mesher.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("mesher.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		VolumeSize:         [3]int{64, 64, 64},
		ChunkSize:          [3]int{16, 16, 16},
		Frames:             1,
		CellSize:           1,
		Algorithm:          "greedy",
		SelfShade:          0.5,
		ShadeSource:        "color",
		QueueCapacity:      256,
		TickRateHz:         20,
		MaxChunksPerTick:   64,
		SnapshotEveryTicks: 6000,
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 14,
			MaxBackups: 5,
		},
	}
}

// Normalize lower-cases the enum fields and fills zero operational values.
func (c *Config) Normalize() {
	c.Algorithm = strings.ToLower(strings.TrimSpace(c.Algorithm))
	c.ShadeSource = strings.ToLower(strings.TrimSpace(c.ShadeSource))
	if c.Algorithm == "" {
		c.Algorithm = "greedy"
	}
	if c.ShadeSource == "" {
		c.ShadeSource = "color"
	}
	if c.Frames <= 0 {
		c.Frames = 1
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 256
	}
}

func (c Config) Validate() error {
	var errs []error
	for a, n := range c.VolumeSize {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("volume_size[%d] must be > 0, got %d", a, n))
		}
	}
	for a, n := range c.ChunkSize {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("chunk_size[%d] must be > 0, got %d", a, n))
		}
	}
	if c.CellSize <= 0 {
		errs = append(errs, fmt.Errorf("cell_size must be > 0, got %v", c.CellSize))
	}
	if c.SelfShade < 0 || c.SelfShade > 1 {
		errs = append(errs, fmt.Errorf("self_shade must be in [0,1], got %v", c.SelfShade))
	}
	if _, err := mesh.ParseAlgorithm(c.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if _, err := mesh.ParseShadeSource(c.ShadeSource); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.MaxChunksPerTick < 0 {
		errs = append(errs, fmt.Errorf("max_chunks_per_tick must be >= 0, got %d", c.MaxChunksPerTick))
	}
	if c.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks must be >= 0, got %d", c.SnapshotEveryTicks))
	}
	return errors.Join(errs...)
}

// MeshAlgorithm returns the parsed algorithm. It assumes Validate passed.
func (c Config) MeshAlgorithm() mesh.Algorithm {
	alg, _ := mesh.ParseAlgorithm(c.Algorithm)
	return alg
}

func (c Config) MeshParams() mesh.Params {
	src, _ := mesh.ParseShadeSource(c.ShadeSource)
	return mesh.Params{
		CellSize:  c.CellSize,
		Overlap:   c.Overlap,
		SelfShade: c.SelfShade,
		Source:    src,
	}
}
