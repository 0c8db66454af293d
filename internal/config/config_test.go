package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tilecraft/vtcompose/internal/compose"
	"github.com/tilecraft/vtcompose/internal/tile"
)

func writeJob(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing job file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeJob(t, `
destination:
  z: 0
  x: 0
  y: 0
  buffer_size: 64
  output: out.mvt
sources:
  - {z: 1, x: 0, y: 0, path: west.mvt}
  - {z: 1, x: 1, y: 0, path: east.mvt}
options:
  strictly_simple: false
  area_threshold: 0
  fill_type: even_odd
  threading_mode: eager
  simplify_distance: 4
  max_extent: [-100, -100, 100, 100]
`)
	job, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if job.Destination.Output != "out.mvt" {
		t.Errorf("Output = %q, want out.mvt", job.Destination.Output)
	}
	if len(job.Sources) != 2 {
		t.Fatalf("Sources = %d, want 2", len(job.Sources))
	}
	if s := job.Sources[1]; s.Z != 1 || s.X != 1 || s.Y != 0 || s.Path != "east.mvt" {
		t.Errorf("second source = %+v", s)
	}

	topts := job.TileOptions()
	if topts.TileSize != tile.DefaultTileSize {
		t.Errorf("TileSize = %d, want default %d", topts.TileSize, tile.DefaultTileSize)
	}
	if topts.BufferSize != 64 {
		t.Errorf("BufferSize = %d, want 64", topts.BufferSize)
	}

	copts, err := job.Options.ComposeOptions()
	if err != nil {
		t.Fatalf("ComposeOptions: %v", err)
	}
	if copts.StrictlySimple {
		t.Errorf("StrictlySimple not overridden to false")
	}
	if copts.AreaThreshold != 0 {
		t.Errorf("AreaThreshold = %v, want explicit 0", copts.AreaThreshold)
	}
	if copts.FillType != compose.FillEvenOdd {
		t.Errorf("FillType = %v, want even_odd", copts.FillType)
	}
	if copts.ThreadingMode != compose.ThreadingEager {
		t.Errorf("ThreadingMode = %v, want eager", copts.ThreadingMode)
	}
	if copts.SimplifyDistance != 4 {
		t.Errorf("SimplifyDistance = %v, want 4", copts.SimplifyDistance)
	}
	if copts.MaxExtent == nil {
		t.Fatalf("MaxExtent not set")
	}
	want := tile.Bounds{MinX: -100, MinY: -100, MaxX: 100, MaxY: 100}
	if *copts.MaxExtent != want {
		t.Errorf("MaxExtent = %+v, want %+v", *copts.MaxExtent, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeJob(t, `
destination:
  z: 2
  x: 1
  y: 1
  output: out.mvt
sources:
  - {z: 2, x: 1, y: 1, path: in.mvt}
`)
	job, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	topts := job.TileOptions()
	if topts.TileSize != tile.DefaultTileSize || topts.BufferSize != tile.DefaultBufferSize {
		t.Errorf("tile options = %+v, want defaults", topts)
	}

	copts, err := job.Options.ComposeOptions()
	if err != nil {
		t.Fatalf("ComposeOptions: %v", err)
	}
	def := compose.DefaultOptions()
	if copts.ScaleFactor != def.ScaleFactor {
		t.Errorf("ScaleFactor = %v, want default %v", copts.ScaleFactor, def.ScaleFactor)
	}
	if copts.AreaThreshold != def.AreaThreshold {
		t.Errorf("AreaThreshold = %v, want default %v", copts.AreaThreshold, def.AreaThreshold)
	}
	if !copts.StrictlySimple {
		t.Errorf("StrictlySimple must default on")
	}
	if copts.FillType != compose.FillPositive {
		t.Errorf("FillType = %v, want positive", copts.FillType)
	}
	if copts.MaxExtent != nil {
		t.Errorf("MaxExtent = %+v, want nil", copts.MaxExtent)
	}
}

func TestLoadRejectsBadJobs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing output",
			content: `
destination: {z: 0, x: 0, y: 0}
sources:
  - {z: 0, x: 0, y: 0, path: in.mvt}
`,
		},
		{
			name: "no sources",
			content: `
destination: {z: 0, x: 0, y: 0, output: out.mvt}
sources: []
`,
		},
		{
			name: "source without path",
			content: `
destination: {z: 0, x: 0, y: 0, output: out.mvt}
sources:
  - {z: 0, x: 0, y: 0}
`,
		},
		{
			name:    "not yaml",
			content: "{destination: [",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeJob(t, tt.content)); err == nil {
				t.Errorf("Load accepted a bad job file")
			}
		})
	}
}

func TestComposeOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		spec OptionsSpec
	}{
		{"bad fill type", OptionsSpec{FillType: "bogus"}},
		{"bad threading mode", OptionsSpec{ThreadingMode: "bogus"}},
		{"short max extent", OptionsSpec{MaxExtent: []float64{0, 0, 10}}},
		{"inverted max extent", OptionsSpec{MaxExtent: []float64{10, 10, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.ComposeOptions()
			if !errors.Is(err, tile.ErrInvalidOptions) {
				t.Errorf("ComposeOptions error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}
