// Package config loads declarative composite job descriptions from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tilecraft/vtcompose/internal/compose"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// Job describes one composite run: a destination tile, an ordered list of
// source tiles, and the composite options.
type Job struct {
	Destination Destination `yaml:"destination"`
	Sources     []Source    `yaml:"sources"`
	Options     OptionsSpec `yaml:"options"`
}

// Destination addresses the output tile.
type Destination struct {
	Z          uint32 `yaml:"z"`
	X          uint32 `yaml:"x"`
	Y          uint32 `yaml:"y"`
	TileSize   uint32 `yaml:"tile_size,omitempty"`
	BufferSize *int32 `yaml:"buffer_size,omitempty"`
	Output     string `yaml:"output"`
}

// Source addresses one input tile file.
type Source struct {
	Z    uint32 `yaml:"z"`
	X    uint32 `yaml:"x"`
	Y    uint32 `yaml:"y"`
	Path string `yaml:"path"`
}

// OptionsSpec mirrors compose.Options in YAML form. Pointer fields
// distinguish "unset, use the default" from explicit zero values.
type OptionsSpec struct {
	Scale             *float64  `yaml:"scale,omitempty"`
	ScaleDenominator  float64   `yaml:"scale_denominator,omitempty"`
	OffsetX           float64   `yaml:"offset_x,omitempty"`
	OffsetY           float64   `yaml:"offset_y,omitempty"`
	AreaThreshold     *float64  `yaml:"area_threshold,omitempty"`
	StrictlySimple    *bool     `yaml:"strictly_simple,omitempty"`
	MultiPolygonUnion bool      `yaml:"multi_polygon_union,omitempty"`
	FillType          string    `yaml:"fill_type,omitempty"`
	Reencode          bool      `yaml:"reencode,omitempty"`
	MaxExtent         []float64 `yaml:"max_extent,omitempty"`
	SimplifyDistance  float64   `yaml:"simplify_distance,omitempty"`
	ProcessAllRings   bool      `yaml:"process_all_rings,omitempty"`
	ImageFormat       string    `yaml:"image_format,omitempty"`
	ImageScaling      string    `yaml:"image_scaling,omitempty"`
	ThreadingMode     string    `yaml:"threading_mode,omitempty"`
}

// Load reads and parses a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *Job) validate() error {
	if j.Destination.Output == "" {
		return fmt.Errorf("job: destination output path required")
	}
	if len(j.Sources) == 0 {
		return fmt.Errorf("job: at least one source required")
	}
	for i, s := range j.Sources {
		if s.Path == "" {
			return fmt.Errorf("job: source %d: path required", i)
		}
	}
	return nil
}

// TileOptions builds the destination tile options.
func (j *Job) TileOptions() *tile.Options {
	opts := &tile.Options{TileSize: tile.DefaultTileSize, BufferSize: tile.DefaultBufferSize}
	if j.Destination.TileSize != 0 {
		opts.TileSize = j.Destination.TileSize
	}
	if j.Destination.BufferSize != nil {
		opts.BufferSize = *j.Destination.BufferSize
	}
	return opts
}

// ComposeOptions resolves the YAML options against the compositor defaults.
func (s OptionsSpec) ComposeOptions() (compose.Options, error) {
	opts := compose.DefaultOptions()
	if s.Scale != nil {
		opts.ScaleFactor = *s.Scale
	}
	opts.ScaleDenominator = s.ScaleDenominator
	opts.OffsetX = s.OffsetX
	opts.OffsetY = s.OffsetY
	if s.AreaThreshold != nil {
		opts.AreaThreshold = *s.AreaThreshold
	}
	if s.StrictlySimple != nil {
		opts.StrictlySimple = *s.StrictlySimple
	}
	opts.MultiPolygonUnion = s.MultiPolygonUnion
	opts.Reencode = s.Reencode
	opts.SimplifyDistance = s.SimplifyDistance
	opts.ProcessAllRings = s.ProcessAllRings
	if s.ImageFormat != "" {
		opts.ImageFormat = s.ImageFormat
	}
	if s.ImageScaling != "" {
		opts.ImageScaling = s.ImageScaling
	}

	fill, err := compose.ParseFillType(s.FillType)
	if err != nil {
		return opts, err
	}
	opts.FillType = fill

	mode, err := compose.ParseThreadingMode(s.ThreadingMode)
	if err != nil {
		return opts, err
	}
	opts.ThreadingMode = mode

	if len(s.MaxExtent) != 0 {
		if len(s.MaxExtent) != 4 {
			return opts, fmt.Errorf("%w: max_extent must be [minx,miny,maxx,maxy]", tile.ErrInvalidOptions)
		}
		opts.MaxExtent = &tile.Bounds{
			MinX: s.MaxExtent[0], MinY: s.MaxExtent[1],
			MaxX: s.MaxExtent[2], MaxY: s.MaxExtent[3],
		}
	}

	return opts, opts.Validate()
}
