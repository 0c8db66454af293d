// Package compose implements the tile compositing engine: per-feature
// reproject/clip/union/simplify transforms and the compositor that merges
// N source tiles into a destination tile.
package compose

import (
	"errors"
	"fmt"

	"github.com/tilecraft/vtcompose/internal/tile"
)

// ErrStructuralComposite reports a failure that aborts a whole composite
// call: unreadable source tile bytes or a layer merge contradiction.
// Per-feature failures are recovered locally and never surface here.
var ErrStructuralComposite = errors.New("compose: structural composite failure")

// FillType selects the polygon fill rule used to resolve ring roles.
type FillType int

const (
	FillEvenOdd FillType = iota
	FillNonZero
	FillPositive
	FillNegative
)

func (f FillType) String() string {
	switch f {
	case FillEvenOdd:
		return "even_odd"
	case FillNonZero:
		return "non_zero"
	case FillPositive:
		return "positive"
	case FillNegative:
		return "negative"
	default:
		return fmt.Sprintf("fill_type(%d)", int(f))
	}
}

// filled reports whether a region with the given winding count is inside
// the filled area under this rule.
func (f FillType) filled(winding int) bool {
	switch f {
	case FillEvenOdd:
		return winding%2 != 0
	case FillNonZero:
		return winding != 0
	case FillNegative:
		return winding < 0
	default:
		return winding > 0
	}
}

// ParseFillType parses a fill rule name.
func ParseFillType(s string) (FillType, error) {
	switch s {
	case "even_odd":
		return FillEvenOdd, nil
	case "non_zero":
		return FillNonZero, nil
	case "positive", "":
		return FillPositive, nil
	case "negative":
		return FillNegative, nil
	default:
		return 0, fmt.Errorf("%w: unknown fill type %q", tile.ErrInvalidOptions, s)
	}
}

// ThreadingMode hints whether per-layer work may run on parallel
// goroutines. The per-feature pipeline itself is always synchronous.
type ThreadingMode int

const (
	// ThreadingDeferred runs everything on the calling goroutine.
	ThreadingDeferred ThreadingMode = iota
	// ThreadingEager fans layer processing out over an errgroup.
	ThreadingEager
	// ThreadingAuto picks eager when more than one source contributes.
	ThreadingAuto
)

func (m ThreadingMode) String() string {
	switch m {
	case ThreadingDeferred:
		return "deferred"
	case ThreadingEager:
		return "eager"
	case ThreadingAuto:
		return "auto"
	default:
		return fmt.Sprintf("threading_mode(%d)", int(m))
	}
}

// ParseThreadingMode parses a threading mode name.
func ParseThreadingMode(s string) (ThreadingMode, error) {
	switch s {
	case "deferred", "":
		return ThreadingDeferred, nil
	case "eager", "async":
		return ThreadingEager, nil
	case "auto", "either":
		return ThreadingAuto, nil
	default:
		return 0, fmt.Errorf("%w: unknown threading mode %q", tile.ErrInvalidOptions, s)
	}
}

var knownImageScalings = map[string]bool{
	"near": true, "bilinear": true, "bicubic": true, "spline16": true,
	"spline36": true, "hanning": true, "hamming": true, "hermite": true,
	"kaiser": true, "quadric": true, "catrom": true, "gaussian": true,
	"bessel": true, "mitchell": true, "sinc": true, "lanczos": true,
	"blackman": true,
}

// Options is the immutable configuration record for one composite call.
// The zero value is not useful; start from DefaultOptions.
type Options struct {
	// ScaleFactor scales rendering resolution for embedded rasters. It
	// never alters vector geometry.
	ScaleFactor float64
	// ScaleDenominator overrides the zoom-derived denominator used for
	// layer visibility gating. Zero means derive from the destination zoom.
	ScaleDenominator float64
	// OffsetX and OffsetY shift source features in destination grid units.
	OffsetX float64
	OffsetY float64
	// AreaThreshold drops polygon rings whose absolute grid-unit area is
	// below it.
	AreaThreshold float64
	// StrictlySimple drops (or, with Reencode, attempts to repair)
	// features that fail the OGC simplicity predicate. A non-simple
	// feature with Reencode disabled is dropped, never passed through.
	StrictlySimple bool
	// MultiPolygonUnion merges overlapping sub-polygons of a single
	// feature into one multi-polygon.
	MultiPolygonUnion bool
	// FillType is the fill rule for ring-role resolution and repair.
	FillType FillType
	// Reencode forces geometry re-derivation even when a byte-copy
	// passthrough would apply.
	Reencode bool
	// MaxExtent overrides the destination clipping extent.
	MaxExtent *tile.Bounds
	// SimplifyDistance applies Douglas-Peucker at this grid-unit
	// tolerance. Zero disables simplification.
	SimplifyDistance float64
	// ProcessAllRings disables winding-order assumptions during polygon
	// decoding.
	ProcessAllRings bool
	// ImageFormat and ImageScaling apply to embedded raster layers.
	ImageFormat  string
	ImageScaling string
	// ThreadingMode hints at parallel layer processing.
	ThreadingMode ThreadingMode
	// LayerVisible optionally gates layers by name at the effective scale
	// denominator. Nil means every layer is visible.
	LayerVisible func(layer string, scaleDenominator float64) bool
}

// DefaultOptions returns the option defaults.
func DefaultOptions() Options {
	return Options{
		ScaleFactor:    1.0,
		AreaThreshold:  0.1,
		StrictlySimple: true,
		FillType:       FillPositive,
		ImageFormat:    "webp",
		ImageScaling:   "bilinear",
		ThreadingMode:  ThreadingDeferred,
	}
}

// Validate checks the options record. All violations wrap
// tile.ErrInvalidOptions.
func (o Options) Validate() error {
	switch {
	case o.ScaleFactor <= 0:
		return fmt.Errorf("%w: scale must be greater than zero", tile.ErrInvalidOptions)
	case o.ScaleDenominator < 0:
		return fmt.Errorf("%w: scale_denominator must be non-negative", tile.ErrInvalidOptions)
	case o.AreaThreshold < 0:
		return fmt.Errorf("%w: area_threshold can not be negative", tile.ErrInvalidOptions)
	case o.SimplifyDistance < 0:
		return fmt.Errorf("%w: simplify_distance can not be negative", tile.ErrInvalidOptions)
	}
	if o.FillType < FillEvenOdd || o.FillType > FillNegative {
		return fmt.Errorf("%w: unknown fill type %d", tile.ErrInvalidOptions, int(o.FillType))
	}
	if o.ThreadingMode < ThreadingDeferred || o.ThreadingMode > ThreadingAuto {
		return fmt.Errorf("%w: unknown threading mode %d", tile.ErrInvalidOptions, int(o.ThreadingMode))
	}
	if o.MaxExtent != nil && !o.MaxExtent.Valid() {
		return fmt.Errorf("%w: max_extent must be a valid [minx,miny,maxx,maxy] box", tile.ErrInvalidOptions)
	}
	if o.ImageScaling != "" && !knownImageScalings[o.ImageScaling] {
		return fmt.Errorf("%w: %q is not a valid scaling method", tile.ErrInvalidOptions, o.ImageScaling)
	}
	return nil
}
