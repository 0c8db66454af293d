// Package tile provides the tile value owned by the compositing engine:
// an addressed, buffered byte container for encoded vector tile data, plus
// the mercator coordinate math derived from its address.
package tile

import "math"

// Web Mercator constants (spherical, EPSG:3857).
const (
	// EarthRadius is the semi-major axis of the WGS84 ellipsoid in meters.
	EarthRadius = 6378137.0
	// MaxMercator is the half-width of the projected world in meters.
	MaxMercator = 20037508.342789244
)

// Bounds is an axis-aligned box in projected mercator coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal span of the box.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical span of the box.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Valid reports whether the box has positive extent on both axes.
func (b Bounds) Valid() bool { return b.MaxX > b.MinX && b.MaxY > b.MinY }

// Contains reports whether other lies entirely inside b.
func (b Bounds) Contains(other Bounds) bool {
	return other.MinX >= b.MinX && other.MaxX <= b.MaxX &&
		other.MinY >= b.MinY && other.MaxY <= b.MaxY
}

// Intersects reports whether the two boxes share any area.
func (b Bounds) Intersects(other Bounds) bool {
	return b.MinX < other.MaxX && other.MinX < b.MaxX &&
		b.MinY < other.MaxY && other.MinY < b.MaxY
}

// TileBounds returns the mercator box of a tile address. The grid origin is
// the top-left of the projected world; y grows southward.
func TileBounds(z, x, y uint32) Bounds {
	cell := 2 * MaxMercator * math.Exp2(-float64(z))
	minX := -MaxMercator + float64(x)*cell
	maxY := MaxMercator - float64(y)*cell
	return Bounds{
		MinX: minX,
		MinY: maxY - cell,
		MaxX: minX + cell,
		MaxY: maxY,
	}
}

// Buffered expands the box symmetrically by bufferSize tile-grid units,
// scaled into projected units through the box's own width over tileSize.
// A negative buffer shrinks the box.
func (b Bounds) Buffered(bufferSize int32, tileSize uint32) Bounds {
	pad := float64(bufferSize) * b.Width() / float64(tileSize)
	return Bounds{
		MinX: b.MinX - pad,
		MinY: b.MinY - pad,
		MaxX: b.MaxX + pad,
		MaxY: b.MaxY + pad,
	}
}
