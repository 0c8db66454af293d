// Package proj implements the coordinate transforms the engine needs:
// spherical web mercator to and from WGS84.
package proj

import (
	"fmt"
	"math"
)

// SRID constants for the supported projections.
const (
	SRID4326 = 4326 // WGS84 (lon/lat)
	SRID3857 = 3857 // Web Mercator
)

// Web Mercator constants.
const (
	earthRadius = 6378137.0
	maxExtent   = 20037508.342789244
)

// Transformer converts coordinates between two supported SRIDs.
type Transformer struct {
	SourceSRID int
	TargetSRID int
}

// NewTransformer creates a transformer between two SRIDs.
func NewTransformer(sourceSRID, targetSRID int) (*Transformer, error) {
	for _, srid := range []int{sourceSRID, targetSRID} {
		if srid != SRID4326 && srid != SRID3857 {
			return nil, fmt.Errorf("unsupported SRID: %d (only 4326 and 3857 supported)", srid)
		}
	}
	return &Transformer{SourceSRID: sourceSRID, TargetSRID: targetSRID}, nil
}

// NeedsTransform reports whether the two SRIDs differ.
func (t *Transformer) NeedsTransform() bool {
	return t.SourceSRID != t.TargetSRID
}

// Transform converts one coordinate pair from source to target projection.
func (t *Transformer) Transform(x, y float64) (float64, float64) {
	switch {
	case !t.NeedsTransform():
		return x, y
	case t.SourceSRID == SRID4326:
		return LonLatToWebMercator(x, y)
	default:
		return WebMercatorToLonLat(x, y)
	}
}

// LonLatToWebMercator converts WGS84 (lon, lat) to mercator meters.
// Latitude is clamped near the poles where the projection diverges.
func LonLatToWebMercator(lon, lat float64) (x, y float64) {
	if lat > 85.06 {
		lat = 85.06
	} else if lat < -85.06 {
		lat = -85.06
	}
	x = lon * maxExtent / 180.0
	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius
	return x, y
}

// WebMercatorToLonLat converts mercator meters to WGS84 (lon, lat).
func WebMercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / maxExtent * 180.0
	lat = 2*math.Atan(math.Exp(y/earthRadius))*180.0/math.Pi - 90.0
	return lon, lat
}

// ParseSRID parses a projection string to an SRID. Accepts bare numbers,
// "EPSG:n", and the mapnik-style "+init=epsg:n" form.
func ParseSRID(s string) (int, error) {
	switch s {
	case "4326", "EPSG:4326", "epsg:4326", "+init=epsg:4326":
		return SRID4326, nil
	case "3857", "EPSG:3857", "epsg:3857", "+init=epsg:3857":
		return SRID3857, nil
	default:
		return 0, fmt.Errorf("unsupported projection: %s (supported: 4326, 3857)", s)
	}
}
