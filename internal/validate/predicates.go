// Package validate implements OGC simplicity and validity predicates over
// decoded tile geometries and produces per-feature reports with GeoJSON
// snippets for the failures.
package validate

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Failure messages per validity class.
const (
	msgTooFewPoints     = "geometry has too few points"
	msgRingNotClosed    = "ring is not closed"
	msgZeroAreaRing     = "ring has zero area"
	msgSelfIntersection = "geometry has self-intersections"
	msgHoleOutsideShell = "interior ring is not contained in exterior ring"
	msgRingsCross       = "rings cross"
	msgNonFinite        = "coordinate is not finite"
)

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// segmentsTouch reports whether segments (a1,a2) and (b1,b2) share any
// point, endpoints included.
func segmentsTouch(a1, a2, b1, b2 orb.Point) bool {
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

// adjacentFoldBack reports whether consecutive segments (p,q) and (q,r)
// overlap beyond their shared endpoint, i.e. the path spikes back on itself.
func adjacentFoldBack(p, q, r orb.Point) bool {
	if orient(p, q, r) != 0 {
		return false
	}
	return (r[0]-q[0])*(p[0]-q[0])+(r[1]-q[1])*(p[1]-q[1]) > 0
}

// pathSelfIntersects checks a vertex path for self-intersection. Closed
// paths (first point equals last) are allowed to touch at that shared
// endpoint only.
func pathSelfIntersects(ps []orb.Point, closed bool) bool {
	n := len(ps) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case j == i+1:
				if adjacentFoldBack(ps[i], ps[i+1], ps[j+1]) {
					return true
				}
			case closed && i == 0 && j == n-1:
				if adjacentFoldBack(ps[j], ps[j+1], ps[i+1]) {
					return true
				}
			default:
				if segmentsTouch(ps[i], ps[i+1], ps[j], ps[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

// pathsTouch reports whether any segment of a touches any segment of b.
// Shared line endpoints are permitted when endpointsOK is set.
func pathsTouch(a, b []orb.Point, endpointsOK bool) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if !segmentsTouch(a[i], a[i+1], b[j], b[j+1]) {
				continue
			}
			if endpointsOK && sharedEndpointOnly(a, b, i, j) {
				continue
			}
			return true
		}
	}
	return false
}

// sharedEndpointOnly reports whether segment i of a and segment j of b meet
// exactly at a point that is a boundary endpoint of both paths.
func sharedEndpointOnly(a, b []orb.Point, i, j int) bool {
	aEnds := [2]orb.Point{a[0], a[len(a)-1]}
	bEnds := [2]orb.Point{b[0], b[len(b)-1]}
	for _, ae := range aEnds {
		for _, be := range bEnds {
			if ae == be &&
				(a[i] == ae || a[i+1] == ae) &&
				(b[j] == be || b[j+1] == be) {
				return true
			}
		}
	}
	return false
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

func ringClosed(r orb.Ring) bool {
	return len(r) >= 2 && r[0] == r[len(r)-1]
}

// IsSimple tests the OGC simplicity predicate for the geometry.
func IsSimple(g orb.Geometry) bool {
	switch geo := g.(type) {
	case nil:
		return true
	case orb.Point:
		return true
	case orb.MultiPoint:
		seen := make(map[orb.Point]bool, len(geo))
		for _, p := range geo {
			if seen[p] {
				return false
			}
			seen[p] = true
		}
		return true
	case orb.LineString:
		if len(geo) < 2 {
			return true
		}
		closed := geo[0] == geo[len(geo)-1]
		return !pathSelfIntersects(geo, closed)
	case orb.MultiLineString:
		for _, line := range geo {
			if !IsSimple(line) {
				return false
			}
		}
		for i := 0; i < len(geo); i++ {
			for j := i + 1; j < len(geo); j++ {
				if pathsTouch(geo[i], geo[j], true) {
					return false
				}
			}
		}
		return true
	case orb.Ring:
		return IsSimple(orb.Polygon{geo})
	case orb.Polygon:
		for _, ring := range geo {
			if !ringClosed(ring) {
				return false
			}
			if pathSelfIntersects(ring, true) {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		for _, poly := range geo {
			if !IsSimple(poly) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsValid tests the OGC validity predicate. On failure the second return
// carries the failure class message.
func IsValid(g orb.Geometry) (bool, string) {
	switch geo := g.(type) {
	case nil:
		return true, ""
	case orb.Point:
		if !finitePoint(geo) {
			return false, msgNonFinite
		}
		return true, ""
	case orb.MultiPoint:
		for _, p := range geo {
			if !finitePoint(p) {
				return false, msgNonFinite
			}
		}
		return true, ""
	case orb.LineString:
		return validLine(geo)
	case orb.MultiLineString:
		for _, line := range geo {
			if ok, msg := validLine(line); !ok {
				return false, msg
			}
		}
		return true, ""
	case orb.Ring:
		return IsValid(orb.Polygon{geo})
	case orb.Polygon:
		return validPolygon(geo)
	case orb.MultiPolygon:
		for _, poly := range geo {
			if ok, msg := validPolygon(poly); !ok {
				return false, msg
			}
		}
		for i := 0; i < len(geo); i++ {
			for j := i + 1; j < len(geo); j++ {
				if len(geo[i]) == 0 || len(geo[j]) == 0 {
					continue
				}
				if pathsTouch(geo[i][0], geo[j][0], false) {
					return false, msgRingsCross
				}
			}
		}
		return true, ""
	default:
		return true, ""
	}
}

func validLine(line orb.LineString) (bool, string) {
	if len(line) < 2 {
		return false, msgTooFewPoints
	}
	for _, p := range line {
		if !finitePoint(p) {
			return false, msgNonFinite
		}
	}
	distinct := false
	for i := 1; i < len(line); i++ {
		if line[i] != line[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return false, msgTooFewPoints
	}
	closed := line[0] == line[len(line)-1]
	if pathSelfIntersects(line, closed) {
		return false, msgSelfIntersection
	}
	return true, ""
}

func validRing(ring orb.Ring) (bool, string) {
	if len(ring) < 4 {
		return false, msgTooFewPoints
	}
	for _, p := range ring {
		if !finitePoint(p) {
			return false, msgNonFinite
		}
	}
	if !ringClosed(ring) {
		return false, msgRingNotClosed
	}
	if planar.Area(ring) == 0 {
		return false, msgZeroAreaRing
	}
	if pathSelfIntersects(ring, true) {
		return false, msgSelfIntersection
	}
	return true, ""
}

func validPolygon(poly orb.Polygon) (bool, string) {
	if len(poly) == 0 {
		return false, msgTooFewPoints
	}
	for _, ring := range poly {
		if ok, msg := validRing(ring); !ok {
			return false, msg
		}
	}
	shell := poly[0]
	for _, hole := range poly[1:] {
		inside := false
		for _, p := range hole {
			if planar.RingContains(shell, p) {
				inside = true
				break
			}
		}
		if !inside {
			return false, msgHoleOutsideShell
		}
		if pathsTouch(shell, hole, false) {
			return false, msgRingsCross
		}
	}
	for i := 1; i < len(poly); i++ {
		for j := i + 1; j < len(poly); j++ {
			if pathsTouch(poly[i], poly[j], false) {
				return false, msgRingsCross
			}
		}
	}
	return true, ""
}
