package compose

import (
	"math"
	"sort"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/tilecraft/vtcompose/internal/validate"
)

// pipeline applies the fixed per-feature transform order: clip to the
// destination buffered extent, optional multi-polygon union, area-threshold
// ring filtering, Douglas-Peucker simplification, then simplicity
// enforcement. Geometries arrive already reprojected into destination grid
// coordinates. A nil result means the feature is dropped.
type pipeline struct {
	opts      Options
	clipBound orb.Bound
}

func (p *pipeline) run(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}

	g = clip.Geometry(p.clipBound, g)
	if g == nil {
		return nil
	}

	if p.opts.MultiPolygonUnion {
		if mp, ok := g.(orb.MultiPolygon); ok && len(mp) > 1 {
			if merged, err := unionMultiPolygon(mp, p.opts.FillType); err == nil && merged != nil {
				g = merged
			}
		}
	}

	if p.opts.AreaThreshold > 0 {
		g = filterRingsByArea(g, p.opts.AreaThreshold)
		if g == nil {
			return nil
		}
	}

	if p.opts.SimplifyDistance > 0 {
		g = simplify.DouglasPeucker(p.opts.SimplifyDistance).Simplify(g)
		if g == nil {
			return nil
		}
	}

	if p.opts.StrictlySimple && !validate.IsSimple(g) {
		if !p.opts.Reencode {
			// Non-simple geometry with re-encoding disabled is dropped
			// rather than passed through.
			return nil
		}
		g = repairRings(g, p.opts.FillType)
		if g == nil || !validate.IsSimple(g) {
			return nil
		}
	}

	return g
}

// unionMultiPolygon dissolves the sub-polygons of one feature under the
// configured fill rule. Winding-count rules merge overlaps into one region;
// even-odd leaves regions covered an even number of times unfilled, which is
// the symmetric difference of the sub-polygons.
func unionMultiPolygon(mp orb.MultiPolygon, fill FillType) (orb.Geometry, error) {
	geoms := make([]polygol.Geom, 0, len(mp))
	for _, poly := range mp {
		rings := make([][][]float64, 0, len(poly))
		for _, ring := range poly {
			pts := make([][]float64, 0, len(ring))
			for _, p := range ring {
				pts = append(pts, []float64{p[0], p[1]})
			}
			rings = append(rings, pts)
		}
		geoms = append(geoms, polygol.Geom{rings})
	}

	boolOp := polygol.Union
	if fill == FillEvenOdd {
		boolOp = polygol.XOR
	}
	merged, err := boolOp(geoms[0], geoms[1:]...)
	if err != nil {
		return nil, err
	}

	out := make(orb.MultiPolygon, 0, len(merged))
	for _, poly := range merged {
		op := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			or := make(orb.Ring, 0, len(ring))
			for _, p := range ring {
				if len(p) < 2 {
					continue
				}
				or = append(or, orb.Point{p[0], p[1]})
			}
			if len(or) >= 2 && or[0] != or[len(or)-1] {
				or = append(or, or[0])
			}
			op = append(op, or)
		}
		if len(op) > 0 {
			out = append(out, op)
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

// filterRingsByArea drops polygon rings whose absolute area falls below the
// threshold. Dropping an exterior drops the whole polygon. Non-polygon
// geometries pass through untouched.
func filterRingsByArea(g orb.Geometry, threshold float64) orb.Geometry {
	switch geo := g.(type) {
	case orb.Polygon:
		if filtered := filterPolygon(geo, threshold); filtered != nil {
			return filtered
		}
		return nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(geo))
		for _, poly := range geo {
			if filtered := filterPolygon(poly, threshold); filtered != nil {
				out = append(out, filtered)
			}
		}
		switch len(out) {
		case 0:
			return nil
		case 1:
			return out[0]
		default:
			return out
		}
	default:
		return g
	}
}

func filterPolygon(poly orb.Polygon, threshold float64) orb.Polygon {
	var out orb.Polygon
	for i, ring := range poly {
		if math.Abs(planar.Area(ring)) < threshold {
			if i == 0 {
				return nil
			}
			continue
		}
		out = append(out, ring)
	}
	return out
}

// repairRings rebuilds polygon ring roles under the fill rule. Each ring
// carries the winding sign of its original orientation; the winding count
// just inside and just outside a ring decides whether it bounds filled
// area. A ring whose inside is filled and outside is not becomes an
// exterior, the reverse becomes a hole of its innermost containing
// exterior, and a ring with the same fill state on both sides is
// redundant and dropped. Non-polygon geometries are returned unchanged.
func repairRings(g orb.Geometry, fill FillType) orb.Geometry {
	var rings []orb.Ring
	switch geo := g.(type) {
	case orb.Polygon:
		rings = append(rings, geo...)
	case orb.MultiPolygon:
		for _, poly := range geo {
			rings = append(rings, poly...)
		}
	default:
		return g
	}

	type ringInfo struct {
		ring     orb.Ring
		area     float64
		sign     int
		inside   orb.Point
		wOutside int
		exterior bool
		polyIdx  int
	}
	infos := make([]*ringInfo, 0, len(rings))
	for _, r := range rings {
		area := planar.Area(r)
		if area == 0 {
			continue
		}
		sign := 1
		if area < 0 {
			sign = -1
		}
		centroid, _ := planar.CentroidArea(orb.Polygon{r})
		infos = append(infos, &ringInfo{ring: r, area: math.Abs(area), sign: sign, inside: centroid})
	}
	if len(infos) == 0 {
		return nil
	}

	for i, ri := range infos {
		for j, rj := range infos {
			if i == j {
				continue
			}
			if rj.area > ri.area && planar.RingContains(rj.ring, ri.inside) {
				ri.wOutside += rj.sign
			}
		}
	}

	// Larger rings first so exteriors exist before their holes arrive.
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].area > infos[j].area })

	var out orb.MultiPolygon
	for _, ri := range infos {
		filledIn := fill.filled(ri.wOutside + ri.sign)
		filledOut := fill.filled(ri.wOutside)
		switch {
		case filledIn && !filledOut:
			ri.exterior = true
			ri.polyIdx = len(out)
			out = append(out, orb.Polygon{ri.ring})
		case !filledIn && filledOut:
			// Attach the hole to the smallest exterior containing it.
			best := -1
			bestArea := math.Inf(1)
			for _, rj := range infos {
				if !rj.exterior || rj.area <= ri.area {
					continue
				}
				if planar.RingContains(rj.ring, ri.inside) && rj.area < bestArea {
					best = rj.polyIdx
					bestArea = rj.area
				}
			}
			if best >= 0 {
				out[best] = append(out[best], ri.ring)
			}
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}
