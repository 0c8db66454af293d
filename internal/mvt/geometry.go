package mvt

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Affine maps integer tile-grid coordinates into a caller-chosen output
// space: out = translate + scale*in. The identity affine yields raw grid
// coordinates.
type Affine struct {
	ScaleX, ScaleY         float64
	TranslateX, TranslateY float64
}

// Identity returns the affine that leaves grid coordinates unchanged.
func Identity() Affine {
	return Affine{ScaleX: 1, ScaleY: 1}
}

// Apply transforms a single grid coordinate pair.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a.TranslateX + a.ScaleX*x, a.TranslateY + a.ScaleY*y
}

// IsIdentity reports whether the affine is a no-op.
func (a Affine) IsIdentity() bool {
	return a.ScaleX == 1 && a.ScaleY == 1 && a.TranslateX == 0 && a.TranslateY == 0
}

func zigzagDecode(v uint32) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func zigzagEncode(v int64) uint32 {
	return uint32((v << 1) ^ (v >> 63))
}

// DecodeGeometry decodes an MVT command stream into an orb geometry,
// applying the affine to every vertex. A nil geometry with nil error means
// the stream describes an empty geometry. Version 1 layers are decoded with
// strict exterior-then-holes ring alternation; processAllRings keeps
// zero-area rings and promotes orphan holes to standalone polygons instead
// of dropping them.
func DecodeGeometry(cmds []uint32, typ GeomType, version uint32, processAllRings bool, a Affine) (orb.Geometry, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	d := &geomDecoder{cmds: cmds, affine: a}
	switch typ {
	case GeomTypePoint:
		return d.decodePoints()
	case GeomTypeLineString:
		return d.decodeLines()
	case GeomTypePolygon:
		return d.decodePolygons(version, processAllRings)
	default:
		return nil, fmt.Errorf("%w: feature type %d", ErrMalformedGeometry, typ)
	}
}

type geomDecoder struct {
	cmds   []uint32
	pos    int
	curX   int64
	curY   int64
	affine Affine
}

func (d *geomDecoder) done() bool {
	return d.pos >= len(d.cmds)
}

func (d *geomDecoder) command() (id, count uint32, err error) {
	if d.done() {
		return 0, 0, fmt.Errorf("%w: truncated command", ErrMalformedGeometry)
	}
	v := d.cmds[d.pos]
	d.pos++
	id = v & 0x7
	count = v >> 3
	if id != cmdMoveTo && id != cmdLineTo && id != cmdClosePath {
		return 0, 0, fmt.Errorf("%w: unknown command %d", ErrMalformedGeometry, id)
	}
	return id, count, nil
}

// vertex consumes one delta pair, advances the cursor and returns the
// transformed point.
func (d *geomDecoder) vertex() (orb.Point, error) {
	if d.pos+1 >= len(d.cmds) {
		return orb.Point{}, fmt.Errorf("%w: truncated parameters", ErrMalformedGeometry)
	}
	d.curX += zigzagDecode(d.cmds[d.pos])
	d.curY += zigzagDecode(d.cmds[d.pos+1])
	d.pos += 2
	x, y := d.affine.Apply(float64(d.curX), float64(d.curY))
	return orb.Point{x, y}, nil
}

func (d *geomDecoder) decodePoints() (orb.Geometry, error) {
	var pts orb.MultiPoint
	for !d.done() {
		id, count, err := d.command()
		if err != nil {
			return nil, err
		}
		if id != cmdMoveTo || count == 0 {
			return nil, fmt.Errorf("%w: point geometry requires MoveTo", ErrMalformedGeometry)
		}
		for i := uint32(0); i < count; i++ {
			p, err := d.vertex()
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
	}
	switch len(pts) {
	case 0:
		return nil, nil
	case 1:
		return pts[0], nil
	default:
		return pts, nil
	}
}

func (d *geomDecoder) decodeLines() (orb.Geometry, error) {
	var lines orb.MultiLineString
	for !d.done() {
		id, count, err := d.command()
		if err != nil {
			return nil, err
		}
		if id != cmdMoveTo || count != 1 {
			return nil, fmt.Errorf("%w: linestring must begin with MoveTo(1)", ErrMalformedGeometry)
		}
		start, err := d.vertex()
		if err != nil {
			return nil, err
		}
		id, count, err = d.command()
		if err != nil {
			return nil, err
		}
		if id != cmdLineTo || count == 0 {
			return nil, fmt.Errorf("%w: linestring requires LineTo after MoveTo", ErrMalformedGeometry)
		}
		line := make(orb.LineString, 0, count+1)
		line = append(line, start)
		for i := uint32(0); i < count; i++ {
			p, err := d.vertex()
			if err != nil {
				return nil, err
			}
			line = append(line, p)
		}
		lines = append(lines, line)
	}
	switch len(lines) {
	case 0:
		return nil, nil
	case 1:
		return lines[0], nil
	default:
		return lines, nil
	}
}

type decodedRing struct {
	ring orb.Ring
	// Signed shoelace area in raw grid space (y-down): positive rings are
	// exteriors per the MVT winding rule.
	area float64
}

func (d *geomDecoder) decodeRing() (decodedRing, error) {
	id, count, err := d.command()
	if err != nil {
		return decodedRing{}, err
	}
	if id != cmdMoveTo || count != 1 {
		return decodedRing{}, fmt.Errorf("%w: ring must begin with MoveTo(1)", ErrMalformedGeometry)
	}
	start, err := d.vertex()
	if err != nil {
		return decodedRing{}, err
	}
	ring := orb.Ring{start}
	var area float64
	prevX, prevY := d.curX, d.curY
	startX, startY := d.curX, d.curY

	id, count, err = d.command()
	if err != nil {
		return decodedRing{}, err
	}
	if id != cmdLineTo || count == 0 {
		return decodedRing{}, fmt.Errorf("%w: ring requires LineTo after MoveTo", ErrMalformedGeometry)
	}
	for i := uint32(0); i < count; i++ {
		p, err := d.vertex()
		if err != nil {
			return decodedRing{}, err
		}
		area += float64(prevX)*float64(d.curY) - float64(d.curX)*float64(prevY)
		prevX, prevY = d.curX, d.curY
		ring = append(ring, p)
	}
	id, cnt, err := d.command()
	if err != nil {
		return decodedRing{}, err
	}
	if id != cmdClosePath || cnt != 1 {
		return decodedRing{}, fmt.Errorf("%w: ring missing ClosePath", ErrMalformedGeometry)
	}
	// Closing edge back to the ring start.
	area += float64(prevX)*float64(startY) - float64(startX)*float64(prevY)
	// Rings are closed post-decode: first vertex equals last.
	ring = append(ring, ring[0])
	return decodedRing{ring: ring, area: area / 2}, nil
}

func (d *geomDecoder) decodePolygons(version uint32, processAllRings bool) (orb.Geometry, error) {
	var rings []decodedRing
	for !d.done() {
		r, err := d.decodeRing()
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}

	var polys orb.MultiPolygon
	for _, r := range rings {
		if r.area == 0 && !processAllRings {
			continue
		}
		exterior := r.area > 0
		if version == 1 && len(polys) == 0 {
			// v1 decoders accept the first ring as the exterior
			// regardless of its winding.
			exterior = true
		}
		switch {
		case exterior:
			polys = append(polys, orb.Polygon{r.ring})
		case len(polys) > 0:
			polys[len(polys)-1] = append(polys[len(polys)-1], r.ring)
		case processAllRings:
			polys = append(polys, orb.Polygon{r.ring})
		default:
			// Hole with no preceding exterior; nothing to attach it to.
		}
	}
	switch len(polys) {
	case 0:
		return nil, nil
	case 1:
		return polys[0], nil
	default:
		return polys, nil
	}
}

// GeometryBounds computes the envelope of a command stream without
// materializing the geometry, for fast spatial rejection. The second return
// is false when the stream contains no vertices.
func GeometryBounds(cmds []uint32, a Affine) (orb.Bound, bool, error) {
	d := &geomDecoder{cmds: cmds, affine: a}
	var (
		b   orb.Bound
		any bool
	)
	for !d.done() {
		id, count, err := d.command()
		if err != nil {
			return orb.Bound{}, false, err
		}
		if id == cmdClosePath {
			continue
		}
		if count == 0 && id == cmdMoveTo {
			return orb.Bound{}, false, fmt.Errorf("%w: empty MoveTo", ErrMalformedGeometry)
		}
		for i := uint32(0); i < count; i++ {
			p, err := d.vertex()
			if err != nil {
				return orb.Bound{}, false, err
			}
			if !any {
				b = orb.Bound{Min: p, Max: p}
				any = true
			} else {
				b = b.Extend(p)
			}
		}
	}
	return b, any, nil
}

// geomEncoder builds a command stream from grid-space coordinates.
type geomEncoder struct {
	cmds []uint32
	curX int64
	curY int64
}

func (e *geomEncoder) moveTo(count uint32) { e.cmds = append(e.cmds, cmdMoveTo|count<<3) }
func (e *geomEncoder) lineTo(count uint32) { e.cmds = append(e.cmds, cmdLineTo|count<<3) }
func (e *geomEncoder) closePath()          { e.cmds = append(e.cmds, cmdClosePath|1<<3) }

func (e *geomEncoder) vertex(x, y int64) {
	e.cmds = append(e.cmds, zigzagEncode(x-e.curX), zigzagEncode(y-e.curY))
	e.curX, e.curY = x, y
}

func roundPoint(p orb.Point) (int64, int64) {
	return int64(math.Round(p[0])), int64(math.Round(p[1]))
}

// dedupe rounds a coordinate sequence to the integer grid and removes
// consecutive duplicates produced by the rounding.
func dedupe(ps []orb.Point, closed bool) [][2]int64 {
	out := make([][2]int64, 0, len(ps))
	for _, p := range ps {
		x, y := roundPoint(p)
		if n := len(out); n > 0 && out[n-1][0] == x && out[n-1][1] == y {
			continue
		}
		out = append(out, [2]int64{x, y})
	}
	// A closed input repeats the first vertex; the wire format closes
	// rings with ClosePath instead.
	if closed && len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func gridArea(ring [][2]int64) float64 {
	var area float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += float64(ring[i][0])*float64(ring[j][1]) - float64(ring[j][0])*float64(ring[i][1])
	}
	return area / 2
}

func reverseRing(ring [][2]int64) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

func (e *geomEncoder) encodeLine(pts [][2]int64) {
	e.moveTo(1)
	e.vertex(pts[0][0], pts[0][1])
	e.lineTo(uint32(len(pts) - 1))
	for _, p := range pts[1:] {
		e.vertex(p[0], p[1])
	}
}

func (e *geomEncoder) encodeRing(pts [][2]int64) {
	e.encodeLine(pts)
	e.closePath()
}

// encodePolygon emits a polygon's rings exterior-first with MVT winding:
// exterior rings positive (y-down), holes negative. Degenerate rings are
// dropped; a polygon whose exterior degenerates is dropped whole.
func (e *geomEncoder) encodePolygon(poly orb.Polygon) {
	var exteriorOK bool
	for i, ring := range poly {
		pts := dedupe(ring, true)
		if len(pts) < 3 {
			if i == 0 {
				return
			}
			continue
		}
		area := gridArea(pts)
		if area == 0 {
			if i == 0 {
				return
			}
			continue
		}
		if i == 0 {
			if area < 0 {
				reverseRing(pts)
			}
			exteriorOK = true
		} else {
			if !exteriorOK {
				continue
			}
			if area > 0 {
				reverseRing(pts)
			}
		}
		e.encodeRing(pts)
	}
}

// EncodeGeometry converts an orb geometry in grid space into an MVT command
// stream, rounding coordinates to the integer grid. An empty command stream
// with a nil error means the geometry collapsed during rounding and the
// feature should be dropped. Rings are always emitted exterior first with
// holes following, which satisfies the version 2 winding rule and the
// stricter version 1 alternation rule alike.
func EncodeGeometry(g orb.Geometry) ([]uint32, GeomType, error) {
	e := &geomEncoder{}
	switch geo := g.(type) {
	case orb.Point:
		e.moveTo(1)
		x, y := roundPoint(geo)
		e.vertex(x, y)
		return e.cmds, GeomTypePoint, nil

	case orb.MultiPoint:
		if len(geo) == 0 {
			return nil, GeomTypePoint, nil
		}
		e.moveTo(uint32(len(geo)))
		for _, p := range geo {
			x, y := roundPoint(p)
			e.vertex(x, y)
		}
		return e.cmds, GeomTypePoint, nil

	case orb.LineString:
		if pts := dedupe(geo, false); len(pts) >= 2 {
			e.encodeLine(pts)
		}
		return e.cmds, GeomTypeLineString, nil

	case orb.MultiLineString:
		for _, line := range geo {
			if pts := dedupe(line, false); len(pts) >= 2 {
				e.encodeLine(pts)
			}
		}
		return e.cmds, GeomTypeLineString, nil

	case orb.Ring:
		return EncodeGeometry(orb.Polygon{geo})

	case orb.Polygon:
		e.encodePolygon(geo)
		return e.cmds, GeomTypePolygon, nil

	case orb.MultiPolygon:
		for _, poly := range geo {
			e.encodePolygon(poly)
		}
		return e.cmds, GeomTypePolygon, nil

	case orb.Collection:
		return nil, GeomTypeUnknown, fmt.Errorf("%w: geometry collection", ErrUnsupportedGeometryType)

	case nil:
		return nil, GeomTypeUnknown, nil

	default:
		return nil, GeomTypeUnknown, fmt.Errorf("%w: %T", ErrUnsupportedGeometryType, g)
	}
}
