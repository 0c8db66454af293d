package mvt

import (
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func TestZigzag(t *testing.T) {
	tests := []struct {
		decoded int64
		encoded uint32
	}{
		{0, 0},
		{-1, 1},
		{1, 2},
		{-2, 3},
		{25, 50},
		{17, 34},
		{-4096, 8191},
	}
	for _, tt := range tests {
		if got := zigzagEncode(tt.decoded); got != tt.encoded {
			t.Errorf("zigzagEncode(%d) = %d, want %d", tt.decoded, got, tt.encoded)
		}
		if got := zigzagDecode(tt.encoded); got != tt.decoded {
			t.Errorf("zigzagDecode(%d) = %d, want %d", tt.encoded, got, tt.decoded)
		}
	}
}

func TestDecodeGeometry(t *testing.T) {
	tests := []struct {
		name string
		cmds []uint32
		typ  GeomType
		want orb.Geometry
	}{
		{
			name: "single point",
			cmds: []uint32{9, 50, 34},
			typ:  GeomTypePoint,
			want: orb.Point{25, 17},
		},
		{
			name: "multipoint",
			cmds: []uint32{17, 10, 14, 3, 9},
			typ:  GeomTypePoint,
			want: orb.MultiPoint{{5, 7}, {3, 2}},
		},
		{
			name: "linestring",
			cmds: []uint32{9, 4, 4, 18, 0, 16, 16, 0},
			typ:  GeomTypeLineString,
			want: orb.LineString{{2, 2}, {2, 10}, {10, 10}},
		},
		{
			name: "multilinestring",
			cmds: []uint32{9, 4, 4, 18, 0, 16, 16, 0, 9, 17, 17, 10, 4, 8},
			typ:  GeomTypeLineString,
			want: orb.MultiLineString{
				{{2, 2}, {2, 10}, {10, 10}},
				{{1, 1}, {3, 5}},
			},
		},
		{
			name: "polygon",
			cmds: []uint32{9, 6, 12, 18, 10, 12, 24, 44, 15},
			typ:  GeomTypePolygon,
			want: orb.Polygon{{{3, 6}, {8, 12}, {20, 34}, {3, 6}}},
		},
		{
			name: "empty stream",
			cmds: nil,
			typ:  GeomTypePoint,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGeometry(tt.cmds, tt.typ, DefaultVersion, false, Identity())
			if err != nil {
				t.Fatalf("DecodeGeometry: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeGeometry = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeGeometryAffine(t *testing.T) {
	a := Affine{ScaleX: 2, ScaleY: 0.5, TranslateX: 100, TranslateY: -10}
	got, err := DecodeGeometry([]uint32{9, 50, 34}, GeomTypePoint, DefaultVersion, false, a)
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}
	want := orb.Point{150, -1.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeGeometry with affine = %v, want %v", got, want)
	}
}

func TestDecodeGeometryMalformed(t *testing.T) {
	tests := []struct {
		name string
		cmds []uint32
		typ  GeomType
	}{
		{"truncated parameters", []uint32{9, 50}, GeomTypePoint},
		{"unknown command", []uint32{11, 0, 0}, GeomTypePoint},
		{"line starts with LineTo", []uint32{10, 4, 4}, GeomTypeLineString},
		{"line missing LineTo", []uint32{9, 4, 4}, GeomTypeLineString},
		{"ring missing ClosePath", []uint32{9, 6, 12, 18, 10, 12, 24, 44}, GeomTypePolygon},
		{"point with empty MoveTo", []uint32{1}, GeomTypePoint},
		{"unknown geometry type", []uint32{9, 0, 0}, GeomType(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGeometry(tt.cmds, tt.typ, DefaultVersion, false, Identity())
			if !errors.Is(err, ErrMalformedGeometry) {
				t.Errorf("DecodeGeometry error = %v, want ErrMalformedGeometry", err)
			}
		})
	}
}

func TestDecodePolygonRingRoles(t *testing.T) {
	// Exterior 0..10 square (positive y-down winding) followed by a
	// reverse-wound 2..4 hole.
	exterior := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}}
	cmds, typ, err := EncodeGeometry(orb.Polygon{exterior, hole})
	if err != nil {
		t.Fatalf("EncodeGeometry: %v", err)
	}
	if typ != GeomTypePolygon {
		t.Fatalf("type = %v, want polygon", typ)
	}

	g, err := DecodeGeometry(cmds, typ, DefaultVersion, false, Identity())
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		t.Fatalf("decoded %T, want orb.Polygon", g)
	}
	if len(poly) != 2 {
		t.Fatalf("decoded %d rings, want 2", len(poly))
	}

	// Two positive rings become two polygons.
	second := orb.Ring{{20, 0}, {30, 0}, {30, 10}, {20, 10}, {20, 0}}
	cmds, typ, err = EncodeGeometry(orb.MultiPolygon{{exterior}, {second}})
	if err != nil {
		t.Fatalf("EncodeGeometry: %v", err)
	}
	g, err = DecodeGeometry(cmds, typ, DefaultVersion, false, Identity())
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}
	if mp, ok := g.(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("decoded %#v, want a 2-polygon multipolygon", g)
	}
}

func TestEncodeGeometryRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmds []uint32
		typ  GeomType
	}{
		{"point", []uint32{9, 50, 34}, GeomTypePoint},
		{"multipoint", []uint32{17, 10, 14, 3, 9}, GeomTypePoint},
		{"linestring", []uint32{9, 4, 4, 18, 0, 16, 16, 0}, GeomTypeLineString},
		{"polygon", []uint32{9, 6, 12, 18, 10, 12, 24, 44, 15}, GeomTypePolygon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := DecodeGeometry(tt.cmds, tt.typ, DefaultVersion, false, Identity())
			if err != nil {
				t.Fatalf("DecodeGeometry: %v", err)
			}
			cmds, typ, err := EncodeGeometry(g)
			if err != nil {
				t.Fatalf("EncodeGeometry: %v", err)
			}
			if typ != tt.typ {
				t.Errorf("type = %v, want %v", typ, tt.typ)
			}
			if !reflect.DeepEqual(cmds, tt.cmds) {
				t.Errorf("re-encoded commands = %v, want %v", cmds, tt.cmds)
			}
		})
	}
}

func TestEncodeGeometryDegenerate(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"collapsing line", orb.LineString{{1.1, 1.1}, {1.2, 1.2}}},
		{"zero area ring", orb.Polygon{{{0, 0}, {5, 0}, {10, 0}, {0, 0}}}},
		{"too few ring points", orb.Polygon{{{0, 0}, {10, 10}, {0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, _, err := EncodeGeometry(tt.geom)
			if err != nil {
				t.Fatalf("EncodeGeometry: %v", err)
			}
			if len(cmds) != 0 {
				t.Errorf("degenerate geometry produced %d commands, want 0", len(cmds))
			}
		})
	}

	if _, _, err := EncodeGeometry(orb.Collection{orb.Point{0, 0}}); !errors.Is(err, ErrUnsupportedGeometryType) {
		t.Errorf("collection error = %v, want ErrUnsupportedGeometryType", err)
	}
}

func TestEncodeGeometryWinding(t *testing.T) {
	// A reverse-wound exterior is re-oriented on encode.
	ccw := orb.Polygon{{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}}
	cmds, typ, err := EncodeGeometry(ccw)
	if err != nil {
		t.Fatalf("EncodeGeometry: %v", err)
	}
	g, err := DecodeGeometry(cmds, typ, DefaultVersion, false, Identity())
	if err != nil {
		t.Fatalf("DecodeGeometry: %v", err)
	}
	if _, ok := g.(orb.Polygon); !ok {
		t.Errorf("reverse-wound exterior decoded as %T, want orb.Polygon", g)
	}
}

func TestGeometryBounds(t *testing.T) {
	cmds := []uint32{9, 6, 12, 18, 10, 12, 24, 44, 15}
	b, ok, err := GeometryBounds(cmds, Identity())
	if err != nil {
		t.Fatalf("GeometryBounds: %v", err)
	}
	if !ok {
		t.Fatalf("GeometryBounds reported no vertices")
	}
	want := orb.Bound{Min: orb.Point{3, 6}, Max: orb.Point{20, 34}}
	if !reflect.DeepEqual(b, want) {
		t.Errorf("GeometryBounds = %v, want %v", b, want)
	}

	if _, ok, err := GeometryBounds(nil, Identity()); err != nil || ok {
		t.Errorf("empty stream bounds = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestAffine(t *testing.T) {
	if !Identity().IsIdentity() {
		t.Errorf("Identity not identity")
	}
	a := Affine{ScaleX: 0.5, ScaleY: 0.5, TranslateX: 1024, TranslateY: 1024}
	if a.IsIdentity() {
		t.Errorf("non-trivial affine reported as identity")
	}
	x, y := a.Apply(2048, 2048)
	if x != 2048 || y != 2048 {
		t.Errorf("Apply(2048,2048) = (%v,%v), want (2048,2048)", x, y)
	}
}
