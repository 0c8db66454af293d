package mvt

import (
	"reflect"
	"sort"
	"testing"

	"github.com/paulmach/orb"
)

func encodeFeatureGeom(t *testing.T, g orb.Geometry) ([]uint32, GeomType) {
	t.Helper()
	cmds, typ, err := EncodeGeometry(g)
	if err != nil {
		t.Fatalf("EncodeGeometry: %v", err)
	}
	return cmds, typ
}

func TestLayerRoundTrip(t *testing.T) {
	w := NewLayerWriter("roads", DefaultVersion, DefaultExtent)
	cmds, typ := encodeFeatureGeom(t, orb.LineString{{0, 0}, {10, 10}, {20, 5}})
	props := map[string]interface{}{
		"name":  "main st",
		"lanes": int64(2),
		"paved": true,
		"width": 2.5,
	}
	w.AddFeature(7, typ, cmds, props)

	layer, err := NewLayer(w.Marshal())
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	if layer.Name != "roads" {
		t.Errorf("Name = %q, want %q", layer.Name, "roads")
	}
	if layer.Version != DefaultVersion {
		t.Errorf("Version = %d, want %d", layer.Version, DefaultVersion)
	}
	if layer.Extent != DefaultExtent {
		t.Errorf("Extent = %d, want %d", layer.Extent, DefaultExtent)
	}
	if layer.NumFeatures() != 1 {
		t.Fatalf("NumFeatures = %d, want 1", layer.NumFeatures())
	}

	keys := append([]string(nil), layer.Keys()...)
	sort.Strings(keys)
	if want := []string{"lanes", "name", "paved", "width"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}

	f, err := layer.Feature(0)
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	if f.ID != 7 {
		t.Errorf("ID = %d, want 7", f.ID)
	}
	if f.Type != GeomTypeLineString {
		t.Errorf("Type = %v, want linestring", f.Type)
	}

	gotCmds, err := f.Commands()
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	if !reflect.DeepEqual(gotCmds, cmds) {
		t.Errorf("Commands = %v, want %v", gotCmds, cmds)
	}

	g, err := f.Geometry(Identity(), false)
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if want := (orb.LineString{{0, 0}, {10, 10}, {20, 5}}); !reflect.DeepEqual(g, want) {
		t.Errorf("Geometry = %#v, want %#v", g, want)
	}

	gotProps, err := f.Properties()
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if !reflect.DeepEqual(gotProps, props) {
		t.Errorf("Properties = %#v, want %#v", gotProps, props)
	}

	subset, err := f.Properties("name")
	if err != nil {
		t.Fatalf("Properties(name): %v", err)
	}
	if want := map[string]interface{}{"name": "main st"}; !reflect.DeepEqual(subset, want) {
		t.Errorf("Properties(name) = %#v, want %#v", subset, want)
	}
}

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"double", 3.25, 3.25},
		{"float32 widens", float32(1.5), 1.5},
		{"int64", int64(-42), int64(-42)},
		{"int narrows to int64", 42, int64(42)},
		{"uint64", uint64(7), uint64(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeValue(encodeValue(tt.in))
			if err != nil {
				t.Fatalf("decodeValue: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestWriterInterning(t *testing.T) {
	w := NewLayerWriter("poi", 0, 0)
	if w.Version != DefaultVersion || w.Extent != DefaultExtent {
		t.Fatalf("zero version/extent not defaulted: v%d extent=%d", w.Version, w.Extent)
	}
	cmds, typ := encodeFeatureGeom(t, orb.Point{1, 1})
	for i := 0; i < 5; i++ {
		w.AddFeature(uint64(i+1), typ, cmds, map[string]interface{}{"class": "cafe"})
	}

	layer, err := NewLayer(w.Marshal())
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	if len(layer.Keys()) != 1 {
		t.Errorf("shared key interned %d times, want 1", len(layer.Keys()))
	}
	if len(layer.rawVals) != 1 {
		t.Errorf("shared value interned %d times, want 1", len(layer.rawVals))
	}
}

func TestWriterDropsEmptyGeometry(t *testing.T) {
	w := NewLayerWriter("empty", DefaultVersion, DefaultExtent)
	w.AddFeature(1, GeomTypePoint, nil, nil)
	if !w.Empty() || w.Painted() {
		t.Errorf("feature without commands must be dropped")
	}

	w.AddRasterFeature(2, GeomTypeUnknown, nil, []byte{0xde, 0xad}, nil)
	if w.Empty() || !w.Painted() {
		t.Errorf("raster feature without geometry must be kept and painted")
	}
}

func TestFeatureIteratorQuery(t *testing.T) {
	w := NewLayerWriter("poi", DefaultVersion, DefaultExtent)
	near, typ := encodeFeatureGeom(t, orb.Point{10, 10})
	far, _ := encodeFeatureGeom(t, orb.Point{3000, 3000})
	w.AddFeature(1, typ, near, map[string]interface{}{"class": "cafe"})
	w.AddFeature(2, typ, far, map[string]interface{}{"class": "bank"})

	layer, err := NewLayer(w.Marshal())
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}

	t.Run("unfiltered", func(t *testing.T) {
		it := layer.Features(nil)
		var ids []uint64
		for it.Next() {
			ids = append(ids, it.Feature().ID)
		}
		if err := it.Err(); err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if want := []uint64{1, 2}; !reflect.DeepEqual(ids, want) {
			t.Errorf("ids = %v, want %v", ids, want)
		}
	})

	t.Run("bbox filtered", func(t *testing.T) {
		b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}
		it := layer.Features(&Query{Bound: &b})
		var ids []uint64
		for it.Next() {
			ids = append(ids, it.Feature().ID)
		}
		if err := it.Err(); err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if want := []uint64{1}; !reflect.DeepEqual(ids, want) {
			t.Errorf("ids = %v, want %v", ids, want)
		}
	})
}

func TestRawLayersAndStats(t *testing.T) {
	roads := NewLayerWriter("roads", DefaultVersion, DefaultExtent)
	cmds, typ := encodeFeatureGeom(t, orb.LineString{{0, 0}, {50, 50}})
	roads.AddFeature(1, typ, cmds, nil)
	water := NewLayerWriter("water", DefaultVersion, 256)

	var buf []byte
	buf = append(buf, FrameLayer(roads.Marshal())...)
	buf = append(buf, FrameLayer(water.Marshal())...)

	raw, err := RawLayers(buf)
	if err != nil {
		t.Fatalf("RawLayers: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("RawLayers = %d layers, want 2", len(raw))
	}

	stats, err := StatLayers(buf)
	if err != nil {
		t.Fatalf("StatLayers: %v", err)
	}
	want := []LayerStat{
		{Name: "roads", Version: DefaultVersion, Extent: DefaultExtent, Features: 1, Painted: true},
		{Name: "water", Version: DefaultVersion, Extent: 256, Features: 0, Painted: false},
	}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("StatLayers = %+v, want %+v", stats, want)
	}

	if _, err := RawLayers([]byte{0x1a, 0x05, 0x01}); err == nil {
		t.Errorf("RawLayers accepted a truncated buffer")
	}
}
