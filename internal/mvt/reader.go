package mvt

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/protoscan"
	"google.golang.org/protobuf/encoding/protowire"
)

// RawLayers splits encoded tile bytes into each layer's raw protobuf
// message, in buffer order and without copying.
func RawLayers(tileData []byte) ([][]byte, error) {
	var layers [][]byte
	msg := protoscan.New(tileData)
	for msg.Next() {
		switch msg.FieldNumber() {
		case tileLayerField:
			data, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("%w: layer: %v", ErrMalformedTile, err)
			}
			layers = append(layers, data)
		default:
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
	}
	return layers, nil
}

// LayerStat is a cheap per-layer summary computed without decoding
// geometries or attributes.
type LayerStat struct {
	Name     string
	Version  uint32
	Extent   uint32
	Features int
	// Painted means at least one feature carries actual geometry
	// (or a raster payload).
	Painted bool
}

// StatLayers scans tile bytes and summarizes every layer.
func StatLayers(tileData []byte) ([]LayerStat, error) {
	raw, err := RawLayers(tileData)
	if err != nil {
		return nil, err
	}
	stats := make([]LayerStat, 0, len(raw))
	for _, data := range raw {
		st := LayerStat{Version: 1, Extent: DefaultExtent}
		msg := protoscan.New(data)
		for msg.Next() {
			var err error
			switch msg.FieldNumber() {
			case layerNameField:
				st.Name, err = msg.String()
			case layerVersionField:
				st.Version, err = msg.Uint32()
			case layerExtentField:
				st.Extent, err = msg.Uint32()
			case layerFeaturesField:
				var fdata []byte
				fdata, err = msg.MessageData()
				if err == nil {
					st.Features++
					if !st.Painted {
						var painted bool
						painted, err = featureHasGeometry(fdata)
						st.Painted = st.Painted || painted
					}
				}
			default:
				msg.Skip()
			}
			if err != nil {
				return nil, fmt.Errorf("%w: layer %q: %v", ErrMalformedTile, st.Name, err)
			}
		}
		if err := msg.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func featureHasGeometry(data []byte) (bool, error) {
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case featureGeometryField, featureRasterField:
			b, err := msg.MessageData()
			if err != nil {
				return false, err
			}
			if len(b) > 0 {
				return true, nil
			}
		default:
			msg.Skip()
		}
	}
	return false, msg.Err()
}

// Layer is a lazily parsed MVT layer. Construction scans the layer header
// (name, version, extent, key/value tables) and records raw feature slices;
// feature attributes and geometry stay encoded until asked for.
type Layer struct {
	Name    string
	Version uint32
	Extent  uint32

	keys     []string
	rawVals  [][]byte
	vals     []interface{}
	valsOK   []bool
	features [][]byte
}

// NewLayer parses one layer's raw protobuf message.
func NewLayer(data []byte) (*Layer, error) {
	l := &Layer{Version: 1, Extent: DefaultExtent}
	msg := protoscan.New(data)
	for msg.Next() {
		var err error
		switch msg.FieldNumber() {
		case layerNameField:
			l.Name, err = msg.String()
		case layerVersionField:
			l.Version, err = msg.Uint32()
		case layerExtentField:
			l.Extent, err = msg.Uint32()
		case layerKeysField:
			var k string
			k, err = msg.String()
			l.keys = append(l.keys, k)
		case layerValuesField:
			var v []byte
			v, err = msg.MessageData()
			l.rawVals = append(l.rawVals, v)
		case layerFeaturesField:
			var f []byte
			f, err = msg.MessageData()
			l.features = append(l.features, f)
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: layer: %v", ErrMalformedTile, err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
	}
	l.vals = make([]interface{}, len(l.rawVals))
	l.valsOK = make([]bool, len(l.rawVals))
	return l, nil
}

// Keys returns the layer's attribute key table.
func (l *Layer) Keys() []string { return l.keys }

// NumFeatures returns the number of features without decoding any of them.
func (l *Layer) NumFeatures() int { return len(l.features) }

func (l *Layer) value(idx uint32) (interface{}, error) {
	if int(idx) >= len(l.rawVals) {
		return nil, fmt.Errorf("%w: value index %d out of range", ErrMalformedTile, idx)
	}
	if !l.valsOK[idx] {
		v, err := decodeValue(l.rawVals[idx])
		if err != nil {
			return nil, err
		}
		l.vals[idx] = v
		l.valsOK[idx] = true
	}
	return l.vals[idx], nil
}

// Feature parses the i-th feature's scalar fields. Geometry decoding is
// deferred until Geometry or Bounds is called.
func (l *Layer) Feature(i int) (*Feature, error) {
	f := &Feature{layer: l}
	msg := protoscan.New(l.features[i])
	for msg.Next() {
		var err error
		switch msg.FieldNumber() {
		case featureIDField:
			f.ID, err = msg.Uint64()
		case featureTypeField:
			var t uint32
			t, err = msg.Uint32()
			f.Type = GeomType(t)
		case featureTagsField:
			var iter *protoscan.Iterator
			iter, err = msg.Iterator(nil)
			if err == nil {
				for iter.HasNext() {
					var tag uint32
					tag, err = iter.Uint32()
					if err != nil {
						break
					}
					f.tags = append(f.tags, tag)
				}
			}
		case featureGeometryField:
			f.geomData, err = msg.MessageData()
		case featureRasterField:
			f.Raster, err = msg.MessageData()
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: feature: %v", ErrMalformedTile, err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
	}
	return f, nil
}

// Feature is a single decoded feature header borrowing its layer's byte
// buffer. Lifetime is scoped to one decode pass over the owning tile.
type Feature struct {
	ID     uint64
	Type   GeomType
	Raster []byte

	layer    *Layer
	tags     []uint32
	geomData []byte
	cmds     []uint32
	cmdsOK   bool
}

// Commands returns the unpacked geometry command stream.
func (f *Feature) Commands() ([]uint32, error) {
	if !f.cmdsOK {
		data := f.geomData
		cmds := make([]uint32, 0, len(data))
		for len(data) > 0 {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: truncated varint", ErrMalformedGeometry)
			}
			cmds = append(cmds, uint32(v))
			data = data[n:]
		}
		f.cmds = cmds
		f.cmdsOK = true
	}
	return f.cmds, nil
}

// Geometry decodes the feature's geometry, applying the affine to every
// vertex. processAllRings relaxes ring-role inference for polygons.
func (f *Feature) Geometry(a Affine, processAllRings bool) (orb.Geometry, error) {
	cmds, err := f.Commands()
	if err != nil {
		return nil, err
	}
	return DecodeGeometry(cmds, f.Type, f.layer.Version, processAllRings, a)
}

// Bounds computes the geometry envelope without materializing the geometry.
// The second return is false for features with no vertices.
func (f *Feature) Bounds(a Affine) (orb.Bound, bool, error) {
	cmds, err := f.Commands()
	if err != nil {
		return orb.Bound{}, false, err
	}
	return GeometryBounds(cmds, a)
}

// Properties decodes the feature's attribute map through the layer's
// key/value tables. With a non-empty fields list only the named keys are
// materialized.
func (f *Feature) Properties(fields ...string) (map[string]interface{}, error) {
	want := map[string]bool{}
	for _, k := range fields {
		want[k] = true
	}
	props := make(map[string]interface{}, len(f.tags)/2)
	for i := 0; i+1 < len(f.tags); i += 2 {
		ki, vi := f.tags[i], f.tags[i+1]
		if int(ki) >= len(f.layer.keys) {
			return nil, fmt.Errorf("%w: key index %d out of range", ErrMalformedTile, ki)
		}
		key := f.layer.keys[ki]
		if len(want) > 0 && !want[key] {
			continue
		}
		v, err := f.layer.value(vi)
		if err != nil {
			return nil, err
		}
		props[key] = v
	}
	return props, nil
}

// Query narrows a feature scan. The zero value matches everything. Bound is
// in raw tile-grid coordinates.
type Query struct {
	Bound  *orb.Bound
	Fields []string
}

// Features returns a restartable iterator over the layer's features.
// Features outside the query bound are rejected on their envelope without
// full geometry decode.
func (l *Layer) Features(q *Query) *FeatureIterator {
	if q == nil {
		q = &Query{}
	}
	return &FeatureIterator{layer: l, query: *q}
}

// FeatureIterator yields features lazily. Next reports false at the end of
// the layer or on the first malformed feature; callers distinguish the two
// via Err.
type FeatureIterator struct {
	layer *Layer
	query Query
	idx   int
	cur   *Feature
	err   error
}

func (it *FeatureIterator) Next() bool {
	for it.err == nil && it.idx < len(it.layer.features) {
		f, err := it.layer.Feature(it.idx)
		it.idx++
		if err != nil {
			it.err = err
			return false
		}
		if it.query.Bound != nil {
			b, ok, err := f.Bounds(Identity())
			if err != nil {
				it.err = err
				return false
			}
			if !ok || !b.Intersects(*it.query.Bound) {
				continue
			}
		}
		it.cur = f
		return true
	}
	return false
}

// Feature returns the feature positioned by the last successful Next.
func (it *FeatureIterator) Feature() *Feature { return it.cur }

// Err returns the first error encountered by Next.
func (it *FeatureIterator) Err() error { return it.err }
