package mvt

import (
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// LayerWriter accumulates features and serializes one MVT layer message.
// Keys and values are interned so repeated attributes share table entries.
type LayerWriter struct {
	Name    string
	Version uint32
	Extent  uint32

	keys     []string
	keyIdx   map[string]uint32
	vals     [][]byte
	valIdx   map[string]uint32
	features [][]byte
	painted  bool
}

// NewLayerWriter creates a writer for a layer with the given coordinate
// scale and schema version.
func NewLayerWriter(name string, version, extent uint32) *LayerWriter {
	if version == 0 {
		version = DefaultVersion
	}
	if extent == 0 {
		extent = DefaultExtent
	}
	return &LayerWriter{
		Name:    name,
		Version: version,
		Extent:  extent,
		keyIdx:  map[string]uint32{},
		valIdx:  map[string]uint32{},
	}
}

func (w *LayerWriter) key(k string) uint32 {
	if i, ok := w.keyIdx[k]; ok {
		return i
	}
	i := uint32(len(w.keys))
	w.keys = append(w.keys, k)
	w.keyIdx[k] = i
	return i
}

func (w *LayerWriter) value(v interface{}) uint32 {
	enc := encodeValue(v)
	if i, ok := w.valIdx[string(enc)]; ok {
		return i
	}
	i := uint32(len(w.vals))
	w.vals = append(w.vals, enc)
	w.valIdx[string(enc)] = i
	return i
}

func (w *LayerWriter) tags(props map[string]interface{}) []uint32 {
	if len(props) == 0 {
		return nil
	}
	// Deterministic output: attribute order does not depend on map
	// iteration.
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]uint32, 0, 2*len(keys))
	for _, k := range keys {
		tags = append(tags, w.key(k), w.value(props[k]))
	}
	return tags
}

// AddFeature appends a feature with an already-encoded geometry command
// stream. Features with an empty stream are dropped. id zero means unset
// and is not written.
func (w *LayerWriter) AddFeature(id uint64, typ GeomType, cmds []uint32, props map[string]interface{}) {
	if len(cmds) == 0 {
		return
	}
	w.appendFeature(id, typ, cmds, nil, props)
	w.painted = true
}

// AddRasterFeature appends a feature carrying an encoded image payload
// alongside its (possibly empty) geometry.
func (w *LayerWriter) AddRasterFeature(id uint64, typ GeomType, cmds []uint32, raster []byte, props map[string]interface{}) {
	if len(raster) == 0 && len(cmds) == 0 {
		return
	}
	w.appendFeature(id, typ, cmds, raster, props)
	w.painted = true
}

func (w *LayerWriter) appendFeature(id uint64, typ GeomType, cmds []uint32, raster []byte, props map[string]interface{}) {
	var buf []byte
	if id != 0 {
		buf = protowire.AppendTag(buf, featureIDField, protowire.VarintType)
		buf = protowire.AppendVarint(buf, id)
	}
	if tags := w.tags(props); len(tags) > 0 {
		buf = protowire.AppendTag(buf, featureTagsField, protowire.BytesType)
		buf = protowire.AppendVarint(buf, uint64(packedSize(tags)))
		for _, t := range tags {
			buf = protowire.AppendVarint(buf, uint64(t))
		}
	}
	buf = protowire.AppendTag(buf, featureTypeField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(typ))
	if len(cmds) > 0 {
		buf = protowire.AppendTag(buf, featureGeometryField, protowire.BytesType)
		buf = protowire.AppendVarint(buf, uint64(packedSize(cmds)))
		for _, c := range cmds {
			buf = protowire.AppendVarint(buf, uint64(c))
		}
	}
	if len(raster) > 0 {
		buf = protowire.AppendTag(buf, featureRasterField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, raster)
	}
	w.features = append(w.features, buf)
}

func packedSize(vs []uint32) int {
	n := 0
	for _, v := range vs {
		n += protowire.SizeVarint(uint64(v))
	}
	return n
}

// Empty reports whether no feature survived into the layer.
func (w *LayerWriter) Empty() bool { return len(w.features) == 0 }

// Painted reports whether at least one feature with geometry or raster
// content was added.
func (w *LayerWriter) Painted() bool { return w.painted }

// Marshal serializes the layer message (unframed; callers wrap it in the
// tile's layer field).
func (w *LayerWriter) Marshal() []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, layerVersionField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(w.Version))
	buf = protowire.AppendTag(buf, layerNameField, protowire.BytesType)
	buf = protowire.AppendString(buf, w.Name)
	for _, f := range w.features {
		buf = protowire.AppendTag(buf, layerFeaturesField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, f)
	}
	for _, k := range w.keys {
		buf = protowire.AppendTag(buf, layerKeysField, protowire.BytesType)
		buf = protowire.AppendString(buf, k)
	}
	for _, v := range w.vals {
		buf = protowire.AppendTag(buf, layerValuesField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, v)
	}
	buf = protowire.AppendTag(buf, layerExtentField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(w.Extent))
	return buf
}

// FrameLayer wraps a serialized layer message in the tile-level layer field
// so it can be appended to a tile buffer.
func FrameLayer(layerMsg []byte) []byte {
	buf := protowire.AppendTag(nil, tileLayerField, protowire.BytesType)
	return protowire.AppendBytes(buf, layerMsg)
}
