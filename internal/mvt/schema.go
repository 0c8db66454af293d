// Package mvt implements the Mapbox Vector Tile wire format: a lazy,
// zero-copy reader over encoded tile bytes, the packed geometry command
// codec, and a layer writer producing conformant protobuf output.
package mvt

import "errors"

// Protobuf field numbers from the vector_tile proto schema.
const (
	tileLayerField = 3

	layerVersionField  = 15
	layerNameField     = 1
	layerFeaturesField = 2
	layerKeysField     = 3
	layerValuesField   = 4
	layerExtentField   = 5

	featureIDField       = 1
	featureTagsField     = 2
	featureTypeField     = 3
	featureGeometryField = 4
	// Raster payload carried on a feature, a mapnik extension to the
	// upstream schema used for embedded image layers.
	featureRasterField = 5

	valueStringField = 1
	valueFloatField  = 2
	valueDoubleField = 3
	valueIntField    = 4
	valueUintField   = 5
	valueSintField   = 6
	valueBoolField   = 7
)

// GeomType is the wire-level geometry type of a feature.
type GeomType uint32

const (
	GeomTypeUnknown    GeomType = 0
	GeomTypePoint      GeomType = 1
	GeomTypeLineString GeomType = 2
	GeomTypePolygon    GeomType = 3
)

func (t GeomType) String() string {
	switch t {
	case GeomTypePoint:
		return "point"
	case GeomTypeLineString:
		return "linestring"
	case GeomTypePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Geometry command IDs from the MVT specification.
const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

// DefaultExtent is the coordinate scale used when a layer does not declare one.
const DefaultExtent = 4096

// DefaultVersion is the layer version written for new layers.
const DefaultVersion = 2

var (
	// ErrMalformedGeometry reports a corrupt or truncated geometry
	// command stream.
	ErrMalformedGeometry = errors.New("mvt: malformed geometry")

	// ErrUnsupportedGeometryType reports a geometry kind the wire format
	// cannot carry. Geometry collections are never produced by this codec,
	// so reaching this is an internal invariant violation.
	ErrUnsupportedGeometryType = errors.New("mvt: unsupported geometry type")

	// ErrMalformedTile reports tile bytes that do not parse as a
	// vector tile protobuf message.
	ErrMalformedTile = errors.New("mvt: malformed tile data")
)
