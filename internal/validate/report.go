package validate

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/proj"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// Error is one validity or simplicity failure. Simplicity failures carry
// only the layer and feature id; validity failures add the failure message
// and a single-feature GeoJSON FeatureCollection with the offending
// geometry and attributes.
type Error struct {
	Layer     string `json:"layer"`
	FeatureID uint64 `json:"featureId"`
	Message   string `json:"message,omitempty"`
	GeoJSON   string `json:"geojson,omitempty"`
}

// Options configure a validity report.
type Options struct {
	// SplitMultiFeatures checks multi-geometries part by part, producing
	// one error per invalid part.
	SplitMultiFeatures bool
	// LatLon reprojects geometries to WGS84 before checking.
	LatLon bool
	// WebMerc reprojects geometries to mercator meters before checking.
	WebMerc bool
}

func (o Options) validate() error {
	if o.LatLon && o.WebMerc {
		return fmt.Errorf("%w: lat_lon and web_merc are mutually exclusive", tile.ErrInvalidOptions)
	}
	return nil
}

// ReportSimplicity decodes every feature of every layer in raw tile-grid
// coordinates and tests OGC simplicity. The tile is not mutated. A failing
// feature is a result, never an error.
func ReportSimplicity(t *tile.Tile) ([]Error, error) {
	var out []Error
	err := eachFeature(t, func(layerName string, f *mvt.Feature, g orb.Geometry) error {
		if !IsSimple(g) {
			out = append(out, Error{Layer: layerName, FeatureID: f.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReportValidity decodes every feature, optionally reprojects, and tests
// OGC validity per geometry type. Each failure carries a GeoJSON snippet.
func ReportValidity(t *tile.Tile, opts Options) ([]Error, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	reproject := func(g orb.Geometry, bounds tile.Bounds, extent uint32) orb.Geometry { return g }
	if opts.WebMerc || opts.LatLon {
		reproject = func(g orb.Geometry, bounds tile.Bounds, extent uint32) orb.Geometry {
			g = project.Geometry(g, gridToMercator(bounds, extent))
			if opts.LatLon {
				g = project.Geometry(g, func(p orb.Point) orb.Point {
					lon, lat := proj.WebMercatorToLonLat(p[0], p[1])
					return orb.Point{lon, lat}
				})
			}
			return g
		}
	}

	bounds := t.Bounds()
	var out []Error
	err := eachFeatureInLayer(t, func(layerName string, extent uint32, f *mvt.Feature, g orb.Geometry) error {
		g = reproject(g, bounds, extent)
		props, err := f.Properties()
		if err != nil {
			return err
		}
		for _, part := range splitParts(g, opts.SplitMultiFeatures) {
			if ok, msg := IsValid(part); !ok {
				snippet, err := featureSnippet(part, f.ID, props)
				if err != nil {
					return err
				}
				out = append(out, Error{
					Layer:     layerName,
					FeatureID: f.ID,
					Message:   msg,
					GeoJSON:   snippet,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// gridToMercator maps tile-grid coordinates into mercator meters for the
// given tile bounds and layer extent.
func gridToMercator(b tile.Bounds, extent uint32) func(orb.Point) orb.Point {
	sx := b.Width() / float64(extent)
	sy := b.Height() / float64(extent)
	return func(p orb.Point) orb.Point {
		return orb.Point{b.MinX + p[0]*sx, b.MaxY - p[1]*sy}
	}
}

func splitParts(g orb.Geometry, split bool) []orb.Geometry {
	if !split {
		return []orb.Geometry{g}
	}
	switch geo := g.(type) {
	case orb.MultiLineString:
		parts := make([]orb.Geometry, 0, len(geo))
		for _, line := range geo {
			parts = append(parts, line)
		}
		return parts
	case orb.MultiPolygon:
		parts := make([]orb.Geometry, 0, len(geo))
		for _, poly := range geo {
			parts = append(parts, poly)
		}
		return parts
	default:
		return []orb.Geometry{g}
	}
}

func featureSnippet(g orb.Geometry, id uint64, props map[string]interface{}) (string, error) {
	f := geojson.NewFeature(g)
	if id != 0 {
		f.ID = id
	}
	for k, v := range props {
		f.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	data, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("validate: building geojson snippet: %w", err)
	}
	return string(data), nil
}

func eachFeature(t *tile.Tile, fn func(layer string, f *mvt.Feature, g orb.Geometry) error) error {
	return eachFeatureInLayer(t, func(layer string, _ uint32, f *mvt.Feature, g orb.Geometry) error {
		return fn(layer, f, g)
	})
}

func eachFeatureInLayer(t *tile.Tile, fn func(layer string, extent uint32, f *mvt.Feature, g orb.Geometry) error) error {
	raw, err := mvt.RawLayers(t.Data())
	if err != nil {
		return err
	}
	for _, layerMsg := range raw {
		layer, err := mvt.NewLayer(layerMsg)
		if err != nil {
			return err
		}
		it := layer.Features(nil)
		for it.Next() {
			f := it.Feature()
			g, err := f.Geometry(mvt.Identity(), false)
			if err != nil {
				return err
			}
			if g == nil {
				continue
			}
			if err := fn(layer.Name, layer.Extent, f, g); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
	}
	return nil
}
