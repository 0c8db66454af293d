// Package geojson exports decoded tile layers as GeoJSON feature
// collections in WGS84.
package geojson

import (
	"fmt"

	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/proj"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// NamedCollection pairs a layer name with its converted features.
type NamedCollection struct {
	Name       string
	Collection *orbgeojson.FeatureCollection
}

// Layers converts every layer of the tile, in buffer order.
func Layers(t *tile.Tile) ([]NamedCollection, error) {
	raw, err := mvt.RawLayers(t.Data())
	if err != nil {
		return nil, err
	}
	bounds := t.Bounds()
	out := make([]NamedCollection, 0, len(raw))
	for _, layerMsg := range raw {
		layer, err := mvt.NewLayer(layerMsg)
		if err != nil {
			return nil, err
		}
		fc, err := layerCollection(layer, bounds)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedCollection{Name: layer.Name, Collection: fc})
	}
	return out, nil
}

// Layer converts a single named layer. A miss returns
// tile.ErrLayerNotFound.
func Layer(t *tile.Tile, name string) (*orbgeojson.FeatureCollection, error) {
	all, err := Layers(t)
	if err != nil {
		return nil, err
	}
	for _, nc := range all {
		if nc.Name == name {
			return nc.Collection, nil
		}
	}
	return nil, fmt.Errorf("%w: layer name %q not found", tile.ErrLayerNotFound, name)
}

// LayerAt converts the i-th layer in buffer order. An out-of-range index
// returns tile.ErrLayerNotFound.
func LayerAt(t *tile.Tile, i int) (*orbgeojson.FeatureCollection, error) {
	all, err := Layers(t)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(all) {
		return nil, fmt.Errorf("%w: layer index %d out of range", tile.ErrLayerNotFound, i)
	}
	return all[i].Collection, nil
}

// All merges every layer into one collection; each feature is tagged with
// its source layer under the "layer" property.
func All(t *tile.Tile) (*orbgeojson.FeatureCollection, error) {
	all, err := Layers(t)
	if err != nil {
		return nil, err
	}
	fc := orbgeojson.NewFeatureCollection()
	for _, nc := range all {
		for _, f := range nc.Collection.Features {
			f.Properties["layer"] = nc.Name
			fc.Append(f)
		}
	}
	return fc, nil
}

func layerCollection(layer *mvt.Layer, bounds tile.Bounds) (*orbgeojson.FeatureCollection, error) {
	// Grid to mercator is linear, so it folds into the decode affine;
	// mercator to lon/lat is applied pointwise afterwards.
	affine := mvt.Affine{
		ScaleX:     bounds.Width() / float64(layer.Extent),
		ScaleY:     -bounds.Height() / float64(layer.Extent),
		TranslateX: bounds.MinX,
		TranslateY: bounds.MaxY,
	}
	toLonLat := func(p orb.Point) orb.Point {
		lon, lat := proj.WebMercatorToLonLat(p[0], p[1])
		return orb.Point{lon, lat}
	}

	fc := orbgeojson.NewFeatureCollection()
	it := layer.Features(nil)
	for it.Next() {
		f := it.Feature()
		g, err := f.Geometry(affine, false)
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue
		}
		props, err := f.Properties()
		if err != nil {
			return nil, err
		}
		feat := orbgeojson.NewFeature(project.Geometry(g, toLonLat))
		if f.ID != 0 {
			feat.ID = f.ID
		}
		for k, v := range props {
			feat.Properties[k] = v
		}
		fc.Append(feat)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return fc, nil
}
