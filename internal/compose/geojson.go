package compose

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"

	"github.com/tilecraft/vtcompose/internal/logger"
	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/proj"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// AddGeoJSON projects a WGS84 feature collection into the destination
// tile's grid, runs it through the per-feature pipeline, and appends the
// result as a new layer. Features whose geometry is dropped by the pipeline
// are skipped.
func AddGeoJSON(dst *tile.Tile, data []byte, layerName string, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("%w: parsing geojson: %v", ErrStructuralComposite, err)
	}
	log := logger.Get()

	destBounds := dst.Bounds()
	destExtent := uint32(mvt.DefaultExtent)
	clipWorld := dst.BufferedBounds()
	if opts.MaxExtent != nil {
		clipWorld = *opts.MaxExtent
	}

	toGrid := func(p orb.Point) orb.Point {
		x, y := proj.LonLatToWebMercator(p[0], p[1])
		return orb.Point{
			(x - destBounds.MinX) / destBounds.Width() * float64(destExtent),
			(destBounds.MaxY - y) / destBounds.Height() * float64(destExtent),
		}
	}

	p := &pipeline{
		opts:      opts,
		clipBound: worldToGrid(clipWorld, destBounds, destExtent),
	}
	writer := mvt.NewLayerWriter(layerName, mvt.DefaultVersion, destExtent)

	for _, feat := range fc.Features {
		g := project.Geometry(orb.Clone(feat.Geometry), toGrid)
		g = p.run(g)
		if g == nil {
			continue
		}
		cmds, typ, err := mvt.EncodeGeometry(g)
		if err != nil || len(cmds) == 0 {
			log.Debug("Skipping geojson feature", zap.String("layer", layerName))
			continue
		}
		var id uint64
		switch v := feat.ID.(type) {
		case float64:
			if v > 0 {
				id = uint64(v)
			}
		case int:
			if v > 0 {
				id = uint64(v)
			}
		}
		writer.AddFeature(id, typ, cmds, feat.Properties)
	}

	dst.AppendLayer(writer.Marshal())
	return nil
}
