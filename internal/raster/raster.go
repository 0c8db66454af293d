// Package raster embeds already-encoded image buffers into a tile as
// synthetic single-feature layers. No pixel decoding happens here; the
// buffer passes through byte for byte on the feature's raster field.
package raster

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// ErrEmptyImage reports an attempt to embed a zero-length image buffer.
var ErrEmptyImage = errors.New("raster: empty image buffer")

// AddImageBuffer appends a new layer carrying one raster feature. The
// feature's geometry is the polygon covering the layer extent, which keeps
// the layer painted for downstream consumers.
func AddImageBuffer(t *tile.Tile, image []byte, layerName string) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if layerName == "" {
		return fmt.Errorf("%w: layer name required", tile.ErrInvalidOptions)
	}

	const extent = mvt.DefaultExtent
	cover := orb.Polygon{orb.Ring{
		{0, 0}, {extent, 0}, {extent, extent}, {0, extent}, {0, 0},
	}}
	cmds, typ, err := mvt.EncodeGeometry(cover)
	if err != nil {
		return err
	}

	writer := mvt.NewLayerWriter(layerName, mvt.DefaultVersion, extent)
	writer.AddRasterFeature(0, typ, cmds, image, nil)
	t.AppendLayer(writer.Marshal())
	return nil
}
