package compose

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tilecraft/vtcompose/internal/logger"
	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/tile"
)

// baseScaleDenominator is the standard zoom-0 scale denominator for
// spherical mercator at 96dpi.
const baseScaleDenominator = 559082264.028

// contribution is one source layer feeding a destination layer.
type contribution struct {
	source   *tile.Tile
	layerMsg []byte
	stat     mvt.LayerStat
}

// layerGroup collects every contribution to one destination layer, in
// source order. The first contribution establishes extent and version.
type layerGroup struct {
	name     string
	contribs []contribution
}

// Composite merges the source tiles' layers into the destination tile.
// Layers merge by name; surviving features append into the destination
// buffer in first-seen layer order. Source tiles are only read. Per-feature
// failures are skipped; structural failures abort with
// ErrStructuralComposite. Invalid options abort with tile.ErrInvalidOptions
// before any work begins.
func Composite(ctx context.Context, dst *tile.Tile, sources []*tile.Tile, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	log := logger.Get()

	scaleDenom := opts.ScaleDenominator
	if scaleDenom == 0 {
		scaleDenom = baseScaleDenominator / float64(uint64(1)<<dst.Z())
	}

	groups, err := collectGroups(sources, opts, scaleDenom)
	if err != nil {
		return err
	}

	destBounds := dst.Bounds()
	clipWorld := dst.BufferedBounds()
	if opts.MaxExtent != nil {
		clipWorld = *opts.MaxExtent
	}

	encoded := make([][]byte, len(groups))
	encodeGroup := func(i int) error {
		data, err := processGroup(dst, groups[i], opts, destBounds, clipWorld, log)
		if err != nil {
			return err
		}
		encoded[i] = data
		return nil
	}

	eager := opts.ThreadingMode == ThreadingEager ||
		(opts.ThreadingMode == ThreadingAuto && len(sources) > 1)
	if eager && len(groups) > 1 {
		g, _ := errgroup.WithContext(ctx)
		for i := range groups {
			i := i
			g.Go(func() error { return encodeGroup(i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := encodeGroup(i); err != nil {
				return err
			}
		}
	}

	// The destination append path is the single mutation and runs on the
	// calling goroutine only.
	for _, data := range encoded {
		dst.AppendLayer(data)
	}
	return nil
}

func collectGroups(sources []*tile.Tile, opts Options, scaleDenom float64) ([]layerGroup, error) {
	var (
		byName = map[string]int{}
		groups []layerGroup
	)
	for _, src := range sources {
		raw, err := mvt.RawLayers(src.Data())
		if err != nil {
			return nil, fmt.Errorf("%w: source %d/%d/%d: %v", ErrStructuralComposite, src.Z(), src.X(), src.Y(), err)
		}
		stats, err := mvt.StatLayers(src.Data())
		if err != nil {
			return nil, fmt.Errorf("%w: source %d/%d/%d: %v", ErrStructuralComposite, src.Z(), src.X(), src.Y(), err)
		}
		for i, layerMsg := range raw {
			name := stats[i].Name
			if opts.LayerVisible != nil && !opts.LayerVisible(name, scaleDenom) {
				continue
			}
			idx, ok := byName[name]
			if !ok {
				idx = len(groups)
				byName[name] = idx
				groups = append(groups, layerGroup{name: name})
			}
			groups[idx].contribs = append(groups[idx].contribs, contribution{
				source:   src,
				layerMsg: layerMsg,
				stat:     stats[i],
			})
		}
	}
	return groups, nil
}

// processGroup produces the destination layer message for one group.
func processGroup(dst *tile.Tile, group layerGroup, opts Options, destBounds, clipWorld tile.Bounds, log *zap.Logger) ([]byte, error) {
	// A single same-address contribution with no transform requested is
	// copied byte for byte.
	if len(group.contribs) == 1 && passthroughEligible(dst, group.contribs[0], opts) {
		return group.contribs[0].layerMsg, nil
	}

	first := group.contribs[0].stat
	writer := mvt.NewLayerWriter(group.name, first.Version, first.Extent)
	destExtent := writer.Extent

	p := &pipeline{
		opts:      opts,
		clipBound: worldToGrid(clipWorld, destBounds, destExtent),
	}

	for _, c := range group.contribs {
		layer, err := mvt.NewLayer(c.layerMsg)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %q: %v", ErrStructuralComposite, group.name, err)
		}
		affine := gridToGrid(c.source.Bounds(), layer.Extent, destBounds, destExtent, opts)
		for i := 0; i < layer.NumFeatures(); i++ {
			appendFeature(writer, layer, i, affine, p, opts, log)
		}
	}
	return writer.Marshal(), nil
}

// appendFeature runs one source feature through the pipeline and appends
// the survivor. Every failure is local: the feature is skipped and
// processing continues.
func appendFeature(writer *mvt.LayerWriter, layer *mvt.Layer, i int, affine mvt.Affine, p *pipeline, opts Options, log *zap.Logger) {
	f, err := layer.Feature(i)
	if err != nil {
		log.Debug("Skipping malformed feature",
			zap.String("layer", layer.Name), zap.Int("index", i), zap.Error(err))
		return
	}
	g, err := f.Geometry(affine, opts.ProcessAllRings)
	if err != nil {
		log.Debug("Skipping feature with malformed geometry",
			zap.String("layer", layer.Name), zap.Uint64("id", f.ID), zap.Error(err))
		return
	}
	if g == nil && len(f.Raster) == 0 {
		return
	}
	if g != nil {
		g = p.run(g)
		if g == nil && len(f.Raster) == 0 {
			return
		}
	}
	var (
		cmds []uint32
		typ  = mvt.GeomTypeUnknown
	)
	if g != nil {
		cmds, typ, err = mvt.EncodeGeometry(g)
		if err != nil {
			log.Debug("Skipping unencodable feature",
				zap.String("layer", layer.Name), zap.Uint64("id", f.ID), zap.Error(err))
			return
		}
		if len(cmds) == 0 && len(f.Raster) == 0 {
			return
		}
	}
	props, err := f.Properties()
	if err != nil {
		log.Debug("Skipping feature with malformed attributes",
			zap.String("layer", layer.Name), zap.Uint64("id", f.ID), zap.Error(err))
		return
	}
	if len(f.Raster) > 0 {
		writer.AddRasterFeature(f.ID, typ, cmds, f.Raster, props)
		return
	}
	writer.AddFeature(f.ID, typ, cmds, props)
}

func passthroughEligible(dst *tile.Tile, c contribution, opts Options) bool {
	return !opts.Reencode &&
		opts.MaxExtent == nil &&
		opts.OffsetX == 0 && opts.OffsetY == 0 &&
		c.source.Z() == dst.Z() &&
		c.source.X() == dst.X() &&
		c.source.Y() == dst.Y()
}

// gridToGrid builds the affine mapping source tile-grid coordinates into
// destination tile-grid coordinates, going through mercator space. Both
// legs are linear, so they compose into a single affine.
func gridToGrid(srcBounds tile.Bounds, srcExtent uint32, destBounds tile.Bounds, destExtent uint32, opts Options) mvt.Affine {
	sxw := srcBounds.Width() / float64(srcExtent)
	syw := srcBounds.Height() / float64(srcExtent)
	dxw := destBounds.Width() / float64(destExtent)
	dyw := destBounds.Height() / float64(destExtent)
	return mvt.Affine{
		ScaleX:     sxw / dxw,
		ScaleY:     syw / dyw,
		TranslateX: (srcBounds.MinX-destBounds.MinX)/dxw + opts.OffsetX,
		TranslateY: (destBounds.MaxY-srcBounds.MaxY)/dyw + opts.OffsetY,
	}
}

// worldToGrid converts a mercator box into destination grid units.
func worldToGrid(world, destBounds tile.Bounds, destExtent uint32) orb.Bound {
	sx := float64(destExtent) / destBounds.Width()
	sy := float64(destExtent) / destBounds.Height()
	return orb.Bound{
		Min: orb.Point{(world.MinX - destBounds.MinX) * sx, (destBounds.MaxY - world.MaxY) * sy},
		Max: orb.Point{(world.MaxX - destBounds.MinX) * sx, (destBounds.MaxY - world.MinY) * sy},
	}
}
