package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tilecraft/vtcompose/internal/compose"
	"github.com/tilecraft/vtcompose/internal/config"
	"github.com/tilecraft/vtcompose/internal/logger"
	"github.com/tilecraft/vtcompose/internal/metrics"
	"github.com/tilecraft/vtcompose/internal/tile"
)

var (
	compositeJobFile string
	compositeZ       uint32
	compositeX       uint32
	compositeY       uint32
	compositeTS      uint32
	compositeBuf     int32
	compositeOut     string

	flagScale       float64
	flagScaleDenom  float64
	flagOffsetX     float64
	flagOffsetY     float64
	flagArea        float64
	flagSimplify    float64
	flagStrict      bool
	flagUnion       bool
	flagReencode    bool
	flagAllRings    bool
	flagFillType    string
	flagThreading   string
	flagGzipOutput  bool
)

var compositeCmd = &cobra.Command{
	Use:   "composite [z/x/y:path ...]",
	Short: "Composite source tiles into a destination tile",
	Long: `Composite decodes each source tile, reprojects and clips its
features into the destination tile's buffered extent, simplifies and
re-encodes the result, and writes the destination tile buffer.

Sources are given as z/x/y:path arguments, or described in a YAML job file
together with the destination and options.`,
	Run: runComposite,
}

func init() {
	rootCmd.AddCommand(compositeCmd)

	compositeCmd.Flags().StringVar(&compositeJobFile, "job", "", "YAML job file describing destination, sources, and options")
	compositeCmd.Flags().Uint32VarP(&compositeZ, "zoom", "z", 0, "Destination tile zoom")
	compositeCmd.Flags().Uint32VarP(&compositeX, "x", "x", 0, "Destination tile column")
	compositeCmd.Flags().Uint32VarP(&compositeY, "y", "y", 0, "Destination tile row")
	compositeCmd.Flags().Uint32Var(&compositeTS, "tile-size", tile.DefaultTileSize, "Destination tile grid size")
	compositeCmd.Flags().Int32Var(&compositeBuf, "buffer-size", tile.DefaultBufferSize, "Destination tile buffer in grid units")
	compositeCmd.Flags().StringVarP(&compositeOut, "output", "o", "", "Output file for the destination tile")
	compositeCmd.Flags().BoolVar(&flagGzipOutput, "gzip", false, "Gzip the output buffer")

	compositeCmd.Flags().Float64Var(&flagScale, "scale", 1.0, "Scale factor for embedded rasters")
	compositeCmd.Flags().Float64Var(&flagScaleDenom, "scale-denominator", 0, "Scale denominator override for layer visibility")
	compositeCmd.Flags().Float64Var(&flagOffsetX, "offset-x", 0, "Feature offset in destination grid units")
	compositeCmd.Flags().Float64Var(&flagOffsetY, "offset-y", 0, "Feature offset in destination grid units")
	compositeCmd.Flags().Float64Var(&flagArea, "area-threshold", 0.1, "Drop polygon rings below this grid-unit area")
	compositeCmd.Flags().Float64Var(&flagSimplify, "simplify-distance", 0, "Douglas-Peucker tolerance in grid units")
	compositeCmd.Flags().BoolVar(&flagStrict, "strictly-simple", true, "Drop or repair non-simple geometries")
	compositeCmd.Flags().BoolVar(&flagUnion, "multi-polygon-union", false, "Union sub-polygons of multi-polygon features")
	compositeCmd.Flags().BoolVar(&flagReencode, "reencode", false, "Force geometry re-derivation instead of byte passthrough")
	compositeCmd.Flags().BoolVar(&flagAllRings, "process-all-rings", false, "Skip winding-order assumptions when decoding polygons")
	compositeCmd.Flags().StringVar(&flagFillType, "fill-type", "positive", "Polygon fill rule (even_odd, non_zero, positive, negative)")
	compositeCmd.Flags().StringVar(&flagThreading, "threading-mode", "deferred", "Threading mode (deferred, eager, auto)")
}

func runComposite(cmd *cobra.Command, args []string) {
	log := logger.Get()
	start := time.Now()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if metricsInterval > 0 {
		collector := metrics.NewCollector(metricsInterval, log)
		go collector.Start(ctx)
	}

	var (
		dst     *tile.Tile
		sources []*tile.Tile
		opts    compose.Options
		output  string
		err     error
	)
	if compositeJobFile != "" {
		dst, sources, opts, output, err = loadJob(compositeJobFile)
		if err != nil {
			exitWithError("Failed to load composite job", err)
		}
	} else {
		if compositeOut == "" || len(args) == 0 {
			exitWithError("composite requires --output and at least one z/x/y:path source (or --job)", nil)
		}
		output = compositeOut
		dst, err = tile.New(compositeZ, compositeX, compositeY,
			&tile.Options{TileSize: compositeTS, BufferSize: compositeBuf})
		if err != nil {
			exitWithError("Invalid destination tile", err)
		}
		for _, spec := range args {
			src, err := parseTileSpec(spec)
			if err != nil {
				exitWithError("Failed to load source tile", err)
			}
			sources = append(sources, src)
		}
		opts, err = flagOptions()
		if err != nil {
			exitWithError("Invalid composite options", err)
		}
	}

	if err := compose.Composite(ctx, dst, sources, opts); err != nil {
		exitWithError("Composite failed", err)
	}

	data, err := dst.GetData(flagGzipOutput)
	if err != nil {
		exitWithError("Failed to serialize destination tile", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		exitWithError("Failed to write output", err)
	}

	painted, _ := dst.PaintedLayers()
	empty, _ := dst.EmptyLayers()
	log.Info("Composite complete",
		zap.Uint32("z", dst.Z()), zap.Uint32("x", dst.X()), zap.Uint32("y", dst.Y()),
		zap.Int("sources", len(sources)),
		zap.Strings("painted", painted),
		zap.Strings("empty", empty),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func flagOptions() (compose.Options, error) {
	opts := compose.DefaultOptions()
	opts.ScaleFactor = flagScale
	opts.ScaleDenominator = flagScaleDenom
	opts.OffsetX = flagOffsetX
	opts.OffsetY = flagOffsetY
	opts.AreaThreshold = flagArea
	opts.SimplifyDistance = flagSimplify
	opts.StrictlySimple = flagStrict
	opts.MultiPolygonUnion = flagUnion
	opts.Reencode = flagReencode
	opts.ProcessAllRings = flagAllRings

	fill, err := compose.ParseFillType(flagFillType)
	if err != nil {
		return opts, err
	}
	opts.FillType = fill
	mode, err := compose.ParseThreadingMode(flagThreading)
	if err != nil {
		return opts, err
	}
	opts.ThreadingMode = mode
	return opts, opts.Validate()
}

func loadJob(path string) (*tile.Tile, []*tile.Tile, compose.Options, string, error) {
	job, err := config.Load(path)
	if err != nil {
		return nil, nil, compose.Options{}, "", err
	}
	dst, err := tile.New(job.Destination.Z, job.Destination.X, job.Destination.Y, job.TileOptions())
	if err != nil {
		return nil, nil, compose.Options{}, "", err
	}
	var sources []*tile.Tile
	for _, s := range job.Sources {
		src, err := tile.New(s.Z, s.X, s.Y, nil)
		if err != nil {
			return nil, nil, compose.Options{}, "", err
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, nil, compose.Options{}, "", err
		}
		if err := src.SetData(data); err != nil {
			return nil, nil, compose.Options{}, "", err
		}
		sources = append(sources, src)
	}
	opts, err := job.Options.ComposeOptions()
	if err != nil {
		return nil, nil, compose.Options{}, "", err
	}
	return dst, sources, opts, job.Destination.Output, nil
}
