package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/tilecraft/vtcompose/internal/logger"
	"github.com/tilecraft/vtcompose/internal/tile"
)

var (
	verbose         bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "vtcompose",
	Short: "Vector tile compositing and validation toolkit",
	Long: `vtcompose composites, inspects, and validates Mapbox Vector Tiles.

Features:
  - Composite N source tiles into a destination tile with clipping,
    simplification, and polygon union
  - OGC simplicity/validity reports with GeoJSON snippets
  - Byte-exact layer extraction and GeoJSON export
  - Declarative composite jobs from YAML`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 0, "Interval for system metrics logging (0 disables)")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}

// parseTileSpec parses a "z/x/y:path" source argument and loads the tile.
func parseTileSpec(spec string) (*tile.Tile, error) {
	addr, path, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("tile spec %q must be z/x/y:path", spec)
	}
	parts := strings.Split(addr, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("tile spec %q must be z/x/y:path", spec)
	}
	var zxy [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("tile spec %q: invalid coordinate %q", spec, p)
		}
		zxy[i] = uint32(v)
	}
	t, err := tile.New(zxy[0], zxy[1], zxy[2], nil)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := t.SetData(data); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}
