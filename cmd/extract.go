package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tilecraft/vtcompose/internal/logger"
)

var extractOut string

var extractCmd = &cobra.Command{
	Use:   "extract z/x/y:path LAYER",
	Short: "Extract a single layer into a new tile, byte for byte",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := parseTileSpec(args[0])
		if err != nil {
			exitWithError("Failed to load tile", err)
		}
		out, err := t.ExtractLayer(args[1])
		if err != nil {
			exitWithError("Extraction failed", err)
		}
		data, err := out.GetData(false)
		if err != nil {
			exitWithError("Failed to serialize tile", err)
		}
		if err := os.WriteFile(extractOut, data, 0o644); err != nil {
			exitWithError("Failed to write output", err)
		}
		logger.Get().Info("Layer extracted",
			zap.String("layer", args[1]), zap.Int("bytes", len(data)))
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "layer.mvt", "Output file")
}
