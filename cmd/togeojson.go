package cmd

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tilecraft/vtcompose/internal/geojson"
)

var togeojsonCmd = &cobra.Command{
	Use:   "togeojson z/x/y:path [LAYER]",
	Short: "Export tile layers as GeoJSON in WGS84",
	Long: `Without a layer argument every layer is merged into one
FeatureCollection, with each feature tagged by its source layer. With a
layer name or numeric index only that layer is exported.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := parseTileSpec(args[0])
		if err != nil {
			exitWithError("Failed to load tile", err)
		}
		fc, err := func() (json.Marshaler, error) {
			if len(args) == 2 {
				if idx, err := strconv.Atoi(args[1]); err == nil {
					return geojson.LayerAt(t, idx)
				}
				return geojson.Layer(t, args[1])
			}
			return geojson.All(t)
		}()
		if err != nil {
			exitWithError("GeoJSON export failed", err)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			exitWithError("Failed to encode GeoJSON", err)
		}
		os.Stdout.Write(data)
		os.Stdout.Write([]byte("\n"))
	},
}

func init() {
	rootCmd.AddCommand(togeojsonCmd)
}
