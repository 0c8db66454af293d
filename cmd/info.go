package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilecraft/vtcompose/internal/mvt"
)

var infoCmd = &cobra.Command{
	Use:   "info z/x/y:path",
	Short: "Summarize a tile's layers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := parseTileSpec(args[0])
		if err != nil {
			exitWithError("Failed to load tile", err)
		}
		stats, err := mvt.StatLayers(t.Data())
		if err != nil {
			exitWithError("Failed to read tile", err)
		}
		fmt.Printf("tile %d/%d/%d (%d bytes, tile_size=%d, buffer_size=%d)\n",
			t.Z(), t.X(), t.Y(), t.Len(), t.TileSize(), t.BufferSize())
		for _, st := range stats {
			state := "empty"
			if st.Painted {
				state = "painted"
			} else if st.Features > 0 {
				state = "unpainted"
			}
			fmt.Printf("  %-24s v%d extent=%d features=%d %s\n",
				st.Name, st.Version, st.Extent, st.Features, state)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
