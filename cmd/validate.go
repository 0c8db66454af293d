package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tilecraft/vtcompose/internal/validate"
)

var (
	validateSimplicity bool
	validateSplitMulti bool
	validateLatLon     bool
	validateWebMerc    bool
	validateJSON       bool
)

var validateCmd = &cobra.Command{
	Use:   "validate z/x/y:path",
	Short: "Report OGC simplicity or validity failures in a tile",
	Long: `Validate decodes every feature of every layer and tests OGC
topological predicates. Simplicity reports carry layer and feature id;
validity reports add a failure message and a GeoJSON snippet of the
offending geometry.`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSimplicity, "simplicity", false, "Check OGC simplicity instead of validity")
	validateCmd.Flags().BoolVar(&validateSplitMulti, "split-multi", false, "Check multi-geometries part by part")
	validateCmd.Flags().BoolVar(&validateLatLon, "lat-lon", false, "Reproject to WGS84 before checking")
	validateCmd.Flags().BoolVar(&validateWebMerc, "web-merc", false, "Reproject to mercator meters before checking")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Emit the report as JSON")
}

func runValidate(cmd *cobra.Command, args []string) {
	t, err := parseTileSpec(args[0])
	if err != nil {
		exitWithError("Failed to load tile", err)
	}

	var report []validate.Error
	if validateSimplicity {
		report, err = validate.ReportSimplicity(t)
	} else {
		report, err = validate.ReportValidity(t, validate.Options{
			SplitMultiFeatures: validateSplitMulti,
			LatLon:             validateLatLon,
			WebMerc:            validateWebMerc,
		})
	}
	if err != nil {
		exitWithError("Validation failed", err)
	}

	if validateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			exitWithError("Failed to encode report", err)
		}
	} else {
		for _, e := range report {
			if e.Message == "" {
				fmt.Printf("%s\t%d\tnot simple\n", e.Layer, e.FeatureID)
			} else {
				fmt.Printf("%s\t%d\t%s\n", e.Layer, e.FeatureID, e.Message)
			}
		}
	}
	if len(report) > 0 {
		os.Exit(2)
	}
}
