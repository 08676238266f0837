package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"locationfeed/internal/geojson"
)

var (
	convertInput  string
	convertOutput string
	convertPoints bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a KML track into a GeoJSON route file",
	Long:  "convert reads every <coordinates> element of a KML file and writes a GeoJSON FeatureCollection. With --points each vertex becomes its own Point feature, ready for play.",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(convertInput)
		if err != nil {
			return err
		}
		defer in.Close()

		out := cmd.OutOrStdout()
		if convertOutput != "" {
			f, err := os.Create(convertOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return convertKML(in, out, convertPoints)
	},
}

func convertKML(r io.Reader, w io.Writer, points bool) error {
	fc, err := geojson.FromKML(r)
	if err != nil {
		return err
	}
	if points {
		if fc, err = geojson.SplitPoints(fc); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func init() {
	convertCmd.Flags().StringVar(&convertInput, "input", "", "Path to KML file")
	convertCmd.Flags().StringVar(&convertOutput, "output", "", "Path to GeoJSON output (default STDOUT)")
	convertCmd.Flags().BoolVar(&convertPoints, "points", false, "Emit one Point feature per vertex")
	convertCmd.MarkFlagRequired("input")
}
