package geojson

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CoordinatePrecision is the number of significant digits kept per value.
const CoordinatePrecision = 7

// FromKML converts every <coordinates> element of a KML document into a
// LineString feature with empty properties. Tuples are whitespace separated
// "lon,lat[,alt]" groups; tuples with fewer than two values are skipped.
func FromKML(r io.Reader) (*FeatureCollection, error) {
	dec := xml.NewDecoder(r)
	fc := &FeatureCollection{Type: "FeatureCollection", Features: []*Feature{}}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return fc, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse kml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "coordinates" {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, fmt.Errorf("parse kml coordinates: %w", err)
		}
		coords, err := parseCoordinates(text)
		if err != nil {
			return nil, err
		}
		geom, err := json.Marshal(struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		}{"LineString", coords})
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &Feature{
			Type:       "Feature",
			Geometry:   geom,
			Properties: map[string]any{},
		})
	}
}

func parseCoordinates(text string) ([][]float64, error) {
	coords := [][]float64{}
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		c := make([]float64, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("parse coordinate %q: %w", tuple, err)
			}
			c = append(c, roundSignificant(v, CoordinatePrecision))
		}
		if len(c) < 2 {
			continue
		}
		coords = append(coords, c)
	}
	return coords, nil
}

func roundSignificant(v float64, digits int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// SplitPoints expands every LineString into one Point feature per vertex,
// numbering them with properties.seq across the whole collection. Point
// features are copied through; other geometries are dropped.
func SplitPoints(fc *FeatureCollection) (*FeatureCollection, error) {
	out := &FeatureCollection{Type: "FeatureCollection", Features: []*Feature{}}
	seq := 0
	for i, f := range fc.Features {
		var g Geometry
		if err := json.Unmarshal(f.Geometry, &g); err != nil {
			return nil, fmt.Errorf("feature %d geometry: %w", i, err)
		}
		switch g.Type {
		case "Point":
			c := f.Clone()
			if c.Properties == nil {
				c.Properties = map[string]any{}
			}
			c.Properties["seq"] = seq
			seq++
			out.Features = append(out.Features, c)
		case "LineString":
			var line [][]float64
			if err := json.Unmarshal(g.Coordinates, &line); err != nil {
				return nil, fmt.Errorf("feature %d coordinates: %w", i, err)
			}
			for _, c := range line {
				if len(c) < 2 {
					continue
				}
				out.Features = append(out.Features, NewPoint(c[0], c[1], map[string]any{"seq": seq}))
				seq++
			}
		}
	}
	return out, nil
}
