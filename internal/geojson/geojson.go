// Package geojson holds the route documents replayed by the feeder.
package geojson

import (
	"encoding/json"
	"fmt"
)

// TimestampKey is the property the feeder stamps with the send time.
const TimestampKey = "ts"

// FeatureCollection is a GeoJSON document with an ordered feature list.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// Feature is a single geographic record. Geometry and any foreign members
// are kept verbatim; see MarshalJSON.
type Feature struct {
	Type       string
	ID         any
	Geometry   json.RawMessage
	Properties map[string]any

	extra   map[string]json.RawMessage
	present uint8
}

// Geometry is the decoded form used when coordinates are needed.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// SetTimestamp sets properties.ts, creating the properties map if needed.
func (f *Feature) SetTimestamp(ms int64) {
	if f.Properties == nil {
		f.Properties = make(map[string]any)
	}
	f.Properties[TimestampKey] = ms
}

// Timestamp returns properties.ts as milliseconds.
func (f *Feature) Timestamp() (int64, bool) {
	if f.Properties == nil {
		return 0, false
	}
	switch v := f.Properties[TimestampKey].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Point returns the lon/lat of a Point geometry.
func (f *Feature) Point() (lon, lat float64, ok bool) {
	if len(f.Geometry) == 0 {
		return 0, 0, false
	}
	var g Geometry
	if err := json.Unmarshal(f.Geometry, &g); err != nil || g.Type != "Point" {
		return 0, 0, false
	}
	var c []float64
	if err := json.Unmarshal(g.Coordinates, &c); err != nil || len(c) < 2 {
		return 0, 0, false
	}
	return c[0], c[1], true
}

// Clone returns a copy with its own properties map. Geometry is shared.
func (f *Feature) Clone() *Feature {
	c := *f
	if f.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(f.extra))
		for k, v := range f.extra {
			c.extra[k] = v
		}
	}
	if f.Properties != nil {
		c.Properties = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// NewPoint builds a Point feature.
func NewPoint(lon, lat float64, props map[string]any) *Feature {
	geom, _ := json.Marshal(struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}{"Point", []float64{lon, lat}})
	if props == nil {
		props = map[string]any{}
	}
	return &Feature{Type: "Feature", Geometry: geom, Properties: props}
}

func (f *Feature) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("<feature: %v>", err)
	}
	return string(b)
}
