package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoFeatures marks a document without a "features" list.
	ErrNoFeatures = errors.New("document has no features list")
	// ErrNullFeature marks a null entry inside the features list.
	ErrNullFeature = errors.New("features list contains null")
)

// Route is one loaded route segment file.
type Route struct {
	Name string
	Path string
	Doc  *FeatureCollection
}

// Features returns the route's features in source order.
func (r *Route) Features() []*Feature {
	if r == nil || r.Doc == nil {
		return nil
	}
	return r.Doc.Features
}

// Decode reads one route document. Numbers inside properties keep their
// original text so ids and counters round-trip unchanged.
func Decode(r io.Reader) (*FeatureCollection, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var fc FeatureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, err
	}
	if fc.Features == nil {
		return nil, ErrNoFeatures
	}
	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("feature %d: %w", i, ErrNullFeature)
		}
	}
	return &fc, nil
}

// LoadRoute reads one route file.
func LoadRoute(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route %s: %w", path, err)
	}
	fc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse route %s: %w", path, err)
	}
	return &Route{Name: routeName(path), Path: path, Doc: fc}, nil
}

// LoadRoutes reads every file in order. Any failure aborts the whole load.
func LoadRoutes(paths []string) ([]*Route, error) {
	routes := make([]*Route, 0, len(paths))
	for _, p := range paths {
		r, err := LoadRoute(p)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func routeName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
