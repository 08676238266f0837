package geojson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Members seen when the feature was decoded, so that explicit nulls and
// empty strings are written back as they came in.
const (
	hasType uint8 = 1 << iota
	hasID
	hasProperties
)

// UnmarshalJSON decodes a feature keeping every member. Numbers in id and
// properties keep their original text.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	if members == nil {
		return fmt.Errorf("feature is not an object")
	}
	*f = Feature{}
	for k, raw := range members {
		switch k {
		case "type":
			if err := json.Unmarshal(raw, &f.Type); err != nil {
				return fmt.Errorf("feature type: %w", err)
			}
			f.present |= hasType
		case "id":
			if err := decodeNumbers(raw, &f.ID); err != nil {
				return fmt.Errorf("feature id: %w", err)
			}
			f.present |= hasID
		case "geometry":
			f.Geometry = append(json.RawMessage(nil), raw...)
		case "properties":
			if err := decodeNumbers(raw, &f.Properties); err != nil {
				return fmt.Errorf("feature properties: %w", err)
			}
			f.present |= hasProperties
		default:
			if f.extra == nil {
				f.extra = make(map[string]json.RawMessage)
			}
			f.extra[k] = append(json.RawMessage(nil), raw...)
		}
	}
	return nil
}

// MarshalJSON writes type, id, geometry and properties followed by foreign
// members in key order. Members absent on decode stay absent.
func (f *Feature) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("feature %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	if f.Type != "" || f.present&hasType != 0 {
		if err := write("type", f.Type); err != nil {
			return nil, err
		}
	}
	if f.ID != nil || f.present&hasID != 0 {
		if err := write("id", f.ID); err != nil {
			return nil, err
		}
	}
	if len(f.Geometry) > 0 {
		if err := write("geometry", f.Geometry); err != nil {
			return nil, err
		}
	}
	if f.Properties != nil || f.present&hasProperties != 0 {
		if err := write("properties", f.Properties); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(f.extra))
	for k := range f.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, f.extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Member returns a foreign member exactly as it was read.
func (f *Feature) Member(key string) (json.RawMessage, bool) {
	v, ok := f.extra[key]
	return v, ok
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
