package engine

import (
	"encoding/json"
	"fmt"
)

// JSONValue is a Value carried as an encoded JSON document.
type JSONValue []byte

func (v JSONValue) HostValue() (map[string]any, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	var out map[string]any
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("value is null")
	}
	return out, nil
}

// MapValue is a Value that is already a host map.
type MapValue map[string]any

func (v MapValue) HostValue() (map[string]any, error) {
	if v == nil {
		return nil, fmt.Errorf("value is null")
	}
	return map[string]any(v), nil
}
