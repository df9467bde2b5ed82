// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package meshmodel

import (
	"encoding/json"
	"fmt"
)

// DecodeTagValue populates exactly the typed value slot of t matching
// t.ValueType from raw, clearing all others. Coordinate values are
// range-checked (latitude [-90, 90], longitude [-180, 180]). This is the
// boundary validation for both the HTTP surface and the bulk importer;
// a tag that passes here satisfies the type-exclusivity invariant.
func DecodeTagValue(t *NodeTag, raw json.RawMessage) error {
	t.ValueString, t.ValueNumber, t.ValueBoolean = nil, nil, nil
	t.Latitude, t.Longitude = nil, nil

	switch t.ValueType {
	case TagValueString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("tag value: want a string: %w", err)
		}
		t.ValueString = &v

	case TagValueNumber:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("tag value: want a number: %w", err)
		}
		t.ValueNumber = &v

	case TagValueBoolean:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("tag value: want a boolean: %w", err)
		}
		t.ValueBoolean = &v

	case TagValueCoordinate:
		var v struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("tag value: want {latitude, longitude}: %w", err)
		}
		if v.Latitude == nil || v.Longitude == nil {
			return fmt.Errorf("tag value: coordinate needs both latitude and longitude")
		}
		if *v.Latitude < -90 || *v.Latitude > 90 {
			return fmt.Errorf("tag value: latitude %v out of range [-90, 90]", *v.Latitude)
		}
		if *v.Longitude < -180 || *v.Longitude > 180 {
			return fmt.Errorf("tag value: longitude %v out of range [-180, 180]", *v.Longitude)
		}
		t.Latitude, t.Longitude = v.Latitude, v.Longitude

	default:
		return fmt.Errorf("tag value: unknown value type %q", t.ValueType)
	}

	return nil
}
