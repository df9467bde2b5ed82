// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mockdata

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Counter is a monotonically increasing value shared across every
// {{counter}} placeholder expanded during a scenario's playback, mirroring
// process_dynamic_values' module-level counter in the original player.
type Counter struct {
	n uint64
}

// ProcessDynamicValues recursively substitutes the placeholder strings a
// scenario's event data may hold:
//
//	{{now}}         RFC3339 timestamp
//	{{random_snr}}  uniform(-20, 30)
//	{{random_rssi}} uniform(-110, -50)
//	{{uuid}}        random UUID
//	{{counter}}     shared incrementing counter
func ProcessDynamicValues(data map[string]any, counter *Counter) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = expand(v, counter)
	}
	return out
}

func expand(v any, counter *Counter) any {
	switch val := v.(type) {
	case string:
		switch val {
		case "{{now}}":
			return time.Now().UTC().Format(time.RFC3339)
		case "{{random_snr}}":
			return -20 + rand.Float64()*50
		case "{{random_rssi}}":
			return -110 + rand.Float64()*60
		case "{{uuid}}":
			return uuid.NewString()
		case "{{counter}}":
			n := counter.n
			counter.n++
			return n
		default:
			return val
		}
	case map[string]any:
		return ProcessDynamicValues(val, counter)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			if m, ok := item.(map[string]any); ok {
				result[i] = ProcessDynamicValues(m, counter)
			} else {
				result[i] = item
			}
		}
		return result
	default:
		return v
	}
}
