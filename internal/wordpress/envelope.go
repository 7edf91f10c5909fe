package wordpress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
)

// ErrUnexpectedShape is returned when a response carries no recognizable collection.
var ErrUnexpectedShape = errors.New("response is not a collection")

// Unwrap decodes a response body into records. It accepts a bare array,
// {"data": [...]}, the {code, message, data} envelope and any single-key
// object whose value is an array. When embedKey is set the body is the
// parent object and the collection is read from that key.
func Unwrap(body []byte, embedKey string) ([]scavenge.Record, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if embedKey != "" {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("embedded %q: %w", embedKey, ErrUnexpectedShape)
		}
		child, found := obj[embedKey]
		if !found {
			if data, ok := obj["data"].(map[string]any); ok {
				child, found = data[embedKey]
			}
		}
		if !found {
			return nil, fmt.Errorf("embedded %q missing: %w", embedKey, ErrUnexpectedShape)
		}
		recs, ok := Children(child)
		if !ok {
			return nil, fmt.Errorf("embedded %q: %w", embedKey, ErrUnexpectedShape)
		}
		return recs, nil
	}

	list, ok := unwrapList(v, 2)
	if !ok {
		return nil, ErrUnexpectedShape
	}
	return toRecords(list), nil
}

func unwrapList(v any, depth int) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		if depth == 0 {
			return nil, false
		}
		if data, ok := t["data"]; ok {
			if list, ok := unwrapList(data, depth-1); ok {
				return list, true
			}
		}
		if len(t) == 1 {
			for _, only := range t {
				if list, ok := only.([]any); ok {
					return list, true
				}
			}
		}
	}
	return nil, false
}

func toRecords(list []any) []scavenge.Record {
	out := make([]scavenge.Record, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Children reads an embedded child collection. PHP associative arrays
// arrive as objects keyed "0", "1", ...; those are returned in key order.
func Children(v any) ([]scavenge.Record, bool) {
	switch t := v.(type) {
	case []any:
		return toRecords(t), true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k, item := range t {
			if _, ok := item.(map[string]any); !ok {
				return nil, false
			}
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]scavenge.Record, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k].(map[string]any))
		}
		return out, true
	}
	return nil, false
}
