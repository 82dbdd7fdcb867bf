package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// decode maps a store document onto v. Stores hand back loosely typed maps
// (Firestore timestamps, JSON numbers), so the map goes through JSON once.
func decode(data map[string]any, v any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		if errors.Is(err, ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func present(data map[string]any, key string) bool {
	v, ok := data[key]
	return ok && v != nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime reads a stored timestamp: a time.Time, epoch milliseconds as a
// number or numeric string, or one of the common string layouts. Layouts
// without a zone are read as UTC.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case int:
		return time.UnixMilli(int64(x)).UTC(), true
	case int32:
		return time.UnixMilli(int64(x)).UTC(), true
	case int64:
		return time.UnixMilli(x).UTC(), true
	case float64:
		return time.UnixMilli(int64(x)).UTC(), true
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		if f, err := x.Float64(); err == nil {
			return time.UnixMilli(int64(f)).UTC(), true
		}
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}

// timestamps returns a copy of data with the named fields rewritten through
// ParseTime. A value that cannot be read is dropped and decodes to the zero
// time (or nil for pointer fields); timestamps never fail a document.
func timestamps(data map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range keys {
		v, ok := out[k]
		if !ok || v == nil {
			continue
		}
		if t, ok := ParseTime(v); ok {
			out[k] = t
		} else {
			delete(out, k)
		}
	}
	return out
}
