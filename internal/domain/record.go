package domain

import (
	"strconv"
	"time"
)

// Loose accessors for records coming off the tree store. Values arrive as
// whatever the writing client sent; these tolerate the encodings seen in
// legacy data rather than erroring on the first mismatch.

func recordString(record map[string]any, key string) string {
	switch v := record[key].(type) {
	case string:
		return v
	}
	return ""
}

func recordFloat(record map[string]any, key string) float64 {
	switch v := record[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func recordInt(record map[string]any, key string) int {
	switch v := record[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return 0
}

func recordBool(record map[string]any, key string) bool {
	switch v := record[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// recordTime decodes a timestamp field. The store convention is epoch
// milliseconds, but legacy writers also produced RFC3339 strings and some
// in-process fakes hand back time.Time directly.
func recordTime(record map[string]any, key string) time.Time {
	switch v := record[key].(type) {
	case int64:
		return time.UnixMilli(v).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	case time.Time:
		return v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
		if millis, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(millis).UTC()
		}
	}
	return time.Time{}
}

func recordMap(record map[string]any, key string) map[string]any {
	m, _ := record[key].(map[string]any)
	return m
}

func encodeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
