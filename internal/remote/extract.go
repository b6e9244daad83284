package remote

import (
	"strconv"

	"github.com/oliveagle/jsonpath"
)

// Lookup extracts a value from a decoded JSON document using a JSONPath
// expression (e.g. "$.costInfo.totalCost"). Returns false when the path does
// not resolve.
func Lookup(doc interface{}, path string) (interface{}, bool) {
	if doc == nil || path == "" {
		return nil, false
	}

	value, err := jsonpath.JsonPathLookup(doc, path)
	if err != nil {
		return nil, false
	}

	return value, true
}

// LookupNumber extracts a numeric value, coercing JSON number types and
// numeric strings
func LookupNumber(doc interface{}, path string) (float64, bool) {
	value, ok := Lookup(doc, path)
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	default:
		return 0, false
	}
}

// LookupString extracts a non-empty string value
func LookupString(doc interface{}, path string) (string, bool) {
	value, ok := Lookup(doc, path)
	if !ok {
		return "", false
	}

	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}

	return s, true
}
