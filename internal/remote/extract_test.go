package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestLookup(t *testing.T) {
	doc := decode(t, `{"costInfo": {"totalCost": 1.25, "currency": "USD"}}`)

	value, ok := Lookup(doc, "$.costInfo.currency")
	assert.True(t, ok)
	assert.Equal(t, "USD", value)

	_, ok = Lookup(doc, "$.costInfo.missing")
	assert.False(t, ok)

	_, ok = Lookup(nil, "$.anything")
	assert.False(t, ok)

	_, ok = Lookup(doc, "")
	assert.False(t, ok)
}

func TestLookupNumber(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		path     string
		expected float64
		found    bool
	}{
		{"json number", `{"costInfo": {"totalCost": 1.25}}`, "$.costInfo.totalCost", 1.25, true},
		{"integer", `{"count": 7}`, "$.count", 7, true},
		{"numeric string", `{"cost": "0.42"}`, "$.cost", 0.42, true},
		{"non-numeric string", `{"cost": "free"}`, "$.cost", 0, false},
		{"missing path", `{"costInfo": {}}`, "$.costInfo.totalCost", 0, false},
		{"wrong type", `{"cost": {"amount": 1}}`, "$.cost", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := LookupNumber(decode(t, tt.doc), tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestLookupString(t *testing.T) {
	doc := decode(t, `{"program": {"url": "https://example.com/write-for-us", "note": ""}}`)

	value, ok := LookupString(doc, "$.program.url")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/write-for-us", value)

	_, ok = LookupString(doc, "$.program.note")
	assert.False(t, ok, "empty strings count as absent")

	_, ok = LookupString(doc, "$.program.missing")
	assert.False(t, ok)
}
