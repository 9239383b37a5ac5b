package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSchemaDropsMetadataKeys(t *testing.T) {
	schema := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"$id":         "https://example.com/schema",
		"definitions": map[string]interface{}{"x": true},
		"$defs":       map[string]interface{}{"y": true},
		"examples":    []interface{}{"a"},
		"default":     "b",
		"type":        "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":    "string",
				"default": "bob",
			},
		},
	}

	got := SanitizeSchema(schema)

	for _, key := range []string{"$schema", "$id", "definitions", "$defs", "examples", "default"} {
		assert.NotContains(t, got, key)
	}
	name := got["properties"].(map[string]interface{})["name"].(map[string]interface{})
	assert.NotContains(t, name, "default", "nested schemas are sanitized too")
	assert.Equal(t, "string", name["type"])
}

func TestSanitizeSchemaForcesObjectType(t *testing.T) {
	got := SanitizeSchema(map[string]interface{}{
		"properties": map[string]interface{}{},
	})
	assert.Equal(t, "object", got["type"])

	assert.Equal(t, "object", SanitizeSchema(nil)["type"])
}

func TestSanitizeSchemaRecursesItemsAndAdditionalProperties(t *testing.T) {
	schema := map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"$ref": "#/definitions/item",
			"properties": map[string]interface{}{
				"tags": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string", "examples": []interface{}{"t"}},
				},
			},
		},
		"additionalProperties": map[string]interface{}{"$schema": "x"},
	}

	got := SanitizeSchema(schema)

	items := got["items"].(map[string]interface{})
	assert.NotContains(t, items, "$ref")
	tags := items["properties"].(map[string]interface{})["tags"].(map[string]interface{})
	inner := tags["items"].(map[string]interface{})
	assert.NotContains(t, inner, "examples")

	ap := got["additionalProperties"].(map[string]interface{})
	assert.NotContains(t, ap, "$schema")
}

func TestSanitizeSchemaAdditionalPropertiesFalseSurvives(t *testing.T) {
	got := SanitizeSchema(map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
	})
	assert.Equal(t, false, got["additionalProperties"])

	got = SanitizeSchema(map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
	})
	assert.NotContains(t, got, "additionalProperties")
}

func TestSanitizeSchemaIdempotent(t *testing.T) {
	schema := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"properties": map[string]interface{}{
			"q": map[string]interface{}{"type": "string", "default": "x"},
		},
	}
	once := SanitizeSchema(schema)
	twice := SanitizeSchema(once)
	require.Equal(t, once, twice)
}
