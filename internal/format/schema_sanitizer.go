package format

// Keys the upstream schema validator rejects.
var droppedSchemaKeys = map[string]bool{
	"$schema":     true,
	"$id":         true,
	"$ref":        true,
	"definitions": true,
	"$defs":       true,
	"examples":    true,
	"default":     true,
}

// SanitizeSchema strips unsupported JSON-Schema keywords from a tool
// parameter schema, recursing through properties, items and
// additionalProperties. The result always carries a type (object when the
// input had none). Sanitizing is idempotent.
func SanitizeSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object"}
	}
	result := make(map[string]interface{}, len(schema))
	for key, value := range schema {
		if droppedSchemaKeys[key] {
			continue
		}
		switch key {
		case "properties":
			if props, ok := value.(map[string]interface{}); ok {
				sanitized := make(map[string]interface{}, len(props))
				for name, prop := range props {
					if propMap, ok := prop.(map[string]interface{}); ok {
						sanitized[name] = SanitizeSchema(propMap)
					} else {
						sanitized[name] = prop
					}
				}
				result[key] = sanitized
			} else {
				result[key] = value
			}
		case "items":
			if itemMap, ok := value.(map[string]interface{}); ok {
				result[key] = SanitizeSchema(itemMap)
			} else {
				result[key] = value
			}
		case "additionalProperties":
			// Nested schemas are sanitized; the literal false survives;
			// everything else is dropped.
			if nested, ok := value.(map[string]interface{}); ok {
				result[key] = SanitizeSchema(nested)
			} else if b, ok := value.(bool); ok && !b {
				result[key] = false
			}
		default:
			if nested, ok := value.(map[string]interface{}); ok {
				result[key] = SanitizeSchema(nested)
			} else {
				result[key] = value
			}
		}
	}
	if _, ok := result["type"]; !ok {
		result["type"] = "object"
	}
	return result
}
