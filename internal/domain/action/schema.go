package action

// ResponseSchema returns the JSON schema handed to the upstream model so
// its decision is constrained to the action vocabulary. The upstream
// service accepts a standard JSON Schema object for structured output.
func ResponseSchema() map[string]interface{} {
	kinds := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		kinds = append(kinds, string(k))
	}

	point := map[string]interface{}{
		"type":     "array",
		"items":    map[string]interface{}{"type": "number"},
		"minItems": 2,
		"maxItems": 2,
	}

	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"kind": map[string]interface{}{
					"type": "string",
					"enum": kinds,
				},
				"text":     map[string]interface{}{"type": "string"},
				"selector": map[string]interface{}{"type": "string"},
				"prompt":   map[string]interface{}{"type": "string"},
				"filename": map[string]interface{}{"type": "string"},
				"enter":    map[string]interface{}{"type": "boolean"},
				"pixels":   map[string]interface{}{"type": "number"},
				"x":        map[string]interface{}{"type": "number"},
				"y":        map[string]interface{}{"type": "number"},
				"strokes": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":  "array",
						"items": point,
					},
				},
			},
			"required": []string{"kind"},
		},
	}
}
