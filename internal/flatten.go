package internal

import (
	"encoding/json"
	"fmt"
)

// Flatten takes a nested map and returns a new map with the keys flattened into a single level.
// Nested map keys are joined with a ".".
// For example, `{"a": {"b": 1}}` becomes `{"a.b": 1}`.
// Arrays keep their value under the key and also get one indexed key per element.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

// FlattenJSON decodes raw as a JSON object and flattens it.
// Anything that is not an object yields an empty map.
func FlattenJSON(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return map[string]interface{}{}
	}
	return Flatten(object)
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, path+"."+key, child)
		}
	case []interface{}:
		out[path] = typed
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}
