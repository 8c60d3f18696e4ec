package mcp

import (
	"bytes"
	"encoding/json"
)

// toolArgs are the validated arguments shared by both tools.
type toolArgs struct {
	FilePath string
}

// validateArgs checks raw tool arguments against {filePath: non-empty
// string}. It touches nothing but the bytes it is given.
func validateArgs(raw json.RawMessage) (toolArgs, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || jsonType(raw) == "null" {
		return toolArgs{}, invalidParams("Invalid parameters: Required")
	}

	var fields map[string]json.RawMessage
	if jsonType(raw) != "object" || json.Unmarshal(raw, &fields) != nil {
		return toolArgs{}, invalidParams("Invalid parameters: Expected object, received %s", jsonType(raw))
	}

	value, ok := fields["filePath"]
	if !ok {
		return toolArgs{}, invalidParams("Invalid parameters: filePath: Required")
	}

	var filePath string
	if t := jsonType(value); t != "string" || json.Unmarshal(value, &filePath) != nil {
		return toolArgs{}, invalidParams("Invalid parameters: filePath: Expected string, received %s", t)
	}
	if filePath == "" {
		return toolArgs{}, invalidParams("Invalid parameters: filePath: File path is required")
	}
	return toolArgs{FilePath: filePath}, nil
}

// jsonType names the JSON type of a value by its first byte.
func jsonType(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "undefined"
	}
	switch v[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
