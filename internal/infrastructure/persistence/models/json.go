package models

import "encoding/json"

// jsonText renders a serializer:json column for map based updates, which
// bypass the field serializer
func jsonText(v []string) string {
	if v == nil {
		return "[]"
	}
	// Marshal of a string slice cannot fail
	data, _ := json.Marshal(v)
	return string(data)
}
