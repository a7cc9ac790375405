package conv

import (
	"encoding/json"
	"strconv"
	"strings"
)

// AsInt64 converts a JSON-RPC id into int64
func AsInt64(id interface{}) (int64, bool) {
	switch actual := id.(type) {
	case int:
		return int64(actual), true
	case int32:
		return int64(actual), true
	case int64:
		return actual, true
	case uint64:
		return int64(actual), true
	case float64:
		if actual != float64(int64(actual)) {
			return 0, false
		}
		return int64(actual), true
	case json.Number:
		v, err := actual.Int64()
		return v, err == nil
	case string:
		v, err := strconv.ParseInt(strings.TrimSpace(actual), 10, 64)
		return v, err == nil
	case json.RawMessage:
		text := strings.Trim(strings.TrimSpace(string(actual)), `"`)
		if text == "" || text == "null" {
			return 0, false
		}
		v, err := strconv.ParseInt(text, 10, 64)
		return v, err == nil
	}
	return 0, false
}
