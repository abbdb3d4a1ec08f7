package output

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// NormalizeJSONValue converts a decoded CBOR value into something
// encoding/json accepts: non-string map keys are stringified, tags become
// {"tag","content"} objects and byte strings are summarised by length.
func NormalizeJSONValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case cbor.Tag:
		return map[string]any{
			"tag":     val.Number,
			"content": NormalizeJSONValue(val.Content),
		}
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Sprint(val)
		}
		return val
	case float32:
		return NormalizeJSONValue(float64(val))
	default:
		return val
	}
}
