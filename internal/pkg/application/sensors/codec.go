package sensors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// Decode extracts a JSONPath match when jsonPath is set, then coerces
// the result to rt. A nil, nil return means "no-value" — a JSONPath
// miss, which is simply not appended and is not an error. No log line
// is written for a miss, neither here nor by the sensors or ingestors
// that call Decode.
func Decode(rt ReturnType, jsonPath, sensorName string, raw any) (any, error) {
	v := raw

	if jsonPath != "" {
		tree, err := toJSONTree(raw)
		if err != nil {
			return nil, &DecodeError{SensorName: sensorName, ReturnType: string(rt), Preview: preview(raw), Err: err}
		}
		match, err := jsonpath.JsonPathLookup(tree, jsonPath)
		if err != nil {
			// JSONPath miss: no-value, not a decode failure.
			return nil, nil
		}
		v = match
	}

	return coerce(rt, v, sensorName, raw)
}

func toJSONTree(raw any) (any, error) {
	switch b := raw.(type) {
	case []byte:
		var tree any
		if err := json.Unmarshal(b, &tree); err != nil {
			return nil, err
		}
		return tree, nil
	case string:
		var tree any
		if err := json.Unmarshal([]byte(b), &tree); err != nil {
			return nil, err
		}
		return tree, nil
	default:
		return raw, nil
	}
}

func coerce(rt ReturnType, v any, sensorName string, rawForPreview any) (any, error) {
	switch rt {
	case ReturnBool:
		return coerceBool(v), nil
	case ReturnInt:
		f, err := coerceFloat(v)
		if err != nil {
			return nil, &DecodeError{SensorName: sensorName, ReturnType: string(rt), Preview: preview(rawForPreview), Err: err}
		}
		return int64(f), nil // truncates toward zero
	case ReturnFloat:
		f, err := coerceFloat(v)
		if err != nil {
			return nil, &DecodeError{SensorName: sensorName, ReturnType: string(rt), Preview: preview(rawForPreview), Err: err}
		}
		return f, nil
	case ReturnStr:
		return coerceString(v), nil
	default:
		return nil, &DecodeError{SensorName: sensorName, ReturnType: string(rt), Preview: preview(rawForPreview), Err: fmt.Errorf("unknown return_type")}
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "on", "yes":
			return true
		default:
			return false
		}
	case []byte:
		return coerceBool(string(t))
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	default:
		return 0, fmt.Errorf("cannot parse %T as number", v)
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
