package config

import (
	"encoding/json"
	"fmt"
)

// Raw is the unvalidated shape of eplumber.json. It round-trips
// through Load and Save as re-serialised JSON with 2-space indent, not
// byte for byte (for example, an absent "mqtt" object is written back
// with empty fields).
type Raw struct {
	Global  *RawGlobal       `json:"global,omitempty"`
	MQTT    RawMQTT          `json:"mqtt"`
	Sensors []json.RawMessage `json:"sensors"`
	Actions []RawAction      `json:"actions"`
	Rules   []RawRule        `json:"rules"`
}

type RawGlobal struct {
	Recipients []string `json:"recipients"`
}

type RawMQTT struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RawAction struct {
	Name  string `json:"name"`
	Route string `json:"route"`
}

type RawRule struct {
	Name   string    `json:"name"`
	Tests  []RawTest `json:"tests"`
	Action string    `json:"action"`
	Active *bool     `json:"active,omitempty"`
}

// RawSensor is the minimal shape every sensor descriptor shares,
// enough to pick the right concrete sensor constructor.
type RawSensor struct {
	Name            string `json:"name"`
	Route           string `json:"route"`
	Type            string `json:"type"`
	ReturnType      string `json:"return_type"`
	JSONPath        string `json:"json_path,omitempty"`
	ValueListLength int    `json:"value_list_length,omitempty"`
}

// RawTest is the [sensor_name, op, value] tuple from a rule's "tests"
// list. value is scalar — a JSON number or string — so RawTest carries
// its own (Un)MarshalJSON to read/write the 3-element array form.
type RawTest struct {
	Sensor string
	Op     string
	Value  any
}

func (t *RawTest) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("rule test must be a 3-element [sensor, op, value] array, got %d elements", len(arr))
	}
	if err := json.Unmarshal(arr[0], &t.Sensor); err != nil {
		return fmt.Errorf("rule test sensor name: %w", err)
	}
	if err := json.Unmarshal(arr[1], &t.Op); err != nil {
		return fmt.Errorf("rule test operator: %w", err)
	}
	var v any
	if err := json.Unmarshal(arr[2], &v); err != nil {
		return fmt.Errorf("rule test value: %w", err)
	}
	t.Value = v
	return nil
}

func (t RawTest) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Sensor, t.Op, t.Value})
}
