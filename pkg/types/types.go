// Package types holds the wire-level data contracts shared between the
// application layer and the HTTP API: sensor snapshots, rule evaluation
// results and action history entries.
package types

// SensorState is the JSON-facing projection of a sensor, returned by
// GET /api/sensors and GET /api/sensors/{name}.
type SensorState struct {
	Name       string `json:"name"`
	Route      string `json:"route"`
	Type       string `json:"type"`
	ReturnType string `json:"return_type"`
	Connected  bool   `json:"connected"`
	Ready      bool   `json:"ready"`
	Mean       any    `json:"mean"`
	Last       any    `json:"last"`
	Values     []any  `json:"values"`
	ValueCount int    `json:"value_count"`
}

// TestResult is one test's outcome within a RuleResult.
type TestResult struct {
	SensorName   string `json:"sensor_name"`
	Operator     string `json:"operator"`
	Value        any    `json:"value"`
	CurrentValue any    `json:"current_sensor_value"`
	Passes       bool   `json:"passes"`
}

// RuleResult is one rule's outcome within a cycle Snapshot.
type RuleResult struct {
	Name       string       `json:"name"`
	ActionName string       `json:"action_name"`
	Tests      []TestResult `json:"tests"`
	AllPass    bool         `json:"all_pass"`
	Active     bool         `json:"active"`
}

// Snapshot is the whole-buffer result of one rule evaluator cycle,
// published atomically and served verbatim by GET /api/rules.
type Snapshot struct {
	Rules []RuleResult `json:"rules"`
}

// ActionHistoryEntry is one record in the action dispatcher's history
// ring, returned oldest-first by GET /api/actions/history.
type ActionHistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Route     string `json:"route"`
}
