package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/freddez/eplumber/internal/pkg/application/sensors"
)

// Operator is the closed, validated enumeration of comparison
// operators a Test may use: represented as a Go enum
// rather than a lookup table of closures, so an exhaustive switch in
// the evaluator is enforced by the compiler, not by a map miss at
// runtime.
type Operator int

const (
	OpLT Operator = iota
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
)

func ParseOperator(s string) (Operator, error) {
	switch s {
	case "<":
		return OpLT, nil
	case "<=":
		return OpLE, nil
	case ">":
		return OpGT, nil
	case ">=":
		return OpGE, nil
	case "==":
		return OpEQ, nil
	case "!=":
		return OpNE, nil
	default:
		return 0, &UnknownOperator{Op: s}
	}
}

func (o Operator) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "=="
	case OpNE:
		return "!="
	default:
		return "?"
	}
}

// Configuration is the validated, in-memory configuration graph: every
// Test's sensor and operator are resolved, every rule's action exists.
// This is the only value the rule evaluator and sensor registry ever
// see — PUT /api/config and startup both funnel through Validate so
// they can never disagree about what's valid.
type Configuration struct {
	Recipients []string
	MQTT       MQTTConfig
	Sensors    []sensors.Descriptor
	Actions    map[string]ActionConfig
	Rules      []RuleConfig
}

type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type ActionConfig struct {
	Name  string
	Route string
}

type TestConfig struct {
	SensorKey string
	Op        Operator
	Value     any
}

type RuleConfig struct {
	Name       string
	Tests      []TestConfig
	ActionName string
	Active     bool
}

// Validate turns a Raw document into a Configuration, or fails with
// ConfigError / UnknownSensor / UnknownOperator. It is
// pure: no I/O, no global state, safe to call from an HTTP handler.
func Validate(raw *Raw) (*Configuration, error) {
	if raw == nil {
		return nil, &ConfigError{Msg: "configuration is empty"}
	}

	mqttPort := raw.MQTT.Port
	if mqttPort == 0 {
		mqttPort = 1883
	}

	cfg := &Configuration{
		MQTT: MQTTConfig{
			Host:     raw.MQTT.Host,
			Port:     mqttPort,
			Username: raw.MQTT.Username,
			Password: raw.MQTT.Password,
		},
		Actions: make(map[string]ActionConfig, len(raw.Actions)),
	}

	if raw.Global != nil {
		cfg.Recipients = raw.Global.Recipients
	}

	if raw.MQTT.Host == "" && sensorsOfType(raw.Sensors, "mqtt") {
		return nil, &ConfigError{Msg: "mqtt.host is required when any sensor has type \"mqtt\""}
	}

	sensorNames := map[string]bool{"time": true}

	for i, rawSensor := range raw.Sensors {
		var s RawSensor
		if err := json.Unmarshal(rawSensor, &s); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("sensors[%d]", i), Err: err}
		}
		if s.Name == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf("sensors[%d]: name is required", i)}
		}

		rt, err := parseReturnType(s.ReturnType)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("sensor %q", s.Name), Err: err}
		}

		sensorType := s.Type
		if sensorType == "" {
			sensorType = "mqtt"
		}
		if sensorType != "mqtt" && sensorType != "http" && sensorType != "time" {
			return nil, &ConfigError{Msg: fmt.Sprintf("sensor %q: unknown type %q", s.Name, s.Type)}
		}

		cfg.Sensors = append(cfg.Sensors, sensors.Descriptor{
			Name:            s.Name,
			Route:           s.Route,
			Type:            sensorType,
			ReturnType:      rt,
			JSONPath:        s.JSONPath,
			ValueListLength: s.ValueListLength,
		})
		sensorNames[s.Name] = true
	}

	for _, a := range raw.Actions {
		if a.Name == "" {
			return nil, &ConfigError{Msg: "actions[]: name is required"}
		}
		cfg.Actions[a.Name] = ActionConfig{Name: a.Name, Route: a.Route}
	}

	for _, r := range raw.Rules {
		if r.Name == "" {
			return nil, &ConfigError{Msg: "rules[]: name is required"}
		}
		if len(r.Tests) == 0 {
			return nil, &ConfigError{Msg: fmt.Sprintf("rule %q: tests must be a non-empty list", r.Name)}
		}
		if _, ok := cfg.Actions[r.Action]; !ok {
			return nil, &ConfigError{Msg: fmt.Sprintf("rule %q: unknown action %q", r.Name, r.Action)}
		}

		rule := RuleConfig{Name: r.Name, ActionName: r.Action, Active: true}
		if r.Active != nil {
			rule.Active = *r.Active
		}

		for _, t := range r.Tests {
			if !sensorNames[t.Sensor] {
				return nil, &UnknownSensor{Name: t.Sensor}
			}
			op, err := ParseOperator(t.Op)
			if err != nil {
				return nil, err
			}
			rule.Tests = append(rule.Tests, TestConfig{
				SensorKey: t.Sensor,
				Op:        op,
				Value:     coerceTestValue(t.Value),
			})
		}

		cfg.Rules = append(cfg.Rules, rule)
	}

	return cfg, nil
}

func sensorsOfType(raw []json.RawMessage, want string) bool {
	for _, r := range raw {
		var s RawSensor
		if json.Unmarshal(r, &s) != nil {
			continue
		}
		t := s.Type
		if t == "" {
			t = "mqtt"
		}
		if t == want {
			return true
		}
	}
	return false
}

func parseReturnType(s string) (sensors.ReturnType, error) {
	switch s {
	case "", "float":
		return sensors.ReturnFloat, nil
	case "int":
		return sensors.ReturnInt, nil
	case "bool":
		return sensors.ReturnBool, nil
	case "str":
		return sensors.ReturnStr, nil
	default:
		return "", fmt.Errorf("unknown return_type %q", s)
	}
}

// coerceTestValue allows a rule test value given as a JSON string
// that parses cleanly as a number to be treated as that number, so
// ["temp", ">", "25"] and ["temp", ">", 25] behave identically.
func coerceTestValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return v
}
