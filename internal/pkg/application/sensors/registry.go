package sensors

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/freddez/eplumber/pkg/types"
)

// Descriptor is the raw shape of one sensor entry from the
// configuration file's "sensors" list.
type Descriptor struct {
	Name            string
	Route           string
	Type            string // "mqtt" | "http" | "time"
	ReturnType      ReturnType
	JSONPath        string
	ValueListLength int
}

// Registry is the name- and route-indexed sensor table. Two keys —
// name and route — point at the same record, so Registry keeps one
// flat slice of sensors and two index maps into it, and dedups by
// identity (pointer equality) in Snapshot.
type Registry struct {
	mu      sync.RWMutex
	all     []Sensor
	byName  map[string]Sensor
	byRoute map[string]Sensor
}

// NewRegistry returns a registry pre-seeded with the "time" pseudo
// sensor.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]Sensor),
		byRoute: make(map[string]Sensor),
	}
	t := NewTimeSensor("time")
	r.all = append(r.all, t)
	r.byName["time"] = t
	return r
}

// Add constructs a sensor from desc and binds it under both its name
// and its route. Duplicate route/name inserts replace the earlier
// sensor silently, both in the index maps and in the flat list.
func (r *Registry) Add(desc Descriptor) (Sensor, error) {
	var s Sensor

	windowLen := desc.ValueListLength
	if windowLen <= 0 {
		windowLen = 5
	}

	switch desc.Type {
	case "mqtt", "":
		s = NewMQTTSensor(desc.Name, desc.Route, desc.ReturnType, desc.JSONPath, windowLen)
	case "http":
		s = NewHTTPSensor(desc.Name, desc.Route, desc.ReturnType, desc.JSONPath, windowLen)
	case "time":
		s = NewTimeSensor(desc.Name)
	default:
		return nil, fmt.Errorf("unknown sensor type %q for sensor %q", desc.Type, desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]Sensor, 0, len(r.all)+1)
	for _, old := range r.all {
		if (desc.Name != "" && r.byName[desc.Name] == old) || (desc.Route != "" && r.byRoute[desc.Route] == old) {
			continue
		}
		kept = append(kept, old)
	}
	r.all = append(kept, s)
	if desc.Name != "" {
		r.byName[desc.Name] = s
	}
	if desc.Route != "" {
		r.byRoute[desc.Route] = s
	}
	return s, nil
}

// Lookup returns the sensor bound to key (a name or a route).
func (r *Registry) Lookup(key string) (Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[key]; ok {
		return s, nil
	}
	if s, ok := r.byRoute[key]; ok {
		return s, nil
	}
	return nil, &UnknownSensor{Key: key}
}

// Append routes raw through the sensor's codec and pushes the parsed
// value into its window. Codec failures are returned to the caller,
// who is expected to log and drop them rather than propagate them
// further.
func (r *Registry) Append(key string, raw any) (any, error) {
	s, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	return s.Append(raw)
}

// MQTTSensors returns every mqtt-kind sensor currently registered, used
// by the MQTT ingestor to (re-)subscribe on connect.
func (r *Registry) MQTTSensors() []*MQTTSensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*MQTTSensor
	for _, s := range lo.UniqBy(r.all, sensorIdentity) {
		if m, ok := s.(*MQTTSensor); ok {
			out = append(out, m)
		}
	}
	return out
}

// HTTPSensors returns every http-kind sensor currently registered,
// used by the HTTP poll ingestor.
func (r *Registry) HTTPSensors() []*HTTPSensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*HTTPSensor
	for _, s := range lo.UniqBy(r.all, sensorIdentity) {
		if h, ok := s.(*HTTPSensor); ok {
			out = append(out, h)
		}
	}
	return out
}

// Snapshot returns the distinct sensors (deduplicated by identity,
// since name and route alias the same record) as API-ready DTOs, with
// floats rounded to 2 decimals.
func (r *Registry) Snapshot() []types.SensorState {
	r.mu.RLock()
	distinct := lo.UniqBy(r.all, sensorIdentity)
	snapshot := make([]Sensor, len(distinct))
	copy(snapshot, distinct)
	r.mu.RUnlock()

	return lo.Map(snapshot, func(s Sensor, _ int) types.SensorState {
		return toSensorState(s)
	})
}

// One returns the DTO for a single sensor, or UnknownSensor.
func (r *Registry) One(name string) (types.SensorState, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return types.SensorState{}, err
	}
	return toSensorState(s), nil
}

func toSensorState(s Sensor) types.SensorState {
	mean, _ := s.Mean()
	last, _ := s.Last()
	values := s.Values()

	rounded := make([]any, len(values))
	for i, v := range values {
		rounded[i] = round2(v)
	}

	return types.SensorState{
		Name:       s.Name(),
		Route:      s.Route(),
		Type:       string(s.Kind()),
		ReturnType: string(s.ReturnType()),
		Connected:  s.Connected(),
		Ready:      s.Ready(),
		Mean:       round2(mean),
		Last:       round2(last),
		Values:     rounded,
		ValueCount: len(values),
	}
}

func round2(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	return math.Round(f*100) / 100
}

func sensorIdentity(s Sensor) any {
	switch v := s.(type) {
	case *MQTTSensor:
		return v
	case *HTTPSensor:
		return v
	case *TimeSensor:
		return v
	default:
		return s
	}
}

// logDrop logs a codec failure for sensorName without propagating it.
// The ingestors live in other packages and write their own drop log
// lines; nothing calls logDrop.
func logDrop(log zerolog.Logger, sensorName string, err error) {
	log.Error().Err(err).Str("sensor", sensorName).Msg("dropping payload")
}
