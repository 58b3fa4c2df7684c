package sensors

import (
	"sync"
	"time"
)

// ReturnType is a sensor's declared scalar type.
type ReturnType string

const (
	ReturnFloat ReturnType = "float"
	ReturnInt   ReturnType = "int"
	ReturnBool  ReturnType = "bool"
	ReturnStr   ReturnType = "str"
)

// Kind discriminates the three sensor variants.
type Kind string

const (
	KindMQTT Kind = "mqtt"
	KindHTTP Kind = "http"
	KindTime Kind = "time"
)

// Sensor is the sealed interface implemented by MQTTSensor, HTTPSensor
// and TimeSensor: Name, Route, Kind, Append, Mean, Last, Connected.
type Sensor interface {
	Name() string
	Route() string
	Kind() Kind
	ReturnType() ReturnType
	JSONPath() string
	WindowLen() int

	// Append decodes raw through the value codec and, on success,
	// pushes the parsed scalar into the rolling window. It returns
	// the parsed value, or an error if decoding failed. A nil value
	// with a nil error means the codec produced no-value (e.g. a
	// JSONPath miss) and nothing was appended.
	Append(raw any) (any, error)

	// Mean returns the sensor's current aggregate reading (real mean
	// for numeric sensors, last value for bool/str, wall clock for
	// the time sensor) and whether a value is available at all.
	Mean() (any, bool)
	Last() (any, bool)
	Values() []any
	Connected() bool
	Ready() bool
	SetReady(bool)
}

// base holds the state and synchronization shared by MQTTSensor and
// HTTPSensor. TimeSensor does not embed it — it has no window and no
// connectivity to latch.
type base struct {
	name       string
	route      string
	returnType ReturnType
	jsonPath   string
	windowLen  int

	mu        sync.Mutex
	values     []any
	connected bool
	ready     bool
}

func newBase(name, route string, rt ReturnType, jsonPath string, windowLen int) base {
	if windowLen < 1 {
		windowLen = 5
	}
	return base{
		name:       name,
		route:      route,
		returnType: rt,
		jsonPath:   jsonPath,
		windowLen:  windowLen,
		values:     make([]any, 0, windowLen),
	}
}

func (b *base) Name() string         { return b.name }
func (b *base) Route() string        { return b.route }
func (b *base) ReturnType() ReturnType { return b.returnType }
func (b *base) JSONPath() string     { return b.jsonPath }
func (b *base) WindowLen() int       { return b.windowLen }
func (b *base) Ready() bool          { b.mu.Lock(); defer b.mu.Unlock(); return b.ready }
func (b *base) SetReady(r bool)      { b.mu.Lock(); b.ready = r; b.mu.Unlock() }

func (b *base) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *base) setConnected(c bool) {
	b.mu.Lock()
	b.connected = c
	b.mu.Unlock()
}

// push appends v to the ring, evicting the oldest element once the
// window is full. Atomic with respect to Mean/Last/Values readers: all
// three take the same mutex.
func (b *base) push(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = append(b.values, v)
	if len(b.values) > b.windowLen {
		b.values = b.values[len(b.values)-b.windowLen:]
	}
	b.connected = true
}

func (b *base) Values() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]any, len(b.values))
	copy(out, b.values)
	return out
}

func (b *base) Last() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.values) == 0 {
		return nil, false
	}
	return b.values[len(b.values)-1], true
}

// mean computes the window aggregate: the arithmetic
// mean (as a real number) for numeric windows, the last value for
// bool/str windows.
func (b *base) mean() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.values) == 0 {
		return nil, false
	}
	if b.returnType == ReturnBool || b.returnType == ReturnStr {
		return b.values[len(b.values)-1], true
	}
	var sum float64
	for _, v := range b.values {
		switch n := v.(type) {
		case float64:
			sum += n
		case int64:
			sum += float64(n)
		}
	}
	return sum / float64(len(b.values)), true
}

// MQTTSensor is fed by the MQTT ingestor: Append is driven by inbound
// message payloads on its Route (the subscribed topic).
type MQTTSensor struct {
	base
}

func NewMQTTSensor(name, route string, rt ReturnType, jsonPath string, windowLen int) *MQTTSensor {
	return &MQTTSensor{base: newBase(name, route, rt, jsonPath, windowLen)}
}

func (s *MQTTSensor) Kind() Kind { return KindMQTT }

func (s *MQTTSensor) Append(raw any) (any, error) {
	v, err := Decode(s.returnType, s.jsonPath, s.name, raw)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s.push(v)
	return v, nil
}

func (s *MQTTSensor) Mean() (any, bool) { return s.mean() }

// HTTPSensor is fed by the HTTP poll ingestor: Append is driven by the
// JSON body returned by periodic GETs to Route. SetConnected(false) is
// called by the poller on transport/status failures.
type HTTPSensor struct {
	base
}

func NewHTTPSensor(name, route string, rt ReturnType, jsonPath string, windowLen int) *HTTPSensor {
	return &HTTPSensor{base: newBase(name, route, rt, jsonPath, windowLen)}
}

func (s *HTTPSensor) Kind() Kind { return KindHTTP }

func (s *HTTPSensor) Append(raw any) (any, error) {
	v, err := Decode(s.returnType, s.jsonPath, s.name, raw)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s.push(v)
	return v, nil
}

func (s *HTTPSensor) Mean() (any, bool) { return s.mean() }

// SetConnected exposes the poller's ability to latch false on failure;
// MQTTSensor has no equivalent.
func (s *HTTPSensor) SetConnected(c bool) { s.setConnected(c) }

// TimeSensor is the synthetic wall-clock pseudo-sensor pre-seeded into
// every registry under the key "time". It has no window: Mean is
// computed on every call from time.Now.
type TimeSensor struct {
	name string
	now  func() time.Time
}

func NewTimeSensor(name string) *TimeSensor {
	return &TimeSensor{name: name, now: time.Now}
}

func (s *TimeSensor) Name() string           { return s.name }
func (s *TimeSensor) Route() string          { return "" }
func (s *TimeSensor) Kind() Kind             { return KindTime }
func (s *TimeSensor) ReturnType() ReturnType { return ReturnStr }
func (s *TimeSensor) JSONPath() string       { return "" }
func (s *TimeSensor) WindowLen() int         { return 0 }
func (s *TimeSensor) Connected() bool        { return true }
func (s *TimeSensor) Ready() bool            { return true }
func (s *TimeSensor) SetReady(bool)          {}
func (s *TimeSensor) Append(any) (any, error) {
	return nil, nil
}
func (s *TimeSensor) Values() []any { return nil }

func (s *TimeSensor) Last() (any, bool) {
	return s.Mean()
}

func (s *TimeSensor) Mean() (any, bool) {
	return s.now().Format("15:04"), true
}
