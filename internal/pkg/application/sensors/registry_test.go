package sensors

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestRegistrySeedsTimeSensor(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	s, err := r.Lookup("time")
	is.NoErr(err)
	is.Equal(s.Kind(), KindTime)
}

func TestRegistryAddBindsNameAndRoute(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	_, err := r.Add(Descriptor{Name: "temp", Route: "sensors/temp", Type: "mqtt", ReturnType: ReturnFloat, ValueListLength: 3})
	is.NoErr(err)

	byName, err := r.Lookup("temp")
	is.NoErr(err)
	byRoute, err := r.Lookup("sensors/temp")
	is.NoErr(err)
	is.Equal(byName, byRoute)
}

func TestRegistryAppendEvictsOldest(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	_, _ = r.Add(Descriptor{Name: "temp", Route: "sensors/temp", Type: "mqtt", ReturnType: ReturnFloat, ValueListLength: 3})

	for _, v := range []string{"24", "26", "28", "30"} {
		_, err := r.Append("sensors/temp", v)
		is.NoErr(err)
	}

	s, _ := r.Lookup("temp")
	is.Equal(len(s.Values()), 3)
	mean, ok := s.Mean()
	is.True(ok)
	is.Equal(mean, 28.0) // (26+28+30)/3
}

func TestRegistryLookupUnknown(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	_, err := r.Lookup("ghost")
	is.True(err != nil)

	var us *UnknownSensor
	is.True(errors.As(err, &us))
}

func TestRegistrySnapshotDedupesByIdentity(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	_, _ = r.Add(Descriptor{Name: "temp", Route: "sensors/temp", Type: "mqtt", ReturnType: ReturnFloat, ValueListLength: 5})

	snap := r.Snapshot()
	// time (pre-seeded) + temp = 2, never 3 even though temp is keyed
	// twice (name and route).
	is.Equal(len(snap), 2)
}

func TestRegistryUnknownSensorTypeIsRejected(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	_, err := r.Add(Descriptor{Name: "weird", Route: "x", Type: "carrier-pigeon", ReturnType: ReturnFloat})
	is.True(err != nil)
}

