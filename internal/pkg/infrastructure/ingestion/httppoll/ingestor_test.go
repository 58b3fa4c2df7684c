package httppoll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/sensors"
)

func TestPollSuccessAppendsValueAndLatchesConnected(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	reg := sensors.NewRegistry()
	added, err := reg.Add(sensors.Descriptor{Name: "ext", Route: srv.URL, Type: "http", ReturnType: sensors.ReturnFloat, JSONPath: "$.value", ValueListLength: 3})
	is.NoErr(err)
	s := added.(*sensors.HTTPSensor)

	ig := New(reg, zerolog.Nop())
	ig.poll(context.Background(), s)

	mean, ok := s.Mean()
	is.True(ok)
	is.Equal(mean, 42.0)
	is.True(s.Connected())
}

func TestPollNon2xxLatchesDisconnected(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := sensors.NewRegistry()
	added, err := reg.Add(sensors.Descriptor{Name: "ext", Route: srv.URL, Type: "http", ReturnType: sensors.ReturnFloat, ValueListLength: 3})
	is.NoErr(err)
	s := added.(*sensors.HTTPSensor)
	s.SetConnected(true)

	ig := New(reg, zerolog.Nop())
	ig.poll(context.Background(), s)

	is.True(!s.Connected())
}

func TestPollTransportErrorLatchesDisconnected(t *testing.T) {
	is := is.New(t)

	reg := sensors.NewRegistry()
	added, err := reg.Add(sensors.Descriptor{Name: "ext", Route: "http://127.0.0.1:1/unreachable", Type: "http", ReturnType: sensors.ReturnFloat, ValueListLength: 3})
	is.NoErr(err)
	s := added.(*sensors.HTTPSensor)

	ig := New(reg, zerolog.Nop())
	ig.poll(context.Background(), s)

	is.True(!s.Connected())
}
