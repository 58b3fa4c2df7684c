package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/actions"
	appconfig "github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/application/sensors"
	"github.com/freddez/eplumber/pkg/types"
)

func newTestRouter(t *testing.T) (*chi.Mux, *sensors.Registry, *actions.History, *appconfig.Handle) {
	t.Helper()
	reg := sensors.NewRegistry()
	if _, err := reg.Add(sensors.Descriptor{Name: "temp", Route: "sensors/temp", Type: "mqtt", ReturnType: sensors.ReturnFloat, ValueListLength: 3}); err != nil {
		t.Fatalf("add sensor: %v", err)
	}
	history := actions.NewHistory()
	cfgHandle := appconfig.NewHandle(nil, "")

	r := chi.NewRouter()
	RegisterHandlers(zerolog.Nop(), r, reg, func() any { return map[string]string{"rules": "empty"} }, history, cfgHandle)
	return r, reg, history, cfgHandle
}

func TestHealthzReturnsNoContent(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusNoContent)
}

func TestListSensorsReturnsJSONArray(t *testing.T) {
	is := is.New(t)
	r, reg, _, _ := newTestRouter(t)
	if _, err := reg.Append("temp", float64(24)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sensors", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusOK)
	var states []map[string]any
	is.NoErr(json.Unmarshal(res.Body.Bytes(), &states))
	is.True(len(states) >= 1)
}

func TestGetSensorReturns404ForUnknownName(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/ghost", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusNotFound)
	is.Equal(res.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	is.NoErr(json.Unmarshal(res.Body.Bytes(), &body))
	is.True(body["error"] != "")
}

func TestGetSensorReturnsKnownSensor(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/time", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusOK)
}

func TestActionsHistoryReturnsRecordedEntries(t *testing.T) {
	is := is.New(t)
	r, _, history, _ := newTestRouter(t)
	history.Append(types.ActionHistoryEntry{Name: "cool", Route: "http://x/on"})

	req := httptest.NewRequest(http.MethodGet, "/api/actions/history", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusOK)
	var entries []map[string]any
	is.NoErr(json.Unmarshal(res.Body.Bytes(), &entries))
	is.Equal(len(entries), 1)
}

func TestGetConfigReturns404WhenNoneLoaded(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusNotFound)
	var body map[string]string
	is.NoErr(json.Unmarshal(res.Body.Bytes(), &body))
	is.True(body["error"] != "")
}

func TestPutConfigRejectsUnknownSensorWith400(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newTestRouter(t)

	body := []byte(`{"config": {"mqtt":{"host":"broker"},"sensors":[],"actions":[{"name":"a","route":"http://x"}],"rules":[{"name":"r","tests":[["ghost",">",1]],"action":"a"}]}}`)
	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	is.Equal(res.Code, http.StatusBadRequest)
	is.Equal(res.Header().Get("Content-Type"), "application/json")
	var respBody map[string]string
	is.NoErr(json.Unmarshal(res.Body.Bytes(), &respBody))
	is.True(respBody["error"] != "")
}

func TestPutConfigPersistsValidConfigAndGetConfigServesIt(t *testing.T) {
	is := is.New(t)
	r, _, _, cfgHandle := newTestRouter(t)

	dir := t.TempDir()
	cfgHandle.Replace(nil, dir+"/eplumber.json")

	body := []byte(`{"config": {"mqtt":{"host":"broker"},"sensors":[],"actions":[{"name":"a","route":"http://x"}],"rules":[{"name":"r","tests":[["time","==","08:00"]],"action":"a"}]}}`)
	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	is.Equal(res.Code, http.StatusOK)

	req2 := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	res2 := httptest.NewRecorder()
	r.ServeHTTP(res2, req2)
	is.Equal(res2.Code, http.StatusOK)
}
