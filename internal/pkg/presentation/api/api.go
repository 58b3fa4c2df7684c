// Package api implements the read-only HTTP interface: sensor state,
// the last rule evaluation snapshot, action history, and configuration
// read/write. Modelled on the chi + otelchi + zerolog request-handler
// style (RegisterHandlers taking a *chi.Mux and wiring a tracer per
// handler).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/freddez/eplumber/internal/pkg/application/actions"
	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/application/sensors"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/configstore"
)

var tracer = otel.Tracer("eplumber/api")

// RegisterHandlers wires every endpoint onto router.
// snapshot is a func rather than an interface so the evaluator's
// concrete Snapshot() (which returns types.Snapshot, defined in
// pkg/types) can be passed without an import cycle back into this
// package from rules.
func RegisterHandlers(
	log zerolog.Logger,
	router *chi.Mux,
	registry *sensors.Registry,
	snapshot func() any,
	history *actions.History,
	cfgHandle *config.Handle,
) *chi.Mux {
	router.Get("/healthz", healthHandler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/sensors", listSensorsHandler(log, registry))
		r.Get("/sensors/{name}", getSensorHandler(log, registry))
		r.Get("/rules", rulesHandler(snapshot))
		r.Get("/actions/history", historyHandler(history))
		r.Get("/config", getConfigHandler(log, cfgHandle))
		r.Put("/config", putConfigHandler(log, cfgHandle))
	})

	return router
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func listSensorsHandler(log zerolog.Logger, registry *sensors.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "list-sensors")
		defer span.End()

		writeJSON(w, log, http.StatusOK, registry.Snapshot())
	}
}

func getSensorHandler(log zerolog.Logger, registry *sensors.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		_, span := tracer.Start(r.Context(), "get-sensor")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		name := chi.URLParam(r, "name")
		sensorState, lookupErr := registry.One(name)
		if lookupErr != nil {
			var unknown *sensors.UnknownSensor
			if errors.As(lookupErr, &unknown) {
				writeError(w, log, http.StatusNotFound, lookupErr)
				return
			}
			err = lookupErr
			log.Error().Err(err).Str("sensor", name).Msg("lookup failed")
			writeError(w, log, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, log, http.StatusOK, sensorState)
	}
}

func rulesHandler(snapshot func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "get-rules")
		defer span.End()

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.Encode(snapshot())
	}
}

func historyHandler(history *actions.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "get-action-history")
		defer span.End()

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.Encode(history.Entries())
	}
}

func getConfigHandler(log zerolog.Logger, cfgHandle *config.Handle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "get-config")
		defer span.End()

		raw, path := cfgHandle.Current()
		if raw == nil || path == "" {
			writeError(w, log, http.StatusNotFound, errors.New("no configuration loaded"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(raw)
	}
}

type putConfigRequest struct {
	Config config.Raw `json:"config"`
}

// putConfigHandler validates the body by reconstructing a
// Configuration, persists it to disk on success, and returns 400 with
// the validation error on failure. No live reload — it only replaces
// what GET /api/config will serve next.
func putConfigHandler(log zerolog.Logger, cfgHandle *config.Handle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		_, span := tracer.Start(r.Context(), "put-config")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			writeError(w, log, http.StatusBadRequest, errors.New("unable to read body"))
			return
		}

		var req putConfigRequest
		if unmarshalErr := json.Unmarshal(body, &req); unmarshalErr != nil {
			writeError(w, log, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", unmarshalErr))
			return
		}

		if _, validateErr := config.Validate(&req.Config); validateErr != nil {
			writeError(w, log, http.StatusBadRequest, validateErr)
			return
		}

		_, path := cfgHandle.Current()
		if path == "" {
			savePath, savePathErr := configstore.DefaultSavePath()
			if savePathErr != nil {
				err = savePathErr
				log.Error().Err(err).Msg("unable to determine config save path")
				writeError(w, log, http.StatusInternalServerError, err)
				return
			}
			path = savePath
		}

		if saveErr := configstore.Save(path, &req.Config); saveErr != nil {
			err = saveErr
			log.Error().Err(err).Msg("unable to persist configuration")
			writeError(w, log, http.StatusInternalServerError, err)
			return
		}

		cfgHandle.Replace(&req.Config, path)
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("unable to marshal response")
		writeError(w, log, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError writes {"error": msg} as the body of every 4xx/5xx
// response this API returns, mirroring writeJSON's success-path shape.
func writeError(w http.ResponseWriter, log zerolog.Logger, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encErr != nil {
		log.Error().Err(encErr).Msg("unable to encode error response")
	}
}
