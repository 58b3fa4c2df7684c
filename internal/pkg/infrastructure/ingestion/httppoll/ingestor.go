// Package httppoll implements the HTTP poll ingestor: a single shared
// ticker drives sequential GETs against every http-kind sensor,
// bounding outbound concurrency to one request at a time.
package httppoll

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/sensors"
)

const (
	pollInterval = 10 * time.Second
	pollTimeout  = 10 * time.Second
)

type Ingestor struct {
	registry *sensors.Registry
	client   *http.Client
	log      zerolog.Logger
	interval time.Duration
}

func New(registry *sensors.Registry, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		registry: registry,
		client:   &http.Client{Timeout: pollTimeout},
		log:      log,
		interval: pollInterval,
	}
}

// Run ticks every interval, polling every http sensor sequentially,
// until ctx is cancelled. Missed ticks coalesce: time.Ticker drops
// ticks the receiver doesn't keep up with, so a slow round simply
// means the next round runs once more rather than catching up.
func (ig *Ingestor) Run(ctx context.Context) {
	ticker := time.NewTicker(ig.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ig.pollAll(ctx)
		}
	}
}

func (ig *Ingestor) pollAll(ctx context.Context) {
	for _, s := range ig.registry.HTTPSensors() {
		if ctx.Err() != nil {
			return
		}
		ig.poll(ctx, s)
	}
}

func (ig *Ingestor) poll(ctx context.Context, s *sensors.HTTPSensor) {
	reqCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.Route(), nil)
	if err != nil {
		ig.log.Error().Err(err).Str("sensor", s.Name()).Msg("building poll request failed")
		s.SetConnected(false)
		return
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		ig.log.Error().Err(err).Str("sensor", s.Name()).Msg("http poll failed")
		s.SetConnected(false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ig.log.Error().Int("status", resp.StatusCode).Str("sensor", s.Name()).Msg("http poll returned non-2xx")
		s.SetConnected(false)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ig.log.Error().Err(err).Str("sensor", s.Name()).Msg("reading poll response body failed")
		s.SetConnected(false)
		return
	}

	if _, err := s.Append(body); err != nil {
		ig.log.Error().Err(err).Str("sensor", s.Name()).Msg("dropping http poll payload")
	}
}
