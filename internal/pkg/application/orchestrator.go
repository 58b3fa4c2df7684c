// Package application wires the domain collaborators together: config
// store, sensor registry, ingestors, rule evaluator, action dispatcher
// and notifier. The orchestrator owns the current configuration
// generation and is the only thing that knows how all the pieces fit
// together.
package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/actions"
	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/application/rules"
	"github.com/freddez/eplumber/internal/pkg/application/sensors"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/configstore"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/ingestion/httppoll"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/ingestion/mqtt"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/notification"
)

// Orchestrator holds every long-lived collaborator built at startup.
// All other components only ever see it through the narrow pieces
// Bootstrap hands back to them (registry, evaluator snapshot, history,
// config handle) — nothing reaches back into Orchestrator itself.
type Orchestrator struct {
	Registry     *sensors.Registry
	Evaluator    *rules.Evaluator
	History      *actions.History
	ConfigHandle *config.Handle

	mqttIngestor *mqtt.Ingestor
	httpIngestor *httppoll.Ingestor

	notifier   notification.Notifier
	recipients []string

	log zerolog.Logger
}

// Bootstrap runs the startup sequence short of starting the HTTP
// server: locate config, load, validate, build registry and rule
// list, construct (but not yet run) the ingestors and evaluator. On a
// missing or invalid config it returns an error; the caller logs and
// exits.
func Bootstrap(log zerolog.Logger) (*Orchestrator, error) {
	raw, path, err := configstore.Load()
	if err != nil {
		return nil, fmt.Errorf("locate configuration: %w", err)
	}

	cfg, err := config.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	registry := sensors.NewRegistry()
	for _, desc := range cfg.Sensors {
		if _, err := registry.Add(desc); err != nil {
			return nil, fmt.Errorf("register sensor %q: %w", desc.Name, err)
		}
	}

	history := actions.NewHistory()
	notifier := notification.NewSMTPNotifier(notification.DefaultConfig(), log)
	dispatcher := actions.NewDispatcher(history, notifier, cfg.Recipients, log)
	evaluator := rules.NewEvaluator(cfg.Rules, cfg.Actions, registry, dispatcher, log)

	return &Orchestrator{
		Registry:     registry,
		Evaluator:    evaluator,
		History:      history,
		ConfigHandle: config.NewHandle(raw, path),
		mqttIngestor: mqtt.New(registry, cfg.MQTT, log),
		httpIngestor: httppoll.New(registry, log),
		notifier:     notifier,
		recipients:   cfg.Recipients,
		log:          log,
	}, nil
}

// Run starts the MQTT ingestor, the HTTP poll ingestor, and the rule
// evaluator as independent workers. It blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	if len(o.recipients) > 0 {
		if err := o.notifier.Send(ctx, "Eplumber Started", "eplumber has started monitoring.", o.recipients); err != nil {
			o.log.Error().Err(err).Msg("failed to send startup notification")
		}
	}

	done := make(chan struct{}, 3)

	go func() {
		if err := o.mqttIngestor.Run(ctx); err != nil {
			o.log.Error().Err(err).Msg("mqtt ingestor stopped")
		}
		done <- struct{}{}
	}()

	go func() {
		o.httpIngestor.Run(ctx)
		done <- struct{}{}
	}()

	go func() {
		o.Evaluator.Run(ctx)
		done <- struct{}{}
	}()

	<-ctx.Done()
	for i := 0; i < 3; i++ {
		<-done
	}
}
