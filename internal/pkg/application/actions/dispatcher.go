// Package actions implements the action dispatcher: firing an
// action's HTTP GET, recording it in the history ring, and notifying
// recipients.
package actions

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/notification"
	"github.com/freddez/eplumber/pkg/types"
)

const dispatchTimeout = 10 * time.Second

// Dispatcher fires actions on behalf of the rule evaluator. It
// satisfies rules.Dispatcher without importing the rules package,
// avoiding an import cycle (the evaluator depends on this package's
// concrete type only through that narrow interface).
type Dispatcher struct {
	history    *History
	notifier   notification.Notifier
	recipients []string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

func NewDispatcher(history *History, notifier notification.Notifier, recipients []string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		history:    history,
		notifier:   notifier,
		recipients: recipients,
		httpClient: &http.Client{Timeout: dispatchTimeout},
		log:        log,
		now:        time.Now,
	}
}

// Do fires action: GET action.route, append to history, notify.
// The GET and notify steps only ever log their failures — the
// evaluator loop must never stop on a dispatch failure.
func (d *Dispatcher) Do(ctx context.Context, action config.ActionConfig, ruleName string, tests []types.TestResult) {
	d.log.Info().Str("rule", ruleName).Str("action", action.Name).Str("route", action.Route).Msg("firing action")

	firedAt := d.now()

	if action.Route != "" {
		d.get(ctx, action)
	}

	d.history.Append(types.ActionHistoryEntry{
		Timestamp: firedAt.Format(time.RFC3339),
		Name:      action.Name,
		Route:     action.Route,
	})

	subject := fmt.Sprintf("Eplumber Action: %s", action.Name)
	body := notification.BuildActionBody(ruleName, firedAt, testLines(tests))
	if err := d.notifier.Send(ctx, subject, body, d.recipients); err != nil {
		d.log.Error().Err(err).Str("rule", ruleName).Msg("notification send failed")
	}
}

func (d *Dispatcher) get(ctx context.Context, action config.ActionConfig) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, action.Route, nil)
	if err != nil {
		d.log.Error().Err(err).Str("action", action.Name).Msg("building action request failed")
		return
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.log.Error().Err(err).Str("action", action.Name).Msg("action GET failed")
		return
	}
	defer resp.Body.Close()
	d.log.Debug().Str("action", action.Name).Int("status", resp.StatusCode).Msg("action GET completed")
}

func testLines(tests []types.TestResult) []string {
	lines := make([]string, 0, len(tests))
	for _, tr := range tests {
		verdict := "FAIL"
		if tr.Passes {
			verdict = "PASS"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %v (observed %v)", verdict, tr.SensorName, tr.Operator, tr.Value, tr.CurrentValue))
	}
	return lines
}
