package rules

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/internal/pkg/application/sensors"
	"github.com/freddez/eplumber/pkg/types"
)

var tracer = otel.Tracer("eplumber/rules")

const (
	// CyclePeriod is the time between evaluation cycles.
	CyclePeriod = 1 * time.Second
	// SuppressionWindow is the mandatory pause after a rule fires,
	// applied before the evaluator continues to the next rule in the
	// same cycle.
	SuppressionWindow = 5 * time.Second
)

// Dispatcher is the action-dispatch collaborator the evaluator calls
// on a rising — really, level-triggered — conjunction. Kept as a
// narrow interface so the evaluator can be tested without a real
// HTTP/SMTP dispatcher, favoring small interfaces over concretions.
type Dispatcher interface {
	Do(ctx context.Context, action config.ActionConfig, ruleName string, tests []types.TestResult)
}

// Evaluator runs the rule evaluation cycle. Rules are fixed for the
// lifetime of an Evaluator — config changes take effect through a
// process restart, so there is no reload method here.
type Evaluator struct {
	rules      []config.RuleConfig
	actions    map[string]config.ActionConfig
	registry   *sensors.Registry
	dispatcher Dispatcher
	log        zerolog.Logger

	cyclePeriod       time.Duration
	suppressionWindow time.Duration

	snapshot atomic.Pointer[types.Snapshot]
}

func NewEvaluator(rules []config.RuleConfig, actions map[string]config.ActionConfig, registry *sensors.Registry, dispatcher Dispatcher, log zerolog.Logger) *Evaluator {
	e := &Evaluator{
		rules:             rules,
		actions:           actions,
		registry:          registry,
		dispatcher:        dispatcher,
		log:               log,
		cyclePeriod:       CyclePeriod,
		suppressionWindow: SuppressionWindow,
	}
	e.snapshot.Store(&types.Snapshot{Rules: []types.RuleResult{}})
	return e
}

// Snapshot returns the most recently published cycle result. Safe for
// concurrent use from any number of HTTP handlers; never touches the
// evaluation loop.
func (e *Evaluator) Snapshot() types.Snapshot {
	return *e.snapshot.Load()
}

// Run blocks, evaluating rules every cyclePeriod, until ctx is
// cancelled. It is meant to run as its own long-lived goroutine.
func (e *Evaluator) Run(ctx context.Context) {
	for {
		e.runCycle(ctx)
		if !sleepCtx(ctx, e.cyclePeriod) {
			return
		}
	}
}

func (e *Evaluator) runCycle(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "evaluate-cycle")
	defer span.End()

	results := make([]types.RuleResult, 0, len(e.rules))

	for _, rule := range e.rules {
		if ctx.Err() != nil {
			return
		}

		testResults := make([]types.TestResult, 0, len(rule.Tests))
		allPass := true

		for _, test := range rule.Tests {
			current, ok := e.readSensor(test.SensorKey)
			passes := ok && Compare(test.Op, current, test.Value)
			if !passes {
				allPass = false
			}
			testResults = append(testResults, types.TestResult{
				SensorName:   test.SensorKey,
				Operator:     test.Op.String(),
				Value:        test.Value,
				CurrentValue: current,
				Passes:       passes,
			})
		}

		if allPass && rule.Active {
			e.fire(ctx, rule, testResults)
			if !sleepCtx(ctx, e.suppressionWindow) {
				return
			}
		}

		results = append(results, types.RuleResult{
			Name:       rule.Name,
			ActionName: rule.ActionName,
			Tests:      testResults,
			AllPass:    allPass,
			Active:     rule.Active,
		})
	}

	e.snapshot.Store(&types.Snapshot{Rules: results})
}

func (e *Evaluator) readSensor(key string) (any, bool) {
	s, err := e.registry.Lookup(key)
	if err != nil {
		// A rule referencing a missing sensor is a config-load-time
		// error (UnknownSensor), never possible here once Validate has
		// run — but treat it as no-value rather than panicking,
		// consistent with never terminating the loop on a single error.
		e.log.Error().Err(err).Str("sensor", key).Msg("rule test references unresolvable sensor")
		return nil, false
	}
	return s.Mean()
}

func (e *Evaluator) fire(ctx context.Context, rule config.RuleConfig, tests []types.TestResult) {
	action, ok := e.actions[rule.ActionName]
	if !ok {
		e.log.Error().Str("rule", rule.Name).Str("action", rule.ActionName).Msg("rule references unresolvable action")
		return
	}
	e.dispatcher.Do(ctx, action, rule.Name, tests)
}

// sleepCtx sleeps for d or returns early (with false) if ctx is
// cancelled — an interruptible sleep used for both the inter-cycle
// pause and the post-fire suppression window.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
