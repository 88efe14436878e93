package trigger

import (
	"context"
	"time"

	"github.com/fluxweave/fluxweave/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DefaultTick is the schedule loop's polling interval absent config
// override (SPEC_FULL §9: "the schedule tick defaults to 5s with cron
// granularity of 1 minute").
const DefaultTick = 5 * time.Second

// ScheduleEngine advances cron-based triggers on a background tick (spec
// §4.7 "Schedule triggers"), grounded on
// `_examples/original_source/flowdapt/triggers/resources/triggers/cron.py`'s
// `is_ready_to_run`/`get_next_run_datetime` and `methods.py`'s
// `_get_next_scheduled_triggers` loop.
type ScheduleEngine struct {
	parser  cron.Parser
	tick    time.Duration
	store   RuleStore
	actions *ActionRegistry

	lastChecked time.Time
}

// NewScheduleEngine builds a ScheduleEngine ticking every tick (DefaultTick
// if zero), parsing standard 5-field cron strings.
func NewScheduleEngine(store RuleStore, actions *ActionRegistry, tick time.Duration) *ScheduleEngine {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &ScheduleEngine{
		parser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		tick:        tick,
		store:       store,
		actions:     actions,
		lastChecked: time.Now(),
	}
}

// Run blocks, ticking until ctx is canceled. Intended to run as a
// background goroutine owned by the service controller.
func (e *ScheduleEngine) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				log.Error("schedule trigger tick failed", "error", err)
			}
		}
	}
}

// Tick performs a single evaluation pass: load schedule triggers, fire the
// ones whose next cron run has arrived, and advance lastChecked only if at
// least one fired (spec §4.7 step 4).
func (e *ScheduleEngine) Tick(ctx context.Context) error {
	log := logger.FromContext(ctx)
	triggers, err := e.store.ListScheduleTriggers(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var ready []*Resource
	for _, trig := range triggers {
		cronStrings, ok := trig.Spec.ScheduleRule()
		if !ok {
			continue
		}
		lastRun := lastRunTime(trig)
		for _, cronStr := range cronStrings {
			schedule, err := e.parser.Parse(cronStr)
			if err != nil {
				log.Warn("invalid cron schedule on trigger", "trigger", trig.Metadata.Name, "schedule", cronStr, "error", err)
				continue
			}
			nextRun := schedule.Next(e.lastChecked)
			if isReadyToRun(nextRun, lastRun, now) {
				ready = append(ready, trig)
				break
			}
		}
	}

	for _, trig := range ready {
		if err := e.store.SetLastRun(ctx, trig, now); err != nil {
			return err
		}
		if err := e.actions.Invoke(ctx, trig.Spec.Action.Target, trig.Spec.Action.Parameters); err != nil {
			log.Error("trigger action failed", "trigger", trig.Metadata.Name, "action", trig.Spec.Action.Target, "error", err)
		}
	}
	if len(ready) > 0 {
		e.lastChecked = now
	}
	return nil
}

func isReadyToRun(nextRun, lastRun, now time.Time) bool {
	return !nextRun.After(now) && lastRun.Before(nextRun)
}

func lastRunTime(trig *Resource) time.Time {
	raw, ok := trig.Metadata.Annotations[LastRunAnnotation]
	if !ok || raw == "" {
		return time.Unix(0, 0).UTC()
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}
