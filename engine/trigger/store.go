package trigger

import (
	"context"
	"time"
)

// RuleStore is the trigger engine's view of the resource store (engine/store,
// spec §4.8): listing rules by type and persisting the last_run annotation.
type RuleStore interface {
	ListConditionTriggers(ctx context.Context) ([]*Resource, error)
	ListScheduleTriggers(ctx context.Context) ([]*Resource, error)
	SetLastRun(ctx context.Context, rule *Resource, at time.Time) error
}
