package groups

import (
	"context"
	"strings"

	"github.com/goliatone/go-groups/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified after every reconcile.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *reconcileConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides activity.DefaultChannel for emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *reconcileConfig) {
		cfg.activityChannel = strings.TrimSpace(channel)
	}
}

// WithActivityActor stamps emitted events with an actor and tenant id.
func WithActivityActor(actorID, tenantID string) Option {
	return func(cfg *reconcileConfig) {
		cfg.activityActor = strings.TrimSpace(actorID)
		cfg.activityTenant = strings.TrimSpace(tenantID)
	}
}

// ActivityHooks returns a copy of the hooks configured on the reconciler.
func (r *Reconciler) ActivityHooks() activity.Hooks {
	if r == nil {
		return nil
	}
	return cloneActivityHooks(r.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

// emitActivity reports the outcome to the configured hooks. Hook failures are
// logged and never alter the outcome.
func (r *Reconciler) emitActivity(d *GroupDescriptor, outcome Outcome) {
	if !r.emitter.Enabled() {
		return
	}

	input := activity.GroupEventInput{
		ActorID:    r.cfg.activityActor,
		TenantID:   r.cfg.activityTenant,
		Group:      groupContextOf(d),
		Skipped:    skipRecords(outcome.Skipped),
		OccurredAt: r.cfg.clock(),
	}

	ctx := context.Background()
	for _, skip := range input.Skipped {
		r.reportActivityError(outcome, r.emitter.Emit(ctx, activity.BuildEntrySkippedEvent(input, skip)))
	}

	var event activity.Event
	if outcome.Completed() {
		input.Installed = outcome.InstalledIDs()
		event = activity.BuildGroupReconciledEvent(input)
	} else {
		if outcome.Err != nil {
			input.Error = outcome.Err.Error()
		}
		event = activity.BuildGroupAbortedEvent(input)
	}
	r.reportActivityError(outcome, r.emitter.Emit(ctx, event))
}

func (r *Reconciler) reportActivityError(outcome Outcome, err error) {
	if err == nil {
		return
	}
	r.cfg.logger.LogReconcile(ReconcileLogEvent{
		Level: LogLevelWarn,
		Stage: StageActivity,
		Key:   outcome.Key,
		Err:   err,
	})
}

func groupContextOf(d *GroupDescriptor) activity.GroupContext {
	if d == nil {
		return activity.GroupContext{}
	}
	group := ruleGroupOf(d)
	return activity.GroupContext{
		Namespace:   group.Namespace,
		Field:       group.Field,
		Key:         group.Key,
		Type:        group.Type,
		ElementType: group.ElementType,
		RenderState: group.RenderState,
	}
}

func skipRecords(skipped []SkippedEntry) []activity.SkipRecord {
	if len(skipped) == 0 {
		return nil
	}
	records := make([]activity.SkipRecord, len(skipped))
	for i, entry := range skipped {
		records[i] = activity.SkipRecord{
			Index:  entry.Index,
			ID:     entry.ID.String(),
			Reason: string(entry.Reason),
		}
		if entry.Err != nil {
			records[i].Error = entry.Err.Error()
		}
	}
	return records
}
