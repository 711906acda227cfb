package groups

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-groups/pkg/activity"
)

// Status reports how a reconcile call ended.
type Status string

const (
	// StatusCompleted means the accumulated elements were committed.
	StatusCompleted Status = "completed"
	// StatusAborted means nothing was written and the slot kept its content.
	StatusAborted Status = "aborted"
)

// SkipReason explains why a persisted entry produced no element.
type SkipReason string

const (
	SkipInvalidID          SkipReason = "invalid_id"
	SkipConstructionFailed SkipReason = "construction_failed"
	SkipRejected           SkipReason = "rejected_by_rule"
	SkipRuleFailed         SkipReason = "rule_failed"
)

// SkippedEntry records one persisted entry that was dropped.
type SkippedEntry struct {
	Index  int
	ID     PersistedID
	Reason SkipReason
	Err    error
}

// Outcome is the result of one reconcile call. Installed is only populated
// when the commit succeeded; Skipped is reported either way.
type Outcome struct {
	Status    Status
	Key       string
	Installed []Element
	Skipped   []SkippedEntry
	Err       error
	Duration  time.Duration
}

// Completed reports whether the slot now holds Installed.
func (o Outcome) Completed() bool {
	return o.Status == StatusCompleted
}

// Aborted reports whether the call left the slot untouched.
func (o Outcome) Aborted() bool {
	return o.Status == StatusAborted
}

// InstalledIDs returns the ids of the installed elements in order.
func (o Outcome) InstalledIDs() []int {
	return IDsOf(o.Installed).Ints()
}

// Reconciler turns persisted id lists into live element collections. A
// Reconciler holds no per-group state and may serve any number of
// descriptors; calls against the same descriptor must be serialized by the
// caller.
type Reconciler struct {
	factory   ElementFactory
	cfg       reconcileConfig
	evaluator Evaluator
	rule      CompiledRule
	emitter   *activity.Emitter
}

// NewReconciler returns a reconciler constructing elements through factory.
// An admission rule configured through options is compiled here so that a
// broken rule fails at setup rather than on every id.
func NewReconciler(factory ElementFactory, opts ...Option) (*Reconciler, error) {
	if factory == nil {
		return nil, errors.New("groups: element factory is required")
	}
	cfg := applyOptions(opts)
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	r := &Reconciler{
		factory: factory,
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: true,
			Channel: cfg.activityChannel,
		}),
	}
	if cfg.rule == "" {
		return r, nil
	}

	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	rule, err := evaluator.Compile(cfg.rule)
	if err != nil {
		return nil, wrapRuleError(evaluatorEngineName(evaluator), cfg.rule, "", err)
	}
	r.evaluator = evaluator
	r.rule = rule
	return r, nil
}

// Rule returns the configured admission rule expression, if any.
func (r *Reconciler) Rule() string {
	return r.cfg.rule
}

// Reconcile builds one element per usable id in ids, in order, and replaces
// the slot content with the result. Per-entry failures are reported in
// Skipped and never stop the batch. A descriptor whose type tag is not an
// Element, or a failed write, aborts the call with the slot unchanged.
func (r *Reconciler) Reconcile(d *GroupDescriptor, ids IDList) Outcome {
	start := r.cfg.clock()
	outcome := Outcome{}
	if d != nil {
		outcome.Key = d.ConfigKey()
	}

	if err := r.validate(d); err != nil {
		outcome.Status = StatusAborted
		outcome.Err = err
		outcome.Duration = r.cfg.clock().Sub(start)
		r.cfg.logger.LogReconcile(ReconcileLogEvent{
			Level:    LogLevelError,
			Stage:    StageValidate,
			Key:      outcome.Key,
			Field:    fieldOf(d),
			Err:      err,
			Duration: outcome.Duration,
		})
		r.emitActivity(d, outcome)
		return outcome
	}

	tag := d.TypeTag()
	group := ruleGroupOf(d)
	installed := make([]Element, 0, len(ids))
	skip := func(index int, id PersistedID, reason SkipReason, err error) {
		outcome.Skipped = append(outcome.Skipped, SkippedEntry{Index: index, ID: id, Reason: reason, Err: err})
		r.cfg.logger.LogReconcile(ReconcileLogEvent{
			Level:  LogLevelWarn,
			Stage:  StageSkip,
			Key:    outcome.Key,
			Field:  d.FieldName(),
			Index:  index,
			ID:     id.String(),
			Reason: reason,
			Engine: r.engineName(),
			Err:    err,
		})
	}

	for index, id := range ids {
		if !id.Usable() {
			skip(index, id, SkipInvalidID, ErrInvalidID)
			continue
		}
		if r.rule != nil {
			admitted, err := r.admit(group, index, id.Value, len(installed), start)
			if err != nil {
				skip(index, id, SkipRuleFailed, err)
				continue
			}
			if !admitted {
				skip(index, id, SkipRejected, ErrRejectedByRule)
				continue
			}
		}
		el, err := r.construct(tag, id.Value)
		if err != nil {
			skip(index, id, SkipConstructionFailed, err)
			continue
		}
		installed = append(installed, el)
	}

	if err := d.Accessor().Write(d.Owner(), installed); err != nil {
		outcome.Status = StatusAborted
		outcome.Err = &WriteError{Key: outcome.Key, Err: wrapAccessError(AccessWrite, d.FieldName(), err)}
		outcome.Duration = r.cfg.clock().Sub(start)
		r.cfg.logger.LogReconcile(ReconcileLogEvent{
			Level:    LogLevelError,
			Stage:    StageAbort,
			Key:      outcome.Key,
			Field:    d.FieldName(),
			Skipped:  len(outcome.Skipped),
			Duration: outcome.Duration,
			Err:      outcome.Err,
		})
		r.emitActivity(d, outcome)
		return outcome
	}

	outcome.Status = StatusCompleted
	outcome.Installed = installed
	outcome.Duration = r.cfg.clock().Sub(start)
	r.cfg.logger.LogReconcile(ReconcileLogEvent{
		Level:     LogLevelInfo,
		Stage:     StageCommit,
		Key:       outcome.Key,
		Field:     d.FieldName(),
		Installed: len(installed),
		Skipped:   len(outcome.Skipped),
		Duration:  outcome.Duration,
	})
	r.emitActivity(d, outcome)
	return outcome
}

// validate rechecks what NewDescriptor does not guarantee.
func (r *Reconciler) validate(d *GroupDescriptor) error {
	if d == nil {
		return &ValidationError{Err: errors.New("descriptor is nil")}
	}
	if !d.TypeTag().IsElement() {
		return &ValidationError{Key: d.ConfigKey(), Tag: d.TypeTag().String(), Err: ErrNotElementType}
	}
	if d.Accessor() == nil {
		return &ValidationError{Key: d.ConfigKey(), Tag: d.TypeTag().String(), Err: ErrSlotUnavailable}
	}
	return nil
}

func (r *Reconciler) admit(group RuleGroup, index, id, accepted int, now time.Time) (bool, error) {
	result, err := r.rule.Evaluate(RuleContext{
		ID:       id,
		Index:    index,
		Accepted: accepted,
		Group:    group,
		Now:      &now,
		Args:     r.cfg.ruleArgs,
		Metadata: r.cfg.ruleMetadata,
	})
	if err != nil {
		return false, wrapRuleError(r.engineName(), r.cfg.rule, group.Key, err)
	}
	admitted, ok := result.(bool)
	if !ok {
		return false, &RuleError{
			Engine: r.engineName(),
			Expr:   r.cfg.rule,
			Key:    group.Key,
			Err:    fmt.Errorf("rule returned %T, want bool", result),
		}
	}
	return admitted, nil
}

// construct calls the factory and checks what it hands back. Panics are
// converted into construction errors.
func (r *Reconciler) construct(tag TypeTag, id int) (el Element, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			el = nil
			err = &ConstructionError{Tag: tag.String(), ID: id, Err: fmt.Errorf("constructor panicked: %v", recovered)}
		}
	}()

	el, err = r.factory.Construct(tag, id)
	if err != nil {
		return nil, wrapConstructionError(tag, id, err)
	}
	if isNilElement(el) {
		return nil, &ConstructionError{Tag: tag.String(), ID: id, Err: errors.New("constructor returned nil")}
	}
	if !tag.accepts(el) {
		return nil, &ConstructionError{Tag: tag.String(), ID: id, Err: fmt.Errorf("constructed %T is not assignable to %s", el, tag)}
	}
	return el, nil
}

func (r *Reconciler) engineName() string {
	if r.rule == nil {
		return ""
	}
	return evaluatorEngineName(r.evaluator)
}

func isNilElement(el Element) bool {
	if el == nil {
		return true
	}
	rv := reflect.ValueOf(el)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func fieldOf(d *GroupDescriptor) string {
	if d == nil {
		return ""
	}
	return d.FieldName()
}
