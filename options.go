package groups

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-groups/pkg/activity"
)

// Option configures a Reconciler.
type Option func(*reconcileConfig)

type reconcileConfig struct {
	logger          ReconcileLogger
	evaluator       Evaluator
	engine          string
	rule            string
	ruleArgs        map[string]any
	ruleMetadata    map[string]any
	programCache    ProgramCache
	functions       *FunctionRegistry
	activityHooks   activity.Hooks
	activityChannel string
	activityActor   string
	activityTenant  string
	clock           func() time.Time
	errs            []error
}

func applyOptions(opts []Option) reconcileConfig {
	cfg := reconcileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopReconcileLogger{}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

// WithAdmissionRule installs a boolean rule every usable id must satisfy
// before it is constructed. An empty expression disables the rule.
func WithAdmissionRule(expr string) Option {
	return func(cfg *reconcileConfig) {
		cfg.rule = strings.TrimSpace(expr)
	}
}

// WithRuleEngine selects the built-in rule engine by name: "expr" (default),
// "cel" or "js". It is ignored when WithEvaluator supplies an evaluator.
func WithRuleEngine(engine string) Option {
	return func(cfg *reconcileConfig) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// WithEvaluator configures the evaluator used for admission rules.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *reconcileConfig) {
		cfg.evaluator = e
	}
}

// WithRuleArgs exposes args to admission rules as `args`.
func WithRuleArgs(args map[string]any) Option {
	return func(cfg *reconcileConfig) {
		cfg.ruleArgs = copyMap(args)
	}
}

// WithRuleMetadata exposes metadata to admission rules as `metadata`.
func WithRuleMetadata(metadata map[string]any) Option {
	return func(cfg *reconcileConfig) {
		cfg.ruleMetadata = copyMap(metadata)
	}
}

// WithClock overrides the time source used for rule `now` and durations.
func WithClock(clock func() time.Time) Option {
	return func(cfg *reconcileConfig) {
		cfg.clock = clock
	}
}

// EvaluatorByName builds one of the built-in evaluators.
func EvaluatorByName(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js":
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, engine)
	}
}

func (cfg reconcileConfig) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	return EvaluatorByName(cfg.engine, cfg.programCache, cfg.functions)
}

func copyMap(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
