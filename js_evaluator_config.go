package groups

import "time"

// DefaultJSRuleTimeout bounds one admission rule run in the JS engine. A rule
// still running when it expires fails for that id only.
const DefaultJSRuleTimeout = 250 * time.Millisecond

type jsRuleConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption configures the JS admission rule engine.
type JSEvaluatorOption func(*jsRuleConfig)

// JSWithProgramCache shares compiled rule scripts through cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *jsRuleConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry's helpers to rule scripts, both as
// globals and through call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsRuleConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// JSWithTimeout replaces DefaultJSRuleTimeout. Zero or negative disables the
// limit.
func JSWithTimeout(timeout time.Duration) JSEvaluatorOption {
	return func(cfg *jsRuleConfig) {
		cfg.timeout = timeout
	}
}

func applyJSEvaluatorOptions(opts []JSEvaluatorOption) jsRuleConfig {
	cfg := jsRuleConfig{timeout: DefaultJSRuleTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
