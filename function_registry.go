package groups

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Function is a helper admission rules can call, either directly by name or
// through call(name, args).
type Function func(args ...any) (any, error)

var functionNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedRuleNames are the rule variables plus the call dispatcher. A helper
// under one of these names would be hidden by, or hide, the binding.
var reservedRuleNames = func() map[string]struct{} {
	names := map[string]struct{}{"call": {}}
	for name := range (RuleContext{}).binding() {
		names[name] = struct{}{}
	}
	return names
}()

// FunctionRegistry holds the helpers visible to admission rules. Names are
// case-sensitive, as they are in every rule engine.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register adds fn under name. The name must be an identifier that is not a
// rule variable and not already registered.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if err := validateFunctionName(name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("groups: rule function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("groups: rule function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

func validateFunctionName(name string) error {
	if !functionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not an identifier", ErrFunctionName, name)
	}
	if _, reserved := reservedRuleNames[name]; reserved {
		return fmt.Errorf("%w: %q is a rule variable", ErrFunctionName, name)
	}
	return nil
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[name]
	return ok
}

// Clone snapshots the registry so an evaluator is unaffected by later
// registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call runs the helper registered under name. Errors and panics raised by the
// helper surface as the call's error so the rule fails for that id only.
func (r *FunctionRegistry) Call(name string, args ...any) (result any, err error) {
	if r == nil {
		return nil, errors.New("groups: no rule functions registered")
	}
	r.mu.RLock()
	fn := r.functions[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("groups: rule function %q panicked: %v", name, recovered)
		}
	}()
	return fn(args...)
}

// Names returns the registered names in ascending order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes registry's helpers to admission rules. The
// registry is copied; later registrations do not reach the reconciler.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *reconcileConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for admission rules. An invalid
// or duplicate name makes NewReconciler fail.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *reconcileConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
