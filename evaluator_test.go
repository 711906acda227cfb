package groups

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

type fakeProgramCache struct {
	mu     sync.Mutex
	items  map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

func (c *fakeProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]any)
	}
	c.items[key] = value
}

func sampleRuleContext() RuleContext {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return RuleContext{
		ID:       4,
		Index:    1,
		Accepted: 1,
		Group: RuleGroup{
			Namespace:    "combat",
			Field:        "myOverlays",
			Key:          "combat.groupedOverlay.myOverlays.ids",
			Type:         "*groups.textOverlay",
			ElementType:  "text",
			RenderState:  "hud",
			DefaultCount: 4,
		},
		Now:      &now,
		Args:     map[string]any{"max": 5},
		Metadata: map[string]any{"profile": "pvp"},
	}
}

func TestEvaluatorsSeeRuleBinding(t *testing.T) {
	rules := []string{
		`id == 4 && index == 1 && accepted == 1`,
		`owner == "combat" && field == "myOverlays" && default_count == 4`,
		`element_type == "text" && render_state == "hud"`,
		`key == "combat.groupedOverlay.myOverlays.ids" && tag == "*groups.textOverlay"`,
	}
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("evaluator not available in this build")
			}
			for _, rule := range rules {
				result, err := evaluator.Evaluate(sampleRuleContext(), rule)
				if err != nil {
					t.Fatalf("%s: %v", rule, err)
				}
				if result != true {
					t.Fatalf("%s: expected true, got %v", rule, result)
				}
			}
		})
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			cache := &fakeProgramCache{}
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skip("evaluator not available in this build")
			}
			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(sampleRuleContext(), "id >= 0"); err != nil {
					t.Fatalf("unexpected error on iteration %d: %v", i, err)
				}
			}
			if cache.misses != 1 || cache.hits != 2 {
				t.Fatalf("expected 1 miss and 2 hits, got %d misses %d hits", cache.misses, cache.hits)
			}
		})
	}
}

func TestCompiledRuleReuse(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("evaluator not available in this build")
			}
			rule, err := evaluator.Compile("id < 3")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			ctx := sampleRuleContext()
			for id, want := range map[int]bool{0: true, 2: true, 3: false, 9: false} {
				ctx.ID = id
				result, err := rule.Evaluate(ctx)
				if err != nil {
					t.Fatalf("evaluate id=%d: %v", id, err)
				}
				if result != want {
					t.Fatalf("id=%d: expected %v, got %v", id, want, result)
				}
			}
		})
	}
}

func TestEvaluatorsRejectEmptyExpression(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("evaluator not available in this build")
			}
			if _, err := evaluator.Compile(""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
		})
	}
}

func TestRuleContextDefaults(t *testing.T) {
	ctx := RuleContext{}.withDefaults()
	if ctx.Now == nil || ctx.Now.IsZero() {
		t.Fatalf("expected Now to default")
	}
	if ctx.Args == nil || ctx.Metadata == nil {
		t.Fatalf("expected args and metadata maps")
	}
	if (RuleContext{}).label() != "unknown" {
		t.Fatalf("expected unknown label for empty key")
	}
}

func TestEvaluatorByName(t *testing.T) {
	for _, engine := range []string{"", "expr", " CEL "} {
		evaluator, err := EvaluatorByName(engine, nil, nil)
		if err != nil || evaluator == nil {
			t.Fatalf("%q: expected evaluator, got %v", engine, err)
		}
	}
	if _, err := EvaluatorByName("lua", nil, nil); err == nil || !strings.Contains(err.Error(), "lua") {
		t.Fatalf("expected unknown engine error, got %v", err)
	}
}

func TestEvaluatorEngineName(t *testing.T) {
	if evaluatorEngineName(NewExprEvaluator()) != "expr" || evaluatorEngineName(NewCELEvaluator()) != "cel" {
		t.Fatalf("unexpected engine names")
	}
	if evaluatorEngineName(nil) != "unknown" {
		t.Fatalf("expected unknown for nil evaluator")
	}
}

func TestFunctionRegistryNamesAreCaseSensitive(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("Double", func(args ...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := registry.Register("double", func(args ...any) (any, error) { return 0, nil }); err != nil {
		t.Fatalf("expected distinct lower-case name to register: %v", err)
	}
	result, err := registry.Call("Double", 21)
	if err != nil || result != 42 {
		t.Fatalf("unexpected call result %v %v", result, err)
	}
	if _, err := registry.Call("DOUBLE"); !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected ErrUnknownFunction, got %v", err)
	}
	if !registry.Has("double") || registry.Has("DOUBLE") {
		t.Fatalf("unexpected Has results")
	}
}

func TestFunctionRegistryRejectsNamesShadowingRuleVariables(t *testing.T) {
	noop := func(args ...any) (any, error) { return true, nil }
	for _, name := range []string{"id", "index", "accepted", "owner", "field", "key", "tag", "element_type", "render_state", "default_count", "now", "args", "metadata", "call"} {
		if err := NewFunctionRegistry().Register(name, noop); !errors.Is(err, ErrFunctionName) {
			t.Fatalf("%s: expected ErrFunctionName, got %v", name, err)
		}
	}
	for _, name := range []string{"", "has space", "1st", "a-b"} {
		if err := NewFunctionRegistry().Register(name, noop); !errors.Is(err, ErrFunctionName) {
			t.Fatalf("%q: expected ErrFunctionName, got %v", name, err)
		}
	}
	if err := NewFunctionRegistry().Register("ok", nil); err == nil {
		t.Fatalf("expected error for nil function")
	}
}

func TestReservedRuleNamesCoverBinding(t *testing.T) {
	for name := range sampleRuleContext().binding() {
		if _, ok := reservedRuleNames[name]; !ok {
			t.Fatalf("binding variable %q is not reserved", name)
		}
	}
}

func TestFunctionRegistryCallRecoversPanics(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("explode", func(...any) (any, error) { panic("boom") }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := registry.Call("explode"); err == nil {
		t.Fatalf("expected panic converted to error")
	}
	var nilRegistry *FunctionRegistry
	if _, err := nilRegistry.Call("explode"); err == nil {
		t.Fatalf("expected error from nil registry")
	}
}

func TestMemoryProgramCache(t *testing.T) {
	cache := NewProgramCache()
	if _, ok := cache.Get("expr:id"); ok {
		t.Fatalf("expected empty cache")
	}
	cache.Set("expr:id", 1)
	if value, ok := cache.Get("expr:id"); !ok || value != 1 || cache.Len() != 1 {
		t.Fatalf("unexpected cache state %v %v %d", value, ok, cache.Len())
	}
}
