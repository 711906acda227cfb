package groups

import (
	"errors"
	"fmt"
	"time"
)

// RuleGroup describes the group an admission rule is evaluated for.
type RuleGroup struct {
	Namespace    string
	Field        string
	Key          string
	Type         string
	ElementType  string
	RenderState  string
	DefaultCount int
}

// RuleContext carries the inputs of one admission rule evaluation.
type RuleContext struct {
	ID       int
	Index    int
	Accepted int
	Group    RuleGroup
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func ruleGroupOf(d *GroupDescriptor) RuleGroup {
	group := RuleGroup{
		Field:        d.FieldName(),
		Key:          d.ConfigKey(),
		Type:         d.TypeTag().String(),
		ElementType:  d.Classification().ElementType,
		RenderState:  d.Classification().RenderState,
		DefaultCount: d.DefaultCount(),
	}
	if owner := d.Owner(); owner != nil {
		group.Namespace = owner.Namespace()
	}
	return group
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaults()
	return *ctx.Now
}

// binding returns the variables visible to rule expressions. Names avoid
// identifiers reserved or built in by any engine (CEL reserves namespace,
// expr and CEL both define count and type).
func (ctx RuleContext) binding() map[string]any {
	ctx = ctx.withDefaults()
	return map[string]any{
		"id":            ctx.ID,
		"index":         ctx.Index,
		"accepted":      ctx.Accepted,
		"owner":         ctx.Group.Namespace,
		"field":         ctx.Group.Field,
		"key":           ctx.Group.Key,
		"tag":           ctx.Group.Type,
		"element_type":  ctx.Group.ElementType,
		"render_state":  ctx.Group.RenderState,
		"default_count": ctx.Group.DefaultCount,
		"now":           *ctx.Now,
		"args":          ctx.Args,
		"metadata":      ctx.Metadata,
	}
}

func (ctx RuleContext) label() string {
	if ctx.Group.Key != "" {
		return ctx.Group.Key
	}
	return "unknown"
}

// Evaluator executes admission rule expressions.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is a reusable rule program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

var ErrNoEvaluator = errors.New("groups: evaluator not configured")

// RuleError captures rule metadata alongside the originating error.
type RuleError struct {
	Engine string
	Expr   string
	Key    string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: %s rule %s key=%s: %v", e.Engine, describeExpression(e.Expr), e.Key, e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapRuleError(engine, expr, key string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		if ruleErr.Key == "" {
			ruleErr.Key = key
		}
		return ruleErr
	}

	return &RuleError{
		Engine: engine,
		Expr:   expr,
		Key:    key,
		Err:    err,
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*groups.exprEvaluator":
		return "expr"
	case "*groups.celEvaluator":
		return "cel"
	case "*groups.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
