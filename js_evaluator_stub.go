//go:build !js_eval

package groups

// NewJSEvaluator returns nil in builds without the js_eval tag. Reconcilers
// asking for the "js" engine fail with ErrNoEvaluator instead.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
