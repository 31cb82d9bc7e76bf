// Package corectx defines the shared per-turn context and the explicit
// result type every pipeline component returns instead of raising.
//
// Per the scaffolding core's error handling design, no component may panic
// the turn: a component either improves the turn (Ok), declines to act
// because it is disabled or inapplicable (Skip), or failed and is degrading
// to passthrough (Fail). Callers treat Skip and Fail identically.
package corectx

import "fmt"

// OutcomeKind discriminates ComponentOutcome.
type OutcomeKind int

const (
	// Ok means the component produced an effect that the caller should apply.
	Ok OutcomeKind = iota
	// Skip means the component had nothing to do (disabled, inapplicable).
	Skip
	// Fail means the component hit an unexpected condition and is degrading
	// to passthrough. The warning is logged, never propagated as an error.
	Fail
)

func (k OutcomeKind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ComponentOutcome is the uniform return type for every pipeline component
// boundary (BST, Org Kernel, Graph Engine, Tool Gate, Memory Enhancement,
// Supervisor). Effect is component-specific and only meaningful when Kind
// is Ok.
type ComponentOutcome struct {
	Kind    OutcomeKind
	Reason  string
	Effect  any
	Warning error
}

// OkOutcome builds a successful outcome carrying effect.
func OkOutcome(effect any) ComponentOutcome {
	return ComponentOutcome{Kind: Ok, Effect: effect}
}

// SkipOutcome builds a neutral outcome with a human-readable reason.
func SkipOutcome(reason string) ComponentOutcome {
	return ComponentOutcome{Kind: Skip, Reason: reason}
}

// FailOutcome wraps an unexpected error as a degrade-to-passthrough outcome.
func FailOutcome(warning error) ComponentOutcome {
	return ComponentOutcome{Kind: Fail, Warning: warning, Reason: warning.Error()}
}

// Applies reports whether the outcome carries an effect the caller must act on.
func (o ComponentOutcome) Applies() bool {
	return o.Kind == Ok
}

func (o ComponentOutcome) String() string {
	if o.Kind == Ok {
		return fmt.Sprintf("ok(%v)", o.Effect)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}

// Boundary runs fn and converts a panic or returned error into a Fail
// outcome, guaranteeing the pipeline's backward-compatibility contract: a
// component's own bug never blocks the turn.
func Boundary(component string, fn func() (ComponentOutcome, error)) ComponentOutcome {
	defer func() {}()
	outcome, err := safeCall(fn)
	if err != nil {
		return FailOutcome(fmt.Errorf("%s: %w", component, err))
	}
	return outcome
}

func safeCall(fn func() (ComponentOutcome, error)) (outcome ComponentOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
