package trigger

import (
	"errors"
	"fmt"

	"gateci/internal/event"
)

// Policy says what a newly accepted execution does to earlier executions
// in the same concurrency group.
type Policy string

const (
	// PolicyQueue enqueues behind any existing execution in the group.
	PolicyQueue Policy = "queue"
	// PolicyCancelInFlight cancels any queued or running execution in the
	// group before the new one starts.
	PolicyCancelInFlight Policy = "cancel-in-flight"
)

// CancellationPolicy maps an event kind to its group policy. Only
// pull_request events supersede earlier runs; push, release and manual
// runs are never dropped.
func CancellationPolicy(k event.Kind) Policy {
	if k == event.PullRequest {
		return PolicyCancelInFlight
	}
	return PolicyQueue
}

// GroupKey derives the concurrency group of an event. Pull requests get a
// per-PR key; every other kind shares one key per trigger class.
func GroupKey(e *event.Event) string {
	if e.Kind == event.PullRequest {
		return fmt.Sprintf("pr-%d", e.PRNumber)
	}
	switch e.Kind {
	case event.Release:
		return "release"
	case event.ManualDispatch:
		return "manual"
	default:
		return "push"
	}
}

// Request is an accepted execution request.
type Request struct {
	Event  *event.Event
	Key    string
	Policy Policy
}

// SkipError marks an event that does not qualify for an execution.
// It is a decision, not a failure.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "event skipped: " + e.Reason
}

// IsSkip reports whether err is a qualification skip.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// Rules are the qualification rules for incoming events.
type Rules struct {
	PushBranches []string // branches whose pushes qualify
	PushIgnore   []string // push skips when all changed paths match these
	PRIgnore     []string // pull_request skips when all changed paths match these
}

// DefaultRules returns the stock rule set: pushes to main only, docs and
// readme changes ignored, workflow-definition changes additionally
// ignored for pushes.
func DefaultRules() Rules {
	return Rules{
		PushBranches: []string{"main"},
		PushIgnore:   []string{".github/**", "docs/**", "README.md"},
		PRIgnore:     []string{"docs/**", "README.md"},
	}
}

// Evaluator decides whether events produce executions.
type Evaluator struct {
	rules Rules
}

func NewEvaluator(rules Rules) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate qualifies an event and, if it qualifies, emits the execution
// request with its group key and cancellation policy. A non-qualifying
// event returns a *SkipError.
func (ev *Evaluator) Evaluate(e *event.Event) (*Request, error) {
	if err := ev.qualify(e); err != nil {
		return nil, err
	}
	return &Request{
		Event:  e,
		Key:    GroupKey(e),
		Policy: CancellationPolicy(e.Kind),
	}, nil
}

func (ev *Evaluator) qualify(e *event.Event) error {
	switch e.Kind {
	case event.Release, event.ManualDispatch:
		// always qualify, path set irrelevant
		return nil

	case event.PullRequest:
		if event.OnlyTouches(e.Paths, ev.rules.PRIgnore) {
			return &SkipError{Reason: "all changed paths ignored for pull_request"}
		}
		return nil

	case event.Push:
		if !branchAllowed(e.Ref, ev.rules.PushBranches) {
			return &SkipError{Reason: fmt.Sprintf("push to branch %q not watched", e.Ref)}
		}
		if event.OnlyTouches(e.Paths, ev.rules.PushIgnore) {
			return &SkipError{Reason: "all changed paths ignored for push"}
		}
		return nil
	}
	return fmt.Errorf("unknown event kind %q", e.Kind)
}

func branchAllowed(branch string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, b := range allowed {
		if b == branch {
			return true
		}
	}
	return false
}
