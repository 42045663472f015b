package trigger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateci/internal/event"
	"gateci/internal/trigger"
)

func evaluate(t *testing.T, ev *event.Event) (*trigger.Request, error) {
	t.Helper()
	return trigger.NewEvaluator(trigger.DefaultRules()).Evaluate(ev)
}

func TestQualification(t *testing.T) {
	t.Run("release always qualifies", func(t *testing.T) {
		req, err := evaluate(t, &event.Event{Kind: event.Release, Tag: "v2.0.0"})
		require.NoError(t, err)
		assert.Equal(t, "release", req.Key)
	})

	t.Run("manual dispatch always qualifies", func(t *testing.T) {
		req, err := evaluate(t, &event.Event{Kind: event.ManualDispatch, Ref: "main"})
		require.NoError(t, err)
		assert.Equal(t, "manual", req.Key)
	})

	t.Run("docs-only pull request is skipped", func(t *testing.T) {
		_, err := evaluate(t, &event.Event{
			Kind:     event.PullRequest,
			PRNumber: 7,
			Paths:    []string{"docs/guide.md", "README.md"},
		})
		require.Error(t, err)
		assert.True(t, trigger.IsSkip(err))
	})

	t.Run("pull request with a code change qualifies", func(t *testing.T) {
		req, err := evaluate(t, &event.Event{
			Kind:     event.PullRequest,
			PRNumber: 7,
			Paths:    []string{"docs/guide.md", "src/lib.rs"},
		})
		require.NoError(t, err)
		assert.Equal(t, "pr-7", req.Key)
	})

	t.Run("push ignoring workflow changes too", func(t *testing.T) {
		_, err := evaluate(t, &event.Event{
			Kind:  event.Push,
			Ref:   "main",
			Paths: []string{".github/workflows/ci.yml", "README.md"},
		})
		assert.True(t, trigger.IsSkip(err))
	})

	t.Run("workflow change on a pull request still qualifies", func(t *testing.T) {
		// .github is only ignored for pushes
		_, err := evaluate(t, &event.Event{
			Kind:     event.PullRequest,
			PRNumber: 8,
			Paths:    []string{".github/workflows/ci.yml"},
		})
		require.NoError(t, err)
	})

	t.Run("push to an unwatched branch is skipped", func(t *testing.T) {
		_, err := evaluate(t, &event.Event{
			Kind:  event.Push,
			Ref:   "feature/x",
			Paths: []string{"src/lib.rs"},
		})
		assert.True(t, trigger.IsSkip(err))
	})

	t.Run("empty path set qualifies", func(t *testing.T) {
		// empty commits report no paths; treated conservatively
		_, err := evaluate(t, &event.Event{Kind: event.Push, Ref: "main"})
		require.NoError(t, err)
	})
}

func TestGroupKey(t *testing.T) {
	t.Run("same PR, same key", func(t *testing.T) {
		e1 := &event.Event{Kind: event.PullRequest, PRNumber: 12}
		e2 := &event.Event{Kind: event.PullRequest, PRNumber: 12}
		assert.Equal(t, trigger.GroupKey(e1), trigger.GroupKey(e2))
	})

	t.Run("different PRs, different keys", func(t *testing.T) {
		e1 := &event.Event{Kind: event.PullRequest, PRNumber: 12}
		e2 := &event.Event{Kind: event.PullRequest, PRNumber: 13}
		assert.NotEqual(t, trigger.GroupKey(e1), trigger.GroupKey(e2))
	})

	t.Run("non-PR kinds share one key per class", func(t *testing.T) {
		p1 := &event.Event{Kind: event.Push, Ref: "main"}
		p2 := &event.Event{Kind: event.Push, Ref: "main"}
		rel := &event.Event{Kind: event.Release, Tag: "v1"}
		assert.Equal(t, trigger.GroupKey(p1), trigger.GroupKey(p2))
		assert.NotEqual(t, trigger.GroupKey(p1), trigger.GroupKey(rel))
	})

	t.Run("PR keys never collide with class keys", func(t *testing.T) {
		pr := &event.Event{Kind: event.PullRequest, PRNumber: 1}
		for _, other := range []*event.Event{
			{Kind: event.Push, Ref: "main"},
			{Kind: event.Release},
			{Kind: event.ManualDispatch},
		} {
			assert.NotEqual(t, trigger.GroupKey(pr), trigger.GroupKey(other))
		}
	})
}

func TestCancellationPolicy(t *testing.T) {
	assert.Equal(t, trigger.PolicyCancelInFlight, trigger.CancellationPolicy(event.PullRequest))
	assert.Equal(t, trigger.PolicyQueue, trigger.CancellationPolicy(event.Push))
	assert.Equal(t, trigger.PolicyQueue, trigger.CancellationPolicy(event.Release))
	assert.Equal(t, trigger.PolicyQueue, trigger.CancellationPolicy(event.ManualDispatch))
}
