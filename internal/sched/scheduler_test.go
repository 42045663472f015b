package sched_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateci/internal/core"
	"gateci/internal/event"
	"gateci/internal/sched"
	"gateci/internal/trigger"
)

func prRequest(n int) *trigger.Request {
	ev := &event.Event{Kind: event.PullRequest, PRNumber: n, Paths: []string{"src/lib.rs"}}
	return &trigger.Request{Event: ev, Key: trigger.GroupKey(ev), Policy: trigger.PolicyCancelInFlight}
}

func pushRequest(delivery string) *trigger.Request {
	ev := &event.Event{Kind: event.Push, Ref: "main", DeliveryID: delivery, Paths: []string{"src/lib.rs"}}
	return &trigger.Request{Event: ev, Key: trigger.GroupKey(ev), Policy: trigger.PolicyQueue}
}

func okSummary() *core.Summary {
	return &core.Summary{Results: []core.JobResult{{Job: "unit-test", Status: core.JobSucceeded}}}
}

func waitTerminal(t *testing.T, ex *sched.Execution) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ex.Wait(ctx))
}

func TestPullRequestSupersede(t *testing.T) {
	// given: a run that blocks until released or cancelled
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return okSummary(), nil
		}
	}, nil)
	defer s.Close()

	e1 := s.Submit(prRequest(7))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("e1 never started")
	}

	// when: a newer event for the same PR arrives while e1 runs
	e2 := s.Submit(prRequest(7))

	// then: e1 is cancelled, not failed; e2 completes normally
	waitTerminal(t, e1)
	assert.Equal(t, sched.StateCancelled, e1.State())
	assert.Nil(t, e1.Summary(), "partial results must be discarded")

	close(release)
	waitTerminal(t, e2)
	assert.Equal(t, sched.StateSucceeded, e2.State())
}

func TestQueuedExecutionSuperseded(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return okSummary(), nil
		}
	}, nil)
	defer s.Close()

	e1 := s.Submit(prRequest(3))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("e1 never started")
	}

	// e2 cancels e1 and takes its place; e3 then cancels e2 while it is
	// still queued behind the (cancelling) e1
	e2 := s.Submit(prRequest(3))
	e3 := s.Submit(prRequest(3))

	waitTerminal(t, e1)
	waitTerminal(t, e2)
	assert.Equal(t, sched.StateCancelled, e1.State())
	assert.Equal(t, sched.StateCancelled, e2.State())

	close(release)
	waitTerminal(t, e3)
	assert.Equal(t, sched.StateSucceeded, e3.State())
}

func TestPushOrderPreserved(t *testing.T) {
	// given: a run func that records start order
	var mu sync.Mutex
	var order []string
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		mu.Lock()
		order = append(order, ex.Request.Event.DeliveryID)
		mu.Unlock()
		return okSummary(), nil
	}, nil)
	defer s.Close()

	// when: three pushes to the same group
	e1 := s.Submit(pushRequest("d-1"))
	e2 := s.Submit(pushRequest("d-2"))
	e3 := s.Submit(pushRequest("d-3"))

	waitTerminal(t, e1)
	waitTerminal(t, e2)
	waitTerminal(t, e3)

	// then: no cancellation, no reordering
	assert.Equal(t, sched.StateSucceeded, e1.State())
	assert.Equal(t, sched.StateSucceeded, e2.State())
	assert.Equal(t, sched.StateSucceeded, e3.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"d-1", "d-2", "d-3"}, order)
}

func TestDifferentGroupsDoNotInterfere(t *testing.T) {
	release := make(chan struct{})
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return okSummary(), nil
		}
	}, nil)
	defer s.Close()

	e1 := s.Submit(prRequest(1))
	e2 := s.Submit(prRequest(2)) // different PR, different group

	close(release)
	waitTerminal(t, e1)
	waitTerminal(t, e2)
	assert.Equal(t, sched.StateSucceeded, e1.State())
	assert.Equal(t, sched.StateSucceeded, e2.State())
}

func TestFailedSummaryMarksExecutionFailed(t *testing.T) {
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		return &core.Summary{Results: []core.JobResult{
			{Job: "clippy-check", Status: core.JobSucceeded},
			{Job: "format-check", Status: core.JobFailed, Failure: core.FailureCheck},
			{Job: "unit-test", Status: core.JobSucceeded},
		}}, nil
	}, nil)
	defer s.Close()

	ex := s.Submit(pushRequest("d-1"))
	waitTerminal(t, ex)

	// failed, not cancelled: the two outcomes stay distinguishable
	assert.Equal(t, sched.StateFailed, ex.State())
	require.NotNil(t, ex.Summary())
	assert.Len(t, ex.Summary().Results, 3)
}

func TestGetAndRecent(t *testing.T) {
	s := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
		return okSummary(), nil
	}, nil)
	defer s.Close()

	ex := s.Submit(pushRequest("d-1"))
	waitTerminal(t, ex)

	got, ok := s.Get(ex.ID)
	require.True(t, ok)
	assert.Equal(t, ex.ID, got.ID)

	_, ok = s.Get("no-such-id")
	assert.False(t, ok)

	recent := s.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, ex.ID, recent[0].ID)
}
