package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gateci/internal/core"
	"gateci/internal/trigger"
)

// State is the lifecycle state of an execution.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// legal transitions: Queued -> Running -> {Succeeded, Failed, Cancelled},
// plus Queued -> Cancelled when a queued execution is superseded.
func canTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateRunning || to == StateCancelled
	case StateRunning:
		return to.Terminal()
	}
	return false
}

// Execution is one end-to-end run of the job set for a qualifying event.
// It is owned by exactly one concurrency group.
type Execution struct {
	ID      string
	Request *trigger.Request

	mu        sync.Mutex
	state     State
	summary   *core.Summary
	cancelled bool               // supersede requested
	cancel    context.CancelFunc // set while running
	created   time.Time
	finished  time.Time
	done      chan struct{}
}

func newExecution(id string, req *trigger.Request) *Execution {
	return &Execution{
		ID:      id,
		Request: req,
		state:   StateQueued,
		created: time.Now(),
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (ex *Execution) State() State {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.state
}

// Summary returns the job results, nil until the execution succeeded or
// failed. A cancelled execution keeps no partial results.
func (ex *Execution) Summary() *core.Summary {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.summary
}

// Done is closed once the execution reaches a terminal state.
func (ex *Execution) Done() <-chan struct{} {
	return ex.done
}

// Wait blocks until the execution finishes or ctx expires.
func (ex *Execution) Wait(ctx context.Context) error {
	select {
	case <-ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ex *Execution) transition(to State) error {
	if !canTransition(ex.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", ex.state, to)
	}
	ex.state = to
	if to.Terminal() {
		ex.finished = time.Now()
		close(ex.done)
	}
	return nil
}

// requestCancel asks the execution to stop. A queued execution is
// cancelled on the spot (reported by the return value, so the caller
// records it); a running one has its context cancelled and the worker
// finishes the transition and the recording.
func (ex *Execution) requestCancel() (cancelledNow bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.state.Terminal() || ex.cancelled {
		return false
	}
	ex.cancelled = true
	switch ex.state {
	case StateQueued:
		_ = ex.transition(StateCancelled)
		return true
	case StateRunning:
		if ex.cancel != nil {
			ex.cancel()
		}
	}
	return false
}
