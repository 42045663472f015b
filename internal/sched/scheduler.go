package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gateci/internal/core"
	"gateci/internal/history"
	"gateci/internal/trigger"
)

// RunFunc runs the job set for one execution. It returns an error only
// when the execution could not run to completion (cancellation); job
// failures are carried in the summary.
type RunFunc func(ctx context.Context, ex *Execution) (*core.Summary, error)

// Scheduler serializes executions per concurrency group. Groups with
// the queue policy run strictly in arrival order; groups with the
// cancel-in-flight policy keep at most one live execution, superseding
// earlier ones.
type Scheduler struct {
	run  RunFunc
	hist *history.Store // optional

	mu     sync.Mutex
	groups map[string]*group
	all    map[string]*Execution
	order  []*Execution // submission order, for listing
	quit   chan struct{}
}

func New(run RunFunc, hist *history.Store) *Scheduler {
	return &Scheduler{
		run:    run,
		hist:   hist,
		groups: make(map[string]*group),
		all:    make(map[string]*Execution),
		quit:   make(chan struct{}),
	}
}

// Submit accepts an execution request and returns the new execution.
// With the cancel-in-flight policy every queued or running execution in
// the same group is cancelled before the new one is enqueued.
func (s *Scheduler) Submit(req *trigger.Request) *Execution {
	ex := newExecution(uuid.NewString(), req)

	s.mu.Lock()
	g, ok := s.groups[req.Key]
	if !ok {
		g = &group{
			key:  req.Key,
			s:    s,
			wake: make(chan struct{}, 1),
		}
		s.groups[req.Key] = g
		go g.loop()
	}
	s.all[ex.ID] = ex
	s.order = append(s.order, ex)
	s.mu.Unlock()

	g.submit(ex, req.Policy)
	return ex
}

// Get looks up an execution by id.
func (s *Scheduler) Get(id string) (*Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.all[id]
	return ex, ok
}

// Recent returns up to n executions, newest first.
func (s *Scheduler) Recent(n int) []*Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]*Execution, 0, n)
	for i := len(s.order) - 1; i >= len(s.order)-n; i-- {
		out = append(out, s.order[i])
	}
	return out
}

// Close stops the group workers. Queued executions stay queued; running
// ones finish.
func (s *Scheduler) Close() {
	close(s.quit)
}

type group struct {
	key  string
	s    *Scheduler
	wake chan struct{}

	mu      sync.Mutex
	queue   []*Execution
	current *Execution
}

func (g *group) submit(ex *Execution, policy trigger.Policy) {
	var superseded []*Execution
	g.mu.Lock()
	if policy == trigger.PolicyCancelInFlight {
		superseded = append(superseded, g.queue...)
		g.queue = g.queue[:0]
		if g.current != nil {
			superseded = append(superseded, g.current)
		}
	}
	g.queue = append(g.queue, ex)
	g.mu.Unlock()

	// cancel outside the group lock; a running execution records itself
	// when its worker observes the cancellation
	for _, old := range superseded {
		if old.requestCancel() {
			g.s.record(old)
		}
	}

	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *group) loop() {
	for {
		g.mu.Lock()
		var ex *Execution
		// skip executions cancelled while queued; claim the next live
		// one as current before releasing the lock so a superseding
		// submit can always see it
		for len(g.queue) > 0 {
			head := g.queue[0]
			g.queue = g.queue[1:]
			if head.State() == StateQueued {
				ex = head
				g.current = ex
				break
			}
		}
		g.mu.Unlock()

		if ex == nil {
			select {
			case <-g.wake:
			case <-g.s.quit:
				return
			}
			continue
		}
		g.runOne(ex)
	}
}

func (g *group) runOne(ex *Execution) {
	defer func() {
		g.mu.Lock()
		g.current = nil
		g.mu.Unlock()
	}()

	ex.mu.Lock()
	if ex.state != StateQueued {
		// superseded between claim and start; already recorded
		ex.mu.Unlock()
		return
	}
	_ = ex.transition(StateRunning)
	ctx, cancel := context.WithCancel(context.Background())
	ex.cancel = cancel
	ex.mu.Unlock()
	defer cancel()

	fmt.Printf("Execution %s started (group=%s)\n", ex.ID, g.key)
	summary, err := g.s.run(ctx, ex)

	ex.mu.Lock()
	switch {
	case ex.cancelled || errors.Is(err, context.Canceled):
		// superseded: reported as cancelled, not failed
		_ = ex.transition(StateCancelled)
	case err != nil:
		_ = ex.transition(StateFailed)
	default:
		ex.summary = summary
		if summary.Failed() {
			_ = ex.transition(StateFailed)
		} else {
			_ = ex.transition(StateSucceeded)
		}
	}
	state := ex.state
	ex.mu.Unlock()

	fmt.Printf("Execution %s finished: %s\n", ex.ID, state)
	g.s.record(ex)
}

func (s *Scheduler) record(ex *Execution) {
	if s.hist == nil {
		return
	}
	if err := s.hist.Append(ex.historyRecord()); err != nil {
		fmt.Printf("WARN: cannot record execution %s: %v\n", ex.ID, err)
	}
}

func (ex *Execution) historyRecord() *history.Record {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	rec := &history.Record{
		ID:         ex.ID,
		Key:        ex.Request.Key,
		Kind:       string(ex.Request.Event.Kind),
		Source:     ex.Request.Event.Source(),
		State:      string(ex.state),
		CreatedAt:  ex.created,
		FinishedAt: ex.finished,
	}
	if ex.summary != nil {
		for _, r := range ex.summary.Results {
			rec.Jobs = append(rec.Jobs, history.JobRecord{
				Name:       r.Job,
				Status:     string(r.Status),
				Failure:    r.Failure,
				CacheHit:   r.CacheHit,
				DurationMS: r.DurationMS,
			})
		}
	}
	return rec
}
