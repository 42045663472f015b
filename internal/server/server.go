package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gateci/internal/event"
	"gateci/internal/history"
	"gateci/internal/sched"
	"gateci/internal/security"
	"gateci/internal/trigger"
)

// Server exposes the webhook trigger surface and the execution API.
type Server struct {
	eval   *trigger.Evaluator
	sched  *sched.Scheduler
	hist   *history.Store
	secret string
}

func New(eval *trigger.Evaluator, s *sched.Scheduler, hist *history.Store, secret string) *Server {
	return &Server{eval: eval, sched: s, hist: hist, secret: secret}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/events", s.handleEvent)
	r.Get("/executions", s.handleListExecutions)
	r.Get("/executions/{id}", s.handleGetExecution)
	r.Get("/history", s.handleHistory)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

// POST /events -> evaluate a delivery; 202 accepted, 204 skipped
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if !security.Verify(s.secret, body, r.Header.Get(security.SignatureHeader)) {
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	kind := r.Header.Get("X-Event-Kind")
	ev, err := event.ParsePayload(kind, body)
	if err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	ev.DeliveryID = r.Header.Get("X-Delivery")

	req, err := s.eval.Evaluate(ev)
	if trigger.IsSkip(err) {
		fmt.Printf("Delivery %s skipped: %v\n", ev.DeliveryID, err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ex := s.sched.Submit(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"id":     ex.ID,
		"group":  req.Key,
		"state":  string(ex.State()),
		"source": ev.Source(),
	})
}

type executionView struct {
	ID       string    `json:"id"`
	Group    string    `json:"group"`
	Kind     string    `json:"kind"`
	Source   string    `json:"source"`
	State    string    `json:"state"`
	Jobs     []jobView `json:"jobs,omitempty"`
	Reported time.Time `json:"reported_at"`
}

type jobView struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Failure  string `json:"failure,omitempty"`
	CacheHit bool   `json:"cache_hit"`
}

func viewOf(ex *sched.Execution) executionView {
	v := executionView{
		ID:       ex.ID,
		Group:    ex.Request.Key,
		Kind:     string(ex.Request.Event.Kind),
		Source:   ex.Request.Event.Source(),
		State:    string(ex.State()),
		Reported: time.Now(),
	}
	if sum := ex.Summary(); sum != nil {
		for _, r := range sum.Results {
			v.Jobs = append(v.Jobs, jobView{
				Name:     r.Job,
				Status:   string(r.Status),
				Failure:  r.Failure,
				CacheHit: r.CacheHit,
			})
		}
	}
	return v
}

// GET /executions/{id}
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ex, ok := s.sched.Get(id)
	if !ok {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(viewOf(ex))
}

// GET /executions -> recent, newest first
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	views := []executionView{}
	for _, ex := range s.sched.Recent(50) {
		views = append(views, viewOf(ex))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GET /history -> persisted records, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hist.Recent(50))
}
