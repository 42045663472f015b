package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JobRecord is the recorded outcome of one job inside an execution.
type JobRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Failure    string `json:"failure,omitempty"` // toolchain_install or check_command
	CacheHit   bool   `json:"cache_hit"`
	DurationMS int64  `json:"duration_ms"`
}

// Record is one finished execution, as persisted to the history file.
type Record struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	Kind       string      `json:"kind"`
	Source     string      `json:"source,omitempty"`
	State      string      `json:"state"`
	Jobs       []JobRecord `json:"jobs,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Store is an append-only execution history backed by a JSON-lines file,
// one record per line.
type Store struct {
	mu      sync.Mutex
	records []*Record
	path    string
}

// Open loads an existing history file or creates an empty one.
func Open(path string) (*Store, error) {
	s := &Store{
		records: make([]*Record, 0),
		path:    path,
	}

	// If file missing, create empty file
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		s.records = append(s.records, &rec)
	}
	return s, nil
}

// Append persists a record to disk and keeps it in memory.
func (s *Store) Append(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	s.records = append(s.records, r)
	return nil
}

// Records returns all records, oldest first.
func (s *Store) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]*Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out
}
