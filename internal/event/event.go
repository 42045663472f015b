package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind is the trigger class of a repository event.
type Kind string

const (
	Push           Kind = "push"
	PullRequest    Kind = "pull_request"
	Release        Kind = "release"
	ManualDispatch Kind = "workflow_dispatch"
)

// ParseKind maps the wire name of an event to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Push, PullRequest, Release, ManualDispatch:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Event is a normalized repository event, decoded from a provider payload.
type Event struct {
	Kind       Kind      `json:"kind"`
	Ref        string    `json:"ref,omitempty"`       // branch name (push, manual)
	PRNumber   int       `json:"pr_number,omitempty"` // pull_request only
	Action     string    `json:"action,omitempty"`    // e.g. "synchronize", "published"
	Tag        string    `json:"tag,omitempty"`       // release only
	Paths      []string  `json:"paths,omitempty"`     // changed files
	DeliveryID string    `json:"delivery_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Source returns the identifying reference of the event for logs.
func (e *Event) Source() string {
	switch e.Kind {
	case PullRequest:
		return fmt.Sprintf("pr#%d", e.PRNumber)
	case Release:
		return e.Tag
	default:
		return e.Ref
	}
}

type pushPayload struct {
	Ref     string `json:"ref"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
	} `json:"commits"`
}

type prPayload struct {
	Action string   `json:"action"`
	Number int      `json:"number"`
	Files  []string `json:"files"`
	Head   struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

type releasePayload struct {
	Action  string `json:"action"`
	TagName string `json:"tag_name"`
}

type dispatchPayload struct {
	Ref string `json:"ref"`
}

// ParsePayload decodes a provider webhook body into a normalized Event.
// The kind comes from the delivery header, not the body.
func ParsePayload(kind string, body []byte) (*Event, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}

	ev := &Event{Kind: k, ReceivedAt: time.Now()}

	switch k {
	case Push:
		var p pushPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode push payload: %w", err)
		}
		ev.Ref = branchFromRef(p.Ref)
		for _, c := range p.Commits {
			ev.Paths = append(ev.Paths, c.Added...)
			ev.Paths = append(ev.Paths, c.Modified...)
			ev.Paths = append(ev.Paths, c.Removed...)
		}
		ev.Paths = dedupe(ev.Paths)

	case PullRequest:
		var p prPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode pull_request payload: %w", err)
		}
		if p.Number <= 0 {
			return nil, fmt.Errorf("pull_request payload missing number")
		}
		ev.PRNumber = p.Number
		ev.Action = p.Action
		ev.Ref = p.Head.Ref
		ev.Paths = dedupe(p.Files)

	case Release:
		var p releasePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode release payload: %w", err)
		}
		ev.Action = p.Action
		ev.Tag = p.TagName

	case ManualDispatch:
		var p dispatchPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode workflow_dispatch payload: %w", err)
		}
		ev.Ref = p.Ref
	}

	return ev, nil
}

func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func dedupe(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
