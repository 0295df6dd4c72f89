package domain

import "time"

// Run is the persisted record of one execution of a graph.
// The engine never sees it; the dispatcher owns its lifecycle.
type Run struct {
	ID         string     `json:"id"`
	GraphID    string     `json:"graph_id"`
	State      *State     `json:"state"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
