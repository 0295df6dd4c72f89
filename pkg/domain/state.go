package domain

import (
	"fmt"
	"maps"
)

// Data is the open-ended key/value store of an execution context.
// Steps introduce and read keys by contract; the engine never interprets it.
type Data map[string]Value

// Get returns the value stored under key.
func (d Data) Get(key string) (Value, bool) {
	v, ok := d[key]
	return v, ok
}

// Set stores v under key.
func (d Data) Set(key string, v Value) {
	d[key] = v
}

// Has reports whether key is present.
func (d Data) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Delete removes key.
func (d Data) Delete(key string) {
	delete(d, key)
}

// Number returns the number stored under key, if any.
func (d Data) Number(key string) (float64, bool) {
	return d[key].AsNumber()
}

// String returns the string stored under key, if any.
func (d Data) String(key string) (string, bool) {
	return d[key].AsString()
}

// Bool returns the bool stored under key, if any.
func (d Data) Bool(key string) (bool, bool) {
	return d[key].AsBool()
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// State is the execution context threaded through every step of one run.
// It is owned by exactly one run at a time.
type State struct {
	// InputData is the caller-supplied payload. Opaque to the engine.
	InputData any `json:"input_data"`

	// Data holds values produced by steps.
	Data Data `json:"data"`

	// Logs is the append-only, ordered trace of the run.
	Logs []string `json:"logs"`

	Status Status `json:"status"`
}

// NewState creates a fresh PENDING context for the given input.
func NewState(input any) *State {
	return &State{
		InputData: input,
		Data:      make(Data),
		Logs:      []string{},
		Status:    StatusPending,
	}
}

// Log appends a trace entry.
func (s *State) Log(msg string) {
	s.Logs = append(s.Logs, msg)
}

// Logf appends a formatted trace entry.
func (s *State) Logf(format string, args ...any) {
	s.Logs = append(s.Logs, fmt.Sprintf(format, args...))
}

// LastLog returns the most recent trace entry, or "" when there is none.
func (s *State) LastLog() string {
	if len(s.Logs) == 0 {
		return ""
	}
	return s.Logs[len(s.Logs)-1]
}

// Input returns InputData as a string when it holds one.
func (s *State) Input() (string, bool) {
	str, ok := s.InputData.(string)
	return str, ok
}

// Clone returns a deep copy suitable for handing across a persistence boundary.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		InputData: cloneAny(s.InputData),
		Data:      s.Data.Clone(),
		Logs:      make([]string, len(s.Logs)),
		Status:    s.Status,
	}
	copy(out.Logs, s.Logs)
	if out.Data == nil {
		out.Data = make(Data)
	}
	return out
}

func cloneAny(x any) any {
	switch t := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = cloneAny(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = cloneAny(v)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case Value:
		return t.Clone()
	}
	return x
}
