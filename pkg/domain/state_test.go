package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewState(t *testing.T) {
	s := NewState("def main(): pass")
	assert.Equal(t, StatusPending, s.Status)
	assert.NotNil(t, s.Data)
	assert.Empty(t, s.Logs)
	assert.Equal(t, "", s.LastLog())

	in, ok := s.Input()
	assert.True(t, ok)
	assert.Equal(t, "def main(): pass", in)
}

func TestState_LogsPreserveOrder(t *testing.T) {
	s := NewState(nil)
	s.Log("one")
	s.Logf("two %d", 2)
	s.Log("three")

	assert.Equal(t, []string{"one", "two 2", "three"}, s.Logs)
	assert.Equal(t, "three", s.LastLog())
}

func TestState_CloneIsolation(t *testing.T) {
	s := NewState(map[string]any{"code": "x", "opts": []any{"a"}})
	s.Data.Set("n", Int(1))
	s.Log("first")

	cp := s.Clone()
	cp.Data.Set("n", Int(2))
	cp.Log("second")
	cp.InputData.(map[string]any)["code"] = "changed"

	n, _ := s.Data.Number("n")
	assert.Equal(t, 1.0, n)
	assert.Len(t, s.Logs, 1)
	assert.Equal(t, "x", s.InputData.(map[string]any)["code"])
}

func TestRun_Clone(t *testing.T) {
	now := time.Now()
	r := &Run{ID: "r1", State: NewState("in"), Status: StatusCompleted, FinishedAt: &now}
	cp := r.Clone()
	cp.State.Log("mutated")
	*cp.FinishedAt = now.Add(time.Hour)

	assert.Empty(t, r.State.Logs)
	assert.Equal(t, now, *r.FinishedAt)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusSubmitted.Valid())
	assert.False(t, Status("DONE").Valid())
}
