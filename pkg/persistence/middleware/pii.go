package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewRedaction returns a middleware that masks data values whose key matches any of the
// patterns, at any depth, before a run is stored. The caller's run is not modified.
// Redaction is one-way: loaded runs carry the mask.
func NewRedaction(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &redactionMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactionMiddleware) SaveRun(ctx context.Context, run *domain.Run) error {
	return m.next.SaveRun(ctx, m.redact(run))
}

func (m *redactionMiddleware) FinalizeRun(ctx context.Context, run *domain.Run) error {
	return m.next.FinalizeRun(ctx, m.redact(run))
}

func (m *redactionMiddleware) LoadRun(ctx context.Context, id string) (*domain.Run, error) {
	return m.next.LoadRun(ctx, id)
}

func (m *redactionMiddleware) ListRuns(ctx context.Context) ([]string, error) {
	return m.next.ListRuns(ctx)
}

func (m *redactionMiddleware) redact(run *domain.Run) *domain.Run {
	if run.State == nil || len(m.patterns) == 0 {
		return run
	}
	out := run.Clone()
	for k, v := range out.State.Data {
		out.State.Data[k] = m.mask(k, v)
	}
	out.State.InputData = m.maskAny(out.State.InputData)
	return out
}

func (m *redactionMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *redactionMiddleware) mask(key string, v domain.Value) domain.Value {
	if m.matches(key) {
		return domain.String(Mask)
	}
	switch v.Kind() {
	case domain.KindMap:
		src, _ := v.AsMap()
		masked := make(map[string]domain.Value, len(src))
		for k, item := range src {
			masked[k] = m.mask(k, item)
		}
		return domain.Map(masked)
	case domain.KindList:
		src, _ := v.AsList()
		masked := make([]domain.Value, len(src))
		for i, item := range src {
			masked[i] = m.mask("", item)
		}
		return domain.List(masked...)
	}
	return v
}

// maskAny redacts caller input, which is free-form JSON.
func (m *redactionMiddleware) maskAny(x any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, v := range t {
			if m.matches(k) {
				t[k] = Mask
				continue
			}
			t[k] = m.maskAny(v)
		}
	case []any:
		for i, v := range t {
			t[i] = m.maskAny(v)
		}
	}
	return x
}
