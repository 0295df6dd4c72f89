// Package codereview is a demo workflow: it extracts function names from a source
// snippet, scores its complexity and loops through an improvement step until the score
// drops below a threshold.
package codereview

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/dsl"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
)

// GraphName is the name the demo graph is preloaded under.
const GraphName = "demo-review"

// Registered names.
const (
	ToolExtractCode          = "extract_code"
	ToolCheckComplexity      = "check_complexity"
	ToolGenerateImprovements = "generate_improvements"
	ConditionQualityGate     = "quality_gate"
)

// Data keys written by the tools.
const (
	KeyFunctions       = "functions"
	KeyReviewRound     = "review_round"
	KeyComplexityScore = "complexity_score"
)

// Threshold is the score below which the review ends.
const Threshold = 10

// Register adds the workflow's tools and condition to reg.
func Register(reg *registry.Registry) {
	reg.RegisterTool(ToolExtractCode, registry.ToolFunc(ExtractCode))
	reg.RegisterTool(ToolCheckComplexity, registry.ToolFunc(CheckComplexity))
	reg.RegisterTool(ToolGenerateImprovements, registry.ToolFunc(GenerateImprovements))
	reg.RegisterCondition(ConditionQualityGate, registry.ConditionFunc(QualityGate))
}

// Definition builds the review graph:
//
//	extract -> analyze -(quality_gate)-> improve -> analyze ... -> END
func Definition() *graph.Definition {
	b := dsl.New(GraphName)
	b.Add("extract").Do(ToolExtractCode).Go("analyze").Entry()
	b.Add("analyze").Do(ToolCheckComplexity).Branch(ConditionQualityGate)
	b.Add("improve").Do(ToolGenerateImprovements).Go("analyze")
	return b.MustBuild()
}

// ExtractCode records the names of functions declared with "def " in the input.
func ExtractCode(ctx context.Context, state *domain.State) (*domain.State, error) {
	code, err := sourceOf(state)
	if err != nil {
		return nil, err
	}

	var names []domain.Value
	var plain []string
	for _, line := range strings.Split(code, "\n") {
		if !strings.Contains(line, "def ") {
			continue
		}
		name, _, _ := strings.Cut(line, "(")
		name = strings.TrimSpace(strings.ReplaceAll(name, "def ", ""))
		names = append(names, domain.String(name))
		plain = append(plain, name)
	}

	state.Data.Set(KeyFunctions, domain.List(names...))
	state.Data.Set(KeyReviewRound, domain.Int(0))
	state.Logf("Extracted %d functions: %v", len(plain), plain)
	return state, nil
}

// CheckComplexity scores the input by keyword and discounts 5 points per review round.
func CheckComplexity(ctx context.Context, state *domain.State) (*domain.State, error) {
	code, err := sourceOf(state)
	if err != nil {
		return nil, err
	}

	score := 0
	for _, kw := range []string{"for", "if", "while"} {
		if strings.Contains(code, kw) {
			score += 5
		}
	}
	if strings.Contains(code, "nested") {
		score += 10
	}

	round := 0
	if r, ok := state.Data.Number(KeyReviewRound); ok {
		round = int(r)
	}
	adjusted := max(0, score-round*5)

	state.Data.Set(KeyComplexityScore, domain.Int(adjusted))
	state.Logf("Calculated complexity score: %d (Round %d)", adjusted, round)
	return state, nil
}

// GenerateImprovements advances the review round.
func GenerateImprovements(ctx context.Context, state *domain.State) (*domain.State, error) {
	round, ok := state.Data.Number(KeyReviewRound)
	if !ok {
		return nil, fmt.Errorf("%s not set", KeyReviewRound)
	}
	state.Data.Set(KeyReviewRound, domain.Number(round+1))
	state.Log("Generated improvement suggestions. Re-evaluating...")
	return state, nil
}

// QualityGate ends the review once the complexity score is under Threshold.
// A missing score counts as 100.
func QualityGate(ctx context.Context, state *domain.State) (string, error) {
	score, ok := state.Data.Number(KeyComplexityScore)
	if !ok {
		score = 100
	}
	if score < Threshold {
		return domain.End, nil
	}
	return "improve", nil
}

// sourceOf accepts either a bare string input or an object with a "code" field.
func sourceOf(state *domain.State) (string, error) {
	switch in := state.InputData.(type) {
	case string:
		return in, nil
	case map[string]any:
		if code, ok := in["code"].(string); ok {
			return code, nil
		}
	}
	return "", fmt.Errorf("input must be a string or an object with a string 'code' field, got %T", state.InputData)
}
