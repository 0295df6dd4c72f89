package ports

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
)

// Runner executes a graph definition against an input.
// weft.Engine implements it.
type Runner interface {
	Run(ctx context.Context, def *graph.Definition, input any) (*domain.State, error)
}
