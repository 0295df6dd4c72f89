package ports

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// DefinitionStore persists encoded graph definitions.
// Content is opaque to the store; pkg/codec produces and consumes it.
type DefinitionStore interface {
	// SaveDefinition stores data under id, replacing any previous content.
	SaveDefinition(ctx context.Context, id string, data []byte) error

	// LoadDefinition returns the content stored under id.
	// Returns domain.ErrGraphNotFound if id does not exist.
	LoadDefinition(ctx context.Context, id string) ([]byte, error)

	// ListDefinitions returns all stored ids, sorted.
	ListDefinitions(ctx context.Context) ([]string, error)

	// DeleteDefinition removes id. Deleting a missing id is not an error.
	DeleteDefinition(ctx context.Context, id string) error
}

// RunStore persists run records.
type RunStore interface {
	// SaveRun creates or replaces a non-terminal run record.
	SaveRun(ctx context.Context, run *domain.Run) error

	// LoadRun retrieves a run by id.
	// Returns domain.ErrRunNotFound if the run does not exist.
	LoadRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the ids of all stored runs, sorted.
	ListRuns(ctx context.Context) ([]string, error)

	// FinalizeRun writes the terminal record of a run. It succeeds at most once per run:
	// a second call returns domain.ErrRunFinalized and leaves the stored record unchanged.
	// Returns domain.ErrRunNotFound if the run was never saved.
	FinalizeRun(ctx context.Context, run *domain.Run) error
}
