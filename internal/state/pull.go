package state

import (
	"context"
	"fmt"
	"log"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// Lister is the part of the API client needed to pull a snapshot.
type Lister interface {
	List(ctx context.Context, kind types.EntityKind) ([]map[string]any, error)
}

// pullOrder fixes the fetch sequence for deterministic snapshots.
var pullOrder = []types.EntityKind{
	types.KindExperiment,
	types.KindItem,
	types.KindItemsType,
	types.KindExperimentsTemplate,
}

// Pull fetches every entity of every kind and builds the snapshot.
func Pull(ctx context.Context, client Lister, skipUntracked bool, logger *log.Logger) (*State, error) {
	parser := metadata.NewParser(logger)
	var objects []Object
	for _, kind := range pullOrder {
		if logger != nil {
			logger.Printf("Pulling %s info...", kind)
		}
		listed, err := client.List(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("pulling %s: %w", kind, err)
		}
		for _, data := range listed {
			objects = append(objects, NewObject(kind, data, parser))
		}
	}
	return New(objects, skipUntracked, logger), nil
}

// Empty returns a snapshot with no objects, used when state is ignored.
func Empty() *State {
	return New(nil, false, nil)
}
