package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// serializedObject is one entry of the state file.
type serializedObject struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// serializedState is the on-disk layout of a state snapshot.
type serializedState struct {
	Objects []serializedObject `json:"objects"`
}

// WriteFile stores the snapshot as indented JSON.
func (s *State) WriteFile(path string) error {
	serialized := serializedState{
		Objects: make([]serializedObject, 0, len(s.order)),
	}
	for _, obj := range s.All() {
		serialized.Objects = append(serialized.Objects, serializedObject{
			Type: string(obj.Kind),
			Data: obj.Data,
		})
	}
	data, err := json.MarshalIndent(serialized, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a snapshot written by WriteFile. The snapshot already
// went through untracked filtering when it was pulled, so none is
// applied here.
func ReadFile(path string, logger *log.Logger) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var serialized serializedState
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	parser := metadata.NewParser(logger)
	objects := make([]Object, 0, len(serialized.Objects))
	for _, entry := range serialized.Objects {
		kind := types.EntityKind(entry.Type)
		if !kind.IsValid() {
			return nil, fmt.Errorf("state file %s: unknown object type %q", path, entry.Type)
		}
		objects = append(objects, NewObject(kind, entry.Data, parser))
	}
	return New(objects, false, logger), nil
}
