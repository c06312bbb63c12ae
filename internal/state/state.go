// Package state models the snapshot of server objects the reconciler
// diffs manifests against. Objects are id-addressed; names are recovered
// from the control blob each managed entity carries in its metadata.
// Objects without that blob were not created by this tool and are left
// alone.
package state

import (
	"log"

	"elabctl/internal/metadata"
	"elabctl/internal/types"
)

// Object is one server entity: its raw wire representation plus the
// parsed metadata column.
type Object struct {
	Kind types.EntityKind
	Data map[string]any
	Meta metadata.Model
}

// NewObject parses the metadata column of a raw server representation.
func NewObject(kind types.EntityKind, data map[string]any, parser *metadata.Parser) Object {
	raw, _ := data["metadata"].(string)
	return Object{
		Kind: kind,
		Data: data,
		Meta: parser.Parse(raw),
	}
}

// ID returns the numeric id of the object.
func (o Object) ID() int {
	switch v := o.Data["id"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Node returns the object's id-based identity.
func (o Object) Node() types.IdNode {
	return types.IdNode{Kind: o.Kind, ID: o.ID()}
}

// Tracked reports whether the object carries the control blob.
func (o Object) Tracked() bool {
	return o.Meta.Control != nil
}

// Name recovers the manifest name from the control blob. Containers
// store it as the template name, instances as the plain name. Untracked
// objects fall back to a synthetic "{kind}_{id}" name.
func (o Object) Name() string {
	if c := o.Meta.Control; c != nil {
		name := c.Name
		if o.Kind.IsContainer() {
			name = c.TemplateName
		}
		if name != "" {
			return name
		}
	}
	return o.Node().DefaultName()
}

// Values extracts the requested keys from the raw representation,
// skipping absent ones. Integral JSON numbers are narrowed to int so
// they compare equal to rendered manifest values.
func (o Object) Values(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		value, ok := o.Data[key]
		if !ok {
			continue
		}
		if f, isFloat := value.(float64); isFloat && f == float64(int(f)) {
			value = int(f)
		}
		out[key] = value
	}
	return out
}

// FieldDict returns the metadata fields in the form the diff engine
// compares.
func (o Object) FieldDict() map[string]map[string]any {
	return o.Meta.Diffable()
}

// TagMap zips the server's pipe-delimited tag names with its
// comma-delimited tag ids. A mismatch in length yields only the pairs
// that line up.
func (o Object) TagMap() map[string]int {
	names, _ := o.Data["tags"].(string)
	ids, _ := o.Data["tags_id"].(string)
	tagNames := metadata.ParseTags(names)
	tagIDs := metadata.ParseTagIDs(ids)
	out := make(map[string]int, len(tagNames))
	for i, name := range tagNames {
		if i >= len(tagIDs) {
			break
		}
		out[name] = tagIDs[i]
	}
	return out
}

// State is the snapshot the plan is computed against.
type State struct {
	objects  map[types.IdNode]Object
	nameToID map[types.NameNode]types.IdNode
	idToName map[types.IdNode]types.NameNode
	order    []types.IdNode
}

// New indexes objects by id and by recovered name. With skipUntracked
// set, objects without the control blob are dropped so they can never be
// adopted or destroyed.
func New(objects []Object, skipUntracked bool, logger *log.Logger) *State {
	s := &State{
		objects:  make(map[types.IdNode]Object),
		nameToID: make(map[types.NameNode]types.IdNode),
		idToName: make(map[types.IdNode]types.NameNode),
	}
	for _, obj := range objects {
		if skipUntracked && !obj.Tracked() {
			continue
		}
		id := obj.Node()
		if _, dup := s.objects[id]; dup {
			continue
		}
		name := types.NameNode{Kind: obj.Kind, Name: obj.Name()}
		if existing, clash := s.nameToID[name]; clash {
			if logger != nil {
				logger.Printf(
					"Warning: %s resolves to both id %d and id %d, keeping the first",
					name, existing.ID, id.ID,
				)
			}
			continue
		}
		s.objects[id] = obj
		s.nameToID[name] = id
		s.idToName[id] = name
		s.order = append(s.order, id)
	}
	return s
}

// Len returns the number of tracked objects.
func (s *State) Len() int {
	return len(s.objects)
}

// Get returns the object with the given id.
func (s *State) Get(id types.IdNode) (Object, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

// GetByName returns the object with the given recovered name.
func (s *State) GetByName(name types.NameNode) (Object, bool) {
	id, ok := s.nameToID[name]
	if !ok {
		return Object{}, false
	}
	return s.Get(id)
}

// ID resolves a name to the live id.
func (s *State) ID(name types.NameNode) (types.IdNode, bool) {
	id, ok := s.nameToID[name]
	return id, ok
}

// Name resolves a live id back to the recovered name.
func (s *State) Name(id types.IdNode) (types.NameNode, bool) {
	name, ok := s.idToName[id]
	return name, ok
}

// ContainsName reports whether a name is tracked.
func (s *State) ContainsName(name types.NameNode) bool {
	_, ok := s.nameToID[name]
	return ok
}

// AllOfKind returns the tracked objects of one kind, in pull order.
func (s *State) AllOfKind(kind types.EntityKind) []Object {
	var out []Object
	for _, id := range s.order {
		if id.Kind == kind {
			out = append(out, s.objects[id])
		}
	}
	return out
}

// All returns every tracked object in pull order.
func (s *State) All() []Object {
	out := make([]Object, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.objects[id])
	}
	return out
}
