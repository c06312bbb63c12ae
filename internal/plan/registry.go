// Package plan turns the difference between manifests and a state
// snapshot into an ordered list of operations, and executes them against
// the API. Creations learn their new id through a success callback so
// that later operations in the same run can resolve links to them.
package plan

import (
	"elabctl/internal/manifest"
	"elabctl/internal/metadata"
	"elabctl/internal/state"
	"elabctl/internal/types"
)

// Registry tracks the live name to id mapping during an apply. It is
// seeded from the state snapshot and mutated as operations succeed, so
// an object created earlier in the run is resolvable by the time a
// dependent's patch body is rendered.
type Registry struct {
	index    *manifest.Index
	snapshot *state.State
	nameToID map[types.NameNode]types.IdNode
	idToName map[types.IdNode]types.NameNode
}

// NewRegistry seeds a registry from the snapshot.
func NewRegistry(index *manifest.Index, snapshot *state.State) *Registry {
	r := &Registry{
		index:    index,
		snapshot: snapshot,
		nameToID: make(map[types.NameNode]types.IdNode),
		idToName: make(map[types.IdNode]types.NameNode),
	}
	for _, obj := range snapshot.All() {
		id := obj.Node()
		if name, ok := snapshot.Name(id); ok {
			r.nameToID[name] = id
			r.idToName[id] = name
		}
	}
	return r
}

// ID resolves a manifest name to a live id.
func (r *Registry) ID(name types.NameNode) (types.IdNode, bool) {
	id, ok := r.nameToID[name]
	return id, ok
}

// Name resolves a live id to a manifest name.
func (r *Registry) Name(id types.IdNode) (types.NameNode, bool) {
	name, ok := r.idToName[id]
	return name, ok
}

// ContainsName reports whether the name has a live object.
func (r *Registry) ContainsName(name types.NameNode) bool {
	_, ok := r.nameToID[name]
	return ok
}

// Add records a newly created object.
func (r *Registry) Add(name types.NameNode, id types.IdNode) {
	r.nameToID[name] = id
	r.idToName[id] = name
}

// RemoveByID forgets a deleted object.
func (r *Registry) RemoveByID(id types.IdNode) {
	if name, ok := r.idToName[id]; ok {
		delete(r.nameToID, name)
	}
	delete(r.idToName, id)
}

// ParentID resolves the live id of a node's parent container.
func (r *Registry) ParentID(name types.NameNode) (types.IdNode, bool) {
	parent, ok := r.index.Parent(name)
	if !ok {
		return types.IdNode{}, false
	}
	return r.ID(parent)
}

// Resolver adapts the registry for manifest rendering.
func (r *Registry) Resolver() manifest.Resolver {
	return func(name types.NameNode) (types.IdNode, bool) {
		return r.ID(name)
	}
}

// Spec returns the manifest spec for a name.
func (r *Registry) Spec(name types.NameNode) (manifest.Spec, bool) {
	return r.index.Spec(name)
}

// StateObject returns the snapshot object backing a name, if any.
func (r *Registry) StateObject(name types.NameNode) (state.Object, bool) {
	id, ok := r.nameToID[name]
	if !ok {
		return state.Object{}, false
	}
	return r.snapshot.Get(id)
}

// Control builds the blob embedded in rendered metadata so the manifest
// name survives a round trip through the server. Containers carry their
// own name as the template name; instances carry their parent's.
func (r *Registry) Control(name types.NameNode, version string) *metadata.Control {
	control := &metadata.Control{Version: version}
	if name.Kind.IsContainer() {
		control.TemplateName = name.Name
		return control
	}
	control.Name = name.Name
	if parent, ok := r.index.Parent(name); ok {
		control.TemplateName = parent.Name
	}
	return control
}
