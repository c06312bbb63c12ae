// Package types defines the identity types shared by the manifest,
// state and planning layers.
//
// Every entity managed by elabctl has two addresses: the human-assigned
// name used in manifest files and the numeric id assigned by the eLabFTW
// server. NameNode and IdNode pair each address with the entity kind so
// that the same map can safely hold items, experiments and their
// templates side by side.
package types

import "fmt"

// EntityKind enumerates the eLabFTW entity kinds elabctl manages.
type EntityKind string

const (
	KindItem                EntityKind = "item"
	KindItemsType           EntityKind = "items_type"
	KindExperiment          EntityKind = "experiment"
	KindExperimentsTemplate EntityKind = "experiments_template"
)

// AllKinds lists every managed kind. The order matches the order in
// which state is pulled from the API.
var AllKinds = []EntityKind{
	KindExperiment,
	KindItem,
	KindItemsType,
	KindExperimentsTemplate,
}

// IsValid reports whether k is one of the managed kinds.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindItem, KindItemsType, KindExperiment, KindExperimentsTemplate:
		return true
	}
	return false
}

// IsContainer reports whether the kind acts as a template for instances
// (items types and experiment templates).
func (k EntityKind) IsContainer() bool {
	return k == KindItemsType || k == KindExperimentsTemplate
}

// IsInstance reports whether the kind is an individual record (items and
// experiments). Only instance kinds can have a parent container.
func (k EntityKind) IsInstance() bool {
	return k == KindItem || k == KindExperiment
}

func (k EntityKind) String() string {
	return string(k)
}

// NameNode identifies an entity by manifest name. It is the vertex type
// of the dependency graph and the key type of the manifest index.
type NameNode struct {
	Kind EntityKind
	Name string
}

func (n NameNode) String() string {
	return fmt.Sprintf("%s: %s", n.Kind, n.Name)
}

// IdNode identifies an entity by remote id. It is the key type of state
// snapshots.
type IdNode struct {
	Kind EntityKind
	ID   int
}

func (n IdNode) String() string {
	return fmt.Sprintf("%s: %d", n.Kind, n.ID)
}

// DefaultName is the fallback name for a remote object that carries no
// control metadata: "{kind}_{id}".
func (n IdNode) DefaultName() string {
	return fmt.Sprintf("%s_%d", n.Kind, n.ID)
}
