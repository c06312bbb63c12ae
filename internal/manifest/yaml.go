package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// checkKnownKeys rejects mapping keys outside the allowed set. Decoding
// manifests leniently would silently drop typos like "opions", so every
// manifest-facing struct opts in to this check.
func checkKnownKeys(node *yaml.Node, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !contains(allowed, key) {
			return fmt.Errorf("line %d: unknown key %q", node.Content[i].Line, key)
		}
	}
	return nil
}

// mappingValue returns the value node for key, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
