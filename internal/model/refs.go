package model

import (
	"fmt"
	"strings"
)

// Attribute values may reference the realized output of another node with
// the form "${ref:<node-id>.<output-key>}". The graph builder turns every
// such reference into a dependency edge, and the executor substitutes the
// realized value only after the referenced node has converged. A reference
// is never substituted speculatively: there is no moment where a
// not-yet-created identifier is interpolated into a declaration.
const (
	refPrefix = "${ref:"
	refSuffix = "}"
)

// ParseRef decodes a reference template. ok is false for plain strings.
func ParseRef(s string) (NodeID, string, bool) {
	if !strings.HasPrefix(s, refPrefix) || !strings.HasSuffix(s, refSuffix) {
		return "", "", false
	}
	body := s[len(refPrefix) : len(s)-len(refSuffix)]
	node, key, found := strings.Cut(body, ".")
	if !found || node == "" || key == "" {
		return "", "", false
	}
	return NodeID(node), key, true
}

// Ref builds a reference template string.
func Ref(node NodeID, key string) String {
	return String(refPrefix + string(node) + "." + key + refSuffix)
}

// CollectRefs walks an attribute set and returns every referenced node ID,
// deduplicated, in first-seen order.
func CollectRefs(attrs Attributes) []NodeID {
	var ids []NodeID
	seen := make(map[NodeID]bool)

	var walk func(Value)
	walk = func(v Value) {
		switch val := v.(type) {
		case String:
			if node, _, ok := ParseRef(string(val)); ok && !seen[node] {
				seen[node] = true
				ids = append(ids, node)
			}
		case List:
			for _, elem := range val {
				walk(elem)
			}
		case Map:
			for _, k := range val.SortedKeys() {
				walk(val[k])
			}
		}
	}
	walk(attrs)
	return ids
}

// ResolveAttributes substitutes every reference template with the realized
// value from the referenced node's output slot. lookup returns the slot for
// a node ID; a Pending slot or missing key is an error, because the
// scheduler must never run a node before its references are resolved.
func ResolveAttributes(attrs Attributes, lookup func(NodeID) (Output, bool)) (Attributes, error) {
	resolved, err := resolveValue(attrs, lookup)
	if err != nil {
		return nil, err
	}
	return resolved.(Map), nil
}

func resolveValue(v Value, lookup func(NodeID) (Output, bool)) (Value, error) {
	switch val := v.(type) {
	case String:
		node, key, ok := ParseRef(string(val))
		if !ok {
			return val, nil
		}
		out, found := lookup(node)
		if !found {
			return nil, fmt.Errorf("reference to unknown node %q", node)
		}
		if !out.Resolved() {
			return nil, fmt.Errorf("reference to node %q before it converged", node)
		}
		realized, present := out.Get(key)
		if !present {
			return nil, fmt.Errorf("node %q has no realized output %q", node, key)
		}
		return realized, nil
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			resolved, err := resolveValue(elem, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	case Map:
		out := make(Map, len(val))
		for k, elem := range val {
			resolved, err := resolveValue(elem, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
