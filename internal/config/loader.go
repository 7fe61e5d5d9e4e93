// Package config loads declared topologies from CUE or YAML manifests
// into the in-memory model. The engine never sees files; everything is
// parsed and validated here first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/terrane-dev/terrane/internal/model"
)

// manifest is the on-disk topology shape, shared by both input forms.
type manifest struct {
	Project   string                  `json:"project" yaml:"project"`
	Resources map[string]resourceSpec `json:"resources" yaml:"resources"`
}

type resourceSpec struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
	References []string       `json:"references" yaml:"references"`
	Binding    *bindingSpec   `json:"binding" yaml:"binding"`
}

type bindingSpec struct {
	Principal string `json:"principal" yaml:"principal"`
	Role      string `json:"role" yaml:"role"`
	Scope     string `json:"scope" yaml:"scope"`
}

// Load reads a topology manifest and returns the validated in-memory
// topology. path may be a .cue or .yaml/.yml file, or a directory
// containing a file named topology with one of those extensions.
func Load(path string) (*model.Topology, error) {
	file, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}

	var m manifest
	switch strings.ToLower(filepath.Ext(file)) {
	case ".cue":
		m, err = parseCUE(file, data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
		if err != nil {
			err = fmt.Errorf("%s: %w", file, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported topology format %q", file, filepath.Ext(file))
	}
	if err != nil {
		return nil, err
	}
	return buildTopology(file, m)
}

func resolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("topology path: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range []string{"topology.cue", "topology.yaml", "topology.yml"} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: no topology.cue or topology.yaml found", path)
}

func parseCUE(file string, data []byte) (manifest, error) {
	var m manifest
	val := cuecontext.New().CompileBytes(data)
	if err := val.Err(); err != nil {
		return m, fmt.Errorf("%s: %w", file, err)
	}
	if err := val.Validate(); err != nil {
		return m, fmt.Errorf("%s: %w", file, err)
	}
	if err := val.Decode(&m); err != nil {
		return m, fmt.Errorf("%s: %w", file, err)
	}
	return m, nil
}

// requiredAttrs lists attributes the manifest must state explicitly.
// SqlInstance has no built-in defaults for its safety posture: whether an
// instance survives teardown and whether it is publicly reachable are
// decisions the declaring side must make visibly.
var requiredAttrs = map[model.Kind][]string{
	model.KindSQLInstance:   {"deletion_protection", "public_ip"},
	model.KindSecretVersion: {"secret", "value"},
	model.KindSQLUser:       {"instance"},
	model.KindSQLDatabase:   {"instance"},
}

func buildTopology(file string, m manifest) (*model.Topology, error) {
	if m.Project == "" {
		return nil, fmt.Errorf("%s: missing project", file)
	}
	if len(m.Resources) == 0 {
		return nil, fmt.Errorf("%s: no resources declared", file)
	}

	ids := make([]string, 0, len(m.Resources))
	for id := range m.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]model.ResourceNode, 0, len(ids))
	for _, id := range ids {
		spec := m.Resources[id]
		node, err := buildNode(id, spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		nodes = append(nodes, node)
	}
	return model.NewTopology(m.Project, nodes)
}

func buildNode(id string, spec resourceSpec) (model.ResourceNode, error) {
	kind := model.Kind(spec.Kind)
	if !model.ValidKind(kind) {
		return model.ResourceNode{}, fmt.Errorf("resource %s: unknown kind %q", id, spec.Kind)
	}

	attrs := make(model.Attributes, len(spec.Attributes))
	for k, raw := range spec.Attributes {
		v, err := model.FromGo(raw)
		if err != nil {
			return model.ResourceNode{}, fmt.Errorf("resource %s: attribute %s: %w", id, k, err)
		}
		attrs[k] = v
	}
	for _, required := range requiredAttrs[kind] {
		if _, ok := attrs[required]; !ok {
			return model.ResourceNode{}, fmt.Errorf("resource %s: %s requires attribute %q to be stated", id, kind, required)
		}
	}

	refs := make([]model.NodeID, 0, len(spec.References))
	for _, r := range spec.References {
		refs = append(refs, model.NodeID(r))
	}
	if len(refs) == 0 {
		refs = nil
	}

	node := model.ResourceNode{
		ID:         model.NodeID(id),
		Kind:       kind,
		Attributes: attrs,
		References: refs,
	}

	if kind == model.KindIAMBinding {
		if spec.Binding == nil {
			return model.ResourceNode{}, fmt.Errorf("resource %s: IamBinding requires a binding block", id)
		}
		if spec.Binding.Principal == "" || spec.Binding.Role == "" || spec.Binding.Scope == "" {
			return model.ResourceNode{}, fmt.Errorf("resource %s: binding requires principal, role and scope", id)
		}
		node.Binding = &model.Binding{
			Principal: spec.Binding.Principal,
			Role:      model.Role(spec.Binding.Role),
			Scope:     model.NodeID(spec.Binding.Scope),
		}
	} else if spec.Binding != nil {
		return model.ResourceNode{}, fmt.Errorf("resource %s: binding block on non-binding kind %s", id, kind)
	}

	return node, nil
}
