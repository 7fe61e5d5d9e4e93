// Package resolve derives the externally consumed values of a converged
// topology from the realized output slots.
//
// It is pure: no remote calls, no mutation. The engine invokes it once
// every node converged; the CLI prints its result.
package resolve

import (
	"fmt"

	"github.com/terrane-dev/terrane/internal/model"
)

// Output keys, suffixed onto the producing node's ID.
const (
	// KeyEndpoint is the serving URL of a ComputeService.
	KeyEndpoint = "endpoint"
	// KeyConnection is the connection identifier of a SqlInstance.
	KeyConnection = "connection"
	// KeyPushPath is the full image push path of a Registry.
	KeyPushPath = "push_path"
)

// Outputs computes the externally consumed values of a converged
// topology: one "<node-id>.<key>" entry per output-producing node.
//
// lookup returns the resolved output slot of a node; every node of the
// topology must be resolved, which the engine guarantees by calling this
// only on fully converged runs.
func Outputs(topo *model.Topology, lookup func(model.NodeID) (model.Output, bool)) (map[string]string, error) {
	values := make(map[string]string)
	for _, n := range topo.Nodes() {
		out, ok := lookup(n.ID)
		if !ok || !out.Resolved() {
			if producesOutput(n.Kind) {
				return nil, fmt.Errorf("node %s: output not resolved", n.ID)
			}
			continue
		}
		switch n.Kind {
		case model.KindComputeService:
			uri := out.GetString("uri")
			if uri == "" {
				return nil, fmt.Errorf("node %s: realized output missing uri", n.ID)
			}
			values[string(n.ID)+"."+KeyEndpoint] = uri
		case model.KindSQLInstance:
			conn := out.GetString("connection_name")
			if conn == "" {
				return nil, fmt.Errorf("node %s: realized output missing connection_name", n.ID)
			}
			values[string(n.ID)+"."+KeyConnection] = conn
		case model.KindRegistry:
			path, err := pushPath(topo.Project, &n, out)
			if err != nil {
				return nil, err
			}
			values[string(n.ID)+"."+KeyPushPath] = path
		}
	}
	return values, nil
}

func producesOutput(k model.Kind) bool {
	switch k {
	case model.KindComputeService, model.KindSQLInstance, model.KindRegistry:
		return true
	}
	return false
}

// pushPath assembles "<host>/<project>/<repository>" from the registry's
// realized host and its declared name.
func pushPath(project string, n *model.ResourceNode, out model.Output) (string, error) {
	host := out.GetString("host")
	if host == "" {
		return "", fmt.Errorf("node %s: realized output missing host", n.ID)
	}
	name := string(n.ID)
	if v, ok := n.Attributes["name"]; ok {
		if s, isStr := v.(model.String); isStr && s != "" {
			name = string(s)
		}
	}
	return fmt.Sprintf("%s/%s/%s", host, project, name), nil
}
