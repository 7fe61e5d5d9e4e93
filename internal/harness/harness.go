package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/cloud/fake"
	"github.com/terrane-dev/terrane/internal/config"
	"github.com/terrane-dev/terrane/internal/engine"
	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/model"
)

// Scenario describes one convergence run: input topology, starting remote
// state, injected faults, and the expected outcome.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Topology is the manifest path, relative to the scenario file.
	Topology string `yaml:"topology"`

	// Seed lists resources that already exist remotely, as if a previous
	// run had converged them.
	Seed []SeedResource `yaml:"seed,omitempty"`

	// SeedSecrets lists secret containers with pre-existing versions.
	SeedSecrets []SeedSecret `yaml:"seed_secrets,omitempty"`

	// Faults are injected control-plane failures.
	Faults []FaultSpec `yaml:"faults,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// SeedResource is one pre-existing remote resource.
type SeedResource struct {
	Kind       string         `yaml:"kind"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// SeedSecret is a pre-existing secret container with versions.
type SeedSecret struct {
	Name     string   `yaml:"name"`
	Versions []string `yaml:"versions"`
}

// FaultSpec injects a classified failure for calls of op against the
// named resource. Times < 0 means every call fails.
type FaultSpec struct {
	Op    string `yaml:"op"`
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
	Times int    `yaml:"times"`
}

// Expectation is the asserted outcome of the run.
type Expectation struct {
	Status string `yaml:"status"`

	// Nodes maps node IDs to expected terminal statuses. Subset match:
	// unlisted nodes are not checked.
	Nodes map[string]string `yaml:"nodes,omitempty"`

	// Mutations, when set, is the exact number of mutating calls.
	Mutations *int `yaml:"mutations,omitempty"`

	// SecretVersions maps secret names to expected version counts.
	SecretVersions map[string]int `yaml:"secret_versions,omitempty"`
}

// Outcome bundles everything a scenario run produced.
type Outcome struct {
	Scenario    *Scenario
	Result      *engine.Result
	Transitions []engine.Transition
	Fake        *fake.Fake
	Project     string
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("%s: scenario has no name", path)
	}
	if s.Topology == "" {
		return nil, fmt.Errorf("%s: scenario has no topology", path)
	}
	s.Topology = filepath.Join(filepath.Dir(path), s.Topology)
	return &s, nil
}

// timelineRecorder captures transitions in record order.
type timelineRecorder struct {
	mu          sync.Mutex
	transitions []engine.Transition
}

func (r *timelineRecorder) Record(t engine.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return nil
}

// Run executes a scenario: seed the fake, inject faults, converge once
// with parallelism 1 (deterministic timeline), and return the outcome.
// Expectation checking is the caller's job (see Check).
func Run(ctx context.Context, s *Scenario) (*Outcome, error) {
	topo, err := config.Load(s.Topology)
	if err != nil {
		return nil, err
	}
	g, cfgErrs := graph.Build(topo)
	if len(cfgErrs) > 0 {
		return nil, fmt.Errorf("scenario %s: topology invalid: %v", s.Name, cfgErrs[0])
	}

	f := fake.New()
	for _, seed := range s.Seed {
		attrs := make(model.Attributes, len(seed.Attributes))
		for k, raw := range seed.Attributes {
			v, err := model.FromGo(raw)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: seed %s: %w", s.Name, seed.Name, err)
			}
			attrs[k] = v
		}
		f.Seed(identity(topo.Project, seed.Kind, seed.Name), attrs)
	}
	for _, seed := range s.SeedSecrets {
		versions := make([][]byte, len(seed.Versions))
		for i, v := range seed.Versions {
			versions[i] = []byte(v)
		}
		f.SeedSecret(identity(topo.Project, string(model.KindSecret), seed.Name), versions...)
	}
	for _, fault := range s.Faults {
		f.FailWith(fault.Op, identity(topo.Project, fault.Kind, fault.Name),
			cloud.ErrorClass(fault.Class), fault.Times)
	}

	rec := &timelineRecorder{}
	e := engine.New(f,
		engine.WithParallelism(1),
		engine.WithRetryPolicy(engine.RetryPolicy{
			InitialInterval: 1,
			Multiplier:      1,
			MaxInterval:     1,
			MaxAttempts:     3,
		}),
		engine.WithRunIDGenerator(engine.FixedGenerator{ID: s.Name}),
		engine.WithRecorder(rec),
	)
	res, err := e.Converge(ctx, g)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Scenario:    s,
		Result:      res,
		Transitions: rec.transitions,
		Fake:        f,
		Project:     topo.Project,
	}, nil
}

// Check verifies the scenario's expectations against the outcome,
// returning one error per violated expectation.
func (o *Outcome) Check() []error {
	var errs []error
	s := o.Scenario

	if s.Expect.Status != "" && string(o.Result.Status) != s.Expect.Status {
		errs = append(errs, fmt.Errorf("run status: got %s, want %s", o.Result.Status, s.Expect.Status))
	}
	for id, want := range s.Expect.Nodes {
		nr, ok := o.Result.Nodes[model.NodeID(id)]
		if !ok {
			errs = append(errs, fmt.Errorf("node %s: not in result", id))
			continue
		}
		if string(nr.Status) != want {
			errs = append(errs, fmt.Errorf("node %s: got %s, want %s", id, nr.Status, want))
		}
	}
	if s.Expect.Mutations != nil && o.Fake.Mutations() != *s.Expect.Mutations {
		errs = append(errs, fmt.Errorf("mutations: got %d, want %d", o.Fake.Mutations(), *s.Expect.Mutations))
	}
	for name, want := range s.Expect.SecretVersions {
		got := o.Fake.SecretVersionCount(identity(o.Project, string(model.KindSecret), name))
		if got != want {
			errs = append(errs, fmt.Errorf("secret %s: got %d versions, want %d", name, got, want))
		}
	}
	return errs
}

func identity(project, kind, name string) cloud.Identity {
	return cloud.Identity{Project: project, Kind: model.Kind(kind), Name: name}
}
