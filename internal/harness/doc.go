// Package harness provides scenario-based conformance testing for the
// convergence engine.
//
// A scenario is a YAML file describing a starting remote state, injected
// faults, and the expected outcome of one convergence run:
//
//	name: db_failure_isolates_branch
//	description: "A failing instance blocks its branch only"
//	topology: topology.yaml
//	seed:
//	  - kind: Secret
//	    name: db-password
//	faults:
//	  - op: create
//	    kind: SqlInstance
//	    name: app-db
//	    class: INVALID_ARGUMENT
//	    times: -1
//	expect:
//	  status: PartiallyConverged
//	  nodes:
//	    app-db: Failed
//	    app-db-user: Blocked
//
// Scenarios run with parallelism 1 and a fixed run ID, so the transition
// timeline is fully deterministic and can be compared against golden
// snapshots.
package harness
