// Package graph builds the dependency DAG for one declared topology.
//
// The builder is a pure, deterministic, side-effect-free transform: it takes
// the flat resource set, derives explicit and implicit reference edges,
// validates the result, and precomputes the wavefront ordering the scheduler
// consumes. No network access happens here; every configuration error is
// caught before the engine issues a single remote call.
//
// Validation performed:
//   - every reference names a declared node (no dangling edges)
//   - the reference relation is acyclic (DFS with a recursion-stack set;
//     the reported error carries the involved cycle path)
//   - IAM scope narrowness: a project-wide grant for a role that has a
//     resource-level equivalent is rejected (least privilege)
//   - secret versions and secret-accessor grants always depend on a declared
//     Secret node, so no secret is referenced before it is declared
//
// Errors are collected, not fail-fast: a topology with three mistakes
// reports all three.
package graph
