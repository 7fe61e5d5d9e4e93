// Package engine implements the convergence engine.
//
// One Converge call takes a validated dependency graph and drives every
// resource node to its desired remote state through the control-plane
// boundary. The engine is the only component that issues mutations.
//
// Scheduling model:
// The graph precomputes wavefronts - sets of nodes whose dependencies all
// sit in earlier wavefronts. The scheduler releases one wavefront at a
// time to a bounded worker pool and waits for every node in it to reach a
// terminal per-node status before releasing the next. A node is therefore
// never submitted before every node it references holds a resolved output.
//
// Per-node flow: resolve attribute templates against upstream outputs,
// observe current remote state, decide create / update / no-op, issue the
// mutation, poll its operation to a terminal status, and record realized
// outputs into the node's output slot. Re-running against an
// already-converged topology performs zero mutating calls.
//
// Failure isolation:
// A non-transient remote failure marks the node Failed and its transitive
// dependents Blocked; independent branches continue. Only auth failures
// abort the run early. There is no rollback - a failed run is fixed and
// re-converged.
//
// Cancellation is honored at wavefront boundaries: nodes of a released
// wavefront run to completion so in-flight remote operations reach a
// terminal status; nodes of later wavefronts are marked Skipped.
package engine
