// Package cloud defines the consumed control-plane boundary.
//
// The engine never talks to a cloud SDK directly: it sees the narrow API and
// SecretStore interfaces plus a closed set of error classes. Real adapters
// translate SDK-specific failures through Classify; tests and dry runs use
// the in-memory implementation in the fake subpackage.
//
// The remote control plane is the only shared mutable resource in the whole
// engine. It has its own latency, quotas, and consistency lag, which is why
// every mutating call returns an operation handle to poll rather than a
// final result.
package cloud
