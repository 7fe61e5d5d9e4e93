package model

// OutputState tags a node's resolved-output slot.
type OutputState int

const (
	// OutputPending means the node has not converged; reading the value is
	// a programming error and Get reports it.
	OutputPending OutputState = iota
	// OutputResolved means the node converged and realized attributes are
	// available for downstream nodes.
	OutputResolved
)

// Output is the resolved-output slot of one node: Pending until the node
// converges, then Resolved with the realized attributes reported by the
// remote control plane (connection names, endpoints, remote IDs).
//
// This replaces speculative string interpolation of not-yet-created
// identifiers: a downstream node reads an Output only after the scheduler
// guarantees it is Resolved.
type Output struct {
	state  OutputState
	values Map
}

// PendingOutput returns an unresolved output slot.
func PendingOutput() Output {
	return Output{state: OutputPending}
}

// ResolvedOutput returns a resolved slot carrying realized values.
func ResolvedOutput(values Map) Output {
	if values == nil {
		values = Map{}
	}
	return Output{state: OutputResolved, values: values}
}

// State returns the slot's tag.
func (o Output) State() OutputState {
	return o.state
}

// Resolved reports whether the slot holds realized values.
func (o Output) Resolved() bool {
	return o.state == OutputResolved
}

// Get returns the realized value for key. ok is false while the slot is
// Pending or the key is absent.
func (o Output) Get(key string) (Value, bool) {
	if o.state != OutputResolved {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// GetString returns the realized string value for key, or "".
func (o Output) GetString(key string) string {
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	return GoString(v)
}

// Values returns the realized value map, or nil while Pending.
// The map is shared; callers must not mutate it.
func (o Output) Values() Map {
	if o.state != OutputResolved {
		return nil
	}
	return o.values
}
