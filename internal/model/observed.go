package model

// ObservedState is one node's remote snapshot: whether it exists, its
// current attributes, and its control-plane identifier.
//
// Snapshots are fetched lazily by the state observer and live for one
// convergence pass only. They are untrusted: if a prior operation in the
// same run may have changed the remote resource, the observer re-reads
// rather than reusing a snapshot.
type ObservedState struct {
	Exists     bool
	Attributes Attributes
	RemoteID   string
}

// Matches reports whether the observed attributes already satisfy the
// desired set. Only keys present in desired are compared: remote resources
// carry server-populated fields the declaration never mentions, and those
// must not force spurious updates.
//
// Structurally equal values match directly; anything else is re-checked by
// canonical fingerprint, so values that differ only in Unicode normalization
// form (a control plane may echo NFD what was declared NFC) do not read as
// drift.
func (o ObservedState) Matches(desired Attributes) bool {
	if !o.Exists {
		return false
	}
	projection := make(Attributes, len(desired))
	exact := true
	for k, want := range desired {
		got, ok := o.Attributes[k]
		if !ok {
			return false
		}
		if !Equal(want, got) {
			exact = false
		}
		projection[k] = got
	}
	if exact {
		return true
	}
	want, err := Fingerprint(desired)
	if err != nil {
		return false
	}
	got, err := Fingerprint(projection)
	if err != nil {
		return false
	}
	return want == got
}
