// Package model provides the typed resource descriptors consumed by the
// convergence engine.
//
// This package contains type definitions and pure value helpers only. All
// other internal packages import model; model imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere in attribute values - remote diffing must be
//     exact, and floats break canonical serialization
//   - Attribute fingerprints use NFC-normalized canonical JSON so that the
//     same desired attributes always hash identically across runs
//   - Cross-resource wiring is expressed as explicit References plus a
//     resolved-output slot (Pending until the referenced resource converges),
//     never as ahead-of-time string substitution
package model
