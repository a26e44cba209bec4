// Package augment holds provider-only augmentation data keyed by request
// identifier, in two shapes:
//
//   - the compact store: one YAML mapping {identifier: extra fields},
//     machine maintained and always written sorted by identifier
//   - update documents: hand-editable sequences of
//     {request, response, ...extra fields} that never mention identifiers
//
// Reconcile folds update documents into a compact store. It is pure: the
// input store is never mutated and running it twice is a no-op the second
// time.
package augment
