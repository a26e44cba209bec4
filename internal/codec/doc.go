// Package codec is the structured document collaborator: it parses YAML
// streams into ir values and renders ir values back to YAML.
//
// # Safe Subset
//
// By default only the YAML core schema tags are accepted:
//
//	!!null !!bool !!int !!float !!str !!seq !!map !!timestamp !!binary !!merge
//
// Any other tag (e.g. !python/object or !!python/name:os.system) makes the
// document malformed. Case and update files are treated as untrusted data,
// never as code. Options.AllowCustomTags relaxes this: unknown tags are
// ignored and the node is read by its kind. The toggle is configuration only;
// nothing inside a document can change it.
//
// Timestamps and binary scalars are kept as their literal text. Aliases and
// merge keys (<<) are resolved. Non-finite floats (.nan, .inf) are rejected
// because they have no canonical form.
//
// # Rendering
//
// Render is deterministic: object keys are sorted (RFC 8785 order) and the
// indent is two spaces, so equal values always render to equal bytes.
package codec
