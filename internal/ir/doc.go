// Package ir provides the document value model and request identity.
//
// Every case, update and store document is decoded into IRValue, a closed
// set of shapes (null, bool, int, float, string, array, object). Canonical
// encoding and hashing are implemented once over that set.
//
// This package imports nothing internal. All other internal packages
// import ir, keeping it the foundational layer.
//
// Key design constraints:
//   - Identifiers are SHA-256 over the canonical encoding with domain separation
//   - Canonical encoding never depends on map order, locale or float width
//   - Integers and floats are distinct types and encode differently
package ir
