// Package cases loads a case collection: a main document plus the extension
// documents in its sibling folder, merged into one ordered set in which no
// two cases share an identifier.
//
// Layout for collection "users" in dir:
//
//	dir/users.yml        main document (required)
//	dir/users/*.yml      extension documents, sorted by file name
//
// Every document is a YAML stream; each YAML document in it is a sequence of
// case entries {request, response, ...}. Cases keep insertion order: main
// first, then extensions, entries in document order.
//
// Duplicate handling:
//   - same identifier, same significant content: first kept, DUPLICATE_CASE recorded
//   - same identifier, different content: DUPLICATE_CASE_CONFLICT, fatal
package cases
