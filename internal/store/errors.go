package store

import "errors"

var (
	// ErrNotFound is returned when a node or edge id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrDanglingReference is returned by PutEdge when either endpoint
	// does not exist. The edge is never stored.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrImmutableType is returned on attempts to change a node's type.
	// Retyping requires delete + recreate so embeddings and edges stay
	// consistent.
	ErrImmutableType = errors.New("node type is immutable")

	// ErrHopsNotElevated is returned when a traversal asks for more hops
	// than the default cap without explicitly elevating the request.
	ErrHopsNotElevated = errors.New("max hops above default cap requires elevation")
)
