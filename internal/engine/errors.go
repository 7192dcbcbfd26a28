package engine

import "errors"

var (
	// ErrInvalidQuery rejects malformed retrieval parameters synchronously.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRetrievalUnavailable is returned only when every branch of a
	// retrieval call failed. A single slow or failed branch degrades the
	// result instead.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)
