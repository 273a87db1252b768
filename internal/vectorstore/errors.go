package vectorstore

import "errors"

// Sentinel errors for store operations. Wrap with context using
// fmt.Errorf("%w: ...") and check with errors.Is().
var (
	// ErrNoConnection indicates neither a pool nor a connection URL was supplied.
	ErrNoConnection = errors.New("no database connection configured")

	// ErrBothConnections indicates a pool and a connection URL were both supplied.
	ErrBothConnections = errors.New("pool and connection URL are mutually exclusive")

	// ErrNoEmbedder indicates the store was constructed without an embedder.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrNoCollection indicates an empty base collection name.
	ErrNoCollection = errors.New("collection name is required")

	// ErrWorkersNotConfigured indicates a concurrent ingest was requested but
	// no worker pool was configured. Concurrent paths fail fast rather than
	// silently falling back to sequential writes.
	ErrWorkersNotConfigured = errors.New("ingest workers not configured")

	// ErrNotFound indicates no document matched the given id or name.
	ErrNotFound = errors.New("document not found")
)
