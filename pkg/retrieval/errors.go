package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is the parent of every query validation error.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyQuery is returned when the query text is blank.
	ErrEmptyQuery = fmt.Errorf("%w: query text is empty", ErrInvalidQuery)

	// ErrInvalidMaxResults is returned when MaxResults is not positive.
	ErrInvalidMaxResults = fmt.Errorf("%w: max results must be positive", ErrInvalidQuery)

	// ErrEmbedding is returned when the query could not be embedded.
	ErrEmbedding = errors.New("failed to embed query")

	// ErrStoreRequired is returned when no chunk store is provided.
	ErrStoreRequired = errors.New("chunk store required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
