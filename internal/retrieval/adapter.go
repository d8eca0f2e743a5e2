// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval wraps the external knowledge-retrieval service behind
// a single blocking call. Adapters never retry; an empty string means the
// knowledge base had nothing relevant, and an *Error means the backend
// failed.
package retrieval

import (
	"context"
	"fmt"
	"io"

	"github.com/Stellven/KBSkills/pkg/types"
)

// Adapter retrieves knowledge text for a query.
type Adapter interface {
	Retrieve(ctx context.Context, query string, mode types.RetrievalMode) (string, error)
}

// Backend is an Adapter that holds resources.
type Backend interface {
	Adapter
	io.Closer
}

// Error reports a transport or backend failure.
type Error struct {
	Op      string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Open returns the backend selected by cfg.Backend.
func Open(cfg types.RetrievalConfig) (Backend, error) {
	switch cfg.Backend {
	case types.BackendLightRAG, "":
		return NewLightRAG(cfg), nil
	case types.BackendSQLite:
		return OpenSQLite(cfg.IndexPath, cfg.MaxResults)
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q: use lightrag or sqlite", cfg.Backend)
	}
}
