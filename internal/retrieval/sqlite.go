// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/pkg/types"
)

const (
	backendSQLite     = "sqlite"
	defaultMaxResults = 10
)

// SQLite is a lexical fallback over a chunk index written by the ingestion
// step: a chunks(id, doc_id, source, content) table mirrored into the FTS5
// table chunks_fts. The index is opened read-only. Retrieval modes are
// accepted but all behave as lexical search.
type SQLite struct {
	db         *sql.DB
	maxResults int
}

// OpenSQLite opens the chunk index at path.
func OpenSQLite(path string, maxResults int) (*SQLite, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Op: "open", Backend: backendSQLite, Err: err}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &Error{Op: "open", Backend: backendSQLite, Err: err}
	}

	var n int
	if err := db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE name IN ('chunks', 'chunks_fts')`,
	).Scan(&n); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Backend: backendSQLite, Err: err}
	}
	if n != 2 {
		db.Close()
		return nil, &Error{Op: "open", Backend: backendSQLite, Err: fmt.Errorf("%s is not a chunk index", path)}
	}

	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &SQLite{db: db, maxResults: maxResults}, nil
}

// Retrieve implements Adapter. Hits are ranked by FTS5 rank and joined
// with their source as a heading.
func (s *SQLite) Retrieve(ctx context.Context, query string, mode types.RetrievalMode) (string, error) {
	match := ftsQuery(query)
	if match == "" {
		return "", nil
	}
	logger.G(ctx).WithField("mode", mode).WithField("match", match).Debug("sqlite lexical retrieval")

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.source, c.content
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank
		LIMIT ?`, match, s.maxResults)
	if err != nil {
		return "", &Error{Op: "query", Backend: backendSQLite, Err: err}
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var source sql.NullString
		var content string
		if err := rows.Scan(&source, &content); err != nil {
			return "", &Error{Op: "scan", Backend: backendSQLite, Err: err}
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if source.Valid && source.String != "" {
			fmt.Fprintf(&b, "[source: %s]\n", source.String)
		}
		b.WriteString(strings.TrimSpace(content))
	}
	if err := rows.Err(); err != nil {
		return "", &Error{Op: "query", Backend: backendSQLite, Err: err}
	}
	return b.String(), nil
}

// Close implements io.Closer.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ftsQuery quotes each whitespace-separated term and ORs them, so user
// text never reaches the FTS5 query parser as syntax.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.Trim(strings.ReplaceAll(f, `"`, ""), ".,;:!?()[]{}'")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}
