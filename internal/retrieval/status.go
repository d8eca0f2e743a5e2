// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const (
	graphDir       = "graph"
	fullDocsFile   = "kv_store_full_docs.json"
	graphDataFile  = "graph_chunk_entity_relation.json"
	unknownCount   = -1
	notInitialized = "not initialized (the ingestion step has not built a graph)"
)

// Status describes the on-disk knowledge base.
type Status struct {
	DataDir     string
	GraphDir    string
	GraphExists bool
	Files       int

	// Documents, Entities and Relations are -1 when the store does not
	// record them.
	Documents int
	Entities  int
	Relations int

	SizeBytes int64

	IndexPath   string
	IndexChunks int
}

// GetStatus inspects dataDir/graph and the optional chunk index.
func GetStatus(dataDir, indexPath string) (*Status, error) {
	st := &Status{
		DataDir:     dataDir,
		GraphDir:    filepath.Join(dataDir, graphDir),
		IndexPath:   indexPath,
		Documents:   unknownCount,
		Entities:    unknownCount,
		Relations:   unknownCount,
		IndexChunks: unknownCount,
	}

	if n, err := countChunks(indexPath); err == nil {
		st.IndexChunks = n
	}

	info, err := os.Stat(st.GraphDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, errors.Wrapf(err, "reading %s", st.GraphDir)
	}
	st.GraphExists = info.IsDir()
	if !st.GraphExists {
		return st, nil
	}

	entries, err := os.ReadDir(st.GraphDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", st.GraphDir)
	}
	st.Files = len(entries)

	err = filepath.WalkDir(st.GraphDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		st.SizeBytes += fi.Size()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "measuring graph storage")
	}

	if docs, err := readJSONMap(filepath.Join(st.GraphDir, fullDocsFile)); err == nil {
		st.Documents = len(docs)
	}
	if graph, err := readJSONMap(filepath.Join(st.GraphDir, graphDataFile)); err == nil {
		st.Entities, st.Relations = 0, 0
		for _, raw := range graph {
			var node struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(raw, &node) != nil {
				continue
			}
			switch node.Type {
			case "entity":
				st.Entities++
			case "relation":
				st.Relations++
			}
		}
	}
	return st, nil
}

// Write prints the status as aligned key/value lines.
func (s *Status) Write(w io.Writer) {
	row := func(k string, v any) { fmt.Fprintf(w, "%-16s %v\n", k+":", v) }

	row("Data directory", s.DataDir)
	row("Graph directory", s.GraphDir)
	row("Graph exists", s.GraphExists)
	if !s.GraphExists {
		row("Status", notInitialized)
	} else {
		row("Graph files", s.Files)
		if s.Documents >= 0 {
			row("Documents", s.Documents)
		}
		if s.Entities >= 0 {
			row("Entities", s.Entities)
			row("Relations", s.Relations)
		}
		row("Storage size", humanize.Bytes(uint64(s.SizeBytes)))
	}
	if s.IndexChunks >= 0 {
		row("Chunk index", fmt.Sprintf("%s (%s chunks)", s.IndexPath, humanize.Comma(int64(s.IndexChunks))))
	}
}

func readJSONMap(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func countChunks(indexPath string) (int, error) {
	if indexPath == "" {
		return 0, os.ErrNotExist
	}
	idx, err := OpenSQLite(indexPath, 0)
	if err != nil {
		return 0, err
	}
	defer idx.Close()

	var n int
	if err := idx.db.QueryRow(`SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
