package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex wraps a Bleve index of restaurants. It is safe for concurrent
// use; Rebuild holds the lock exclusively.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage; empty keeps the index in memory
	Logger   *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

// NewSearchIndex opens the index under opts.DataPath, or an in-memory one
// when no path is set. An index written with another mapping version, or one
// that fails to open, is dropped and recreated empty; the coordinator
// repopulates it on the next restaurant fetch.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &SearchIndex{logger: logger}
	if opts.DataPath != "" {
		s.path = filepath.Join(opts.DataPath, "search.bleve")
	}

	if s.path != "" && s.versionMatches() {
		index, err := bleve.Open(s.path)
		if err == nil {
			s.index = index
			logger.Info("opened existing search index", "path", s.path)
			return s, nil
		}
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			logger.Warn("search index unreadable, recreating", "path", s.path, "error", err)
		}
	}

	index, err := s.create()
	if err != nil {
		return nil, err
	}
	s.index = index
	return s, nil
}

func (s *SearchIndex) versionFile() string {
	return filepath.Join(filepath.Dir(s.path), "search.version")
}

func (s *SearchIndex) versionMatches() bool {
	v, err := os.ReadFile(s.versionFile())
	if err != nil {
		return false
	}
	if string(v) != mappingVersion {
		s.logger.Info("search mapping changed, rebuilding", "old_version", string(v), "new_version", mappingVersion)
		return false
	}
	return true
}

// create makes an empty index at s.path, replacing whatever is there.
func (s *SearchIndex) create() (bleve.Index, error) {
	if s.path == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return index, nil
	}

	if err := os.RemoveAll(s.path); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(s.versionFile(), []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("failed to write search version file", "error", err)
	}
	s.logger.Info("created search index", "path", s.path, "mapping_version", mappingVersion)
	return index, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes a single document.
func (s *SearchIndex) IndexDocument(doc *RestaurantDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes multiple documents in one batch.
func (s *SearchIndex) IndexDocuments(docs []*RestaurantDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(docs), err)
	}
	return nil
}

// DeleteDocument removes a document from the index.
func (s *SearchIndex) DeleteDocument(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the existing index and creates an empty one.
// It takes an exclusive lock and blocks all other operations.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	index, err := s.create()
	if err != nil {
		return err
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
