package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const collectionName = "medical_docs"

// Result is one retrieved document chunk.
type Result struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Store is an embedded vector store for medical reference documents.
type Store struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewPersistent opens (or creates) a store persisted under dir.
func NewPersistent(dir string, embed chromem.EmbeddingFunc) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open docstore at %s: %w", dir, err)
	}
	return newStore(db, embed)
}

// NewInMemory creates an ephemeral store, used by tests and the ingest
// dry-run mode.
func NewInMemory(embed chromem.EmbeddingFunc) (*Store, error) {
	return newStore(chromem.NewDB(), embed)
}

func newStore(db *chromem.DB, embed chromem.EmbeddingFunc) (*Store, error) {
	col := db.GetCollection(collectionName, embed)
	if col == nil {
		var err error
		col, err = db.CreateCollection(collectionName, nil, embed)
		if err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collectionName, err)
		}
	}
	return &Store{db: db, col: col}, nil
}

// Add embeds and stores one document chunk.
func (s *Store) Add(ctx context.Context, content string, metadata map[string]string) (string, error) {
	id := uuid.NewString()
	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

// Search returns up to k chunks ranked by similarity to the query. An
// empty store yields no results rather than an error.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if s.col.Count() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 3
	}

	res, err := s.col.Query(ctx, query, k, nil, nil)
	for err != nil && k > 1 && strings.Contains(err.Error(), "nResults must be <= the number of documents") {
		k--
		res, err = s.col.Query(ctx, query, k, nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query docstore: %w", err)
	}

	results := make([]Result, 0, len(res))
	for _, r := range res {
		results = append(results, Result{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return results, nil
}

// Count reports the number of stored chunks.
func (s *Store) Count() int {
	return s.col.Count()
}
