package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const vectorDimensions = 384

// ChromemIndex implements VectorIndex over a chromem-go collection, held
// in memory or on disk (see NewChromemIndex). Production deployments receive pre-computed embeddings from
// an external embedder service; standalone runs have none, so hashEmbed
// stands in as a deterministic, dependency-free embedding function while
// still exercising chromem-go's actual collection/query machinery.
type ChromemIndex struct {
	mu   sync.Mutex
	db   *chromem.DB
	coll *chromem.Collection
}

// NewChromemIndex creates a vector index. A non-empty persistDir backs the
// database with an on-disk store that survives restarts; otherwise the
// index lives in memory and is reseeded at startup.
func NewChromemIndex(persistDir string) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if persistDir != "" {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("opening persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	coll, err := db.GetOrCreateCollection("codescout", nil, hashEmbed)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}
	return &ChromemIndex{db: db, coll: coll}, nil
}

// hashEmbed derives a deterministic vectorDimensions-wide embedding from a
// chunk of text by hashing each lowercased, whitespace-separated word into
// a fixed bucket, counting hits per bucket, and L2-normalizing. Not a semantic embedding model, but enough to exercise
// chromem-go's cosine-similarity search deterministically and offline.
func hashEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, vectorDimensions)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		sum := sha256.Sum256([]byte(w))
		bucket := int(sum[0])<<8 | int(sum[1])
		vec[bucket%vectorDimensions] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// Index adds one document's chunk to the collection, keyed by path:line.
// Called during startup indexing (main.go), not by the tool layer directly.
func (c *ChromemIndex) Index(ctx context.Context, path string, line int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("%s:%d", path, line)
	return c.coll.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: map[string]string{"path": path, "line": fmt.Sprintf("%d", line)},
	})
}

// SearchSimilar implements VectorIndex, the fifth and final search_code
// fallback strategy.
func (c *ChromemIndex) SearchSimilar(ctx context.Context, queryText string, scope string, topK int) ([]VectorHit, error) {
	c.mu.Lock()
	count := c.coll.Count()
	c.mu.Unlock()
	if count == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > count {
		topK = count
	}

	where := map[string]string{}
	results, err := c.coll.Query(ctx, queryText, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	var out []VectorHit
	for _, r := range results {
		path := r.Metadata["path"]
		if scope != "" && !strings.HasPrefix(path, strings.TrimSuffix(scope, "/")) {
			continue
		}
		var line int
		fmt.Sscanf(r.Metadata["line"], "%d", &line)
		out = append(out, VectorHit{Path: path, Line: line, Score: float64(r.Similarity), Text: r.Content})
	}
	return out, nil
}

var _ VectorIndex = (*ChromemIndex)(nil)
