package core

// MemoryStore persists and retrieves memory snippets. Entries are scoped,
// usually by project, so memories outlive a single session. Implementations
// can back search with embeddings, keywords or any heuristic.
type MemoryStore interface {
	Get(scope string) (map[string]any, error)
	Put(scope string, delta map[string]any) error
	Search(scope string, query string, limit int) ([]SearchResult, error)
	Store(scope string, content string, metadata map[string]any) (string, error)
	Delete(scope string, memoryID string) error
}

// SearchResult represents a retrieved memory item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
