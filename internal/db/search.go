package db

import "github.com/kailas-cloud/semdex/internal/domain/filter"

// VectorScoreField is the computed attribute FT.SEARCH returns for the
// KNN distance of each hit.
const VectorScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       filter.Expr
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Distance is the raw metric value reported
// by the index; for cosine indexes lower means closer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
