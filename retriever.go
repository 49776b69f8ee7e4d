package ragcache

import (
	"context"
	"sort"
)

// TableRetriever searches child chunks held in a HierarchyTable using
// in-process brute-force cosine similarity. Linear scan is fine for the
// bounded corpora this process keeps in memory; callers with large corpora
// plug in a vector-database-backed Retriever instead.
type TableRetriever struct {
	table *HierarchyTable
}

var _ Retriever = (*TableRetriever)(nil)

// NewTableRetriever creates a Retriever over the given hierarchy table.
func NewTableRetriever(table *HierarchyTable) *TableRetriever {
	return &TableRetriever{table: table}
}

// Search scores every embedded child chunk against the query embedding and
// returns the topK highest, sorted by score descending.
func (r *TableRetriever) Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChild, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []ScoredChild
	r.table.ForEachChild(func(c ChildChunk) bool {
		if len(c.Embedding) == 0 {
			return true
		}
		results = append(results, ScoredChild{
			ChildID: c.ID,
			Score:   CosineSimilarity(embedding, c.Embedding),
		})
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ScoreReranker filters candidates below a minimum score and re-sorts by
// score descending. It makes no external calls — a baseline for when no
// API-based reranker is configured.
type ScoreReranker struct {
	minScore float32
}

var _ Reranker = (*ScoreReranker)(nil)

// NewScoreReranker creates a Reranker that drops candidates below minScore.
func NewScoreReranker(minScore float32) *ScoreReranker {
	return &ScoreReranker{minScore: minScore}
}

// Rerank filters candidates below the minimum score and sorts by score
// descending.
func (r *ScoreReranker) Rerank(_ context.Context, _ string, candidates []ScoredChild) ([]ScoredChild, error) {
	var kept []ScoredChild
	for _, c := range candidates {
		if c.Score >= r.minScore {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	return kept, nil
}
