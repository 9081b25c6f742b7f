package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/trialstack/icfgen/internal/models"
)

// NoContextPlaceholder keeps prompts well-formed when retrieval finds
// nothing above the score threshold.
const NoContextPlaceholder = "No specific protocol context available"

// Searcher is the vector index collaborator: similarity search over one
// named collection.
type Searcher interface {
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]models.Passage, error)
}

// QueryEmbedder turns a retrieval query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	TopK        int // candidates requested from the index before filtering
	MaxPassages int // passages kept in the formatted context block
}

// Retriever wraps the vector index with query embedding, a minimum-score
// filter, and prompt-ready formatting of the surviving passages.
type Retriever struct {
	searcher Searcher
	embedder QueryEmbedder
	config   Config
}

func New(searcher Searcher, embedder QueryEmbedder, config Config) *Retriever {
	if config.TopK == 0 {
		config.TopK = 10
	}
	if config.MaxPassages == 0 {
		config.MaxPassages = 5
	}
	return &Retriever{
		searcher: searcher,
		embedder: embedder,
		config:   config,
	}
}

// Retrieve searches the collection for passages relevant to query and keeps
// those scoring at or above minScore, in the index's descending-score order.
// An empty result is a valid low-confidence state, not an error.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, minScore float64) ([]models.Passage, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.searcher.Search(ctx, collection, queryEmbedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	var passages []models.Passage
	for _, p := range candidates {
		if p.Score >= minScore {
			passages = append(passages, p)
		}
	}

	return passages, nil
}

// Format joins the most relevant passages into a single context block for
// the model prompt. Empty input yields the non-empty placeholder so callers
// never build a prompt around a missing context.
func (r *Retriever) Format(passages []models.Passage) string {
	if len(passages) == 0 {
		return NoContextPlaceholder
	}

	keep := passages
	if len(keep) > r.config.MaxPassages {
		keep = keep[:r.config.MaxPassages]
	}

	formatted := make([]string, 0, len(keep))
	for _, p := range keep {
		formatted = append(formatted, fmt.Sprintf("[Relevance: %.2f] %s", p.Score, p.Text))
	}

	return strings.Join(formatted, "\n\n")
}
