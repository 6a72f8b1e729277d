// Package knowledge retrieves grounding snippets from the vector store.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Searcher embeds the query and looks it up in Qdrant.
type Searcher struct {
	embedder Embedder
	points   pointSearcher
	minScore float64
}

type pointSearcher interface {
	Search(ctx context.Context, vector []float32, limit int, minScore float64) ([]Point, error)
}

func NewSearcher(embedder Embedder, points pointSearcher, minScore float64) *Searcher {
	return &Searcher{embedder: embedder, points: points, minScore: minScore}
}

// NewFromConfig wires the HTTP clients, or returns nil when search is not configured.
func NewFromConfig(cfg model.KnowledgeConfig) *Searcher {
	if !cfg.Enabled() {
		return nil
	}
	return NewSearcher(
		NewEmbeddingClient(cfg.EmbeddingURL, cfg.EmbeddingKey, 0),
		NewQdrantClient(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Collection, 0),
		cfg.MinScore,
	)
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]model.KnowledgeSnippet, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []model.KnowledgeSnippet{}, nil
	}
	started := time.Now()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	points, err := s.points.Search(ctx, vector, limit, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	out := make([]model.KnowledgeSnippet, 0, len(points))
	for _, p := range points {
		content := payloadString(p.Payload, "content", "text", "chunk")
		if content == "" {
			continue
		}
		out = append(out, model.KnowledgeSnippet{
			Content:        content,
			Source:         payloadString(p.Payload, "source", "filename", "title"),
			RelevanceScore: p.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })

	logx.Ctx(ctx).Debug().
		Str("component", "knowledge").
		Int("hits", len(out)).
		Dur("latency", time.Since(started)).
		Msg("knowledge search done")
	return out, nil
}

func payloadString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ model.KnowledgeSearch = (*Searcher)(nil)
