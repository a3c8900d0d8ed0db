package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

const defaultLimit = 20

// SearchParams configures a search query.
type SearchParams struct {
	Query        string // User's search query
	Cuisine      string // Exact cuisine filter; empty or "all" means any
	Neighborhood string // Exact neighborhood filter; empty or "all" means any
	Limit        int
	Offset       int
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID           string            `json:"id"`
	Score        float64           `json:"score"`
	Name         string            `json:"name"`
	CuisineType  string            `json:"cuisine_type,omitempty"`
	Neighborhood string            `json:"neighborhood,omitempty"`
	Highlights   map[string]string `json:"highlights,omitempty"`
}

// IDs returns the hit ids in rank order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, hit := range r.Hits {
		ids[i] = hit.ID
	}
	return ids
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, params.Offset, false)
	req.SortBy([]string{"-_score", "id"})
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("name")
	req.Fields = []string{"name", "cuisine_type", "neighborhood"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["name"].(string); ok {
			h.Name = v
		}
		if v, ok := hit.Fields["cuisine_type"].(string); ok {
			h.CuisineType = v
		}
		if v, ok := hit.Fields["neighborhood"].(string); ok {
			h.Neighborhood = v
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		cuisineMatch := bleve.NewMatchQuery(q)
		cuisineMatch.SetField("cuisine_type")
		cuisineMatch.SetBoost(1.5)

		neighborhoodMatch := bleve.NewMatchQuery(q)
		neighborhoodMatch.SetField("neighborhood")
		neighborhoodMatch.SetBoost(1.5)

		addressMatch := bleve.NewMatchQuery(q)
		addressMatch.SetField("address")

		// Typo tolerance on names
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, cuisineMatch, neighborhoodMatch, addressMatch, fuzzy}

		// Prefix for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if slug := filterSlug(params.Cuisine); slug != "" {
		tq := bleve.NewTermQuery(slug)
		tq.SetField("cuisine_slug")
		queries = append(queries, tq)
	}
	if slug := filterSlug(params.Neighborhood); slug != "" {
		tq := bleve.NewTermQuery(slug)
		tq.SetField("neighborhood_slug")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func filterSlug(v string) string {
	if v == "" || strings.EqualFold(v, domain.FilterAll) {
		return ""
	}
	return domain.Slugify(v)
}
