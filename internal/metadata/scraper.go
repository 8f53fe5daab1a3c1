package metadata

import (
	"context"
	"strings"

	"github.com/imHansiy/mediadex/internal/models"
)

// Scraper is one metadata source. Implementations must be safe for
// concurrent use; ordering, caching and thresholds live in the Enricher.
type Scraper interface {
	Search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error)
	GetDetails(ctx context.Context, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error)
	Name() string
}

// titleSimilarity computes a confidence score between a search query and a
// result title. Exact match = 1.0, containment gets partial credit scaled
// by length (this is what CJK titles hit, since they split into no words),
// otherwise word overlap with a penalty for extra words in the result.
func titleSimilarity(query, result string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	r := strings.ToLower(strings.TrimSpace(result))
	if q == "" || r == "" {
		return 0.0
	}
	if q == r {
		return 1.0
	}

	if strings.HasPrefix(r, q+" ") || strings.HasPrefix(q, r+" ") {
		return 0.9
	}

	qRunes := len([]rune(q))
	rRunes := len([]rune(r))
	if qRunes >= 2 && rRunes >= 2 && (strings.Contains(r, q) || strings.Contains(q, r)) {
		shorter, longer := qRunes, rRunes
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.6 + 0.3*float64(shorter)/float64(longer)
	}

	qWords := strings.Fields(q)
	rWords := strings.Fields(r)
	if len(qWords) == 0 || len(rWords) == 0 {
		return 0.0
	}

	rSet := make(map[string]bool, len(rWords))
	for _, w := range rWords {
		rSet[w] = true
	}
	matched := 0
	for _, w := range qWords {
		if rSet[w] {
			matched++
		}
	}

	total := len(qWords)
	if len(rWords) > total {
		total = len(rWords)
	}
	score := float64(matched) / float64(total)

	// Penalize results with extra words, e.g. query "Star Trek Beyond"
	// against "Star Trek Into Darkness".
	if len(rWords) > len(qWords) {
		score *= float64(len(qWords)) / float64(len(rWords))
	}
	return score
}
