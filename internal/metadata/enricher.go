package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/imHansiy/mediadex/internal/cache"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/scanner"
)

const defaultThreshold = 0.55

// Enricher resolves candidate titles against the configured scrapers
// through a read-through cache. Implements scanner.Enricher. A nil match
// with nil error is a definitive miss; the scanner synthesizes placeholders
// from those, so lookups must only error when every source failed.
type Enricher struct {
	scrapers  []Scraper
	cache     cache.Store
	threshold float64
}

func NewEnricher(threshold float64, store cache.Store, scrapers ...Scraper) *Enricher {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Enricher{scrapers: scrapers, cache: store, threshold: threshold}
}

// Sources lists the configured scraper names in query order.
func (e *Enricher) Sources() []string {
	names := make([]string, 0, len(e.scrapers))
	for _, sc := range e.scrapers {
		names = append(names, sc.Name())
	}
	return names
}

// FromConfig assembles the scraper stack from whichever sources have keys
// configured: TMDB, TheTVDB, OMDb, plus Douban when enabled. Returns nil
// when no source is available; callers must not wrap that nil in a non-nil
// interface value.
func FromConfig(cfg *config.Config, store cache.Store, userAgent string) *Enricher {
	var scrapers []Scraper
	if cfg.TMDBEnabled() {
		scrapers = append(scrapers, NewTMDBScraper(cfg.TMDBAPIKey, cfg.TMDBLanguage))
	}
	if cfg.TVDBEnabled() {
		scrapers = append(scrapers, NewTVDBScraper(cfg.TVDBAPIKey))
	}
	if cfg.OMDBEnabled() {
		scrapers = append(scrapers, NewOMDBScraper(cfg.OMDBAPIKey))
	}
	if cfg.DoubanEnabled {
		scrapers = append(scrapers, NewDoubanScraper(userAgent))
	}
	if len(scrapers) == 0 {
		return nil
	}
	return NewEnricher(cfg.MatchThreshold, store, scrapers...)
}

// Lookup finds the best match for a title. Both hits and definitive misses
// are cached under the primary title; errors are not, so a flaky source
// gets retried on the next scan.
func (e *Enricher) Lookup(ctx context.Context, primaryTitle, fallbackTitle string, hint models.MediaType) (*models.MetadataMatch, error) {
	key := cacheKey(hint, primaryTitle)
	if e.cache != nil {
		if raw, ok := e.cache.Get(ctx, key); ok {
			var cached *models.MetadataMatch
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	best, err := e.searchAll(ctx, primaryTitle, hint)
	if best == nil && fallbackTitle != "" && fallbackTitle != primaryTitle {
		fb, fbErr := e.searchAll(ctx, fallbackTitle, hint)
		if fb != nil {
			best, err = fb, nil
		} else if err == nil {
			err = fbErr
		}
	}
	if best == nil && err != nil {
		return nil, err
	}

	if best != nil && best.MediaType == "" {
		best.MediaType = hint
	}
	if e.cache != nil {
		// nil marshals to "null" and serves as the negative-result marker.
		if raw, err := json.Marshal(best); err == nil {
			e.cache.Set(ctx, key, raw)
		}
	}
	return best, nil
}

// Details re-fetches one record by external id from the source that
// produced it. Ids are source-scoped (a TMDB numeric id means nothing to
// OMDb and could collide with a Douban subject id), so the scraper is
// selected by name. Used by entry refreshes, where identity is already
// known.
func (e *Enricher) Details(ctx context.Context, source, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error) {
	for _, sc := range e.scrapers {
		if sc.Name() != source {
			continue
		}
		return sc.GetDetails(ctx, externalID, mediaType)
	}
	return nil, fmt.Errorf("source %s not configured", source)
}

// Invalidate drops the cached lookup for a title so the next scan asks the
// sources again.
func (e *Enricher) Invalidate(ctx context.Context, hint models.MediaType, title string) {
	if e.cache != nil {
		e.cache.Delete(ctx, cacheKey(hint, title))
	}
}

// searchAll queries every scraper in order and keeps the best result above
// the threshold. A single healthy source outvotes any number of broken
// ones; the error surfaces only when all of them failed.
func (e *Enricher) searchAll(ctx context.Context, query string, hint models.MediaType) (*models.MetadataMatch, error) {
	var best *models.MetadataMatch
	var lastErr error
	failed := 0
	for _, sc := range e.scrapers {
		matches, err := sc.Search(ctx, query, hint, nil)
		if err != nil {
			log.Printf("Enrich: %s search %q: %v", sc.Name(), query, err)
			lastErr = err
			failed++
			continue
		}
		for _, m := range matches {
			if m == nil || m.Confidence < e.threshold {
				continue
			}
			if best == nil || m.Confidence > best.Confidence {
				best = m
			}
		}
		// A near-perfect hit makes asking the next source pointless.
		if best != nil && best.Confidence >= 0.95 {
			break
		}
	}
	if best == nil && failed > 0 && failed == len(e.scrapers) {
		return nil, lastErr
	}
	return best, nil
}

func cacheKey(hint models.MediaType, title string) string {
	return "lookup:" + string(hint) + ":" + scanner.NormalizeTitleKey(title)
}
