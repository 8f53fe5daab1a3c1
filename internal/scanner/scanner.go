package scanner

import (
	"context"
	"log"
	"path"

	"github.com/google/uuid"

	"github.com/imHansiy/mediadex/internal/models"
)

// Enricher is the external metadata collaborator. A nil match with a nil
// error means "no result"; the scanner synthesizes a placeholder either way
// and never drops a candidate.
type Enricher interface {
	Lookup(ctx context.Context, primaryTitle, fallbackTitle string, hint models.MediaType) (*models.MetadataMatch, error)
}

// ProgressFunc receives coarse scan progress per stage. done/total are
// candidate counts during enrichment and directory counts during the walk.
type ProgressFunc func(stage string, done, total int, detail string)

// ──────────────────── Scanner ────────────────────

// Scanner runs the full pipeline over one or more roots: tree walk,
// season-fragment merge, enrichment, version-group merge.
type Scanner struct {
	lister   Lister
	enricher Enricher
	registry *Registry
	maxDepth int
	progress ProgressFunc
}

type Options struct {
	MaxDepth int
	Progress ProgressFunc
}

func New(lister Lister, enricher Enricher, registry *Registry, opts Options) *Scanner {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Scanner{
		lister:   lister,
		enricher: enricher,
		registry: registry,
		maxDepth: opts.MaxDepth,
		progress: opts.Progress,
	}
}

// WithProgress returns a copy of the scanner that reports through fn.
// The receiver is left untouched, so one shared scanner can serve
// concurrent runs with different callbacks.
func (s *Scanner) WithProgress(fn ProgressFunc) *Scanner {
	c := *s
	c.progress = fn
	return &c
}

// Result is one completed scan across all roots.
type Result struct {
	Analyses     []*models.TreeAnalysis
	Series       []models.AggregatedSeries
	Groups       []models.VersionGroup
	DirsVisited  int
	ListErrors   int
	Truncated    int
	MoviesTotal  int
	TVTotal      int
	Placeholders int
}

// Verdicts maps each scanned root to its tree verdict.
func (r *Result) Verdicts() map[string]models.TreeVerdict {
	verdicts := make(map[string]models.TreeVerdict, len(r.Analyses))
	for _, a := range r.Analyses {
		verdicts[a.Root] = a.Verdict
	}
	return verdicts
}

// Run scans every root under the named preset. Partial results are returned
// alongside a context error when the caller cancels mid-scan; no other
// condition fails the run.
func (s *Scanner) Run(ctx context.Context, roots []string, presetName string) (*Result, error) {
	set := s.registry.Get(presetName)
	result := &Result{}

	walker := NewWalker(s.lister, set, s.maxDepth)
	var candidates []models.Candidate
	for i, root := range roots {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.report("walk", i, len(roots), root)
		analysis := walker.Walk(ctx, root)
		result.Analyses = append(result.Analyses, analysis)
		result.DirsVisited += analysis.DirsVisited
		result.ListErrors += analysis.ListErrors
		result.Truncated += analysis.Truncated
		candidates = append(candidates, analysis.Candidates...)
	}
	s.report("walk", len(roots), len(roots), "")

	merged, series := MergeSeasons(candidates, set)
	result.Series = series

	enriched := make([]models.EnrichedCandidate, 0, len(merged))
	for i, c := range merged {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		e := s.enrich(ctx, c, set)
		if e.Placeholder {
			result.Placeholders++
		}
		enriched = append(enriched, e)
		s.report("enrich", i+1, len(merged), c.Title)
	}

	result.Groups = MergeVersions(enriched)
	for _, g := range result.Groups {
		switch g.MediaType {
		case models.MediaTypeMovie:
			result.MoviesTotal++
		case models.MediaTypeTV:
			result.TVTotal++
		}
	}
	s.report("merge", len(result.Groups), len(result.Groups), "")

	log.Printf("Scan: %d root(s) → %d candidates → %d entries (%d movies, %d tv, %d placeholders)",
		len(roots), len(candidates), len(result.Groups),
		result.MoviesTotal, result.TVTotal, result.Placeholders)
	return result, nil
}

// enrich resolves one candidate against the metadata collaborator, falling
// back to a placeholder with a unique synthetic id on miss or error.
func (s *Scanner) enrich(ctx context.Context, c models.Candidate, set *PatternSet) models.EnrichedCandidate {
	e := models.EnrichedCandidate{
		Candidate:      c,
		CanonicalTitle: c.Title,
		CanonicalType:  c.MediaType,
		CanonicalYear:  c.Year,
	}

	if s.enricher != nil {
		fallback := CleanTitle(path.Base(c.Path))
		if fallback == c.Title {
			fallback = ""
		}
		match, err := s.enricher.Lookup(ctx, c.Title, fallback, c.MediaType)
		if err != nil {
			log.Printf("Scan: enrichment failed for %q: %v (keeping as placeholder)", c.Title, err)
		}
		if match != nil {
			e.CanonicalID = canonicalID(match)
			e.CanonicalTitle = match.Title
			e.CanonicalType = match.MediaType
			if match.Year != nil {
				e.CanonicalYear = match.Year
			}
			e.Overview = match.Description
			e.PosterURL = match.PosterURL
			e.Rating = match.Rating
			e.Genres = match.Genres
			return e
		}
	}

	e.CanonicalID = "local_" + uuid.New().String()
	e.Placeholder = true
	return e
}

func canonicalID(match *models.MetadataMatch) string {
	prefix := "movie_"
	if match.MediaType == models.MediaTypeTV {
		prefix = "tv_"
	}
	return prefix + match.ExternalID
}

func (s *Scanner) report(stage string, done, total int, detail string) {
	if s.progress != nil {
		s.progress(stage, done, total, detail)
	}
}
