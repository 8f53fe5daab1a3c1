package metadata

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/imHansiy/mediadex/internal/cache"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/models"
)

type fakeScraper struct {
	name    string
	matches []*models.MetadataMatch
	details *models.MetadataMatch
	err     error
	calls   []string
}

func (f *fakeScraper) Search(_ context.Context, query string, _ models.MediaType, _ *int) ([]*models.MetadataMatch, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeScraper) GetDetails(_ context.Context, externalID string, _ models.MediaType) (*models.MetadataMatch, error) {
	f.calls = append(f.calls, "details:"+externalID)
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

func (f *fakeScraper) Name() string { return f.name }

func match(id, title string, conf float64) *models.MetadataMatch {
	return &models.MetadataMatch{
		Source:     "fake",
		ExternalID: id,
		MediaType:  models.MediaTypeMovie,
		Title:      title,
		Confidence: conf,
	}
}

func TestLookupPicksBestAboveThreshold(t *testing.T) {
	sc := &fakeScraper{name: "a", matches: []*models.MetadataMatch{
		match("1", "Close Enough", 0.58),
		match("2", "Dune", 0.92),
		match("3", "Too Weak", 0.40),
	}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), sc)

	got, err := e.Lookup(context.Background(), "Dune", "", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil || got.ExternalID != "2" {
		t.Fatalf("Lookup() = %+v, want the 0.92 match", got)
	}
}

func TestLookupMissBelowThreshold(t *testing.T) {
	sc := &fakeScraper{name: "a", matches: []*models.MetadataMatch{match("1", "Noise", 0.30)}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), sc)

	got, err := e.Lookup(context.Background(), "Obscure Home Video", "", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Lookup() = %+v, want nil below threshold", got)
	}

	// The miss is cached: a second lookup must not touch the source.
	if _, err := e.Lookup(context.Background(), "Obscure Home Video", "", models.MediaTypeMovie); err != nil {
		t.Fatalf("second Lookup() error = %v", err)
	}
	if len(sc.calls) != 1 {
		t.Fatalf("scraper calls = %v, want the negative result served from cache", sc.calls)
	}
}

func TestLookupServesHitsFromCache(t *testing.T) {
	sc := &fakeScraper{name: "a", matches: []*models.MetadataMatch{match("603", "The Matrix", 0.97)}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), sc)

	first, err := e.Lookup(context.Background(), "The Matrix", "", models.MediaTypeMovie)
	if err != nil || first == nil {
		t.Fatalf("Lookup() = %v, %v", first, err)
	}
	second, err := e.Lookup(context.Background(), "the matrix", "", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("cached Lookup() error = %v", err)
	}
	if second == nil || second.ExternalID != first.ExternalID {
		t.Fatalf("cached Lookup() = %+v", second)
	}
	if len(sc.calls) != 1 {
		t.Fatalf("scraper calls = %v, want cache hit on the case-folded key", sc.calls)
	}
}

func TestLookupTriesFallbackTitle(t *testing.T) {
	sc := &fakeScraper{name: "a"}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), &fallbackScraper{inner: sc})

	got, err := e.Lookup(context.Background(), "S01", "The Wire", models.MediaTypeTV)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil || got.Title != "The Wire" {
		t.Fatalf("Lookup() = %+v, want the fallback-title match", got)
	}
	if len(sc.calls) != 2 || sc.calls[0] != "S01" || sc.calls[1] != "The Wire" {
		t.Fatalf("calls = %v, want primary then fallback", sc.calls)
	}
}

// fallbackScraper answers only for "The Wire", mimicking a source that
// knows the series but not the bare season marker.
type fallbackScraper struct {
	inner *fakeScraper
}

func (f *fallbackScraper) Search(ctx context.Context, query string, mt models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	f.inner.calls = append(f.inner.calls, query)
	if query == "The Wire" {
		m := match("1438", "The Wire", 1.0)
		m.MediaType = models.MediaTypeTV
		return []*models.MetadataMatch{m}, nil
	}
	return nil, nil
}

func (f *fallbackScraper) GetDetails(ctx context.Context, id string, mt models.MediaType) (*models.MetadataMatch, error) {
	return nil, nil
}

func (f *fallbackScraper) Name() string { return "fallback" }

func TestLookupToleratesBrokenSource(t *testing.T) {
	broken := &fakeScraper{name: "broken", err: errors.New("boom")}
	healthy := &fakeScraper{name: "healthy", matches: []*models.MetadataMatch{match("42", "Fargo", 0.9)}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), broken, healthy)

	got, err := e.Lookup(context.Background(), "Fargo", "", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Lookup() error = %v, want the healthy source to win", err)
	}
	if got == nil || got.ExternalID != "42" {
		t.Fatalf("Lookup() = %+v", got)
	}
}

func TestLookupErrorsWhenAllSourcesFail(t *testing.T) {
	a := &fakeScraper{name: "a", err: errors.New("down")}
	b := &fakeScraper{name: "b", err: errors.New("also down")}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), a, b)

	if _, err := e.Lookup(context.Background(), "Anything", "", models.MediaTypeMovie); err == nil {
		t.Fatal("Lookup() error = nil, want failure when every source is down")
	}

	// Errors are not cached; the next lookup must retry the sources.
	e.Lookup(context.Background(), "Anything", "", models.MediaTypeMovie)
	if len(a.calls) != 2 {
		t.Fatalf("a.calls = %v, want a retry after an uncached error", a.calls)
	}
}

func TestLookupFillsMediaTypeFromHint(t *testing.T) {
	m := match("7", "Untyped", 0.9)
	m.MediaType = ""
	sc := &fakeScraper{name: "a", matches: []*models.MetadataMatch{m}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), sc)

	got, err := e.Lookup(context.Background(), "Untyped", "", models.MediaTypeTV)
	if err != nil || got == nil {
		t.Fatalf("Lookup() = %v, %v", got, err)
	}
	if got.MediaType != models.MediaTypeTV {
		t.Errorf("MediaType = %q, want the hint", got.MediaType)
	}
}

func TestLookupStopsAfterStrongMatch(t *testing.T) {
	first := &fakeScraper{name: "first", matches: []*models.MetadataMatch{match("1", "Heat", 0.97)}}
	second := &fakeScraper{name: "second", matches: []*models.MetadataMatch{match("2", "Heat", 1.0)}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), first, second)

	got, err := e.Lookup(context.Background(), "Heat", "", models.MediaTypeMovie)
	if err != nil || got == nil || got.ExternalID != "1" {
		t.Fatalf("Lookup() = %v, %v", got, err)
	}
	if len(second.calls) != 0 {
		t.Fatalf("second source was asked despite a %v match", first.matches[0].Confidence)
	}
}

func TestDetailsSelectsSourceByName(t *testing.T) {
	wrong := &fakeScraper{name: "wrong", details: match("603", "Not The Matrix", 1.0)}
	right := &fakeScraper{name: "right", details: match("603", "The Matrix", 1.0)}
	e := NewEnricher(0.55, nil, wrong, right)

	got, err := e.Details(context.Background(), "right", "603", models.MediaTypeMovie)
	if err != nil || got == nil || got.Title != "The Matrix" {
		t.Fatalf("Details() = %v, %v", got, err)
	}

	if _, err := e.Details(context.Background(), "absent", "603", models.MediaTypeMovie); err == nil {
		t.Fatal("Details() error = nil, want failure for an unconfigured source")
	}
}

func TestInvalidateBustsCache(t *testing.T) {
	sc := &fakeScraper{name: "a", matches: []*models.MetadataMatch{match("1", "Dune", 1.0)}}
	e := NewEnricher(0.55, cache.NewMemory(time.Minute), sc)

	e.Lookup(context.Background(), "Dune", "", models.MediaTypeMovie)
	e.Invalidate(context.Background(), models.MediaTypeMovie, "Dune")
	e.Lookup(context.Background(), "Dune", "", models.MediaTypeMovie)
	if len(sc.calls) != 2 {
		t.Fatalf("calls = %v, want a fresh search after Invalidate", sc.calls)
	}
}

func TestFromConfig(t *testing.T) {
	if e := FromConfig(&config.Config{}, nil, "ua"); e != nil {
		t.Fatal("FromConfig() with no sources should return nil")
	}

	e := FromConfig(&config.Config{
		TMDBAPIKey:     "k",
		TMDBLanguage:   "zh-CN",
		DoubanEnabled:  true,
		MatchThreshold: 0.7,
	}, cache.NewMemory(time.Minute), "ua")
	if e == nil {
		t.Fatal("FromConfig() = nil with TMDB and Douban configured")
	}
	if len(e.scrapers) != 2 || e.scrapers[0].Name() != "tmdb" || e.scrapers[1].Name() != "douban" {
		t.Fatalf("scrapers = %v", e.scrapers)
	}
	if e.threshold != 0.7 {
		t.Errorf("threshold = %v", e.threshold)
	}

	all := FromConfig(&config.Config{
		TMDBAPIKey:    "k",
		TVDBAPIKey:    "k",
		OMDBAPIKey:    "k",
		DoubanEnabled: true,
	}, cache.NewMemory(time.Minute), "ua")
	want := []string{"tmdb", "tvdb", "omdb", "douban"}
	if got := all.Sources(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
}
