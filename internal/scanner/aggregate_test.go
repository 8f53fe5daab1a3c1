package scanner

import (
	"testing"

	"github.com/imHansiy/mediadex/internal/models"
)

func TestNormalizeTitleKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Breaking Bad", "breakingbad"},
		{"breaking.bad!", "breakingbad"},
		{"The Office (US)", "theofficeus"},
		{"权力的游戏", "权力的游戏"},
		{"Dune: Part Two", "duneparttwo"},
		{"  - _ ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitleKey(tc.in); got != tc.want {
			t.Errorf("NormalizeTitleKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func tvCandidateFixture(title, path string, seasons ...models.SeasonFragment) models.Candidate {
	return models.Candidate{
		Title:       title,
		Path:        path,
		MediaType:   models.MediaTypeTV,
		Seasons:     seasons,
		SourcePaths: []string{path},
	}
}

func seasonFixture(number int, episodes ...int) models.SeasonFragment {
	f := models.SeasonFragment{SeasonNumber: number}
	for _, e := range episodes {
		f.Episodes = append(f.Episodes, models.EpisodeRef{Episode: e})
	}
	return f
}

func TestMergeSeasonsFoldsDisjointFragments(t *testing.T) {
	set := NewRegistry().Get("default")
	candidates := []models.Candidate{
		tvCandidateFixture("Breaking Bad", "/disk1/Breaking Bad", seasonFixture(2, 1)),
		tvCandidateFixture("breaking bad", "/disk2/breaking bad", seasonFixture(1, 1, 2)),
	}

	merged, series := MergeSeasons(candidates, set)

	if len(merged) != 1 {
		t.Fatalf("merged = %d candidates, want 1", len(merged))
	}
	got := merged[0]
	if len(got.Seasons) != 2 {
		t.Fatalf("seasons = %d, want sum of both fragments", len(got.Seasons))
	}
	if got.Seasons[0].SeasonNumber != 1 || got.Seasons[1].SeasonNumber != 2 {
		t.Errorf("season order = %d,%d, want ascending", got.Seasons[0].SeasonNumber, got.Seasons[1].SeasonNumber)
	}
	if len(got.SourcePaths) != 2 {
		t.Errorf("source paths = %v, want both disks", got.SourcePaths)
	}
	if len(series) != 1 || series[0].Title != "Breaking Bad" {
		t.Errorf("series records = %+v, want one Breaking Bad", series)
	}
}

func TestMergeSeasonsKeepsDuplicateSeasonNumbers(t *testing.T) {
	set := NewRegistry().Get("default")
	candidates := []models.Candidate{
		tvCandidateFixture("Show", "/bluray/Show", seasonFixture(1, 1, 2)),
		tvCandidateFixture("Show", "/webdl/Show", seasonFixture(1, 1, 2)),
	}

	merged, _ := MergeSeasons(candidates, set)

	if len(merged) != 1 {
		t.Fatalf("merged = %d, want 1", len(merged))
	}
	seasons := merged[0].Seasons
	if len(seasons) != 2 {
		t.Fatalf("seasons = %d, want both season-1 fragments preserved", len(seasons))
	}
	if seasons[0].SeasonNumber != 1 || seasons[1].SeasonNumber != 1 {
		t.Errorf("season numbers = %d,%d, want 1,1", seasons[0].SeasonNumber, seasons[1].SeasonNumber)
	}
}

func TestMergeSeasonsRecoversBareMarkerTitles(t *testing.T) {
	set := NewRegistry().Get("default")
	candidates := []models.Candidate{
		tvCandidateFixture("S01", "/tv/The Wire/S01", seasonFixture(1, 1)),
		tvCandidateFixture("The Wire", "/tv/The Wire", seasonFixture(2, 1)),
	}

	merged, series := MergeSeasons(candidates, set)

	if len(merged) != 1 {
		t.Fatalf("merged = %d, want the marker candidate folded into the named one", len(merged))
	}
	if merged[0].Title != "The Wire" {
		t.Errorf("title = %q, want recovered The Wire", merged[0].Title)
	}
	if len(merged[0].Seasons) != 2 {
		t.Errorf("seasons = %d, want 2", len(merged[0].Seasons))
	}
	if len(series) != 1 {
		t.Errorf("series = %d, want 1", len(series))
	}
}

func TestMergeSeasonsPassesMoviesThrough(t *testing.T) {
	set := NewRegistry().Get("default")
	movie := models.Candidate{Title: "Dune", Path: "/m/Dune", MediaType: models.MediaTypeMovie}
	candidates := []models.Candidate{
		movie,
		tvCandidateFixture("Show", "/tv/Show", seasonFixture(1, 1)),
	}

	merged, series := MergeSeasons(candidates, set)

	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2", len(merged))
	}
	if merged[0].MediaType != models.MediaTypeMovie || merged[0].Title != "Dune" {
		t.Errorf("movie candidate altered: %+v", merged[0])
	}
	if len(series) != 1 {
		t.Errorf("series = %d, movies must not produce series records", len(series))
	}
}

func enrichedFixture(id, title string, mt models.MediaType, c models.Candidate) models.EnrichedCandidate {
	return models.EnrichedCandidate{
		Candidate:      c,
		CanonicalID:    id,
		CanonicalTitle: title,
		CanonicalType:  mt,
	}
}

func TestMergeVersionsElectsMemberWithFiles(t *testing.T) {
	members := []models.EnrichedCandidate{
		enrichedFixture("movie_100", "Dune", models.MediaTypeMovie,
			models.Candidate{Path: "/v1", SourcePaths: []string{"/v1"}}),
		enrichedFixture("movie_100", "Dune", models.MediaTypeMovie,
			models.Candidate{Path: "/v2", SourcePaths: []string{"/v2"},
				Files: []models.FileRef{{Name: "Dune.mkv", Path: "/v2/Dune.mkv"}}}),
		enrichedFixture("movie_100", "Dune", models.MediaTypeMovie,
			models.Candidate{Path: "/v3", SourcePaths: []string{"/v3"}}),
	}

	groups := MergeVersions(members)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if !g.IsAggregated || g.AggregatedCount != 3 {
		t.Errorf("aggregation = %v/%d, want true/3", g.IsAggregated, g.AggregatedCount)
	}
	if g.MainVersion.Path != "/v2" {
		t.Errorf("main version path = %q, want the member with files", g.MainVersion.Path)
	}
	if !g.MainVersion.IsMain {
		t.Error("main version must carry IsMain")
	}
	if len(g.OtherVersions) != 2 {
		t.Errorf("other versions = %d, want 2", len(g.OtherVersions))
	}
	for _, v := range g.OtherVersions {
		if v.IsMain {
			t.Errorf("secondary version %q carries IsMain", v.Path)
		}
	}
	if len(g.SourcePaths) != 3 {
		t.Errorf("source paths = %v, want all three", g.SourcePaths)
	}
}

func TestMergeVersionsSeasonsOutrankEmpty(t *testing.T) {
	members := []models.EnrichedCandidate{
		enrichedFixture("tv_7", "Show", models.MediaTypeTV,
			models.Candidate{Path: "/bare"}),
		enrichedFixture("tv_7", "Show", models.MediaTypeTV,
			models.Candidate{Path: "/full", Seasons: []models.SeasonFragment{seasonFixture(1, 1)}}),
	}

	groups := MergeVersions(members)
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].MainVersion.Path != "/full" {
		t.Errorf("main = %q, want the member with seasons", groups[0].MainVersion.Path)
	}
}

func TestMergeVersionsSingleMemberStaysPlain(t *testing.T) {
	members := []models.EnrichedCandidate{
		enrichedFixture("movie_5", "Alien", models.MediaTypeMovie,
			models.Candidate{Path: "/a", Files: []models.FileRef{{Name: "Alien.mkv"}}}),
	}

	groups := MergeVersions(members)
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.IsAggregated || g.AggregatedCount != 1 || len(g.OtherVersions) != 0 {
		t.Errorf("single member group = %+v, want unaggregated", g)
	}
}

func TestMergeVersionsSeparatesMediaTypes(t *testing.T) {
	members := []models.EnrichedCandidate{
		enrichedFixture("movie_9", "Fargo", models.MediaTypeMovie, models.Candidate{Path: "/m"}),
		enrichedFixture("tv_9", "Fargo", models.MediaTypeTV, models.Candidate{Path: "/t"}),
	}

	groups := MergeVersions(members)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, same title with different types must not merge", len(groups))
	}
}

func TestMergeVersionsPlaceholderBorrowsEnrichment(t *testing.T) {
	plot := "Paul Atreides unites the Fremen."
	placeholderMain := enrichedFixture("local_abc", "Dune", models.MediaTypeMovie,
		models.Candidate{Path: "/files", Files: []models.FileRef{{Name: "Dune.mkv"}}})
	placeholderMain.Placeholder = true

	matchedSibling := enrichedFixture("movie_42", "Dune", models.MediaTypeMovie,
		models.Candidate{Path: "/bare"})
	matchedSibling.Overview = strPtr(plot)
	matchedSibling.Rating = floatPtr(8.3)
	matchedSibling.CanonicalYear = intPtr(2021)

	groups := MergeVersions([]models.EnrichedCandidate{placeholderMain, matchedSibling})
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.MainVersion.Path != "/files" {
		t.Fatalf("main = %q, file-backed placeholder must win", g.MainVersion.Path)
	}
	if g.Overview == nil || *g.Overview != plot {
		t.Errorf("overview not borrowed from matched sibling: %v", g.Overview)
	}
	if g.Rating == nil || g.Year == nil || *g.Year != 2021 {
		t.Errorf("rating/year not borrowed: %v/%v", g.Rating, g.Year)
	}
}

func TestVersionNames(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"movie_603", "Movie Version"},
		{"tv_1396", "TV Version"},
		{"local_8d2f", "Default Version"},
		{"", "Default Version"},
	}
	for _, tc := range cases {
		if got := versionNameForID(tc.id); got != tc.want {
			t.Errorf("versionNameForID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestMakeVersionKeepsTaggedShape(t *testing.T) {
	t.Run("tv identity from loose files grows a season", func(t *testing.T) {
		m := enrichedFixture("tv_3", "Show", models.MediaTypeTV, models.Candidate{
			Path: "/loose",
			Files: []models.FileRef{
				{Name: "a.mkv", Path: "/loose/a.mkv"},
				{Name: "b.mkv", Path: "/loose/b.mkv"},
			},
		})
		v := makeVersion(m, true)
		if len(v.Files) != 0 {
			t.Errorf("tv version carries %d bare files, want 0", len(v.Files))
		}
		if len(v.Seasons) != 1 || v.Seasons[0].SeasonNumber != 1 {
			t.Fatalf("seasons = %+v, want one synthesized season 1", v.Seasons)
		}
		eps := v.Seasons[0].Episodes
		if len(eps) != 2 || eps[0].Episode != 1 || eps[1].Episode != 2 {
			t.Errorf("episodes = %+v, want numbered in file order", eps)
		}
	})

	t.Run("movie identity flattens seasons to files", func(t *testing.T) {
		fragment := seasonFixture(1, 1, 2)
		fragment.Episodes[0].Name = "part1.mkv"
		fragment.Episodes[1].Name = "part2.mkv"
		m := enrichedFixture("movie_3", "Saga", models.MediaTypeMovie, models.Candidate{
			Path:    "/saga",
			Seasons: []models.SeasonFragment{fragment},
		})
		v := makeVersion(m, false)
		if len(v.Seasons) != 0 {
			t.Errorf("movie version carries %d seasons, want 0", len(v.Seasons))
		}
		if len(v.Files) != 2 || v.Files[0].Name != "part1.mkv" {
			t.Errorf("files = %+v, want flattened episodes", v.Files)
		}
	})
}

func floatPtr(v float64) *float64 { return &v }
