package scanner

import (
	"testing"

	"github.com/imHansiy/mediadex/internal/models"
)

func TestParseFilenameSeasonEpisode(t *testing.T) {
	set := NewRegistry().Get("default")

	cases := []struct {
		name    string
		file    string
		season  int
		episode int
		title   string
	}{
		{"sxxexx", "Show.S02E05.1080p.mkv", 2, 5, "Show"},
		{"sxxexx dotted", "Breaking.Bad.S01E01.720p.BluRay.x264.mkv", 1, 1, "Breaking Bad"},
		{"sxxexx lowercase", "the.wire.s03e08.hdtv.mkv", 3, 8, "the wire"},
		{"nxm", "Firefly 1x05.mkv", 1, 5, "Firefly"},
		{"verbose words", "Lost Season 2 Episode 10.mkv", 2, 10, "Lost"},
		{"cjk pair", "权力的游戏.第3季第7集.mp4", 3, 7, "权力的游戏"},
		{"cjk numerals", "琅琊榜.第二季第十五集.mp4", 2, 15, "琅琊榜"},
		{"bracket pair", "Show [02][13].mkv", 2, 13, "Show"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := ParseFilename(tc.file, set)
			if meta.Kind != models.KindEpisode {
				t.Fatalf("ParseFilename(%q) kind = %s, want episode", tc.file, meta.Kind)
			}
			if meta.Season == nil || *meta.Season != tc.season {
				t.Errorf("season = %v, want %d", fmtIntPtr(meta.Season), tc.season)
			}
			if meta.Episode == nil || *meta.Episode != tc.episode {
				t.Errorf("episode = %v, want %d", fmtIntPtr(meta.Episode), tc.episode)
			}
			if meta.Title != tc.title {
				t.Errorf("title = %q, want %q", meta.Title, tc.title)
			}
		})
	}
}

func TestParseFilenameEpisodeOnly(t *testing.T) {
	set := NewRegistry().Get("default")

	cases := []struct {
		name    string
		file    string
		episode int
		title   string
	}{
		{"exx", "Show.E05.mkv", 5, "Show"},
		{"ep prefix", "Naruto EP120.mkv", 120, "Naruto"},
		{"episode word", "Friends Episode 7.mkv", 7, "Friends"},
		{"cjk episode", "海贼王 第24集.mp4", 24, "海贼王"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := ParseFilename(tc.file, set)
			if meta.Kind != models.KindEpisode {
				t.Fatalf("ParseFilename(%q) kind = %s, want episode", tc.file, meta.Kind)
			}
			if meta.Season != nil {
				t.Errorf("season = %d, want nil", *meta.Season)
			}
			if meta.Episode == nil || *meta.Episode != tc.episode {
				t.Errorf("episode = %v, want %d", fmtIntPtr(meta.Episode), tc.episode)
			}
			if meta.Title != tc.title {
				t.Errorf("title = %q, want %q", meta.Title, tc.title)
			}
		})
	}
}

func TestParseFilenameGuardRejectsImplausibleNumbers(t *testing.T) {
	set := NewRegistry().Get("default")

	// Numbers past the plausibility bounds must not be read as
	// season/episode; the name falls through to movie.
	for _, file := range []string{"99x250.mkv", "Show.E999.mkv", "Epic.S77E01.mkv"} {
		meta := ParseFilename(file, set)
		if meta.Kind != models.KindMovie {
			t.Errorf("ParseFilename(%q) kind = %s, want movie", file, meta.Kind)
		}
		if meta.Season != nil || meta.Episode != nil {
			t.Errorf("ParseFilename(%q) season/episode = %v/%v, want nil/nil",
				file, fmtIntPtr(meta.Season), fmtIntPtr(meta.Episode))
		}
	}
}

func TestParseFilenameMovies(t *testing.T) {
	set := NewRegistry().Get("default")

	cases := []struct {
		name    string
		file    string
		title   string
		year    int // 0 = nil
		quality string
	}{
		{"scene release", "Avatar.2009.1080p.BluRay.x264-GROUP.mkv", "Avatar", 2009, "1080p"},
		{"parenthesized year", "Avatar (2009).mkv", "Avatar", 2009, ""},
		{"bare title", "Inception.mkv", "Inception", 0, ""},
		{"year as title", "2012 (2009).mkv", "2012", 2009, ""},
		{"hyphenated title", "Spider-Man.2002.720p.mkv", "Spider-Man", 2002, "720p"},
		{"4k alias", "Dune.Part.Two.2024.4K.WEB-DL.mkv", "Dune Part Two", 2024, "2160p"},
		{"later year wins", "1917.Movie.(2019).mkv", "1917 Movie", 2019, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := ParseFilename(tc.file, set)
			if meta.Kind != models.KindMovie {
				t.Fatalf("kind = %s, want movie", meta.Kind)
			}
			if meta.Title != tc.title {
				t.Errorf("title = %q, want %q", meta.Title, tc.title)
			}
			switch {
			case tc.year == 0 && meta.Year != nil:
				t.Errorf("year = %d, want nil", *meta.Year)
			case tc.year != 0 && (meta.Year == nil || *meta.Year != tc.year):
				t.Errorf("year = %v, want %d", fmtIntPtr(meta.Year), tc.year)
			}
			switch {
			case tc.quality == "" && meta.Quality != nil:
				t.Errorf("quality = %q, want nil", *meta.Quality)
			case tc.quality != "" && (meta.Quality == nil || *meta.Quality != tc.quality):
				t.Errorf("quality = %v, want %q", meta.Quality, tc.quality)
			}
		})
	}
}

func TestCleanTitleIdempotent(t *testing.T) {
	names := []string{
		"Avatar.2009.1080p.BluRay.x264-GROUP.mkv",
		"Show.S02E05.1080p.mkv",
		"权力的游戏.第3季第7集.mp4",
		"[Group] Show - 05 [1080p].mkv",
		"99x250.mkv",
		"1080p.mkv",
		"Spider-Man.2002.720p.mkv",
		"Dune.Part.Two.2024.2160p.WEB-DL.x265.mkv",
		"Lost Season 2 Episode 10.mkv",
		"   ",
		"",
	}
	for _, name := range names {
		once := CleanTitle(name)
		twice := CleanTitle(once)
		if once != twice {
			t.Errorf("CleanTitle not stable for %q: first %q, second %q", name, once, twice)
		}
	}
}

func TestCleanTitleWorstCaseKeepsOriginal(t *testing.T) {
	// A name that is nothing but noise still yields something non-empty.
	got := CleanTitle("99x250.mkv")
	if got != "99x250" {
		t.Errorf("CleanTitle(99x250.mkv) = %q, want 99x250", got)
	}
}

func TestParseFilenamePresetOrdering(t *testing.T) {
	// The chinese preset consults CJK rules first, but latin names must
	// still parse through the later rules.
	set := NewRegistry().Get("chinese")
	meta := ParseFilename("Show.S02E05.mkv", set)
	if meta.Kind != models.KindEpisode || meta.Season == nil || *meta.Season != 2 {
		t.Fatalf("chinese preset failed latin name: %+v", meta)
	}
	meta = ParseFilename("风味人间.第2季第3集.mp4", set)
	if meta.Season == nil || *meta.Season != 2 || meta.Episode == nil || *meta.Episode != 3 {
		t.Fatalf("chinese preset failed cjk name: %+v", meta)
	}
}

func fmtIntPtr(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
