package scanner

import (
	"log"
	"sort"
	"strings"
	"unicode"

	"github.com/imHansiy/mediadex/internal/models"
)

// ──────────────────── Title Normalization ────────────────────

// NormalizeTitleKey reduces a title to its grouping key: case-folded with
// everything but letters and digits stripped. CJK characters are letters
// and survive, so "权力的游戏" and "权力的游戏 " collide as intended.
func NormalizeTitleKey(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ──────────────────── Pass A: Season-Fragment Merge ────────────────────

// MergeSeasons groups tv candidates by normalized series name and folds
// their season fragments together, sorted by season number. Fragments that
// share a season number across source paths are kept side by side rather
// than deduplicated: the tree may genuinely hold two cuts of one season,
// and enriched identity, not path layout, decides duplication later.
//
// Movie candidates pass through untouched. The returned AggregatedSeries
// records describe each merged tv group for diagnostics.
func MergeSeasons(candidates []models.Candidate, set *PatternSet) ([]models.Candidate, []models.AggregatedSeries) {
	var merged []models.Candidate
	var series []models.AggregatedSeries

	groups := make(map[string]*models.Candidate)
	var order []string

	for _, c := range candidates {
		if c.MediaType != models.MediaTypeTV {
			merged = append(merged, c)
			continue
		}

		title := recoverSeriesTitle(c, set)
		key := NormalizeTitleKey(title)
		if key == "" {
			// Nothing to group on; keep the candidate as its own series.
			merged = append(merged, c)
			continue
		}

		group, ok := groups[key]
		if !ok {
			clone := c
			clone.Title = title
			clone.Seasons = append([]models.SeasonFragment(nil), c.Seasons...)
			clone.SourcePaths = append([]string(nil), c.SourcePaths...)
			groups[key] = &clone
			order = append(order, key)
			continue
		}
		group.Seasons = append(group.Seasons, c.Seasons...)
		group.SourcePaths = appendPaths(group.SourcePaths, c.SourcePaths)
		if group.Year == nil {
			group.Year = c.Year
		}
		if group.Quality == nil {
			group.Quality = c.Quality
		}
	}

	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group.Seasons, func(i, j int) bool {
			return group.Seasons[i].SeasonNumber < group.Seasons[j].SeasonNumber
		})
		merged = append(merged, *group)
		series = append(series, models.AggregatedSeries{
			Title:       group.Title,
			Seasons:     group.Seasons,
			SourcePaths: group.SourcePaths,
		})
	}

	if len(series) > 0 {
		log.Printf("Aggregate: season merge folded %d tv candidate(s) into %d series", countTV(candidates), len(series))
	}
	return merged, series
}

// recoverSeriesTitle resolves a usable series title. A title that is empty
// or itself a bare season marker ("S01") recovers the real name from the
// nearest non-season segment of the candidate's path.
func recoverSeriesTitle(c models.Candidate, set *PatternSet) string {
	title := strings.TrimSpace(c.Title)
	if title != "" {
		if _, isMarker := set.SeasonFolderNumber(title); !isMarker {
			return title
		}
	}
	if recovered := SeriesNameFromPath(c.Path, set); recovered != "" {
		log.Printf("Aggregate: recovered series name %q from path %s (title was %q)", recovered, c.Path, c.Title)
		return recovered
	}
	return title
}

func appendPaths(dst []string, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, p := range dst {
		seen[p] = true
	}
	for _, p := range src {
		if !seen[p] {
			dst = append(dst, p)
			seen[p] = true
		}
	}
	return dst
}

func countTV(candidates []models.Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.MediaType == models.MediaTypeTV {
			n++
		}
	}
	return n
}

// ──────────────────── Pass B: Version-Group Merge ────────────────────

// MergeVersions groups enriched candidates by normalized canonical title and
// type, electing one main version per group. Priority: first member with
// files, else first with seasons, else first discovered. Single-member
// groups become plain entries with IsAggregated false.
func MergeVersions(enriched []models.EnrichedCandidate) []models.VersionGroup {
	type group struct {
		members []models.EnrichedCandidate
	}
	groups := make(map[string]*group)
	var order []string

	for _, e := range enriched {
		key := NormalizeTitleKey(e.CanonicalTitle) + "|" + string(e.CanonicalType)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, e)
	}

	out := make([]models.VersionGroup, 0, len(order))
	aggregated := 0
	for _, key := range order {
		vg := buildVersionGroup(groups[key].members)
		if vg.IsAggregated {
			aggregated++
		}
		out = append(out, vg)
	}
	if aggregated > 0 {
		log.Printf("Aggregate: version merge folded %d enriched candidate(s) into %d entries (%d aggregated)",
			len(enriched), len(out), aggregated)
	}
	return out
}

func buildVersionGroup(members []models.EnrichedCandidate) models.VersionGroup {
	mainIdx := 0
	found := false
	for i, m := range members {
		if len(m.Files) > 0 {
			mainIdx = i
			found = true
			break
		}
	}
	if !found {
		for i, m := range members {
			if len(m.Seasons) > 0 {
				mainIdx = i
				break
			}
		}
	}

	main := members[mainIdx]
	vg := models.VersionGroup{
		CanonicalID: main.CanonicalID,
		Title:       main.CanonicalTitle,
		MediaType:   main.CanonicalType,
		Year:        main.CanonicalYear,
		Overview:    main.Overview,
		PosterURL:   main.PosterURL,
		Rating:      main.Rating,
		Genres:      main.Genres,
		Placeholder: main.Placeholder,
		MainVersion: makeVersion(main, true),

		IsAggregated:    len(members) > 1,
		AggregatedCount: len(members),
	}

	for i, m := range members {
		vg.SourcePaths = appendPaths(vg.SourcePaths, m.SourcePaths)
		if i == mainIdx {
			continue
		}
		vg.OtherVersions = append(vg.OtherVersions, makeVersion(m, false))
		// A placeholder main borrows enrichment from any matched sibling.
		if vg.Overview == nil {
			vg.Overview = m.Overview
		}
		if vg.PosterURL == nil {
			vg.PosterURL = m.PosterURL
		}
		if vg.Rating == nil {
			vg.Rating = m.Rating
		}
		if vg.Year == nil {
			vg.Year = m.CanonicalYear
		}
		if len(vg.Genres) == 0 {
			vg.Genres = m.Genres
		}
	}
	return vg
}

// makeVersion slots an enriched candidate into the tagged shape its
// canonical type dictates: movie versions carry files and never seasons,
// tv versions the reverse. Content on the wrong side is converted, not
// deleted, so a tv identity discovered as loose files keeps its episodes.
func makeVersion(m models.EnrichedCandidate, isMain bool) models.Version {
	v := models.Version{
		ID:          m.CanonicalID,
		VersionName: versionNameForID(m.CanonicalID),
		IsMain:      isMain,
		MediaType:   m.CanonicalType,
		Path:        m.Path,
		Quality:     m.Quality,
	}

	if m.CanonicalType == models.MediaTypeTV {
		v.Seasons = m.Seasons
		if len(v.Seasons) == 0 && len(m.Files) > 0 {
			fragment := models.SeasonFragment{SeasonNumber: 1}
			for i, f := range m.Files {
				fragment.Episodes = append(fragment.Episodes, models.EpisodeRef{
					Episode: i + 1,
					Name:    f.Name,
					Path:    f.Path,
				})
			}
			v.Seasons = []models.SeasonFragment{fragment}
		}
		return v
	}

	v.Files = m.Files
	if len(v.Files) == 0 && len(m.Seasons) > 0 {
		for _, s := range m.Seasons {
			for _, e := range s.Episodes {
				v.Files = append(v.Files, models.FileRef{Name: e.Name, Path: e.Path})
			}
		}
	}
	return v
}

func versionNameForID(id string) string {
	switch {
	case strings.HasPrefix(id, "movie_"):
		return "Movie Version"
	case strings.HasPrefix(id, "tv_"):
		return "TV Version"
	default:
		return "Default Version"
	}
}
