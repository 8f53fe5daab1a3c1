package scanner

import (
	"context"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/imHansiy/mediadex/internal/models"
)

// DefaultMaxDepth bounds traversal on malformed or self-referential trees.
const DefaultMaxDepth = 8

// Lister is the external directory-listing collaborator. Implementations
// must return an empty slice (not an error) for an empty directory and an
// error on auth or network failure.
type Lister interface {
	ListDirectory(ctx context.Context, dirPath string) ([]models.RawEntry, error)
}

// ignoredDirs are skipped entirely: never classified, never descended.
// Lowercased exact names; dot-prefixed directories are skipped by rule.
var ignoredDirs = map[string]bool{
	"@eadir":                    true,
	"@recycle":                  true,
	"#recycle":                  true,
	"$recycle.bin":              true,
	"system volume information": true,
	"lost+found":                true,
	"@tmp":                      true,
	"extras":                    true,
	"featurettes":               true,
	"behind the scenes":         true,
	"deleted scenes":            true,
	"trailers":                  true,
	"sample":                    true,
	"samples":                   true,
	"subs":                      true,
	"subtitles":                 true,
	"字幕":                        true,
	"thumbnails":                true,
	"metadata":                  true,
}

func isIgnoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return ignoredDirs[strings.ToLower(name)]
}

// ──────────────────── Walker ────────────────────

// Walker traverses a remote tree from an explicit worklist stack instead of
// recursing, so depth is bounded by a counter rather than the call stack.
// Traversal state lives per call; one Walker may serve concurrent walks.
type Walker struct {
	lister   Lister
	set      *PatternSet
	maxDepth int
}

func NewWalker(lister Lister, set *PatternSet, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{lister: lister, set: set, maxDepth: maxDepth}
}

type walkItem struct {
	path  string
	depth int
}

// walkState accumulates one traversal. Single writer: the walk loop.
type walkState struct {
	analysis  *models.TreeAnalysis
	fileSizes map[string]int64
}

// Walk visits root and its subtree up to the depth bound and returns the
// analysis. It never fails outright: listing errors and depth truncation
// degrade the result and are counted, not raised.
func (w *Walker) Walk(ctx context.Context, root string) *models.TreeAnalysis {
	state := &walkState{
		analysis: &models.TreeAnalysis{
			Root:    root,
			Records: make(map[string]*models.DirectoryRecord),
		},
		fileSizes: make(map[string]int64),
	}

	worklist := []walkItem{{path: root, depth: 0}}
	for len(worklist) > 0 {
		if ctx.Err() != nil {
			log.Printf("Walk: canceled at %d directories visited: %v", state.analysis.DirsVisited, ctx.Err())
			break
		}

		item := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		entries, err := w.lister.ListDirectory(ctx, item.path)
		if err != nil {
			log.Printf("Walk: listing failed for %s: %v (treating as empty)", item.path, err)
			state.analysis.ListErrors++
			entries = nil
		}
		entries = dropIgnored(entries)

		record := ClassifyDirectory(item.path, item.depth, entries, w.set)
		state.analysis.Records[item.path] = &record
		state.analysis.DirsVisited++
		w.tallyVerdict(state.analysis, &record)

		for _, entry := range entries {
			if !entry.IsDir && w.set.IsVideo(entry.Name) {
				state.fileSizes[path.Join(item.path, entry.Name)] = entry.Size
			}
		}

		// A season folder's files are the season's episodes; nothing below
		// it changes that, so descent stops here.
		if _, isSeason := w.set.SeasonFolderNumber(path.Base(item.path)); isSeason && item.depth > 0 {
			continue
		}

		for _, sub := range record.Subdirs {
			if item.depth+1 > w.maxDepth {
				log.Printf("Walk: max depth %d exceeded at %s, truncating subtree", w.maxDepth, sub.Path)
				state.analysis.Truncated++
				continue
			}
			worklist = append(worklist, walkItem{path: sub.Path, depth: item.depth + 1})
		}
	}

	state.analysis.Candidates = w.emitCandidates(state)
	state.analysis.Verdict = treeVerdict(state.analysis)
	log.Printf("Walk: %s → %s (%d dirs, %d candidates, %d list errors, %d truncated)",
		root, state.analysis.Verdict, state.analysis.DirsVisited,
		len(state.analysis.Candidates), state.analysis.ListErrors, state.analysis.Truncated)
	return state.analysis
}

// dropIgnored copies rather than filters in place: the listing belongs to
// the collaborator and may be a shared fixture.
func dropIgnored(entries []models.RawEntry) []models.RawEntry {
	kept := make([]models.RawEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir && isIgnoredDir(e.Name) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// tallyVerdict counts a record toward the tree verdict. A movie_library
// owes its type to the folder-leans-movie bias alone unless it holds movie
// files directly; counting pure containers would drag every tree with a
// parent folder toward a movie verdict.
func (w *Walker) tallyVerdict(analysis *models.TreeAnalysis, record *models.DirectoryRecord) {
	switch record.Type {
	case models.DirTypeMovieCollection:
		analysis.MovieDirs++
	case models.DirTypeMovieLibrary:
		for _, f := range record.VideoFiles {
			if f.Kind == models.KindMovie {
				analysis.MovieDirs++
				return
			}
		}
	case models.DirTypeTVShow, models.DirTypeTVSeason:
		analysis.TVDirs++
	case models.DirTypeMixedContent:
		analysis.MixedDirs++
	case models.DirTypeUnknown:
		analysis.UnknownDirs++
	}
}

// ──────────────────── Tree Verdict ────────────────────

func treeVerdict(analysis *models.TreeAnalysis) models.TreeVerdict {
	switch {
	case analysis.MixedDirs > 0:
		return models.VerdictMixed
	case analysis.MovieDirs > 0 && analysis.TVDirs > 0:
		return models.VerdictCategorized
	case analysis.MovieDirs > 0:
		return models.VerdictMoviesOnly
	case analysis.TVDirs > 0:
		return models.VerdictTVOnly
	}
	for _, record := range analysis.Records {
		if len(record.VideoFiles) > 0 || len(record.Subdirs) > 0 {
			return models.VerdictUnstructured
		}
	}
	return models.VerdictEmpty
}

// ──────────────────── Candidate Emission ────────────────────

// emitCandidates produces catalog candidates per top-level directory, plus
// candidates for loose files sitting directly in the root.
func (w *Walker) emitCandidates(state *walkState) []models.Candidate {
	root := state.analysis.Records[state.analysis.Root]
	if root == nil {
		return nil
	}

	var candidates []models.Candidate
	for _, sub := range root.Subdirs {
		candidates = append(candidates, w.candidatesForDir(state, sub.Path, 0)...)
	}
	candidates = append(candidates, w.looseFileCandidates(state, root)...)
	return candidates
}

// candidatesForDir maps one classified directory to zero or more candidates.
// Container directories (role-tagged library roots) recurse per child, so a
// "Movies/" folder yields one candidate per movie inside it.
func (w *Walker) candidatesForDir(state *walkState, dirPath string, hops int) []models.Candidate {
	record := state.analysis.Records[dirPath]
	if record == nil {
		return nil
	}
	// Container nesting deeper than the walk's own depth bound never emits.
	if hops > w.maxDepth {
		return nil
	}

	switch record.Type {
	case models.DirTypeContentLibrary:
		var out []models.Candidate
		for _, sub := range record.Subdirs {
			out = append(out, w.candidatesForDir(state, sub.Path, hops+1)...)
		}
		return out

	case models.DirTypeMovieLibrary, models.DirTypeMovieCollection:
		// Each child folder stands alone; loose files at this level still
		// belong to the directory itself.
		var out []models.Candidate
		for _, sub := range record.Subdirs {
			out = append(out, w.candidatesForDir(state, sub.Path, hops+1)...)
		}
		out = append(out, w.movieCandidates(state, record)...)
		return out

	case models.DirTypeTVShow, models.DirTypeTVSeason:
		if c, ok := w.tvCandidate(state, record); ok {
			return []models.Candidate{c}
		}
		return nil

	case models.DirTypeMixedContent:
		// Movie-typed children surface on their own; tv-typed children are
		// already absorbed by this directory's tv candidate.
		var out []models.Candidate
		out = append(out, w.movieCandidates(state, record)...)
		for _, sub := range record.Subdirs {
			child := state.analysis.Records[sub.Path]
			if child == nil {
				continue
			}
			switch child.Type {
			case models.DirTypeMovieCollection, models.DirTypeMovieLibrary, models.DirTypeContentLibrary:
				out = append(out, w.candidatesForDir(state, sub.Path, hops+1)...)
			}
		}
		if c, ok := w.tvCandidate(state, record); ok {
			out = append(out, c)
		}
		return out

	default:
		// Loose presets promote any named folder to a movie candidate so
		// sparse trees still surface entries.
		if w.set.LooseFolders && record.Title != "" {
			return []models.Candidate{{
				Title:       record.Title,
				Path:        record.Path,
				MediaType:   models.MediaTypeMovie,
				Year:        extractYear(path.Base(record.Path)),
				SourcePaths: []string{record.Path},
			}}
		}
		return nil
	}
}

// movieCandidates groups a directory's movie-typed files by cleaned title,
// one candidate per distinct title. Files whose title cleans away entirely
// adopt the directory title.
func (w *Walker) movieCandidates(state *walkState, record *models.DirectoryRecord) []models.Candidate {
	groups := make(map[string]*models.Candidate)
	var order []string

	for _, meta := range record.VideoFiles {
		if meta.Kind != models.KindMovie {
			continue
		}
		title := meta.Title
		if title == "" {
			title = record.Title
		}
		if title == "" {
			continue
		}
		key := NormalizeTitleKey(title)
		c, ok := groups[key]
		if !ok {
			c = &models.Candidate{
				Title:       title,
				Path:        record.Path,
				MediaType:   models.MediaTypeMovie,
				Year:        meta.Year,
				Quality:     meta.Quality,
				SourcePaths: []string{record.Path},
			}
			if c.Year == nil {
				c.Year = extractYear(path.Base(record.Path))
			}
			groups[key] = c
			order = append(order, key)
		}
		filePath := path.Join(record.Path, meta.RawName)
		c.Files = append(c.Files, models.FileRef{
			Name: meta.RawName,
			Path: filePath,
			Size: state.fileSizes[filePath],
		})
	}

	out := make([]models.Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// tvCandidate folds a show directory's subtree into one tv candidate:
// season folders become fragments, direct episode files group by their own
// season number (season 1 when absent).
func (w *Walker) tvCandidate(state *walkState, record *models.DirectoryRecord) (models.Candidate, bool) {
	c := models.Candidate{
		Title:       record.Title,
		Path:        record.Path,
		MediaType:   models.MediaTypeTV,
		Year:        extractYear(path.Base(record.Path)),
		SourcePaths: []string{record.Path},
	}

	bySeason := make(map[int]*models.SeasonFragment)
	var seasonOrder []int
	fragment := func(n int) *models.SeasonFragment {
		f, ok := bySeason[n]
		if !ok {
			f = &models.SeasonFragment{SeasonNumber: n}
			bySeason[n] = f
			seasonOrder = append(seasonOrder, n)
		}
		return f
	}

	w.collectEpisodes(state, record, fragment, 0)

	if len(bySeason) == 0 {
		return models.Candidate{}, false
	}
	sort.Ints(seasonOrder)
	for _, n := range seasonOrder {
		f := bySeason[n]
		sort.SliceStable(f.Episodes, func(i, j int) bool {
			if f.Episodes[i].Episode != f.Episodes[j].Episode {
				return f.Episodes[i].Episode < f.Episodes[j].Episode
			}
			return f.Episodes[i].Name < f.Episodes[j].Name
		})
		c.Seasons = append(c.Seasons, *f)
	}
	return c, true
}

// collectEpisodes gathers episodes under a show directory. Season folders
// pin every video inside them to that season number; episode files outside
// season folders carry their own.
func (w *Walker) collectEpisodes(state *walkState, record *models.DirectoryRecord, fragment func(int) *models.SeasonFragment, hops int) {
	if hops > w.maxDepth {
		return
	}

	seasonHere, isSeasonDir := w.set.SeasonFolderNumber(path.Base(record.Path))
	for _, meta := range record.VideoFiles {
		var seasonNum int
		switch {
		case isSeasonDir:
			seasonNum = seasonHere
		case meta.Kind == models.KindEpisode && meta.Season != nil:
			seasonNum = *meta.Season
		case meta.Kind == models.KindEpisode:
			seasonNum = 1
		default:
			continue
		}
		episode := 0
		if meta.Episode != nil {
			episode = *meta.Episode
		}
		f := fragment(seasonNum)
		f.Episodes = append(f.Episodes, models.EpisodeRef{
			Episode: episode,
			Name:    meta.RawName,
			Path:    path.Join(record.Path, meta.RawName),
		})
	}

	for _, sub := range record.Subdirs {
		child := state.analysis.Records[sub.Path]
		if child == nil {
			continue
		}
		w.collectEpisodes(state, child, fragment, hops+1)
	}
}

// looseFileCandidates turns video files sitting directly in the root into
// candidates of their own: movies grouped by title, episodes gathered into
// per-title tv candidates.
func (w *Walker) looseFileCandidates(state *walkState, root *models.DirectoryRecord) []models.Candidate {
	var out []models.Candidate
	out = append(out, w.movieCandidates(state, root)...)

	groups := make(map[string]*models.Candidate)
	var order []string
	for _, meta := range root.VideoFiles {
		if meta.Kind != models.KindEpisode || meta.Title == "" {
			continue
		}
		key := NormalizeTitleKey(meta.Title)
		c, ok := groups[key]
		if !ok {
			c = &models.Candidate{
				Title:       meta.Title,
				Path:        root.Path,
				MediaType:   models.MediaTypeTV,
				Year:        meta.Year,
				Quality:     meta.Quality,
				SourcePaths: []string{root.Path},
			}
			groups[key] = c
			order = append(order, key)
		}
		seasonNum := 1
		if meta.Season != nil {
			seasonNum = *meta.Season
		}
		episode := 0
		if meta.Episode != nil {
			episode = *meta.Episode
		}
		idx := -1
		for i := range c.Seasons {
			if c.Seasons[i].SeasonNumber == seasonNum {
				idx = i
				break
			}
		}
		if idx < 0 {
			c.Seasons = append(c.Seasons, models.SeasonFragment{SeasonNumber: seasonNum})
			idx = len(c.Seasons) - 1
		}
		c.Seasons[idx].Episodes = append(c.Seasons[idx].Episodes, models.EpisodeRef{
			Episode: episode,
			Name:    meta.RawName,
			Path:    path.Join(root.Path, meta.RawName),
		})
	}

	for _, key := range order {
		c := groups[key]
		sort.SliceStable(c.Seasons, func(i, j int) bool {
			return c.Seasons[i].SeasonNumber < c.Seasons[j].SeasonNumber
		})
		for i := range c.Seasons {
			eps := c.Seasons[i].Episodes
			sort.SliceStable(eps, func(a, b int) bool {
				if eps[a].Episode != eps[b].Episode {
					return eps[a].Episode < eps[b].Episode
				}
				return eps[a].Name < eps[b].Name
			})
		}
		out = append(out, *c)
	}
	return out
}
