package scanner

import (
	"log"
	"path"
	"strings"

	"github.com/imHansiy/mediadex/internal/models"
)

// ──────────────────── Directory Classification ────────────────────

// ClassifyDirectory decides a directory's media type from its immediate
// children. Pure function of its inputs: it performs no I/O and never fails.
//
// Tallies: episode-typed files and season-marker subdirs count toward tv,
// movie-typed files and all other subdirs toward movie. The unknown-folder
// default leans movie, a documented heuristic bias. Season subdirs are
// folder-level structural evidence and outweigh filename tallies; files
// carrying both season and episode numbers break ties toward tv but cannot
// override a strict movie majority on their own.
func ClassifyDirectory(dirPath string, depth int, entries []models.RawEntry, set *PatternSet) models.DirectoryRecord {
	record := models.DirectoryRecord{
		Path:  dirPath,
		Depth: depth,
		Title: SeriesNameFromPath(dirPath, set),
	}

	var movieFiles, episodeFiles, seasonEpisodeFiles int
	var movieDirs, roleDirs int

	for _, entry := range entries {
		if entry.IsDir {
			role := set.DirectoryRole(entry.Name)
			record.Subdirs = append(record.Subdirs, models.SubdirRef{
				Name: entry.Name,
				Path: path.Join(dirPath, entry.Name),
				Role: role,
			})
			switch role {
			case models.RoleDirSeasons:
				record.SeasonDirs++
			case "":
				movieDirs++
			default:
				roleDirs++
				movieDirs++
			}
			continue
		}

		if !set.IsVideo(entry.Name) {
			continue
		}
		meta := ParseFilename(entry.Name, set)
		record.VideoFiles = append(record.VideoFiles, meta)
		switch meta.Kind {
		case models.KindEpisode:
			episodeFiles++
			if meta.Season != nil && meta.Episode != nil {
				seasonEpisodeFiles++
			}
		case models.KindMovie:
			movieFiles++
		}
	}

	record.MovieTally = movieFiles + movieDirs
	record.TVTally = episodeFiles + record.SeasonDirs
	record.Type = directoryVerdict(&record, movieFiles, movieDirs, roleDirs, seasonEpisodeFiles)
	return record
}

func directoryVerdict(record *models.DirectoryRecord, movieFiles, movieDirs, roleDirs, seasonEpisodeFiles int) models.DirType {
	// A pure container of role-tagged folders (Movies/, TV Shows/, 电影/)
	// is a library root, not media itself.
	if len(record.VideoFiles) == 0 && record.SeasonDirs == 0 && roleDirs > 0 {
		return models.DirTypeContentLibrary
	}

	// Season subdirs mark a show root regardless of loose-file noise.
	if record.SeasonDirs > 0 {
		return models.DirTypeTVShow
	}

	switch {
	case record.MovieTally > record.TVTally:
		if movieDirs > movieFiles {
			return models.DirTypeMovieLibrary
		}
		return models.DirTypeMovieCollection
	case record.TVTally > record.MovieTally:
		return models.DirTypeTVSeason
	case record.MovieTally == 0:
		return models.DirTypeUnknown
	}

	// Equal nonzero tallies: season+episode-bearing files settle the tie.
	if seasonEpisodeFiles > 0 {
		log.Printf("Classify: tie at %s (%d=%d) resolved tv by season+episode files",
			record.Path, record.MovieTally, record.TVTally)
		return models.DirTypeTVSeason
	}
	log.Printf("Classify: tie at %s (%d=%d), marking mixed content",
		record.Path, record.MovieTally, record.TVTally)
	return models.DirTypeMixedContent
}

// ──────────────────── Series Name From Path ────────────────────

// SeriesNameFromPath returns the cleaned title of the nearest path segment
// that is not a season marker. "Shows/Breaking Bad/Season 01" names the
// show, not the season.
func SeriesNameFromPath(p string, set *PatternSet) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" {
			continue
		}
		if _, ok := set.SeasonFolderNumber(seg); ok {
			continue
		}
		return CleanTitle(seg)
	}
	return ""
}
