package catalog

import (
	"github.com/imHansiy/mediadex/internal/models"
)

// Entry is one catalog record. Exactly two shapes exist: MovieEntry
// carries files and never seasons, TVEntry carries seasons plus an
// episode tally and never bare files. The constructors are the only
// way either shape is built, so a record cannot drift to the wrong
// side after classification.
type Entry interface {
	EntryID() string
	EntryTitle() string
	EntryType() models.MediaType
}

// MovieEntry is the movie-shaped catalog record. Identity fields come
// from enrichment, presentation fields from the group's main version.
type MovieEntry struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	MediaType       models.MediaType `json:"media_type"`
	Year            *int             `json:"year,omitempty"`
	Overview        *string          `json:"overview,omitempty"`
	PosterURL       *string          `json:"poster_url,omitempty"`
	Rating          *float64         `json:"rating,omitempty"`
	Genres          []string         `json:"genres,omitempty"`
	Placeholder     bool             `json:"placeholder"`
	VersionName     string           `json:"version_name"`
	Quality         *string          `json:"quality,omitempty"`
	Path            string           `json:"path"`
	Files           []models.FileRef `json:"files"`
	Versions        []models.Version `json:"versions,omitempty"`
	IsAggregated    bool             `json:"is_aggregated"`
	AggregatedCount int              `json:"aggregated_count"`
	SourcePaths     []string         `json:"source_paths,omitempty"`
}

func (e *MovieEntry) EntryID() string             { return e.ID }
func (e *MovieEntry) EntryTitle() string          { return e.Title }
func (e *MovieEntry) EntryType() models.MediaType { return models.MediaTypeMovie }

// TVEntry is the series-shaped catalog record.
type TVEntry struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	MediaType       models.MediaType        `json:"media_type"`
	Year            *int                    `json:"year,omitempty"`
	Overview        *string                 `json:"overview,omitempty"`
	PosterURL       *string                 `json:"poster_url,omitempty"`
	Rating          *float64                `json:"rating,omitempty"`
	Genres          []string                `json:"genres,omitempty"`
	Placeholder     bool                    `json:"placeholder"`
	VersionName     string                  `json:"version_name"`
	Quality         *string                 `json:"quality,omitempty"`
	Path            string                  `json:"path"`
	Seasons         []models.SeasonFragment `json:"seasons"`
	EpisodeCount    int                     `json:"episode_count"`
	Versions        []models.Version        `json:"versions,omitempty"`
	IsAggregated    bool                    `json:"is_aggregated"`
	AggregatedCount int                     `json:"aggregated_count"`
	SourcePaths     []string                `json:"source_paths,omitempty"`
}

func (e *TVEntry) EntryID() string             { return e.ID }
func (e *TVEntry) EntryTitle() string          { return e.Title }
func (e *TVEntry) EntryType() models.MediaType { return models.MediaTypeTV }

// FromVersionGroup converts one merged group into the record shape its
// canonical media type dictates. Anything that is not tv becomes a
// movie record, matching the classifier's movie default for ambiguous
// content.
func FromVersionGroup(vg models.VersionGroup) Entry {
	if vg.MediaType == models.MediaTypeTV {
		return NewTVEntry(vg)
	}
	return NewMovieEntry(vg)
}

// NewMovieEntry hoists the group's main version onto a movie record.
func NewMovieEntry(vg models.VersionGroup) *MovieEntry {
	files := vg.MainVersion.Files
	if files == nil {
		files = []models.FileRef{}
	}
	return &MovieEntry{
		ID:              vg.CanonicalID,
		Title:           vg.Title,
		MediaType:       models.MediaTypeMovie,
		Year:            vg.Year,
		Overview:        vg.Overview,
		PosterURL:       vg.PosterURL,
		Rating:          vg.Rating,
		Genres:          vg.Genres,
		Placeholder:     vg.Placeholder,
		VersionName:     vg.MainVersion.VersionName,
		Quality:         vg.MainVersion.Quality,
		Path:            vg.MainVersion.Path,
		Files:           files,
		Versions:        vg.OtherVersions,
		IsAggregated:    vg.IsAggregated,
		AggregatedCount: vg.AggregatedCount,
		SourcePaths:     vg.SourcePaths,
	}
}

// NewTVEntry hoists the group's main version onto a series record and
// tallies its episodes.
func NewTVEntry(vg models.VersionGroup) *TVEntry {
	seasons := vg.MainVersion.Seasons
	if seasons == nil {
		seasons = []models.SeasonFragment{}
	}
	count := 0
	for _, s := range seasons {
		count += len(s.Episodes)
	}
	return &TVEntry{
		ID:              vg.CanonicalID,
		Title:           vg.Title,
		MediaType:       models.MediaTypeTV,
		Year:            vg.Year,
		Overview:        vg.Overview,
		PosterURL:       vg.PosterURL,
		Rating:          vg.Rating,
		Genres:          vg.Genres,
		Placeholder:     vg.Placeholder,
		VersionName:     vg.MainVersion.VersionName,
		Quality:         vg.MainVersion.Quality,
		Path:            vg.MainVersion.Path,
		Seasons:         seasons,
		EpisodeCount:    count,
		Versions:        vg.OtherVersions,
		IsAggregated:    vg.IsAggregated,
		AggregatedCount: vg.AggregatedCount,
		SourcePaths:     vg.SourcePaths,
	}
}
