package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// MediaType is the candidate/catalog level classification.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeMixed MediaType = "mixed"
)

// MediaKind is the per-file classification produced by the filename parser.
type MediaKind string

const (
	KindMovie   MediaKind = "movie"
	KindEpisode MediaKind = "episode"
	KindUnknown MediaKind = "unknown"
)

// DirType is the per-directory verdict.
type DirType string

const (
	DirTypeMovieCollection DirType = "movie_collection"
	DirTypeMovieLibrary    DirType = "movie_library"
	DirTypeTVSeason        DirType = "tv_season"
	DirTypeTVShow          DirType = "tv_show"
	DirTypeMixedContent    DirType = "mixed_content"
	DirTypeContentLibrary  DirType = "content_library"
	DirTypeUnknown         DirType = "unknown"
)

// IsMovie reports whether the directory verdict is one of the movie types.
func (t DirType) IsMovie() bool {
	return t == DirTypeMovieCollection || t == DirTypeMovieLibrary
}

// IsTV reports whether the directory verdict is one of the tv types.
func (t DirType) IsTV() bool {
	return t == DirTypeTVSeason || t == DirTypeTVShow
}

// TreeVerdict is the whole-tree structure verdict.
type TreeVerdict string

const (
	VerdictMoviesOnly   TreeVerdict = "movies_only"
	VerdictTVOnly       TreeVerdict = "tv_only"
	VerdictCategorized  TreeVerdict = "categorized"
	VerdictMixed        TreeVerdict = "mixed"
	VerdictUnstructured TreeVerdict = "unstructured"
	VerdictEmpty        TreeVerdict = "empty"
)

// Special-directory roles assigned by folder-name pattern matching.
const (
	RoleDirSeasons       = "seasons"
	RoleDirMovies        = "movies"
	RoleDirTVShows       = "tvShows"
	RoleDirDocumentaries = "documentaries"
	RoleDirAnime         = "anime"
	RoleDirContent       = "content"
)

// ──────────────────── Listing & Parsing ────────────────────

// RawEntry is one item returned by the remote listing service.
type RawEntry struct {
	Name      string `json:"name"`
	IsDir     bool   `json:"is_dir"`
	Signature string `json:"signature,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// FileMetadata is the filename parser output for a single entry name.
// Season and Episode stay nil unless a pattern matched within sane bounds.
type FileMetadata struct {
	RawName string    `json:"raw_name"`
	Kind    MediaKind `json:"kind"`
	Title   string    `json:"title"`
	Season  *int      `json:"season,omitempty"`
	Episode *int      `json:"episode,omitempty"`
	Year    *int      `json:"year,omitempty"`
	Quality *string   `json:"quality,omitempty"`
}

// ──────────────────── Directory Records ────────────────────

type SubdirRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Role string `json:"role,omitempty"`
}

// DirectoryRecord is one analyzed directory. Immutable once classification
// completes.
type DirectoryRecord struct {
	Path       string         `json:"path"`
	Depth      int            `json:"depth"`
	Type       DirType        `json:"type"`
	Title      string         `json:"title"`
	VideoFiles []FileMetadata `json:"video_files,omitempty"`
	Subdirs    []SubdirRef    `json:"subdirectories,omitempty"`
	SeasonDirs int            `json:"season_dirs"`
	MovieTally int            `json:"movie_tally"`
	TVTally    int            `json:"tv_tally"`
}

// ──────────────────── Candidates ────────────────────

type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

type EpisodeRef struct {
	Episode int    `json:"episode"`
	Name    string `json:"name"`
	Path    string `json:"path"`
}

type SeasonFragment struct {
	SeasonNumber int          `json:"season_number"`
	Episodes     []EpisodeRef `json:"episodes"`
}

// Candidate is a classified, not-yet-enriched catalog entry. Movie
// candidates carry Files; tv candidates carry Seasons.
type Candidate struct {
	Title       string           `json:"title"`
	Path        string           `json:"path"`
	MediaType   MediaType        `json:"media_type"`
	Year        *int             `json:"year,omitempty"`
	Quality     *string          `json:"quality,omitempty"`
	Files       []FileRef        `json:"files,omitempty"`
	Seasons     []SeasonFragment `json:"seasons,omitempty"`
	SourcePaths []string         `json:"source_paths,omitempty"`
}

// EpisodeCount sums episodes across all season fragments.
func (c *Candidate) EpisodeCount() int {
	n := 0
	for _, s := range c.Seasons {
		n += len(s.Episodes)
	}
	return n
}

// AggregatedSeries is the pass-A merge result for one normalized series
// name. Seasons are sorted ascending by SeasonNumber; fragments sharing a
// SeasonNumber across source paths are kept as discovered.
type AggregatedSeries struct {
	Title       string           `json:"title"`
	Seasons     []SeasonFragment `json:"seasons"`
	SourcePaths []string         `json:"source_paths"`
}

// ──────────────────── Enrichment ────────────────────

// MetadataMatch is one scraper result.
type MetadataMatch struct {
	Source        string    `json:"source"`
	ExternalID    string    `json:"external_id"`
	MediaType     MediaType `json:"media_type"`
	Title         string    `json:"title"`
	OriginalTitle *string   `json:"original_title,omitempty"`
	Year          *int      `json:"year,omitempty"`
	Description   *string   `json:"description,omitempty"`
	PosterURL     *string   `json:"poster_url,omitempty"`
	Rating        *float64  `json:"rating,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Confidence    float64   `json:"confidence"`
}

// EnrichedCandidate is a candidate plus the canonical identity assigned by
// the enrichment lookup. Placeholder candidates carry a synthetic
// `local_<uuid>` id and empty enrichment fields.
type EnrichedCandidate struct {
	Candidate

	CanonicalID    string    `json:"canonical_id"`
	CanonicalTitle string    `json:"canonical_title"`
	CanonicalType  MediaType `json:"canonical_type"`
	CanonicalYear  *int      `json:"canonical_year,omitempty"`
	Overview       *string   `json:"overview,omitempty"`
	PosterURL      *string   `json:"poster_url,omitempty"`
	Rating         *float64  `json:"rating,omitempty"`
	Genres         []string  `json:"genres,omitempty"`
	Placeholder    bool      `json:"placeholder"`
}

// ──────────────────── Version Groups ────────────────────

// Version is one member of a version group.
type Version struct {
	ID          string           `json:"id"`
	VersionName string           `json:"version_name"`
	IsMain      bool             `json:"is_main"`
	MediaType   MediaType        `json:"media_type"`
	Path        string           `json:"path"`
	Quality     *string          `json:"quality,omitempty"`
	Files       []FileRef        `json:"files,omitempty"`
	Seasons     []SeasonFragment `json:"seasons,omitempty"`
}

// VersionGroup is the pass-B merge result: enriched candidates resolving to
// the same normalized (title, media type), with exactly one main version.
type VersionGroup struct {
	CanonicalID     string    `json:"canonical_id"`
	Title           string    `json:"title"`
	MediaType       MediaType `json:"media_type"`
	Year            *int      `json:"year,omitempty"`
	Overview        *string   `json:"overview,omitempty"`
	PosterURL       *string   `json:"poster_url,omitempty"`
	Rating          *float64  `json:"rating,omitempty"`
	Genres          []string  `json:"genres,omitempty"`
	Placeholder     bool      `json:"placeholder"`
	MainVersion     Version   `json:"main_version"`
	OtherVersions   []Version `json:"other_versions,omitempty"`
	IsAggregated    bool      `json:"is_aggregated"`
	AggregatedCount int       `json:"aggregated_count"`
	SourcePaths     []string  `json:"source_paths,omitempty"`
}

// ──────────────────── Tree Analysis ────────────────────

// TreeAnalysis is the walker output for one root: the per-path record map,
// the emitted candidates, and running tallies for the tree verdict.
type TreeAnalysis struct {
	Root        string                      `json:"root"`
	Verdict     TreeVerdict                 `json:"verdict"`
	Records     map[string]*DirectoryRecord `json:"records,omitempty"`
	Candidates  []Candidate                 `json:"candidates"`
	DirsVisited int                         `json:"dirs_visited"`
	MovieDirs   int                         `json:"movie_dirs"`
	TVDirs      int                         `json:"tv_dirs"`
	MixedDirs   int                         `json:"mixed_dirs"`
	UnknownDirs int                         `json:"unknown_dirs"`
	Truncated   int                         `json:"truncated"`
	ListErrors  int                         `json:"list_errors"`
}

// ──────────────────── Scan Runs ────────────────────

type ScanStatus string

const (
	ScanRunning  ScanStatus = "running"
	ScanComplete ScanStatus = "complete"
	ScanFailed   ScanStatus = "failed"
)

type ScanRun struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	Status          ScanStatus             `json:"status" db:"status"`
	Preset          string                 `json:"preset" db:"preset"`
	Roots           []string               `json:"roots" db:"roots"`
	Verdicts        map[string]TreeVerdict `json:"verdicts,omitempty" db:"verdicts"`
	DirsVisited     int                    `json:"dirs_visited" db:"dirs_visited"`
	CandidatesFound int                    `json:"candidates_found" db:"candidates_found"`
	MoviesTotal     int                    `json:"movies_total" db:"movies_total"`
	TVTotal         int                    `json:"tv_total" db:"tv_total"`
	Placeholders    int                    `json:"placeholders" db:"placeholders"`
	Error           *string                `json:"error,omitempty" db:"error"`
	StartedAt       time.Time              `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time             `json:"finished_at,omitempty" db:"finished_at"`
}

// ──────────────────── Users & Sessions ────────────────────

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Session struct {
	Token     string    `json:"-" db:"token"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	ExpiresAt int64     `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
