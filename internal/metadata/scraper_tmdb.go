package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/imHansiy/mediadex/internal/models"
)

type TMDBScraper struct {
	apiKey   string
	language string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewTMDBScraper builds the TMDB source. The limiter stays under TMDB's
// documented 40-requests-per-10-seconds ceiling.
func NewTMDBScraper(apiKey, language string) *TMDBScraper {
	return &TMDBScraper{
		apiKey:   apiKey,
		language: language,
		baseURL:  "https://api.themoviedb.org/3",
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(4), 4),
	}
}

func (s *TMDBScraper) Name() string { return "tmdb" }

// tmdbGenreMap maps TMDB genre IDs to human-readable names.
var tmdbGenreMap = map[int]string{
	28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
	99: "Documentary", 18: "Drama", 10751: "Family", 14: "Fantasy", 36: "History",
	27: "Horror", 10402: "Music", 9648: "Mystery", 10749: "Romance",
	878: "Science Fiction", 10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	// TV-specific
	10759: "Action & Adventure", 10762: "Kids", 10763: "News", 10764: "Reality",
	10765: "Sci-Fi & Fantasy", 10766: "Soap", 10767: "Talk", 10768: "War & Politics",
}

type tmdbSearchResult struct {
	Results []struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		Name          string  `json:"name"`
		OriginalTitle string  `json:"original_title"`
		OriginalName  string  `json:"original_name"`
		Overview      string  `json:"overview"`
		PosterPath    string  `json:"poster_path"`
		ReleaseDate   string  `json:"release_date"`
		FirstAirDate  string  `json:"first_air_date"`
		VoteAverage   float64 `json:"vote_average"`
		GenreIDs      []int   `json:"genre_ids"`
	} `json:"results"`
}

func (s *TMDBScraper) Search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	matches, err := s.search(ctx, query, mediaType, year)
	if err != nil {
		return nil, err
	}

	// Fallback: if year was provided but no results, retry without year
	if len(matches) == 0 && year != nil && *year > 0 {
		matches, err = s.search(ctx, query, mediaType, nil)
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (s *TMDBScraper) search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	searchType := "movie"
	if mediaType == models.MediaTypeTV {
		searchType = "tv"
	}

	reqURL := fmt.Sprintf("%s/search/%s?api_key=%s&query=%s",
		s.baseURL, searchType, s.apiKey, url.QueryEscape(query))
	if s.language != "" {
		reqURL += "&language=" + url.QueryEscape(s.language)
	}
	if year != nil && *year > 0 {
		if searchType == "tv" {
			reqURL += fmt.Sprintf("&first_air_date_year=%d", *year)
		} else {
			reqURL += fmt.Sprintf("&year=%d", *year)
		}
	}

	var result tmdbSearchResult
	if err := s.get(ctx, reqURL, &result); err != nil {
		return nil, err
	}

	resultType := models.MediaTypeMovie
	if searchType == "tv" {
		resultType = models.MediaTypeTV
	}

	var matches []*models.MetadataMatch
	for i, r := range result.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		origTitle := r.OriginalTitle
		if origTitle == "" {
			origTitle = r.OriginalName
		}
		dateStr := r.ReleaseDate
		if dateStr == "" {
			dateStr = r.FirstAirDate
		}
		var resultYear *int
		if len(dateStr) >= 4 {
			y := 0
			fmt.Sscanf(dateStr[:4], "%d", &y)
			resultYear = &y
		}
		overview := r.Overview
		var posterURL *string
		if r.PosterPath != "" {
			p := "https://image.tmdb.org/t/p/w500" + r.PosterPath
			posterURL = &p
		}
		rating := r.VoteAverage
		var genres []string
		for _, gid := range r.GenreIDs {
			if name, ok := tmdbGenreMap[gid]; ok {
				genres = append(genres, name)
			}
		}

		conf := titleSimilarity(query, title)
		var origPtr *string
		if origTitle != "" && origTitle != title {
			origPtr = &origTitle
			if origConf := titleSimilarity(query, origTitle); origConf > conf {
				conf = origConf
			}
		}

		// TMDB returns results in relevance order; small boost for top positions
		if i < 3 {
			conf += 0.05 * float64(3-i) / 3.0
			if conf > 1.0 {
				conf = 1.0
			}
		}

		matches = append(matches, &models.MetadataMatch{
			Source:        "tmdb",
			ExternalID:    fmt.Sprintf("%d", r.ID),
			MediaType:     resultType,
			Title:         title,
			OriginalTitle: origPtr,
			Year:          resultYear,
			Description:   &overview,
			PosterURL:     posterURL,
			Rating:        &rating,
			Genres:        genres,
			Confidence:    conf,
		})
	}
	return matches, nil
}

func (s *TMDBScraper) GetDetails(ctx context.Context, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("TMDB API key not configured")
	}

	detailType := "movie"
	if mediaType == models.MediaTypeTV {
		detailType = "tv"
	}
	reqURL := fmt.Sprintf("%s/%s/%s?api_key=%s", s.baseURL, detailType, externalID, s.apiKey)
	if s.language != "" {
		reqURL += "&language=" + url.QueryEscape(s.language)
	}

	var r struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		Name          string  `json:"name"`
		OriginalTitle string  `json:"original_title"`
		OriginalName  string  `json:"original_name"`
		Overview      string  `json:"overview"`
		PosterPath    string  `json:"poster_path"`
		ReleaseDate   string  `json:"release_date"`
		FirstAirDate  string  `json:"first_air_date"`
		VoteAverage   float64 `json:"vote_average"`
		Genres        []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := s.get(ctx, reqURL, &r); err != nil {
		return nil, err
	}

	title := r.Title
	if title == "" {
		title = r.Name
	}
	origTitle := r.OriginalTitle
	if origTitle == "" {
		origTitle = r.OriginalName
	}
	var origPtr *string
	if origTitle != "" && origTitle != title {
		origPtr = &origTitle
	}
	dateStr := r.ReleaseDate
	if dateStr == "" {
		dateStr = r.FirstAirDate
	}
	var year *int
	if len(dateStr) >= 4 {
		y := 0
		fmt.Sscanf(dateStr[:4], "%d", &y)
		year = &y
	}
	overview := r.Overview
	var posterURL *string
	if r.PosterPath != "" {
		p := "https://image.tmdb.org/t/p/w500" + r.PosterPath
		posterURL = &p
	}
	rating := r.VoteAverage
	var genres []string
	for _, g := range r.Genres {
		genres = append(genres, g.Name)
	}

	return &models.MetadataMatch{
		Source:        "tmdb",
		ExternalID:    fmt.Sprintf("%d", r.ID),
		MediaType:     mediaType,
		Title:         title,
		OriginalTitle: origPtr,
		Year:          year,
		Description:   &overview,
		PosterURL:     posterURL,
		Rating:        &rating,
		Genres:        genres,
		Confidence:    1.0,
	}, nil
}

// get runs one rate-limited GET, retrying 429s with exponential backoff.
func (s *TMDBScraper) get(ctx context.Context, reqURL string, dst interface{}) error {
	var resp *http.Response
	for attempt := 0; attempt < 3; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err = s.client.Do(req)
		if err != nil {
			return fmt.Errorf("tmdb request: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		time.Sleep(time.Duration(2<<uint(attempt)) * time.Second)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("tmdb rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
