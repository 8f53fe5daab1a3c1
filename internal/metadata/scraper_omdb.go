package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/imHansiy/mediadex/internal/models"
)

// OMDBScraper queries the OMDb API. Search results are thin (title, year,
// poster only); GetDetails fills plot, genres and the IMDB rating.
type OMDBScraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOMDBScraper builds the OMDb source. The free tier allows 1000
// requests a day, so the limiter is deliberately slow.
func NewOMDBScraper(apiKey string) *OMDBScraper {
	return &OMDBScraper{
		apiKey:  apiKey,
		baseURL: "https://www.omdbapi.com/",
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (s *OMDBScraper) Name() string { return "omdb" }

func (s *OMDBScraper) Search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("OMDb API key not configured")
	}

	params := url.Values{}
	params.Set("apikey", s.apiKey)
	params.Set("s", query)
	params.Set("type", omdbType(mediaType))
	if year != nil && *year > 0 {
		params.Set("y", fmt.Sprintf("%d", *year))
	}

	var result struct {
		Response string `json:"Response"`
		Error    string `json:"Error"`
		Search   []struct {
			Title  string `json:"Title"`
			Year   string `json:"Year"`
			IMDBID string `json:"imdbID"`
			Poster string `json:"Poster"`
		} `json:"Search"`
	}
	if err := s.get(ctx, params, &result); err != nil {
		return nil, err
	}
	if result.Response == "False" {
		// "Movie not found!" is a miss, not a failure
		if strings.Contains(result.Error, "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("omdb: %s", result.Error)
	}

	var matches []*models.MetadataMatch
	for _, r := range result.Search {
		// Series report spans like "2011-2013"; the first year is the one
		// filename parsing would have produced.
		var yr *int
		if len(r.Year) >= 4 {
			y := 0
			fmt.Sscanf(r.Year[:4], "%d", &y)
			if y > 0 {
				yr = &y
			}
		}
		var posterURL *string
		if r.Poster != "" && r.Poster != "N/A" {
			p := r.Poster
			posterURL = &p
		}

		matches = append(matches, &models.MetadataMatch{
			Source:     "omdb",
			ExternalID: r.IMDBID,
			MediaType:  mediaType,
			Title:      r.Title,
			Year:       yr,
			PosterURL:  posterURL,
			Confidence: titleSimilarity(query, r.Title),
		})
	}
	return matches, nil
}

func (s *OMDBScraper) GetDetails(ctx context.Context, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("OMDb API key not configured")
	}

	params := url.Values{}
	params.Set("apikey", s.apiKey)
	params.Set("i", externalID)
	params.Set("plot", "short")

	var r struct {
		Response   string `json:"Response"`
		Error      string `json:"Error"`
		Title      string `json:"Title"`
		Year       string `json:"Year"`
		Genre      string `json:"Genre"`
		Plot       string `json:"Plot"`
		Poster     string `json:"Poster"`
		IMDBRating string `json:"imdbRating"`
		IMDBID     string `json:"imdbID"`
	}
	if err := s.get(ctx, params, &r); err != nil {
		return nil, err
	}
	if r.Response == "False" {
		return nil, fmt.Errorf("omdb: %s", r.Error)
	}

	var yr *int
	if len(r.Year) >= 4 {
		y := 0
		fmt.Sscanf(r.Year[:4], "%d", &y)
		if y > 0 {
			yr = &y
		}
	}
	var plot *string
	if r.Plot != "" && r.Plot != "N/A" {
		plot = &r.Plot
	}
	var posterURL *string
	if r.Poster != "" && r.Poster != "N/A" {
		posterURL = &r.Poster
	}
	var rating *float64
	if r.IMDBRating != "" && r.IMDBRating != "N/A" {
		f := 0.0
		fmt.Sscanf(r.IMDBRating, "%f", &f)
		rating = &f
	}
	var genres []string
	if r.Genre != "" && r.Genre != "N/A" {
		for _, g := range strings.Split(r.Genre, ",") {
			genres = append(genres, strings.TrimSpace(g))
		}
	}

	return &models.MetadataMatch{
		Source:      "omdb",
		ExternalID:  r.IMDBID,
		MediaType:   mediaType,
		Title:       r.Title,
		Year:        yr,
		Description: plot,
		PosterURL:   posterURL,
		Rating:      rating,
		Genres:      genres,
		Confidence:  1.0,
	}, nil
}

func omdbType(mediaType models.MediaType) string {
	if mediaType == models.MediaTypeTV {
		return "series"
	}
	return "movie"
}

func (s *OMDBScraper) get(ctx context.Context, params url.Values, dst interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("omdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("omdb status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
