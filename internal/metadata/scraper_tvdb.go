package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/imHansiy/mediadex/internal/models"
)

// TVDBScraper queries TheTVDB v4 API. The v4 API indexes series only, so
// movie searches return no matches rather than an error; the enricher's
// best-of-all merge then leans on the other sources.
type TVDBScraper struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	token string
}

func NewTVDBScraper(apiKey string) *TVDBScraper {
	return &TVDBScraper{
		apiKey:  apiKey,
		baseURL: "https://api4.thetvdb.com/v4",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TVDBScraper) Name() string { return "tvdb" }

// authenticate logs in and caches the bearer token. TheTVDB tokens last a
// month; rather than track expiry we drop the token on the first 401 and
// log in again.
func (s *TVDBScraper) authenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	body, _ := json.Marshal(map[string]string{"apikey": s.apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tvdb login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tvdb login status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("tvdb login decode: %w", err)
	}
	if result.Data.Token == "" {
		return "", fmt.Errorf("tvdb login returned no token")
	}
	s.token = result.Data.Token
	return s.token, nil
}

func (s *TVDBScraper) Search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("TheTVDB API key not configured")
	}
	if mediaType != models.MediaTypeTV {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "series")
	if year != nil && *year > 0 {
		params.Set("year", fmt.Sprintf("%d", *year))
	}

	var result struct {
		Data []struct {
			TVDBID   string `json:"tvdb_id"`
			ObjectID string `json:"objectID"`
			Name     string `json:"name"`
			Overview string `json:"overview"`
			ImageURL string `json:"image_url"`
			Year     string `json:"year"`
		} `json:"data"`
	}
	if err := s.get(ctx, "/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	var matches []*models.MetadataMatch
	for _, r := range result.Data {
		externalID := r.TVDBID
		if externalID == "" {
			externalID = r.ObjectID
		}
		var yr *int
		if len(r.Year) == 4 {
			y := 0
			fmt.Sscanf(r.Year, "%d", &y)
			if y > 0 {
				yr = &y
			}
		}
		var overview *string
		if r.Overview != "" {
			overview = &r.Overview
		}
		var posterURL *string
		if r.ImageURL != "" {
			posterURL = &r.ImageURL
		}

		matches = append(matches, &models.MetadataMatch{
			Source:      "tvdb",
			ExternalID:  externalID,
			MediaType:   models.MediaTypeTV,
			Title:       r.Name,
			Year:        yr,
			Description: overview,
			PosterURL:   posterURL,
			Confidence:  titleSimilarity(query, r.Name),
		})
	}
	return matches, nil
}

func (s *TVDBScraper) GetDetails(ctx context.Context, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("TheTVDB API key not configured")
	}
	if mediaType != models.MediaTypeTV {
		return nil, fmt.Errorf("tvdb indexes series only")
	}

	var result struct {
		Data struct {
			Name     string `json:"name"`
			Overview string `json:"overview"`
			Image    string `json:"image"`
			Year     string `json:"year"`
			Genres   []struct {
				Name string `json:"name"`
			} `json:"genres"`
		} `json:"data"`
	}
	if err := s.get(ctx, "/series/"+url.PathEscape(externalID)+"/extended", &result); err != nil {
		return nil, err
	}

	var yr *int
	if len(result.Data.Year) == 4 {
		y := 0
		fmt.Sscanf(result.Data.Year, "%d", &y)
		if y > 0 {
			yr = &y
		}
	}
	var overview *string
	if result.Data.Overview != "" {
		overview = &result.Data.Overview
	}
	var posterURL *string
	if result.Data.Image != "" {
		posterURL = &result.Data.Image
	}
	var genres []string
	for _, g := range result.Data.Genres {
		genres = append(genres, g.Name)
	}

	return &models.MetadataMatch{
		Source:      "tvdb",
		ExternalID:  externalID,
		MediaType:   models.MediaTypeTV,
		Title:       result.Data.Name,
		Year:        yr,
		Description: overview,
		PosterURL:   posterURL,
		Genres:      genres,
		Confidence:  1.0,
	}, nil
}

// get performs an authenticated request. A 401 on the first attempt means
// the cached token expired, so it is dropped and the request retried once
// with a fresh login.
func (s *TVDBScraper) get(ctx context.Context, endpoint string, dst interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.authenticate(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("tvdb request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("tvdb status %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(dst)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("tvdb decode: %w", err)
		}
		return nil
	}
	return fmt.Errorf("tvdb: unauthorized after token refresh")
}
