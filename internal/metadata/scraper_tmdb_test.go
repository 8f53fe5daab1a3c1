package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imHansiy/mediadex/internal/models"
)

func testTMDB(srv *httptest.Server, language string) *TMDBScraper {
	s := NewTMDBScraper("test-key", language)
	s.baseURL = srv.URL
	return s
}

func intPtr(n int) *int { return &n }

func TestTMDBSearchMapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("path = %s, want /search/movie", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "test-key" || q.Get("query") != "Avatar" {
			t.Errorf("query params = %v", q)
		}
		if q.Get("language") != "zh-CN" {
			t.Errorf("language = %q, want zh-CN", q.Get("language"))
		}
		if q.Get("year") != "2009" {
			t.Errorf("year = %q, want 2009", q.Get("year"))
		}
		fmt.Fprint(w, `{"results":[
			{"id":19995,"title":"Avatar","original_title":"Avatar","overview":"Pandora.","poster_path":"/kyeqWdyUXW608qlYkRqosgbbJyK.jpg","release_date":"2009-12-15","vote_average":7.6,"genre_ids":[878,12]},
			{"id":76600,"title":"Avatar: The Way of Water","release_date":"2022-12-14","vote_average":7.7,"genre_ids":[878]}
		]}`)
	}))
	defer srv.Close()

	s := testTMDB(srv, "zh-CN")
	matches, err := s.Search(context.Background(), "Avatar", models.MediaTypeMovie, intPtr(2009))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}

	m := matches[0]
	if m.Source != "tmdb" || m.ExternalID != "19995" {
		t.Errorf("identity = %s/%s", m.Source, m.ExternalID)
	}
	if m.MediaType != models.MediaTypeMovie {
		t.Errorf("MediaType = %s", m.MediaType)
	}
	if m.Title != "Avatar" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.OriginalTitle != nil {
		t.Errorf("OriginalTitle = %v, want nil when identical", *m.OriginalTitle)
	}
	if m.Year == nil || *m.Year != 2009 {
		t.Errorf("Year = %v", m.Year)
	}
	if m.PosterURL == nil || *m.PosterURL != "https://image.tmdb.org/t/p/w500/kyeqWdyUXW608qlYkRqosgbbJyK.jpg" {
		t.Errorf("PosterURL = %v", m.PosterURL)
	}
	if m.Rating == nil || *m.Rating != 7.6 {
		t.Errorf("Rating = %v", m.Rating)
	}
	if len(m.Genres) != 2 || m.Genres[0] != "Science Fiction" || m.Genres[1] != "Adventure" {
		t.Errorf("Genres = %v", m.Genres)
	}
	if m.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for an exact title", m.Confidence)
	}
	if matches[1].Confidence >= m.Confidence {
		t.Errorf("longer title scored %v, should trail the exact match", matches[1].Confidence)
	}
}

func TestTMDBSearchScoresOriginalTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("path = %s, want /search/tv", r.URL.Path)
		}
		fmt.Fprint(w, `{"results":[
			{"id":1396,"name":"Game of Thrones","original_name":"权力的游戏","first_air_date":"2011-04-17","vote_average":8.4}
		]}`)
	}))
	defer srv.Close()

	s := testTMDB(srv, "")
	matches, err := s.Search(context.Background(), "权力的游戏", models.MediaTypeTV, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.MediaType != models.MediaTypeTV {
		t.Errorf("MediaType = %s", m.MediaType)
	}
	if m.OriginalTitle == nil || *m.OriginalTitle != "权力的游戏" {
		t.Errorf("OriginalTitle = %v", m.OriginalTitle)
	}
	if m.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 via the original title", m.Confidence)
	}
	if m.Year == nil || *m.Year != 2011 {
		t.Errorf("Year = %v", m.Year)
	}
}

func TestTMDBSearchRetriesWithoutYear(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			if r.URL.Query().Get("year") != "1994" {
				t.Errorf("first call year = %q, want 1994", r.URL.Query().Get("year"))
			}
			fmt.Fprint(w, `{"results":[]}`)
			return
		}
		if r.URL.Query().Get("year") != "" {
			t.Errorf("retry still carries year = %q", r.URL.Query().Get("year"))
		}
		fmt.Fprint(w, `{"results":[{"id":278,"title":"The Shawshank Redemption","release_date":"1994-09-23","vote_average":8.7}]}`)
	}))
	defer srv.Close()

	s := testTMDB(srv, "")
	matches, err := s.Search(context.Background(), "The Shawshank Redemption", models.MediaTypeMovie, intPtr(1994))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want year retry", calls)
	}
	if len(matches) != 1 || matches[0].ExternalID != "278" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestTMDBSearchRequiresKey(t *testing.T) {
	s := NewTMDBScraper("", "")
	if _, err := s.Search(context.Background(), "Avatar", models.MediaTypeMovie, nil); err == nil {
		t.Fatal("Search() without key should fail")
	}
}

func TestTMDBGetDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603":
			fmt.Fprint(w, `{"id":603,"title":"The Matrix","original_title":"The Matrix","overview":"Neo.","poster_path":"/p.jpg","release_date":"1999-03-30","vote_average":8.2,"genres":[{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}]}`)
		case "/tv/1396":
			fmt.Fprint(w, `{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","vote_average":8.9,"genres":[{"id":18,"name":"Drama"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testTMDB(srv, "")

	movie, err := s.GetDetails(context.Background(), "603", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("GetDetails(movie) error = %v", err)
	}
	if movie.Title != "The Matrix" || movie.MediaType != models.MediaTypeMovie {
		t.Errorf("movie = %+v", movie)
	}
	if movie.Year == nil || *movie.Year != 1999 {
		t.Errorf("movie.Year = %v", movie.Year)
	}
	if len(movie.Genres) != 2 || movie.Genres[1] != "Science Fiction" {
		t.Errorf("movie.Genres = %v", movie.Genres)
	}
	if movie.Confidence != 1.0 {
		t.Errorf("movie.Confidence = %v", movie.Confidence)
	}

	show, err := s.GetDetails(context.Background(), "1396", models.MediaTypeTV)
	if err != nil {
		t.Fatalf("GetDetails(tv) error = %v", err)
	}
	if show.Title != "Breaking Bad" || show.MediaType != models.MediaTypeTV {
		t.Errorf("show = %+v", show)
	}
	if show.Year == nil || *show.Year != 2008 {
		t.Errorf("show.Year = %v", show.Year)
	}
}

func TestTMDBGetSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := testTMDB(srv, "")
	if _, err := s.GetDetails(context.Background(), "999999", models.MediaTypeMovie); err == nil {
		t.Fatal("GetDetails() on 404 should fail")
	}
}
