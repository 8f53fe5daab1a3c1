package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/imHansiy/mediadex/internal/models"
)

// DoubanScraper scrapes douban.com subject search results. Douban has no
// public API, so matches come from parsed HTML and carry fewer fields than
// TMDB ones. Mostly useful for Chinese-language libraries.
type DoubanScraper struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewDoubanScraper builds the Douban source. One request per second;
// Douban bans clients that go faster.
func NewDoubanScraper(userAgent string) *DoubanScraper {
	return &DoubanScraper{
		baseURL:   "https://www.douban.com",
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (s *DoubanScraper) Name() string { return "douban" }

var doubanSubjectRx = regexp.MustCompile(`/subject/(\d+)`)

func (s *DoubanScraper) Search(ctx context.Context, query string, mediaType models.MediaType, year *int) ([]*models.MetadataMatch, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/search?cat=1002&q=%s", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("douban request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("douban status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("douban parse: %w", err)
	}

	// Search results mix movies and shows; the h3 span carries the kind tag.
	wantKind := "[电影]"
	if mediaType == models.MediaTypeTV {
		wantKind = "[电视剧]"
	}

	var matches []*models.MetadataMatch
	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		kind := strings.TrimSpace(sel.Find("div.title h3 span").First().Text())
		if kind != "" && kind != wantKind {
			return
		}
		link := sel.Find("div.title h3 a").First()
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			return
		}
		id := doubanSubjectID(link.AttrOr("href", ""))
		if id == "" {
			return
		}

		origTitle, resultYear := parseDoubanCast(sel.Find("span.subject-cast").First().Text())

		var rating *float64
		if txt := strings.TrimSpace(sel.Find("span.rating_nums").First().Text()); txt != "" {
			if v, err := strconv.ParseFloat(txt, 64); err == nil {
				rating = &v
			}
		}
		var posterURL *string
		if src := strings.TrimSpace(sel.Find("div.pic img").AttrOr("src", "")); src != "" {
			posterURL = &src
		}

		conf := titleSimilarity(query, title)
		var origPtr *string
		if origTitle != "" && origTitle != title {
			origPtr = &origTitle
			if origConf := titleSimilarity(query, origTitle); origConf > conf {
				conf = origConf
			}
		}
		if position := len(matches); position < 3 {
			conf += 0.05 * float64(3-position) / 3.0
			if conf > 1.0 {
				conf = 1.0
			}
		}

		matches = append(matches, &models.MetadataMatch{
			Source:        "douban",
			ExternalID:    id,
			MediaType:     mediaType,
			Title:         title,
			OriginalTitle: origPtr,
			Year:          resultYear,
			PosterURL:     posterURL,
			Rating:        rating,
			Confidence:    conf,
		})
	})
	return matches, nil
}

// GetDetails returns a bare match. Douban detail pages live on a separate
// host and the search results already carry everything the catalog uses.
func (s *DoubanScraper) GetDetails(_ context.Context, externalID string, mediaType models.MediaType) (*models.MetadataMatch, error) {
	return &models.MetadataMatch{
		Source:     "douban",
		ExternalID: externalID,
		MediaType:  mediaType,
		Confidence: 1.0,
	}, nil
}

// doubanSubjectID pulls the numeric subject id out of a result href. Search
// links are usually douban redirect URLs with the subject URL escaped inside
// a query parameter.
func doubanSubjectID(href string) string {
	if href == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(href); err == nil {
		href = decoded
	}
	if m := doubanSubjectRx.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

// parseDoubanCast extracts the original title and year from the
// slash-separated cast line, e.g. "原名:Breaking Bad / 文斯·吉里根 / 2008".
func parseDoubanCast(cast string) (string, *int) {
	var origTitle string
	var year *int
	for _, part := range strings.Split(cast, "/") {
		part = strings.TrimSpace(part)
		if t := strings.TrimPrefix(part, "原名:"); t != part {
			if t = strings.TrimSpace(t); t != "" {
				origTitle = t
			}
			continue
		}
		if len(part) == 4 {
			if y, err := strconv.Atoi(part); err == nil && y >= 1900 && y <= 2100 {
				yy := y
				year = &yy
			}
		}
	}
	return origTitle, year
}
