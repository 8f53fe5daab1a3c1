package alist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/models"
)

const maxAttempts = 3

// Client talks to an Alist server over its JSON API. Every outbound call
// passes through a shared rate limiter so a deep scan cannot hammer the
// remote. Safe for concurrent use.
type Client struct {
	baseURL   string
	username  string
	password  string
	userAgent string
	retryBase time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	token string
}

func New(cfg *config.Config, userAgent string) *Client {
	perSec := cfg.AListRate
	if perSec <= 0 {
		perSec = 5
	}
	timeout := cfg.AListTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.AListURL, "/"),
		username:   cfg.AListUsername,
		password:   cfg.AListPassword,
		token:      cfg.AListToken,
		userAgent:  userAgent,
		retryBase:  time.Second,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Alist wraps every response in this envelope. Most failures arrive as a
// non-200 code inside an HTTP 200 body, so both layers are checked.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginData struct {
	Token string `json:"token"`
}

type listData struct {
	Content []listEntry `json:"content"`
	Total   int         `json:"total"`
}

type listEntry struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
	Sign  string `json:"sign"`
}

// Login authenticates with username/password and stores the session token.
// Not needed when a static token is configured or the target paths allow
// guest access.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return fmt.Errorf("alist login: no credentials configured")
	}
	data, err := c.post(ctx, "/api/auth/login", map[string]interface{}{
		"username": c.username,
		"password": c.password,
	}, false)
	if err != nil {
		return fmt.Errorf("alist login: %w", err)
	}
	var login loginData
	if err := json.Unmarshal(data, &login); err != nil {
		return fmt.Errorf("alist login: parse response: %w", err)
	}
	if login.Token == "" {
		return fmt.Errorf("alist login: server returned empty token")
	}
	c.mu.Lock()
	c.token = login.Token
	c.mu.Unlock()
	return nil
}

// ListDirectory fetches one directory listing. An empty directory yields an
// empty slice; failures come back as errors for the caller to log and skip.
func (c *Client) ListDirectory(ctx context.Context, dirPath string) ([]models.RawEntry, error) {
	data, err := c.post(ctx, "/api/fs/list", map[string]interface{}{
		"path":     dirPath,
		"password": "",
		"page":     1,
		"per_page": 0,
		"refresh":  false,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("alist list %s: %w", dirPath, err)
	}
	var list listData
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("alist list %s: parse response: %w", dirPath, err)
	}
	entries := make([]models.RawEntry, 0, len(list.Content))
	for _, e := range list.Content {
		entries = append(entries, models.RawEntry{
			Name:      e.Name,
			IsDir:     e.IsDir,
			Signature: e.Sign,
			Size:      e.Size,
		})
	}
	return entries, nil
}

// post sends one JSON request and returns the envelope payload. A rejected
// token triggers a single re-login; 429 and 5xx responses retry with
// exponential backoff, honoring Retry-After when the server sends one.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, authed bool) (json.RawMessage, error) {
	reloggedIn := false
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if authed {
			token, err := c.ensureToken(ctx)
			if err != nil {
				return nil, err
			}
			if token != "" {
				req.Header.Set("Authorization", token)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt+1 >= maxAttempts {
				return nil, fmt.Errorf("status %d after %d attempts", resp.StatusCode, maxAttempts)
			}
			if err := c.sleep(ctx, retryDelay(resp, attempt, c.retryBase)); err != nil {
				return nil, err
			}
			continue
		}

		var env envelope
		err = json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		unauthorized := resp.StatusCode == http.StatusUnauthorized || env.Code == http.StatusUnauthorized
		if unauthorized && authed && !reloggedIn && c.username != "" {
			log.Printf("Alist: token rejected, logging in again")
			if err := c.Login(ctx); err != nil {
				return nil, err
			}
			reloggedIn = true
			continue
		}

		if code := env.Code; code != 0 && code != http.StatusOK {
			return nil, fmt.Errorf("code %d: %s", code, env.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return env.Data, nil
	}
}

// ensureToken logs in on first authed use when only credentials are
// configured. An empty return means guest access.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" || c.username == "" {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(resp *http.Response, attempt int, base time.Duration) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<uint(attempt)) * base
}
