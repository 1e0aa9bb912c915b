// Package linkedin implements the professional-network session handle:
// cookie-authenticated profile fetching, position extraction, and the
// health check used to decide when the session must be rebuilt.
package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register browser cookie stores
	"go.uber.org/zap"
)

const (
	baseURL   = "https://www.linkedin.com"
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"
)

// ErrSessionUnhealthy reports that the authenticated session no longer
// works and should be torn down and recreated.
var ErrSessionUnhealthy = errors.New("linkedin session unhealthy")

// essentialCookies are the cookies LinkedIn actually requires for an
// authenticated page fetch.
var essentialCookies = map[string]struct{}{
	"li_at":      {},
	"JSESSIONID": {},
	"lidc":       {},
	"bcookie":    {},
}

// Client is an authenticated LinkedIn session.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	cookieFile string
}

// New creates a session using cookies from cookieFile when it exists,
// falling back to cookies extracted from an installed browser. The cookie
// file uses the same JSON layout the session writes back after use.
func New(ctx context.Context, cookieFile string, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	u, _ := url.Parse(baseURL)

	cookies, err := loadCookieFile(cookieFile)
	if err != nil {
		logger.Warn("loading cookie file failed, falling back to browser cookies",
			zap.String("path", cookieFile),
			zap.Error(err),
		)
	}

	if len(cookies) == 0 {
		cookies, err = browserCookies(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading browser cookies: %w", err)
		}
	}

	if len(cookies) == 0 {
		return nil, errors.New("no linkedin cookies found: log in with a supported browser or provide a cookie file")
	}

	jar.SetCookies(u, cookies)

	logger.Info("linkedin session created", zap.Int("cookies", len(cookies)))

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		cookieFile: cookieFile,
	}, nil
}

// Healthcheck probes the authenticated feed. A redirect to the login or
// authwall page, or an auth-shaped status code, means the session is dead.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/feed/", http.NoBody)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnhealthy, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	final := resp.Request.URL.Path
	if strings.Contains(final, "/login") || strings.Contains(final, "/authwall") {
		return fmt.Errorf("%w: redirected to %s", ErrSessionUnhealthy, final)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %s", ErrSessionUnhealthy, resp.Status)
	}
	return nil
}

// Positions fetches a profile page and extracts its employment entries.
func (c *Client) Positions(ctx context.Context, profileURL string) ([]Position, error) {
	if !strings.HasPrefix(profileURL, "http") {
		profileURL = baseURL + "/in/" + profileURL
	}

	c.logger.Debug("fetching profile", zap.String("url", profileURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status %s", ErrSessionUnhealthy, resp.Status)
		}
		return nil, fmt.Errorf("fetching profile: bad status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading profile body: %w", err)
	}

	positions := ParsePositions(body)
	c.logger.Debug("extracted positions",
		zap.String("url", profileURL),
		zap.Int("count", len(positions)),
	)
	return positions, nil
}

// SaveCookies persists the jar back to the cookie file so the next run can
// skip the browser extraction step.
func (c *Client) SaveCookies() error {
	if c.cookieFile == "" {
		return nil
	}
	u, _ := url.Parse(baseURL)
	cookies := c.httpClient.Jar.Cookies(u)

	stored := make([]storedCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, storedCookie{Name: ck.Name, Value: ck.Value, Domain: ck.Domain, Path: ck.Path})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.cookieFile, data, 0o600)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

func loadCookieFile(path string) ([]*http.Cookie, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parsing cookie file: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		if s.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Domain: s.Domain, Path: s.Path})
	}
	return cookies, nil
}

func browserCookies(ctx context.Context) ([]*http.Cookie, error) {
	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix("linkedin.com"))
	if err != nil {
		return nil, err
	}

	var cookies []*http.Cookie
	for _, k := range kookies {
		if _, ok := essentialCookies[k.Name]; !ok {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     k.Name,
			Value:    k.Value,
			Domain:   k.Domain,
			Path:     k.Path,
			Expires:  k.Expires,
			Secure:   k.Secure,
			HttpOnly: k.HttpOnly,
		})
	}
	return cookies, nil
}
