package gtranslate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/textchunk"
)

const (
	// DefaultEndpoint is the translate TTS endpoint.
	DefaultEndpoint = "https://translate.google.com/translate_tts"

	// DefaultTimeout bounds each request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request; the endpoint rejects
	// clients without a browser signature.
	DefaultUserAgent = "Mozilla/5.0 (Windows; U; Windows NT 5.1; rv:1.7.3) Gecko/20041001 Firefox/0.10.1"

	maxBodyBytes = 16 << 20
)

// HTTPGetter fetches URLs over HTTP with a fixed client signature.
type HTTPGetter struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPGetter returns a Getter with the given timeout and User-Agent. Zero
// values select the defaults.
func NewHTTPGetter(timeout time.Duration, userAgent string) *HTTPGetter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPGetter{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Get issues a GET request and returns the response body. Non-200 responses
// and empty bodies are errors.
func (g *HTTPGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrFetchFailed)
	}
	return body, nil
}

// Client turns synthesis requests into endpoint URLs and fetches them.
type Client struct {
	getter   Getter
	endpoint string
}

// NewClient constructs a Client for endpoint using getter as transport.
func NewClient(endpoint string, getter Getter) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if getter == nil {
		getter = NewHTTPGetter(DefaultTimeout, DefaultUserAgent)
	}
	return &Client{getter: getter, endpoint: endpoint}
}

// Fetch downloads the synthesized audio for req.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("gtranslate: text is required")
	}
	if req.Language == "" {
		return nil, fmt.Errorf("gtranslate: language is required")
	}
	return c.getter.Get(ctx, c.URL(req))
}

// URL renders the endpoint URL for req. Query parameters keep the order the
// endpoint's own web client uses.
func (c *Client) URL(req Request) string {
	var b strings.Builder
	b.WriteString(c.endpoint)
	if strings.Contains(c.endpoint, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("ie=UTF-8")
	b.WriteString("&q=" + url.QueryEscape(req.Text))
	b.WriteString("&tl=" + url.QueryEscape(req.Language))
	b.WriteString("&total=" + strconv.Itoa(textchunk.Count(req.Text)))
	b.WriteString("&idx=0")
	b.WriteString("&textlen=" + strconv.Itoa(textchunk.Len(req.Text)))
	return b.String()
}
