package tor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/juju/clock"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/onionspider/internal/content"
	"github.com/nao1215/onionspider/internal/model"
)

const (
	// DefaultUserAgent is the User-Agent sent with every fetch. It matches
	// Tor Browser so that crawler requests do not stand out.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// Gateway performs single-attempt fetches through Tor with a fixed number
// of concurrent slots. Fetch blocks while every slot is busy.
type Gateway struct {
	httpClient  *http.Client
	slots       *semaphore.Weighted
	capacity    int
	userAgent   string
	maxBodySize int64
	clock       clock.Clock

	inFlight atomic.Int64
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the Tor HTTP client. Tests use it to point the
// gateway at an httptest server.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header. An empty value keeps the default.
func WithUserAgent(ua string) GatewayOption {
	return func(g *Gateway) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the body read limit. Values below one keep the default.
func WithMaxBodySize(n int64) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBodySize = n
		}
	}
}

// WithGatewayClock sets the clock that timestamps responses.
func WithGatewayClock(c clock.Clock) GatewayOption {
	return func(g *Gateway) {
		g.clock = c
	}
}

// NewGateway returns a gateway with capacity slots. Requests go through
// client unless WithHTTPClient is given; client may be nil in that case.
func NewGateway(client *Client, capacity int, opts ...GatewayOption) (*Gateway, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	g := &Gateway{
		slots:       semaphore.NewWeighted(int64(capacity)),
		capacity:    capacity,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		clock:       clock.WallClock,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.httpClient == nil {
		if client == nil {
			return nil, ErrNoTransport
		}
		g.httpClient = client.NewHTTPClient()
	}

	return g, nil
}

// Capacity returns the number of concurrent fetch slots.
func (g *Gateway) Capacity() int {
	return g.capacity
}

// InFlight returns the number of fetches currently holding a slot.
func (g *Gateway) InFlight() int {
	return int(g.inFlight.Load())
}

// Fetch performs one GET of host+path. host is a normalized base URL such
// as "http://example.onion". A non-nil error means no HTTP response was
// received (dial failure, timeout, cancellation); every HTTP status,
// including errors, is returned as a response. There is no retry.
func (g *Gateway) Fetch(ctx context.Context, host, path string) (*model.FetchResponse, error) {
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.inFlight.Add(1)
	defer func() {
		g.inFlight.Add(-1)
		g.slots.Release(1)
	}()

	host = model.NormalizeHost(host)
	path = model.NormalizePath(path)
	url := model.JoinURL(host, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	out := &model.FetchResponse{
		StatusCode: resp.StatusCode,
		Host:       host,
		Path:       path,
		MimeType:   mediaType(contentType),
		Timestamp:  g.clock.Now().UnixMilli(),
	}

	body, err := content.Decode(raw, contentType)
	if err != nil {
		// Unknown charset labels fall back to the raw bytes.
		body = strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	out.Body = body

	if content.IsHTML(out.MimeType) {
		out.Title = content.Title(body)
	}

	return out, nil
}

// mediaType returns the lower-cased media type of a Content-Type value
// without parameters, or "" if the header is absent or malformed.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
