package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeJSONAPI = "application/vnd.api+json"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

// WHTTPReq describes one API call. URL is relative to the v1 base, or to
// the REST base when REST is set. Absolute URLs are used as they are.
type WHTTPReq struct {
	URL     string
	Method  string
	REST    bool
	Body    []byte
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode int
	BodyString string
}

// Options configure a Client.
type Options struct {
	Token             string
	APIURL            string
	RESTURL           string
	UserAgent         string
	Proxy             string
	Timeout           time.Duration
	RetryMax          int
	RequestsPerSecond float64
	Burst             int
	// Logger receives retryablehttp's leveled output. Nil discards it.
	Logger retryablehttp.LeveledLogger
}

// Client sends authenticated requests to the v1 and REST APIs, retrying
// transient failures and pacing calls with a token bucket.
type Client struct {
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	token     string
	apiURL    string
	restURL   string
	userAgent string
}

func NewClient(opts Options) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if opts.Logger != nil {
		retryClient.Logger = opts.Logger
	}
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		if t, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
			t.Proxy = http.ProxyURL(proxyURL)
		}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
		if opts.RequestsPerSecond > 1 {
			burst = int(opts.RequestsPerSecond)
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "vulnmap-api-import"
	}

	return &Client{
		http:      retryClient,
		limiter:   rate.NewLimiter(limit, burst),
		token:     opts.Token,
		apiURL:    strings.TrimRight(opts.APIURL, "/"),
		restURL:   strings.TrimRight(opts.RESTURL, "/"),
		userAgent: userAgent,
	}, nil
}

// Send performs the request and returns whatever status the server ended
// with. Deciding what a status means is left to the caller.
func (c *Client) Send(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	target := c.resolve(wReq)

	var body io.Reader
	if len(wReq.Body) > 0 {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if len(wReq.Body) > 0 {
		if wReq.REST {
			req.Header.Set("Content-Type", contentTypeJSONAPI)
		} else {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
	}
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}, nil
}

func (c *Client) resolve(wReq *WHTTPReq) string {
	u := wReq.URL
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	base := c.apiURL
	if wReq.REST {
		base = c.restURL
		// links.next from the REST API already carries the /rest prefix
		if strings.HasPrefix(u, "/rest/") && strings.HasSuffix(base, "/rest") {
			u = strings.TrimPrefix(u, "/rest")
		}
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return base + u
}
