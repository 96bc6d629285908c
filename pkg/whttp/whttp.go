package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	USER_AGENT      = "graduate/1.0 (+https://amazingkenneth.github.io/graduate)"
	DEFAULT_RETRIES = 3
	DEFAULT_TIMEOUT = 30 * time.Second
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Logger is the subset of logrus used for retry diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	RetryMax int
	Timeout  time.Duration
	Proxy    string
	Log      Logger
}

// Client sends requests through a retrying HTTP client.
type Client struct {
	rc *retryablehttp.Client
}

func NewClient(opts Options) (*Client, error) {
	rc := retryablehttp.NewClient()
	rc.Logger = log.New(io.Discard, "", 0)
	if opts.Log != nil {
		rc.Logger = leveled{opts.Log}
	}

	rc.RetryMax = DEFAULT_RETRIES
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second

	rc.HTTPClient.Timeout = DEFAULT_TIMEOUT
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		if t, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
			t.Proxy = http.ProxyURL(proxyURL)
		} else {
			rc.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{rc: rc}, nil
}

func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "*/*")
	for _, h := range wReq.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &WHTTPRes{StatusCode: resp.StatusCode, Body: body}, nil
}

// Fetch GETs url and returns the body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := c.SendHTTPRequest(ctx, &WHTTPReq{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode}
	}
	return res.Body, nil
}

// leveled adapts Logger to retryablehttp.LeveledLogger.
type leveled struct{ l Logger }

func (l leveled) Error(msg string, kv ...interface{}) { l.l.Errorf("%s %v", msg, kv) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.l.Warnf("%s %v", msg, kv) }
func (l leveled) Info(msg string, kv ...interface{})  { l.l.Debugf("%s %v", msg, kv) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.l.Debugf("%s %v", msg, kv) }
