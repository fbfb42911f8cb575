package monitor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/agentuity/storefront-cache/resilience"
	"github.com/cockroachdb/errors"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthPath is the backend health endpoint, relative to the base URL.
const HealthPath = "/api/health"

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logger.Logger
	retry   resilience.RetryConfig
}

// Error describes a failed request.
type Error struct {
	URL      string
	Method   string
	Status   int
	Body     string
	TheError error
}

func (e *Error) Error() string {
	if e == nil || e.TheError == nil {
		return ""
	}
	return e.TheError.Error()
}

func (e *Error) Unwrap() error {
	return e.TheError
}

func NewError(url, method string, status int, body string, err error) *Error {
	return &Error{
		URL:      url,
		Method:   method,
		Status:   status,
		Body:     body,
		TheError: err,
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithToken sends token as a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) { c.logger = log }
}

// WithRetry replaces the default backoff (150ms doubling, five attempts).
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  http.DefaultClient,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.NewConsoleLogger()
	}
	c.logger = c.logger.WithPrefix("[monitor]")
	return c
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "Storefront Cache Client/" + Version + " (" + gitSHA + ")"
}

var errRetryable = errors.New("retryable response")

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
			return true
		} else if msg := err.Error(); strings.Contains(msg, "EOF") {
			return true
		}
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		}
	}
	return false
}

// safeBodyPreview returns a short, loggable preview of a response body.
// Anything that is not a known text type is reduced to its size and hash.
func safeBodyPreview(body []byte, contentType string, maxChars int) string {
	if maxChars == 0 {
		maxChars = 200
	}
	lowerContentType := strings.ToLower(contentType)
	safeTextTypes := []string{"text/", "application/json", "application/xml"}
	isSafeText := contentType == ""
	for _, safeType := range safeTextTypes {
		if strings.Contains(lowerContentType, safeType) {
			isSafeText = true
			break
		}
	}
	if !isSafeText {
		hash := sha256.Sum256(body)
		return fmt.Sprintf("<%s: %d bytes, sha256=%s>", contentType, len(body), hex.EncodeToString(hash[:8]))
	}
	if len(body) > maxChars {
		return string(body[:maxChars]) + fmt.Sprintf("[truncated, total: %d chars]", len(body))
	}
	return string(body)
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("content-type"), "application/json")
}

// accepts reports whether a non-2xx response should be returned to the
// caller as a payload instead of being retried or turned into an error.
type accepts func(resp *http.Response) bool

func (c *Client) resolve(pathParam string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "error parsing base url")
	}
	if i := strings.Index(pathParam, "?"); i != -1 {
		u.RawQuery = pathParam[i+1:]
		pathParam = pathParam[:i]
	}
	basePath := u.Path
	if pathParam == "" {
		u.Path = basePath
	} else if basePath == "" || basePath == "/" {
		u.Path = pathParam
	} else {
		u.Path = path.Join(basePath, pathParam)
	}
	return u.String(), nil
}

// send performs the request with retries and returns the final status and body.
func (c *Client) send(ctx context.Context, method, pathParam string, payload any, accept accepts) (int, []byte, error) {
	u, err := c.resolve(pathParam)
	if err != nil {
		return 0, nil, NewError(c.baseURL, method, 0, "", err)
	}
	var body []byte
	if payload != nil {
		if body, err = json.Marshal(payload); err != nil {
			return 0, nil, NewError(u, method, 0, "", errors.Wrap(err, "error marshalling payload"))
		}
	}

	var (
		status   int
		respBody []byte
	)
	attempt := func() error {
		c.logger.Trace("sending request: %s %s", method, u)
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return NewError(u, method, 0, "", errors.Wrap(err, "error creating request"))
		}
		req.Header.Set("User-Agent", UserAgent())
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			err = NewError(u, method, 0, "", errors.Wrap(err, "error sending request"))
			if shouldRetry(nil, err) {
				c.logger.Trace("client returned retryable error, retrying...")
				return errors.Mark(err, errRetryable)
			}
			return err
		}
		defer resp.Body.Close()
		c.logger.Debug("response status: %s", resp.Status)

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return NewError(u, method, resp.StatusCode, "", errors.Wrap(err, "error reading response body"))
		}
		status = resp.StatusCode
		contentType := resp.Header.Get("content-type")
		c.logger.Debug("response body: %s, content-type: %s", safeBodyPreview(respBody, contentType, 200), contentType)

		if status > 299 && (accept == nil || !accept(resp)) {
			err := NewError(u, method, status, string(respBody), errors.Newf("request failed with status (%s)", resp.Status))
			if shouldRetry(resp, nil) {
				return errors.Mark(err, errRetryable)
			}
			return err
		}
		return nil
	}

	cfg := c.retry
	cfg.RetryableErrors = func(err error) bool { return errors.Is(err, errRetryable) }
	if err := resilience.Retry(ctx, cfg, attempt); err != nil {
		return status, respBody, err
	}
	return status, respBody, nil
}

// Do sends payload as JSON and decodes a JSON response into response when it is not nil.
func (c *Client) Do(ctx context.Context, method, pathParam string, payload any, response any) error {
	status, body, err := c.send(ctx, method, pathParam, payload, nil)
	if err != nil {
		return err
	}
	if response != nil {
		if err := json.Unmarshal(body, response); err != nil {
			return NewError(pathParam, method, status, string(body), errors.Wrap(err, "error JSON decoding response"))
		}
	}
	return nil
}

// Health fetches the backend health payload. A degraded backend answers 503
// with a JSON body; that body is returned as is, without retrying. The
// payload is returned verbatim and only checked to be JSON.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	degraded := func(resp *http.Response) bool {
		return resp.StatusCode == http.StatusServiceUnavailable && isJSON(resp)
	}
	status, body, err := c.send(ctx, http.MethodGet, HealthPath, nil, degraded)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, NewError(HealthPath, http.MethodGet, status, string(body), errors.New("health response is not JSON"))
	}
	return json.RawMessage(body), nil
}
