package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/logger"
)

const (
	defaultUserAgent = "options-observer/1.0"
	maxBodyBytes     = 256 << 20 // scrip master is ~40MB
)

type AsyncNetworkManager struct {
	Client     *http.Client
	Logger     *logger.Logger
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
}

// -----------------------------------------------------------------------------

// NewAsyncNetworkManager builds a manager whose requests are bounded by the
// caller's context. maxRetries applies to Get only.
func NewAsyncNetworkManager(userAgent string, maxRetries int, log *logger.Logger) *AsyncNetworkManager {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &AsyncNetworkManager{
		Client:     &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Logger:     log,
		UserAgent:  userAgent,
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and exponential backoff.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewValidationError("invalid url %q: %v", urlStr, err)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	var body []byte
	err = helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+reqURL.Host+reqURL.Path, nm.MaxRetries, nm.BaseDelay, func(ctx context.Context) error {
		status, b, err := nm.Do(ctx, http.MethodGet, finalURL, nil, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return helpers.NewNetworkError(fmt.Sprintf("GET %s", reqURL.Path), fmt.Errorf("bad status: %d", status))
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// -----------------------------------------------------------------------------

// Do performs one request. Transport failures are NetworkErrors; any HTTP
// status is returned to the caller to interpret.
func (nm *AsyncNetworkManager) Do(ctx context.Context, method, urlStr string, headers map[string]string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return 0, nil, helpers.NewValidationError("invalid request %s %s: %v", method, urlStr, err)
	}

	req.Header.Set("User-Agent", nm.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return 0, nil, helpers.NewNetworkError(fmt.Sprintf("%s %s", method, req.URL.Path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, helpers.NewNetworkError(fmt.Sprintf("reading %s", req.URL.Path), err)
	}

	return resp.StatusCode, respBody, nil
}
