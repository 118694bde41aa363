// API service for making HTTP requests to the platform backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "http://localhost:8080"

// APIService performs JSON requests against the platform backend.
//
// Every request is bounded by the client timeout, optionally paced by a rate limiter,
// and non-2xx answers are returned as [*APIError].
type APIService struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	onUnauthorized func()
	logger         *log.Logger
}

// APIOpts contains optional settings for [NewAPIServiceWithOpts].
type APIOpts struct {
	BaseURL           string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	// OnUnauthorized is called on every 401. Session invalidation belongs to the caller.
	OnUnauthorized func()
	Logger         *log.Logger
}

// NewAPIService creates a new API service instance for the platform backend.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	return NewAPIServiceWithOpts(APIOpts{BaseURL: baseURL, HTTPClient: client})
}

// NewAPIServiceWithOpts creates an API service from [APIOpts].
func NewAPIServiceWithOpts(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout > 0 && opts.HTTPClient.Timeout == 0 {
		c := *opts.HTTPClient
		c.Timeout = opts.Timeout
		opts.HTTPClient = &c
	}

	srv := &APIService{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		httpClient:     opts.HTTPClient,
		onUnauthorized: opts.OnUnauthorized,
		logger:         shared.WithLogger(opts.Logger, "component", "api"),
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		srv.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return srv
}

// BaseURL returns the backend root all paths are resolved against.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, data)
}

// Put performs a PUT request with the given JSON data and returns the raw response.
func (a *APIService) Put(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPut, path, data)
}

func (a *APIService) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	resp, err := a.send(ctx, method, path, data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// send builds and executes one request. The caller owns the response body.
func (a *APIService) send(ctx context.Context, method, path string, data []byte) (*http.Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
		}
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrRefreshFailed):
			if a.onUnauthorized != nil {
				a.onUnauthorized()
			}
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		case isTimeout(err):
			return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, method, path, err)
		}
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	a.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && a.onUnauthorized != nil {
		a.onUnauthorized()
	}
	return resp, nil
}

// do sends a JSON request and decodes a 2xx JSON answer into out (when non-nil).
func (a *APIService) do(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := a.send(ctx, method, path, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s: %v", shared.ErrTimeout, path, err)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
