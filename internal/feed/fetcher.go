package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultFetchTimeout bounds a single feed fetch
const defaultFetchTimeout = 30 * time.Second

// FetchResponse represents the result of an HTTP fetch.
type FetchResponse struct {
	StatusCode   int
	Body         string
	ETag         *string
	LastModified *string
}

// Fetcher fetches feed bodies with optional conditional GET headers.
type Fetcher interface {
	Fetch(ctx context.Context, url string, etag, lastModified *string) (*FetchResponse, error)
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a Fetcher backed by the given http.Client. A nil
// client gets a default with a fetch timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPFetcher{client: client}
}

// Fetch performs an HTTP GET with conditional headers (If-None-Match,
// If-Modified-Since) when previous state is available. It returns the
// status code, body, and any caching headers present in the response.
func (f *HTTPFetcher) Fetch(
	ctx context.Context,
	url string,
	etag, lastModified *string,
) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("feed fetch new request: %w", err)
	}

	if etag != nil {
		req.Header.Set("If-None-Match", *etag)
	}
	if lastModified != nil {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("feed fetch do request: %w", doErr)
	}
	defer resp.Body.Close()

	return buildFetchResponse(resp)
}

// buildFetchResponse reads the response body and extracts caching headers.
// A 304 has no body worth reading.
func buildFetchResponse(resp *http.Response) (*FetchResponse, error) {
	var body string

	if resp.StatusCode != http.StatusNotModified {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("feed fetch read body: %w", readErr)
		}
		body = string(raw)
	}

	result := &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
	}

	if v := resp.Header.Get("ETag"); v != "" {
		result.ETag = &v
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		result.LastModified = &v
	}

	return result, nil
}
