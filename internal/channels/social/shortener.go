package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBitlyAPI is the bitly v4 endpoint used for link shortening
const DefaultBitlyAPI = "https://api-ssl.bitly.com/v4/shorten"

// Shortener shortens links through the bitly v4 API before they are posted.
type Shortener struct {
	apiURL string
	token  string
	client *http.Client
}

type shortenRequest struct {
	LongURL string `json:"long_url"`
}

type shortenResponse struct {
	Link string `json:"link"`
}

// NewShortener creates a bitly link shortener. The API URL is overridable
// for tests; pass "" for the production endpoint.
func NewShortener(apiURL, token string, client *http.Client) *Shortener {
	if apiURL == "" {
		apiURL = DefaultBitlyAPI
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Shortener{
		apiURL: apiURL,
		token:  token,
		client: client,
	}
}

// Shorten returns the shortened link for the URL.
func (s *Shortener) Shorten(ctx context.Context, longURL string) (string, error) {
	payload, err := json.Marshal(shortenRequest{LongURL: longURL})
	if err != nil {
		return "", fmt.Errorf("marshal shorten request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if reqErr != nil {
		return "", fmt.Errorf("create shorten request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.token))

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("shorten link: %w", doErr)
	}
	defer resp.Body.Close()

	// 200 for an existing link, 201 for a newly created one
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bitly error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var shortened shortenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&shortened); decodeErr != nil {
		return "", fmt.Errorf("decode shorten response: %w", decodeErr)
	}
	if shortened.Link == "" {
		return "", fmt.Errorf("bitly returned no link for %s", longURL)
	}

	return shortened.Link, nil
}
