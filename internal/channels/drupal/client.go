// Package drupal publishes content to a Drupal site through its JSON:API.
package drupal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	jsonAPIType    = "application/vnd.api+json"
)

// Client talks to a Drupal JSON:API endpoint protected by the REST API
// Authentication module (API-KEY header with base64 username:token).
type Client struct {
	baseURL    string
	username   string
	token      string
	authMethod string
	client     *http.Client
	log        logger.Logger
}

// nodeDocument is the JSON:API envelope for creating a node.
type nodeDocument struct {
	Data nodeData `json:"data"`
}

type nodeData struct {
	Type       string         `json:"type"`
	Attributes nodeAttributes `json:"attributes"`
}

type nodeAttributes struct {
	Title              string         `json:"title"`
	Body               map[string]any `json:"body,omitempty"`
	FieldURL           map[string]any `json:"field_url,omitempty"`
	FieldSummary       string         `json:"field_summary,omitempty"`
	FieldImage         string         `json:"field_image_url,omitempty"`
	FieldExternalID    string         `json:"field_external_id,omitempty"`
	FieldSite          string         `json:"field_site,omitempty"`
	FieldPublishedDate string         `json:"field_published_date,omitempty"`
}

type apiResponse struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
	Errors []apiError `json:"errors,omitempty"`
}

type apiError struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient creates a Drupal client.
func NewClient(baseURL, username, token, authMethod string, skipTLSVerify bool, log logger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("drupal URL is required")
	}
	if token == "" {
		return nil, errors.New("drupal token is required")
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	if skipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-in for self-signed staging certs
		}
		log.Warn("TLS certificate verification is disabled",
			logger.String("base_url", baseURL))
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		token:      token,
		authMethod: authMethod,
		client:     httpClient,
		log:        log,
	}, nil
}

// Name implements channels.Channel.
func (c *Client) Name() string { return "drupal" }

// Publish creates one node per outbox entry. The node bundle is derived from
// the entry's content type (node--post, node--event, ...).
func (c *Client) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	doc := c.buildNode(entry)

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal node payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/jsonapi/node/%s", c.baseURL, string(entry.ContentType))

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if reqErr != nil {
		return fmt.Errorf("create node request: %w", reqErr)
	}

	req.Header.Set("Content-Type", jsonAPIType)
	req.Header.Set("Accept", jsonAPIType)
	c.setAuthHeaders(req)

	// POST requests need a CSRF token; proceed without one if the endpoint
	// does not serve it, some deployments only enforce the API key
	if csrf, csrfErr := c.fetchCSRFToken(ctx); csrfErr != nil {
		c.log.Warn("failed to fetch CSRF token, proceeding without it", logger.Error(csrfErr))
	} else {
		req.Header.Set("X-CSRF-Token", csrf)
	}

	resp, doErr := c.client.Do(req)
	if doErr != nil {
		return fmt.Errorf("post node: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("read node response: %w", readErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeAPIError(resp.StatusCode, body)
	}

	var parsed apiResponse
	if decodeErr := json.Unmarshal(body, &parsed); decodeErr != nil {
		return fmt.Errorf("decode node response: %w", decodeErr)
	}

	c.log.Info("node created",
		logger.String("drupal_id", parsed.Data.ID),
		logger.String("bundle", parsed.Data.Type),
		logger.String("content_id", entry.ContentID.String()),
		logger.String("title", entry.Title))

	return nil
}

func (c *Client) buildNode(entry *domain.OutboxEntry) nodeDocument {
	attrs := nodeAttributes{
		Title:           entry.Title,
		FieldSummary:    entry.Summary,
		FieldImage:      entry.ImageURL,
		FieldExternalID: entry.ContentID.String(),
		FieldSite:       entry.SiteID,
	}

	if entry.Body != "" {
		attrs.Body = map[string]any{
			"value":  entry.Body,
			"format": "full_html",
		}
	}
	if entry.URL != "" {
		attrs.FieldURL = map[string]any{"uri": entry.URL}
	}
	if entry.PublishedDate != nil {
		attrs.FieldPublishedDate = entry.PublishedDate.Format(time.RFC3339)
	}

	return nodeDocument{
		Data: nodeData{
			Type:       fmt.Sprintf("node--%s", entry.ContentType),
			Attributes: attrs,
		},
	}
}

// setAuthHeaders sets the API-KEY and Authorization headers. The REST API
// Authentication module expects base64(username:token); Authorization carries
// the same value in Basic format.
func (c *Client) setAuthHeaders(req *http.Request) {
	var apiKey string
	if c.username != "" {
		apiKey = base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.username, c.token)))
	} else {
		apiKey = base64.StdEncoding.EncodeToString([]byte(c.token))
	}

	req.Header.Set("API-KEY", apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", apiKey))

	if c.authMethod != "" {
		req.Header.Set("AUTH-METHOD", c.authMethod)
	}
}

// fetchCSRFToken gets a token from the session/token endpoint, returned as
// plain text.
func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/session/token", c.baseURL), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create CSRF token request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req)

	resp, doErr := c.client.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("fetch CSRF token: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("CSRF token request failed: %d %s", resp.StatusCode, resp.Status)
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("read CSRF token: %w", readErr)
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *Client) decodeAPIError(statusCode int, body []byte) error {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		details := make([]string, len(parsed.Errors))
		for i, apiErr := range parsed.Errors {
			details[i] = fmt.Sprintf("%s: %s", apiErr.Title, apiErr.Detail)
		}
		return fmt.Errorf("drupal API error (%d): %s", statusCode, strings.Join(details, "; "))
	}

	return fmt.Errorf("drupal API error: %d", statusCode)
}
