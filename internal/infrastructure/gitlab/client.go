// Package gitlab is a small typed client for the GitLab REST v4 API,
// covering the calls the relay makes on behalf of a signed-in user: issue
// and commit listing, closing and commenting on issues, project listing
// and webhook registration.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-issue-relay/internal/infrastructure/logger"
)

// DefaultBaseURL is the public GitLab instance.
const DefaultBaseURL = "https://gitlab.com"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// Config holds configuration for creating a GitLab API Client.
type Config struct {
	// BaseURL is the instance root, e.g. "https://gitlab.example.com".
	// The API path "/api/v4" is appended by the client.
	BaseURL string

	// Token is sent as a Bearer token. It may be empty for a client that
	// only hands out per-user copies through WithToken.
	Token string

	// HTTPClient is used for all HTTP requests. Defaults to a client
	// with a 15 second timeout.
	HTTPClient *http.Client

	Logger logger.Logger
}

// Client is a typed GitLab REST API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a GitLab API client from the given configuration.
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("gitlab: invalid base URL %q", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
		logger:     log.WithField("component", "gitlab"),
	}, nil
}

// BaseURL returns the instance root the client talks to.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// WithToken returns a copy of the client that authenticates as the owner
// of token. The copy shares the underlying HTTP client.
func (client *Client) WithToken(token string) *Client {
	clone := *client
	clone.token = token
	return &clone
}

// projectPath renders a project reference for use in a URL path. GitLab
// accepts either a numeric id or the URL-encoded "namespace/name" path.
func projectPath(project string) string {
	return "/projects/" + url.PathEscape(project)
}

// do executes an authenticated API request. The path is relative to
// "/api/v4". For requests with a body, requestBody is JSON-encoded.
// Non-2xx responses are returned as *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, nil, fmt.Errorf("gitlab: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	endpoint := client.baseURL + "/api/v4" + path
	request, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("gitlab: creating request: %w", err)
	}

	if client.token != "" {
		request.Header.Set("Authorization", "Bearer "+client.token)
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, nil, fmt.Errorf("gitlab: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("gitlab: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		client.logger.Warnf("GitLab API %s %s returned %d", method, path, response.StatusCode)
		return nil, nil, parseAPIErrorFromBody(response.StatusCode, body)
	}

	return body, response.Header, nil
}

// get is a convenience method for GET requests. Decodes the response into
// result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("gitlab: decoding %s: %w", path, err)
	}
	return nil
}

// send is a convenience method for POST and PUT requests that return a
// JSON object. A nil result discards the response body.
func (client *Client) send(ctx context.Context, method, path string, requestBody, result any) error {
	body, _, err := client.do(ctx, method, path, requestBody)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("gitlab: decoding %s: %w", path, err)
	}
	return nil
}

// withQuery appends non-empty query parameters to path.
func withQuery(path string, query url.Values) string {
	encoded := query.Encode()
	if encoded == "" {
		return path
	}
	return path + "?" + encoded
}
