// Package client provides a Go client for the buildcfg snapshot registry API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a buildcfg registry API client
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// New creates a new registry client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "buildcfg-client",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot describes a published configuration snapshot. Document is set
// only by Get.
type Snapshot struct {
	ID          string          `json:"id"`
	Project     string          `json:"project"`
	Revision    int64           `json:"revision"`
	Fingerprint string          `json:"fingerprint"`
	Networks    []string        `json:"networks"`
	SizeBytes   int             `json:"sizeBytes"`
	CreatedAt   string          `json:"createdAt"`
	Document    json.RawMessage `json:"document,omitempty"`
}

// Document is a snapshot's document rendered in one format.
type Document struct {
	ID          string
	Revision    int64
	Fingerprint string
	ContentType string
	Data        []byte
}

// SnapshotList is a page of a project's snapshots, newest first.
type SnapshotList struct {
	Data       []Snapshot `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Project summarizes a project in the registry.
type Project struct {
	Name           string `json:"name"`
	LatestRevision int64  `json:"latestRevision"`
	Snapshots      int    `json:"snapshots"`
	UpdatedAt      string `json:"updatedAt"`
}

// ProjectList is a page of projects.
type ProjectList struct {
	Data       []Project  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListOptions selects a page.
type ListOptions struct {
	Limit  int
	Cursor string
}

// Compilers lists the compiler releases the server accepts.
type Compilers struct {
	Data    []string `json:"data"`
	Latest  string   `json:"latest"`
	Default string   `json:"default"`
}

// Plugins lists the plugins the server accepts.
type Plugins struct {
	Data    []string `json:"data"`
	Default []string `json:"default"`
}

// Validation is the server's verdict on a document.
type Validation struct {
	Valid          bool      `json:"valid"`
	Fingerprint    string    `json:"fingerprint"`
	Networks       []string  `json:"networks"`
	Compilers      []string  `json:"compilers"`
	LiteralSecrets []string  `json:"literalSecrets"`
	Verification   bool      `json:"verification"`
	Error          *APIError `json:"error,omitempty"`
}

// Identity names the API key a client authenticates with.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError represents an API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnchanged reports whether a push was refused because the document
// matches the latest snapshot.
func IsUnchanged(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "UNCHANGED"
}

// Push publishes a document as the project's next snapshot. format is
// json, toml or yaml.
func (c *Client) Push(ctx context.Context, project string, data []byte, format string) (*Snapshot, error) {
	path := "/api/v1/snapshots/" + url.PathEscape(project) + "?format=" + url.QueryEscape(format)
	var resp Snapshot
	if err := c.send(ctx, http.MethodPost, path, bytes.NewReader(data), contentType(format), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns a snapshot with its document as JSON. id may be "latest".
func (c *Client) Get(ctx context.Context, project, id string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.get(ctx, snapshotPath(project, id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull returns a snapshot's document rendered in format. id may be "latest".
func (c *Client) Pull(ctx context.Context, project, id, format string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+snapshotPath(project, id)+"?format="+url.QueryEscape(format), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", contentType(format))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	revision, _ := strconv.ParseInt(resp.Header.Get("X-Snapshot-Revision"), 10, 64)
	return &Document{
		ID:          resp.Header.Get("X-Snapshot-ID"),
		Revision:    revision,
		Fingerprint: resp.Header.Get("X-Snapshot-Fingerprint"),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// History lists a project's snapshots, newest first.
func (c *Client) History(ctx context.Context, project string, opts ListOptions) (*SnapshotList, error) {
	var resp SnapshotList
	path := "/api/v1/snapshots/" + url.PathEscape(project) + opts.query()
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Projects lists projects with snapshots.
func (c *Client) Projects(ctx context.Context, opts ListOptions) (*ProjectList, error) {
	var resp ProjectList
	if err := c.get(ctx, "/api/v1/snapshots/"+opts.query(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a snapshot.
func (c *Client) Delete(ctx context.Context, project, id string) error {
	return c.send(ctx, http.MethodDelete, snapshotPath(project, id), nil, "", nil)
}

// Validate asks the server to check a document without storing it.
func (c *Client) Validate(ctx context.Context, data []byte, format string) (*Validation, error) {
	var resp Validation
	path := "/api/v1/validate?format=" + url.QueryEscape(format)
	if err := c.send(ctx, http.MethodPost, path, bytes.NewReader(data), contentType(format), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compilers lists the compiler releases the server accepts.
func (c *Client) Compilers(ctx context.Context) (*Compilers, error) {
	var resp Compilers
	if err := c.get(ctx, "/api/v1/compilers", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Plugins lists the plugins the server accepts.
func (c *Client) Plugins(ctx context.Context) (*Plugins, error) {
	var resp Plugins
	if err := c.get(ctx, "/api/v1/plugins", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Whoami returns the identity of the client's API key. An invalid key
// yields an *APIError with status 401.
func (c *Client) Whoami(ctx context.Context) (*Identity, error) {
	var resp Identity
	if err := c.get(ctx, "/api/v1/auth/whoami", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func snapshotPath(project, id string) string {
	return fmt.Sprintf("/api/v1/snapshots/%s/%s", url.PathEscape(project), url.PathEscape(id))
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Cursor != "" {
		q.Set("cursor", o.Cursor)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "toml":
		return "application/toml"
	case "yaml", "yml":
		return "application/yaml"
	default:
		return "application/json"
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.send(ctx, http.MethodGet, path, nil, "", result)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, ct string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "HTTP_" + strconv.Itoa(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	errResp.Error.StatusCode = resp.StatusCode
	return &errResp.Error
}
