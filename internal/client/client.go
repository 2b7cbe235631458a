// Package client talks to a running oprema server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client is a typed client for the oprema API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a bearer identity token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func assetPath(id string, parts ...string) string {
	p := "/api/assets/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Users lists all users.
func (c *Client) Users(ctx context.Context) ([]model.PublicUser, error) {
	var out []model.PublicUser
	return out, c.getJSON(ctx, "/api/users", nil, &out)
}

// Me returns the acting user's profile.
func (c *Client) Me(ctx context.Context) (*model.PublicUser, error) {
	var out model.PublicUser
	if err := c.getJSON(ctx, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assets lists all assets.
func (c *Client) Assets(ctx context.Context) ([]model.AssetView, error) {
	var out []model.AssetView
	return out, c.getJSON(ctx, "/api/assets", nil, &out)
}

// Asset returns the detailed view of one asset.
func (c *Client) Asset(ctx context.Context, id string) (*model.AssetView, error) {
	var out model.AssetView
	if err := c.getJSON(ctx, assetPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events returns the asset's event history in storage order.
func (c *Client) Events(ctx context.Context, id string) ([]model.Event, error) {
	var out []model.Event
	return out, c.getJSON(ctx, assetPath(id, "events"), nil, &out)
}

// EventsMeta returns the distinct work types and users of the asset's history.
func (c *Client) EventsMeta(ctx context.Context, id string) (*model.EventMeta, error) {
	var out model.EventMeta
	if err := c.getJSON(ctx, assetPath(id, "events", "meta"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analytics returns the filtered history. q takes the analytics query
// parameters (preset, from, to, workType, user, q, sort).
func (c *Client) Analytics(ctx context.Context, id string, q url.Values) (*analytics.Result, error) {
	var out analytics.Result
	if err := c.getJSON(ctx, assetPath(id, "analytics"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim checks the asset out to the acting user.
func (c *Client) Claim(ctx context.Context, id string) error {
	return c.postJSON(ctx, assetPath(id, "claim"), nil, nil)
}

// Release returns the asset held by the acting user.
func (c *Client) Release(ctx context.Context, id string, req lifecycle.ReleaseRequest) error {
	return c.postJSON(ctx, assetPath(id, "release"), req, nil)
}

// Export downloads a rendered export and returns its bytes and the file name
// suggested by the server.
func (c *Client) Export(ctx context.Context, id, format string, q url.Values) ([]byte, string, error) {
	v := url.Values{}
	for k, vals := range q {
		v[k] = vals
	}
	if format != "" {
		v.Set("format", format)
	}

	resp, body, err := c.do(ctx, http.MethodGet, assetPath(id, "export"), v, nil, "")
	if err != nil {
		return nil, "", err
	}

	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = safeFileName(params["filename"])
	}
	return body, name, nil
}

// safeFileName strips any directory part from a server-suggested name.
func safeFileName(name string) string {
	name = filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	switch name {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}

// UploadAvatar replaces the acting user's avatar. The returned URL carries a
// cache-busting version.
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	_, body, err := c.do(ctx, http.MethodPost, "/api/users/me/avatar", nil, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}

	var out struct {
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.AvatarURL == nil {
		return "", nil
	}
	return *out.AvatarURL + "?v=" + strconv.FormatInt(c.now().UnixMilli(), 10), nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	_, body, err := c.do(ctx, http.MethodGet, path, q, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	var r io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}

	_, body, err := c.do(ctx, http.MethodPost, path, nil, r, contentType)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string) (*http.Response, []byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Message = e.Error
		}
		return nil, nil, apiErr
	}
	return resp, data, nil
}
