// Package client is a thin HTTP client for a leaflog-compatible backend.
// It speaks the JSON envelope every handler returns and caches read-mostly
// resources in process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
)

// APIError is a non-OK envelope returned by the backend.
type APIError struct {
	Code    string
	Message string
}

func (e APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
	}
	return "api error " + e.Code
}

func (e APIError) Is(target error) bool {
	switch e.Code {
	case leaflog.ErrCodeNotFound:
		return target == domain.ErrNotFound
	case leaflog.ErrCodeNotImplemented:
		return target == domain.ErrNotImplemented
	}
	return false
}

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	baseURL   string
	token     string
	userAgent string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		baseURL:   baseURL,
		userAgent: "leaflog-client",
	}
	httpClient.Transport = c
	return c
}

// SetToken sets the bearer token attached to every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Request performs a JSON request against the backend and unwraps the
// response envelope into out. A non-OK envelope becomes an APIError.
func (c *Client) Request(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	return c.decodeEnvelope(resp, out)
}

// Upload sends a single file as multipart form data.
func (c *Client) Upload(ctx context.Context, path, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	return c.decodeEnvelope(resp, out)
}

type envelope struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) decodeEnvelope(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if !env.OK {
		return APIError{Code: env.Error, Message: env.Message}
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %v", err)
		}
	}

	return nil
}

// GetCached performs a GET and serves repeats from the in-process cache.
func (c *Client) GetCached(ctx context.Context, path string, out any) error {
	cacheKey := "get:" + path
	if x, found := c.cache.Get(cacheKey); found {
		return json.Unmarshal(x.([]byte), out)
	}

	var raw json.RawMessage
	if err := c.Request(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return err
	}

	c.cache.Set(cacheKey, []byte(raw), cache.DefaultExpiration)
	return json.Unmarshal(raw, out)
}

// InvalidateCached drops a cached GET entry.
func (c *Client) InvalidateCached(path string) {
	c.cache.Delete("get:" + path)
}

// QueryPath builds path?key=value... with proper escaping.
func QueryPath(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return path + "?" + values.Encode()
}
