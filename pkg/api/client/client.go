package client

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
)

// DefaultBaseURL is the address the API listens on out of the box.
const DefaultBaseURL = "http://localhost:5000"

// Client provides typed access to the starter API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL reports the normalised API address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error envelope returned by the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Message)
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    T    `json:"data"`
}

// Session is the payload returned by register and login.
type Session struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// User reflects API user payloads.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var resp Session
	if err := c.do(ctx, http.MethodPost, "/users/register", body, &resp); err != nil {
		return Session{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp Session
	if err := c.do(ctx, http.MethodPost, "/users/login", body, &resp); err != nil {
		return Session{}, err
	}
	return resp, nil
}

// Profile returns the account behind the client's token.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Item mirrors the API's item document.
type Item struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ItemInput holds fields for create and update; nil fields are omitted.
type ItemInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
	Category    *string  `json:"category,omitempty"`
}

// ListItems returns every item, newest first.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var resp envelope[[]Item]
	if err := c.do(ctx, http.MethodGet, "/items", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	var resp envelope[Item]
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, &resp); err != nil {
		return Item{}, err
	}
	return resp.Data, nil
}

// CreateItem stores a new item.
func (c *Client) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	var resp envelope[Item]
	if err := c.do(ctx, http.MethodPost, "/items", input, &resp); err != nil {
		return Item{}, err
	}
	return resp.Data, nil
}

// UpdateItem changes only the supplied fields of an item.
func (c *Client) UpdateItem(ctx context.Context, id string, input ItemInput) (Item, error) {
	var resp envelope[Item]
	if err := c.do(ctx, http.MethodPut, "/items/"+url.PathEscape(id), input, &resp); err != nil {
		return Item{}, err
	}
	return resp.Data, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil)
}

// Health reports the API health payload.
type Health struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Health queries the health endpoint. A degraded server yields an APIError
// with status 503.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}
