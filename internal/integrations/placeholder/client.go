// Package placeholder talks to a JSONPlaceholder-style user directory and
// adapts it to the users.Source contract.
package placeholder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roledash/roledash/internal/users"
)

// DefaultBaseURL is the public demo API.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Client is a users.Source backed by HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRand fixes the source used for demo roles and timestamps.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rnd = r }
}

// WithClock overrides the clock used for demo timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a new client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
		rnd: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type remoteUser struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Website  string      `json:"website"`
	Address  struct {
		City string `json:"city"`
	} `json:"address"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
}

type writeAddress struct {
	City string `json:"city"`
}

type writeCompany struct {
	Name string `json:"name"`
}

type writeBody struct {
	Name    string        `json:"name,omitempty"`
	Email   string        `json:"email,omitempty"`
	Phone   string        `json:"phone,omitempty"`
	Website string        `json:"website,omitempty"`
	Address *writeAddress `json:"address,omitempty"`
	Company *writeCompany `json:"company,omitempty"`
}

// ListUsers fetches every user and decorates them with demo metadata.
func (c *Client) ListUsers(ctx context.Context) ([]users.User, error) {
	var remote []remoteUser
	if err := c.do(ctx, http.MethodGet, "/users", nil, &remote); err != nil {
		return nil, err
	}
	out := make([]users.User, 0, len(remote))
	for _, r := range remote {
		out = append(out, c.toUser(r))
	}
	return out, nil
}

// CreateUser posts the new user and returns the id the API assigned.
func (c *Client) CreateUser(ctx context.Context, in users.NewUser) (string, error) {
	body := writeBody{
		Name:    joinName(in.FirstName, in.LastName),
		Email:   in.Email,
		Phone:   in.Phone,
		Website: in.Website,
		Address: &writeAddress{City: in.City},
		Company: &writeCompany{Name: in.Company},
	}
	var created struct {
		ID json.Number `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", body, &created); err != nil {
		return "", err
	}
	return created.ID.String(), nil
}

// UpdateUser sends the patched fields. Name halves are not merged with the
// stored record, so only a patch carrying both halves updates the name.
func (c *Client) UpdateUser(ctx context.Context, id string, patch users.Patch) error {
	body := writeBody{}
	if patch.FirstName != nil && patch.LastName != nil {
		body.Name = joinName(*patch.FirstName, *patch.LastName)
	}
	if patch.Email != nil {
		body.Email = *patch.Email
	}
	if patch.Phone != nil {
		body.Phone = *patch.Phone
	}
	if patch.Website != nil {
		body.Website = *patch.Website
	}
	if patch.City != nil {
		body.Address = &writeAddress{City: *patch.City}
	}
	if patch.Company != nil {
		body.Company = &writeCompany{Name: *patch.Company}
	}
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), body, nil)
}

// DeleteUser removes the user remotely.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("placeholder: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("placeholder: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("placeholder: decode %s %s: %w", method, path, err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("placeholder: %s %s returned status %d", e.Method, e.Path, e.Code)
}

func (c *Client) toUser(r remoteUser) users.User {
	first, last := splitName(r.Name)
	if last == "" {
		last = r.Username
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().UTC()
	createdAt := now.Add(-time.Duration(c.rnd.Int64N(int64(365 * 24 * time.Hour))))
	lastLogin := now.Add(-time.Duration(c.rnd.Int64N(int64(7 * 24 * time.Hour))))
	return users.User{
		ID:        r.ID.String(),
		FirstName: first,
		LastName:  last,
		Email:     r.Email,
		Role:      demoRole(c.rnd.Float64()),
		Status:    users.StatusActive,
		Phone:     r.Phone,
		City:      r.Address.City,
		Company:   r.Company.Name,
		Website:   r.Website,
		CreatedAt: createdAt,
		LastLogin: &lastLogin,
	}
}

// demoRole maps a uniform sample onto 10% admin, 30% manager, 60% viewer.
func demoRole(p float64) users.Role {
	switch {
	case p < 0.1:
		return users.RoleAdmin
	case p < 0.4:
		return users.RoleManager
	default:
		return users.RoleViewer
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

var _ users.Source = (*Client)(nil)

