// Package searchguard talks to the SearchGuard REST management API that
// guards the log indices.
package searchguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/customer-authz/internal/domain"
)

const (
	rolesPath      = "/_searchguard/api/roles/"
	maxErrBodySize = 1024
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	// RPS caps requests per second. Zero disables the limit.
	RPS     float64
	Timeout time.Duration
}

// Client implements domain.TenantIndex.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewClient creates a SearchGuard client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid searchguard url %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		logger:   logger.With("component", "searchguard"),
	}, nil
}

// PutRole creates or replaces a role object. The call is idempotent.
func (c *Client) PutRole(ctx context.Context, role string, doc domain.RoleDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode role %s: %w", role, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("searchguard rate limit: %w", err)
	}

	endpoint := c.baseURL + rolesPath + url.PathEscape(role)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for role %s: %w", role, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("searchguard error while updating role %s: %w", role, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		c.logger.Error("searchguard rejected role update", "role", role, "status", resp.StatusCode)
		return &StatusError{Role: role, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("role updated", "role", role, "tenants", len(doc.Tenants))
	return nil
}

// StatusError is returned when SearchGuard answers with a non-2xx status.
type StatusError struct {
	Role       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("searchguard error while updating role %s: status %d: %s", e.Role, e.StatusCode, e.Body)
}
