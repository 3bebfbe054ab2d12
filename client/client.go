package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/caselaw-dupcheck"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "dupcheck-client/1.0"
)

// Client talks to a dupcheck server.
// Endpoint paths are taken from the server's well-known document when available.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	slog.Debug("initialize client", slog.String("server", baseURL), slog.String("module", "client"))
	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: baseURL,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is returned for any non 2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, response any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	endpoint := c.baseURL + path
	slog.DebugContext(ctx, "request", slog.String("method", method), slog.String("url", endpoint), slog.String("module", "client"))

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) WellKnown(ctx context.Context) (dupcheck.WellKnownDupcheck, error) {
	x, found := c.cache.Get("wellknown")
	if found {
		return x.(dupcheck.WellKnownDupcheck), nil
	}

	var wk dupcheck.WellKnownDupcheck
	if err := c.do(ctx, http.MethodGet, "/.well-known/dupcheck", nil, &wk); err != nil {
		return dupcheck.WellKnownDupcheck{}, fmt.Errorf("failed to get well-known dupcheck: %w", err)
	}
	c.cache.Set("wellknown", wk, cache.DefaultExpiration)
	return wk, nil
}

// endpoint resolves a named endpoint, falling back to the built-in path
// when the server does not advertise it.
func (c *Client) endpoint(ctx context.Context, name, fallback string, params map[string]string) string {
	path := fallback
	wk, err := c.WellKnown(ctx)
	if err != nil {
		slog.DebugContext(ctx, "well-known lookup failed", slog.String("error", err.Error()), slog.String("module", "client"))
	} else if p, ok := wk.Endpoints[name]; ok {
		path = p
	}
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	return path
}

// Duplicates lists relations touching unitID. With no statuses only PENDING relations are returned.
func (c *Client) Duplicates(ctx context.Context, unitID string, statuses ...dupcheck.RelationStatus) ([]dupcheck.Relation, error) {
	path := c.endpoint(ctx, "duplicates", "/units/{id}/duplicates", map[string]string{"id": unitID})
	if len(statuses) > 0 {
		parts := make([]string, 0, len(statuses))
		for _, s := range statuses {
			parts = append(parts, string(s))
		}
		path += "?status=" + url.QueryEscape(strings.Join(parts, ","))
	}

	var relations []dupcheck.Relation
	if err := c.do(ctx, http.MethodGet, path, nil, &relations); err != nil {
		return nil, fmt.Errorf("failed to get duplicates: %w", err)
	}
	return relations, nil
}

func (c *Client) Relation(ctx context.Context, a, b string) (dupcheck.Relation, error) {
	path := c.endpoint(ctx, "relation", "/relations/{a}/{b}", map[string]string{"a": a, "b": b})
	var relation dupcheck.Relation
	if err := c.do(ctx, http.MethodGet, path, nil, &relation); err != nil {
		return dupcheck.Relation{}, fmt.Errorf("failed to get relation: %w", err)
	}
	return relation, nil
}

// Trigger queues a reconciliation cycle and returns the queued run.
func (c *Client) Trigger(ctx context.Context, req dupcheck.TriggerRequest) (dupcheck.RunReport, error) {
	path := c.endpoint(ctx, "reconcile", "/reconcile", nil)
	var report dupcheck.RunReport
	if err := c.do(ctx, http.MethodPost, path, req, &report); err != nil {
		return dupcheck.RunReport{}, fmt.Errorf("failed to trigger reconciliation: %w", err)
	}
	return report, nil
}

func (c *Client) Run(ctx context.Context, id string) (dupcheck.RunReport, error) {
	path := c.endpoint(ctx, "run", "/runs/{id}", map[string]string{"id": id})
	var report dupcheck.RunReport
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return dupcheck.RunReport{}, fmt.Errorf("failed to get run: %w", err)
	}
	return report, nil
}

func (c *Client) Runs(ctx context.Context, limit int) ([]dupcheck.RunReport, error) {
	path := c.endpoint(ctx, "runs", "/runs", nil)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var reports []dupcheck.RunReport
	if err := c.do(ctx, http.MethodGet, path, nil, &reports); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return reports, nil
}
