// Package catalog is the request/response client for the remote menu
// catalog. It is stateless: every call goes to the network.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"menuboard/internal/menu/metrics"
	"menuboard/internal/menu/models"
)

const (
	endpointCategoryName = "category_name"
	endpointItems        = "items"
	endpointLogo         = "logo"
	endpointImage        = "image"
	endpointSetting      = "setting"

	// maxBodyBytes bounds decoded JSON bodies; assets are read unbounded.
	maxBodyBytes = 8 << 20
)

var tracer = otel.Tracer("menuboard/internal/menu/catalog")

// Setting is a named display configuration value. Only the fields relevant to
// the setting are populated by the catalog.
type Setting struct {
	Name  string `json:"name"`
	Size  int    `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Client talks to the catalog HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	username   string
	password   string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBasicAuth enables HTTP Basic auth. It only applies when both values are set.
func WithBasicAuth(username, password string) Option {
	return func(cl *Client) {
		cl.username = username
		cl.password = password
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New constructs a Client for the catalog rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog base URL must be http or https, got %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// CategoryName resolves a category id to its display name. The catalog may
// answer with plain text, a JSON string, or a JSON object carrying a name field.
func (c *Client) CategoryName(ctx context.Context, id models.CategoryID) (string, error) {
	path := "/api/products/category/getname/" + strconv.FormatInt(int64(id), 10)
	body, err := c.do(ctx, endpointCategoryName, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}

	name, err := decodeCategoryName(body)
	if err != nil {
		return "", newError(ErrorBadData, endpointCategoryName, fmt.Sprintf("category %d", id), err)
	}
	return name, nil
}

// ItemsByCategory lists the items of a category in catalog order.
func (c *Client) ItemsByCategory(ctx context.Context, name string) ([]models.Item, error) {
	path := "/api/products/category/" + url.PathEscape(name)
	body, err := c.do(ctx, endpointItems, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var items []models.Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, newError(ErrorBadData, endpointItems, fmt.Sprintf("items of %q", name), err)
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// Logo fetches the restaurant logo bytes.
func (c *Client) Logo(ctx context.Context) ([]byte, error) {
	return c.do(ctx, endpointLogo, http.MethodGet, "/api/uploads/logo", nil)
}

// Image fetches a decorative screen image by key, e.g. "S1I2".
func (c *Client) Image(ctx context.Context, key string) ([]byte, error) {
	return c.do(ctx, endpointImage, http.MethodGet, "/api/uploads/images/"+url.PathEscape(key), nil)
}

// Setting fetches a named display setting such as FONTTOPIC or BGCOLOR.
func (c *Client) Setting(ctx context.Context, name string) (Setting, error) {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return Setting{}, err
	}
	body, err := c.do(ctx, endpointSetting, http.MethodPost, "/api/utility/get", payload)
	if err != nil {
		return Setting{}, err
	}

	var s Setting
	if err := json.Unmarshal(body, &s); err != nil {
		return Setting{}, newError(ErrorBadData, endpointSetting, fmt.Sprintf("setting %q", name), err)
	}
	if s.Name == "" {
		s.Name = name
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, payload []byte) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "catalog."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("catalog.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	body, err := c.roundTrip(ctx, endpoint, method, path, payload)
	outcome := "ok"
	if err != nil {
		outcome = string(GetCategory(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.DebugContext(ctx, "catalog request failed",
			"endpoint", endpoint,
			"path", path,
			"error", err,
		)
	}
	c.metrics.ObserveCatalogLatency(endpoint, outcome, time.Since(start))
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, newError(ErrorBadStatus, endpoint, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(ErrorTimeout, endpoint, "request timed out", err)
		}
		return nil, newError(ErrorUnavailable, endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		e := newError(categoryForStatus(resp.StatusCode), endpoint, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		e.Status = resp.StatusCode
		return nil, e
	}

	limit := int64(maxBodyBytes)
	if endpoint == endpointLogo || endpoint == endpointImage {
		limit = -1
	}
	var body []byte
	if limit > 0 {
		body, err = io.ReadAll(io.LimitReader(resp.Body, limit))
	} else {
		body, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return nil, newError(ErrorUnavailable, endpoint, "read body", err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// decodeCategoryName accepts `Burgers`, `"Burgers"` and `{"name":"Burgers"}`.
func decodeCategoryName(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", errors.New("empty category name")
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return text, nil
	}

	switch v := decoded.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", errors.New("empty category name")
		}
		return v, nil
	case map[string]any:
		name, ok := v["name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return "", errors.New("category record has no name")
		}
		return name, nil
	case []any:
		return "", errors.New("category name is a list")
	default:
		// bare numbers and booleans are valid JSON but still plain-text names
		return text, nil
	}
}
