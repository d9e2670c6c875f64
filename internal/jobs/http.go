package jobs

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

	"github.com/dbsmedya/relsynth/internal/dataset"
)

// APIError is a non-2xx answer from the job service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("job service returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPClient talks to a REST job service.
type HTTPClient struct {
	base   *url.URL
	apiKey string
	client *http.Client
}

// NewHTTPClient creates a client for the service at endpoint.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid job service endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid job service endpoint %q: scheme must be http or https", endpoint)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		base:   u,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type submitRequest struct {
	Kind    Kind           `json:"kind"`
	Table   string         `json:"table"`
	Config  map[string]any `json:"config,omitempty"`
	Model   Handle         `json:"model,omitempty"`
	Records int            `json:"records,omitempty"`
	Data    string         `json:"data,omitempty"` // CSV with header
}

type jobResponse struct {
	ID           Handle   `json:"id"`
	Status       string   `json:"status"`
	QualityScore *float64 `json:"quality_score"`
}

// Submit uploads the job and returns the handle the service assigned.
func (c *HTTPClient) Submit(ctx context.Context, spec Spec) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	req := submitRequest{
		Kind:    spec.Kind,
		Table:   spec.Table,
		Config:  spec.Config,
		Model:   spec.Model,
		Records: spec.Records,
	}
	if spec.Data != nil {
		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, spec.Data); err != nil {
			return "", fmt.Errorf("encode %s data: %w", spec.Table, err)
		}
		req.Data = buf.String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	var resp jobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("submit %s job for %s: %w", spec.Kind, spec.Table, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("submit %s job for %s: service returned no job id", spec.Kind, spec.Table)
	}
	return resp.ID, nil
}

// Poll returns the job's current status.
func (c *HTTPClient) Poll(ctx context.Context, h Handle) (Status, error) {
	resp, err := c.get(ctx, h)
	if err != nil {
		return "", err
	}
	return ParseStatus(resp.Status)
}

// QualityScore reads the quality_score field of the job, which is null until reported.
func (c *HTTPClient) QualityScore(ctx context.Context, h Handle) (float64, bool, error) {
	resp, err := c.get(ctx, h)
	if err != nil {
		return 0, false, err
	}
	if resp.QualityScore == nil {
		return 0, false, nil
	}
	return *resp.QualityScore, true, nil
}

// FetchResult downloads the gzip-compressed CSV result of a job.
func (c *HTTPClient) FetchResult(ctx context.Context, h Handle) (*dataset.Table, error) {
	res, err := c.do(ctx, http.MethodGet, c.jobPath(h)+"/result", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	t, err := dataset.ReadGzipCSV(string(h), res.Body)
	if err != nil {
		return nil, fmt.Errorf("decode result of job %s: %w", h, err)
	}
	return t, nil
}

func (c *HTTPClient) get(ctx context.Context, h Handle) (*jobResponse, error) {
	var resp jobResponse
	if err := c.doJSON(ctx, http.MethodGet, c.jobPath(h), nil, &resp); err != nil {
		return nil, fmt.Errorf("get job %s: %w", h, err)
	}
	return &resp, nil
}

func (c *HTTPClient) jobPath(h Handle) string {
	return "/v1/jobs/" + url.PathEscape(string(h))
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	res, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends a request and turns non-2xx answers into *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		_ = res.Body.Close()
		return nil, ErrUnknownJob
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer func() { _ = res.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return res, nil
}
