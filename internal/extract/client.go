package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"course-harvest/internal/domain"
	"course-harvest/internal/httpx"
)

// Client is an HTTP client for a Firecrawl-style batch scrape API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// StatusRetry applies to status checks only; submissions are sent once.
	StatusRetry httpx.RetryConfig
}

// New returns a Client with a per-request timeout.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout: 60 * time.Second,
		},
		StatusRetry: httpx.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Second,
			MaxDelay:    5 * time.Second,
			Retry5xx:    true,
		},
	}
}

type submitRequest struct {
	URLs    []string      `json:"urls"`
	Formats []string      `json:"formats"`
	Extract submitExtract `json:"extract"`
}

type submitExtract struct {
	Schema map[string]any `json:"schema,omitempty"`
	Prompt string         `json:"prompt,omitempty"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Status    string       `json:"status"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Data      []statusItem `json:"data"`
	Error     string       `json:"error"`
}

type statusItem struct {
	Extract struct {
		Courses json.RawMessage `json:"courses"`
		Records json.RawMessage `json:"records"`
	} `json:"extract"`
	Metadata struct {
		SourceURL string `json:"sourceURL"`
		URL       string `json:"url"`
		Error     string `json:"error"`
	} `json:"metadata"`
}

// Submit creates a batch job. Transport failures, non-2xx responses, bodies
// that aren't JSON and handles without an id or URL are all errors.
func (c *Client) Submit(ctx context.Context, job Job) (Handle, error) {
	if len(job.URLs) == 0 {
		return Handle{}, errors.New("extract: no urls to submit")
	}

	build, err := httpx.JSONRequest(http.MethodPost, c.BaseURL+"/v1/batch/scrape", submitRequest{
		URLs:    job.URLs,
		Formats: []string{"extract"},
		Extract: submitExtract{Schema: job.Schema, Prompt: job.Prompt},
	}, c.authHeader())
	if err != nil {
		return Handle{}, err
	}

	var out submitResponse
	if err := httpx.DoJSON(ctx, c.HTTP, build, &out, httpx.SingleAttempt()); err != nil {
		return Handle{}, fmt.Errorf("extract: submit batch: %w", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "success=false"
		}
		return Handle{}, fmt.Errorf("extract: submit batch rejected: %s", msg)
	}

	h := Handle{ID: strings.TrimSpace(out.ID), URL: strings.TrimSpace(out.URL)}
	if !h.Valid() {
		return Handle{}, ErrMalformedHandle
	}
	return h, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, h Handle) (JobStatus, error) {
	if !h.Valid() {
		return JobStatus{}, ErrMalformedHandle
	}
	u := h.URL
	if u == "" {
		u = c.BaseURL + "/v1/batch/scrape/" + h.ID
	}

	build, err := httpx.JSONRequest(http.MethodGet, u, nil, c.authHeader())
	if err != nil {
		return JobStatus{}, err
	}

	var out statusResponse
	if err := httpx.DoJSON(ctx, c.HTTP, build, &out, c.StatusRetry); err != nil {
		return JobStatus{}, fmt.Errorf("extract: job status: %w", err)
	}

	st := JobStatus{
		Status:    strings.ToLower(strings.TrimSpace(out.Status)),
		Completed: out.Completed,
		Total:     out.Total,
		Results:   make([]SourceResult, 0, len(out.Data)),
	}
	for _, item := range out.Data {
		courses, badCourses := decodeRecords(item.Extract.Courses)
		records, badRecords := decodeRecords(item.Extract.Records)
		st.Results = append(st.Results, SourceResult{
			SourceURL: firstNonEmpty(item.Metadata.SourceURL, item.Metadata.URL),
			Records:   append(courses, records...),
			Dropped:   badCourses + badRecords,
			Error:     item.Metadata.Error,
		})
	}
	return st, nil
}

// decodeRecords unmarshals each element of a record array on its own so one
// bad record does not take its siblings down. A value that is not an array
// counts as a single dropped record.
func decodeRecords(b json.RawMessage) ([]domain.RawRecord, int) {
	if len(b) == 0 || string(b) == "null" {
		return nil, 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, 1
	}
	out := make([]domain.RawRecord, 0, len(items))
	dropped := 0
	for _, item := range items {
		var rec domain.RawRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.APIKey)
	}
	return h
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
