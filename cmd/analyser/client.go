package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/analysis"
	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/handlers"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
)

// apiError is a non-2xx response from the server.
type apiError struct {
	Code   int
	Detail string
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
}

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	Path     string
	Query    string
	Email    string
	Username string
}

func (c *client) analyze(ctx context.Context, req submitRequest) (*analysis.AnalyzeResponse, error) {
	var out analysis.AnalyzeResponse
	if err := c.submit(ctx, "/analyze", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) enqueue(ctx context.Context, req submitRequest) (*analysis.QueuedResponse, error) {
	var out analysis.QueuedResponse
	if err := c.submit(ctx, "/analyze/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) listJobs(ctx context.Context, params url.Values) (*pagination.PageResult[jobs.Job], error) {
	var out pagination.PageResult[jobs.Job]
	if err := c.get(ctx, "/jobs", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) findJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.get(ctx, "/jobs/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) cancelJob(ctx context.Context, id uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/jobs/"+id.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *client) listResults(ctx context.Context, params url.Values) (*pagination.PageResult[results.Result], error) {
	var out pagination.PageResult[results.Result]
	if err := c.get(ctx, "/results", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) findResult(ctx context.Context, id uuid.UUID) (*results.Result, error) {
	var out results.Result
	if err := c.get(ctx, "/results/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) get(ctx context.Context, path string, params url.Values, out any) error {
	target := c.base + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) submit(ctx context.Context, path string, sr submitRequest, out any) error {
	data, err := os.ReadFile(sr.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", sr.Path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(sr.Path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"query":    sr.Query,
		"email":    sr.Email,
		"username": sr.Username,
	} {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body handlers.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &body) != nil {
			body.Detail = strings.TrimSpace(string(raw))
		}
		return &apiError{Code: resp.StatusCode, Detail: body.Detail}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
