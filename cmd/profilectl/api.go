package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"profilegate/internal/profile/handler"
	"profilegate/pkg/platform/httputil"
)

// apiClient speaks the profilegate HTTP API using the server's own wire types.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// apiError is a non-2xx reply decoded from the error envelope.
type apiError struct {
	Status int
	httputil.ErrorResponse
}

func (e *apiError) Error() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.ErrorResponse.Error, e.ErrorDescription)
	}
	return fmt.Sprintf("%d %s", e.Status, e.ErrorResponse.Error)
}

func (c *apiClient) getProfile(ctx context.Context, id int64) (*handler.ProfileResponse, error) {
	var out handler.ProfileResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/profile/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) createProfile(ctx context.Context, req *handler.CreateProfileRequest) (*handler.SuccessResponse, error) {
	var out handler.SuccessResponse
	if err := c.do(ctx, http.MethodPost, "/create-profile", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.ErrorResponse); err != nil || apiErr.ErrorResponse.Error == "" {
			apiErr.ErrorResponse.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
