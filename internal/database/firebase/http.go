package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

const maxErrorBody = 512

// doGetJSON performs a GET request and unmarshals the JSON response into the result type.
// A JSON null body (no data at the path) yields a nil result.
func doGetJSON[T any](ctx context.Context, c *Client, path string) (*T, error) {
	return doRequestJSON[T](ctx, c, http.MethodGet, path, nil, http.StatusOK)
}

// doPatchJSON updates only the given children of path.
func doPatchJSON(ctx context.Context, c *Client, path string, fields map[string]any) error {
	_, err := doRequestJSON[json.RawMessage](ctx, c, http.MethodPatch, path, fields, http.StatusOK)
	return err
}

// doPutJSON replaces the data at path.
func doPutJSON(ctx context.Context, c *Client, path string, requestBody any) error {
	_, err := doRequestJSON[json.RawMessage](ctx, c, http.MethodPut, path, requestBody, http.StatusOK)
	return err
}

// doRequestJSON performs an HTTP request with a JSON body and response.
// It accepts one or more valid status codes. If the response status doesn't match any, an error is returned.
func doRequestJSON[T any](ctx context.Context, c *Client, method, path string, requestBody any, expectedStatuses ...int) (*T, error) {
	url := c.resolveURL(path)

	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	return &result, nil
}

// readErrorBody returns a trimmed prefix of an error response body.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
