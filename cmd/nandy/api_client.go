package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// apiDo performs a request against the API and returns the response body.
// data, when non-nil, is sent as JSON.
func apiDo(method, path string, data any) ([]byte, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, apiAddr+path, body)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	return respBody, nil
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	return apiDo(http.MethodGet, path, nil)
}

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data any) ([]byte, error) {
	return apiDo(http.MethodPost, path, data)
}

// apiPatch performs a PATCH request to the API with timeout.
func apiPatch(path string, data any) ([]byte, error) {
	return apiDo(http.MethodPatch, path, data)
}

// apiDelete performs a DELETE request to the API with timeout.
func apiDelete(path string) ([]byte, error) {
	return apiDo(http.MethodDelete, path, nil)
}

// apiGetInto decodes a GET response into out.
func apiGetInto(path string, out any) error {
	resp, err := apiGet(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp, out)
}

// CheckHealth checks if the daemon is healthy.
func CheckHealth() error {
	_, err := apiGet("/health")
	return err
}

// printUpdated reports an action's {"updated": bool} response.
func printUpdated(resp []byte, what string) error {
	var result struct {
		Updated bool `json:"updated"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	if result.Updated {
		fmt.Printf("%s: updated\n", what)
	} else {
		fmt.Printf("%s: nothing to do\n", what)
	}
	return nil
}
