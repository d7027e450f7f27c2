package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// errorResponse is the JSON body Last.fm returns for failed calls.
type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// call makes a single HTTP request to the Last.fm API and returns the raw
// JSON body on success.
//
// It handles:
// - Request construction (GET query string or POST form body)
// - Signature calculation
// - API error decoding into *Error
// - Context cancellation
//
// There is no retry logic: delivery is best-effort and callers treat a
// failed call as a skipped action.
func (c *Client) call(ctx context.Context, httpMethod, method string, params map[string]string, requiresAuth bool) ([]byte, error) {
	reqParams := make(map[string]string, len(params)+4)
	for k, v := range params {
		reqParams[k] = v
	}
	reqParams["method"] = method
	reqParams["api_key"] = c.apiKey

	if requiresAuth {
		if c.sessionKey == "" {
			return nil, ErrNoSessionKey
		}
		reqParams["sk"] = c.sessionKey
	}

	// Sign before attaching format: neither format nor the signature
	// itself participate in the signature.
	reqParams["api_sig"] = calculateSignature(reqParams, c.apiSecret)
	reqParams["format"] = "json"

	formData := url.Values{}
	for k, v := range reqParams {
		formData.Add(k, v)
	}

	var req *http.Request
	var err error
	switch httpMethod {
	case http.MethodGet:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+formData.Encode(), nil)
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(formData.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "scrobblerd/1.0")

	c.logDebugf("lastfm: calling %s", method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Last.fm reports API failures as a JSON error document, usually with
	// a non-2xx status. Prefer the decoded error over the bare status.
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != 0 {
		return nil, &Error{Code: apiErr.Error, Message: apiErr.Message}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	c.logDebugf("lastfm: %s succeeded", method)
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
