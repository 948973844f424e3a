package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient makes REST calls to the coaching server.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
// Answer analysis can take a while, so the timeout is generous.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// StartSession sends POST /api/sessions.
func (c *HTTPClient) StartSession(req StartRequest) (*SessionState, error) {
	var out SessionState
	if err := c.do(http.MethodPost, "/api/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer sends POST /api/sessions/{id}/answer.
func (c *HTTPClient) SubmitAnswer(sessionID, answer string) (*AnswerResult, error) {
	var out AnswerResult
	body := map[string]string{"answer": answer}
	if err := c.do(http.MethodPost, sessionPath(sessionID, "/answer"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Abandon sends DELETE /api/sessions/{id}.
func (c *HTTPClient) Abandon(sessionID string) (*SessionState, error) {
	var out SessionState
	if err := c.do(http.MethodDelete, sessionPath(sessionID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary fetches /api/sessions/{id}/summary.
func (c *HTTPClient) Summary(sessionID string) (*Summary, error) {
	var out Summary
	if err := c.do(http.MethodGet, sessionPath(sessionID, "/summary"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHealth fetches /api/health.
func (c *HTTPClient) GetHealth() (*Health, error) {
	var out Health
	if err := c.do(http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(id, suffix string) string {
	return "/api/sessions/" + url.PathEscape(id) + suffix
}

// do issues a request and decodes a JSON response. Error bodies of the
// form {"error": "..."} are surfaced as the error text.
func (c *HTTPClient) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var e ErrorPayload
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
