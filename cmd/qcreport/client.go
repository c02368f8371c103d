package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/types"
)

// client talks to the qcdash HTTP API
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      types.Viewer `json:"user"`
}

func (c *client) login(name, password string) (*loginResponse, error) {
	body, err := json.Marshal(map[string]string{"name": name, "password": password})
	if err != nil {
		return nil, err
	}
	var resp loginResponse
	if err := c.do(http.MethodPost, "/api/login", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) me() (types.Viewer, error) {
	var v types.Viewer
	err := c.do(http.MethodGet, "/api/me", nil, nil, &v)
	return v, err
}

func (c *client) presence(params map[string]string) (*report.Report, error) {
	var rep report.Report
	if err := c.do(http.MethodGet, "/api/presence", params, nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *client) events(params map[string]string) ([]report.AgentEvents, error) {
	var logs []report.AgentEvents
	err := c.do(http.MethodGet, "/api/presence/events", params, nil, &logs)
	return logs, err
}

func (c *client) activity(date string) ([]types.ActivityEntry, error) {
	var entries []types.ActivityEntry
	err := c.do(http.MethodGet, "/api/activity", map[string]string{"date": date}, nil, &entries)
	return entries, err
}

func (c *client) invalidate() error {
	return c.do(http.MethodPost, "/api/admin/cache/invalidate", nil, nil, nil)
}

// do sends a request and decodes a JSON response into out. Non-2xx answers
// become errors carrying the server's message.
func (c *client) do(method, path string, params map[string]string, body []byte, out any) error {
	u := c.baseURL + path
	if q := encodeParams(params); q != "" {
		u += "?" + q
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func encodeParams(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}
	return values.Encode()
}

func apiError(status int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if status == http.StatusUnauthorized {
		return errors.New("not logged in or session expired, run qcreport login")
	}
	return fmt.Errorf("%d %s: %s", status, http.StatusText(status), msg)
}
