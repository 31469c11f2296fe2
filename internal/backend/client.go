/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

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

	"mockupstudio/internal/domain"
	"mockupstudio/internal/storage"
)

// Client implements storage.Adapter against the HTTP API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// apiError carries the server message while matching the taxonomy class.
type apiError struct {
	class  error
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.class, e.status, e.msg)
}

func (e *apiError) Unwrap() error { return e.class }

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if c.Token == "" {
		return domain.ErrAuthRequired
	}
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return domain.Validationf("bad url: %v", err)
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.Validationf("encode request: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return domain.PersistenceError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PersistenceError(method+" "+u.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &apiError{class: errorFor(resp.StatusCode), status: resp.StatusCode, msg: e.Error}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return domain.PersistenceError("decode response", err)
	}
	return nil
}

func saveBody(opts storage.SaveOptions) (designRequest, error) {
	blob, err := storage.EncodeCanvasData(opts.CanvasData)
	if err != nil {
		return designRequest{}, err
	}
	return designRequest{
		Title:       opts.Title,
		Description: opts.Description,
		CanvasData:  blob,
		PreviewURL:  opts.PreviewURL,
		IsPublic:    opts.IsPublic,
	}, nil
}

// Save creates a design.
func (c *Client) Save(ctx context.Context, opts storage.SaveOptions) (*domain.Design, error) {
	body, err := saveBody(opts)
	if err != nil {
		return nil, err
	}
	var d domain.Design
	if err := c.do(ctx, http.MethodPost, "/api/designs", body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Update overwrites design id.
func (c *Client) Update(ctx context.Context, id string, opts storage.SaveOptions) (*domain.Design, error) {
	if id == "" {
		return nil, domain.Validationf("design id is required")
	}
	body, err := saveBody(opts)
	if err != nil {
		return nil, err
	}
	var d domain.Design
	if err := c.do(ctx, http.MethodPut, "/api/designs/"+url.PathEscape(id), body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Load fetches design id.
func (c *Client) Load(ctx context.Context, id string) (*domain.Design, error) {
	var d domain.Design
	if err := c.do(ctx, http.MethodGet, "/api/designs/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete removes design id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/designs/"+url.PathEscape(id), nil, nil)
}

// List returns the caller's designs.
func (c *Client) List(ctx context.Context) ([]storage.Summary, error) {
	var list []storage.Summary
	if err := c.do(ctx, http.MethodGet, "/api/designs", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

var _ storage.Adapter = (*Client)(nil)
