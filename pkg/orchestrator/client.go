// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the HTTP JSON protocol spoken between the
// agent and the remote orchestrator.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/resilience"
)

const maxErrorBody = 4 << 10

// Client calls the orchestrator API.
type Client struct {
	BaseURL   string
	AuthToken string
	UserAgent string
	HTTP      *http.Client

	// PollTimeout bounds each popQuery request. Zero disables the bound.
	PollTimeout time.Duration
}

// NewClient creates a client for the orchestrator at baseURL.
func NewClient(baseURL, authToken string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		BaseURL:   baseURL,
		AuthToken: authToken,
		HTTP:      http.DefaultClient,
	}
}

// RegisterAgent publishes the agent identity and catalog.
func (c *Client) RegisterAgent(ctx context.Context, req RegisterAgentRequest) (RegisterAgentResponse, error) {
	var out RegisterAgentResponse
	err := c.post(ctx, PathRegisterAgent, req, &out)
	return out, err
}

// PopQuery long-polls for the next pending query. A nil query means there
// is no work. The request is bounded by PollTimeout.
func (c *Client) PopQuery(ctx context.Context, req PopQueryRequest) (*PendingQuery, error) {
	var out PopQueryResponse
	err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{
		Duration: c.PollTimeout,
		Message:  fmt.Sprintf("Polling timeout after %dms", c.PollTimeout.Milliseconds()),
	}, func(ctx context.Context) error {
		return c.post(ctx, PathPopQuery, req, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Query, nil
}

// PostQueryResponse reports the outcome of a query.
func (c *Client) PostQueryResponse(ctx context.Context, req PostQueryResponseRequest) error {
	return c.post(ctx, PathPostQueryResponse, req, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.New(errors.CodeInternal, "encode "+path+" request", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.New(errors.CodeInternal, "build "+path+" request", err)
	}
	c.applyHeaders(ctx, request)

	response, err := c.http().Do(request)
	if err != nil {
		return errors.New(errors.CodeTransport, path+" request failed", err).
			WithContext("path", path).
			WithRecoverable(true)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return parseHTTPError(path, response)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil && err != io.EOF {
		return errors.New(errors.CodeServer, "decode "+path+" response", err).
			WithContext("path", path).
			WithRecoverable(true)
	}
	return nil
}

func (c *Client) applyHeaders(ctx context.Context, request *http.Request) {
	request.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.AuthToken) != "" {
		request.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	if c.UserAgent != "" {
		request.Header.Set("User-Agent", c.UserAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))
}

func (c *Client) http() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// parseHTTPError classifies a non-2xx response. 4xx responses are client
// errors and are not recoverable; everything else is.
func parseHTTPError(path string, response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	code := errors.CodeServer
	recoverable := true
	if response.StatusCode >= 400 && response.StatusCode < 500 {
		code = errors.CodeClient
		recoverable = false
	}
	ae := errors.New(code, fmt.Sprintf("%s failed: %s", path, response.Status), nil).
		WithStatus(response.StatusCode).
		WithContext("path", path).
		WithRecoverable(recoverable)
	if text := strings.TrimSpace(string(body)); text != "" {
		ae.WithContext("body", text)
	}
	return ae
}
