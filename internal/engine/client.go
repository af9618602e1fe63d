// Package engine issues definition statements to the streaming SQL engine's
// REST endpoint.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-rollup/internal/model"
)

const contentType = "application/vnd.ksql.v1+json; charset=utf-8"

// StatementError is an error response returned by the engine for a statement.
type StatementError struct {
	Status    int    `json:"-"`
	Code      int    `json:"error_code"`
	Message   string `json:"message"`
	Statement string `json:"statementText"`
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("engine rejected statement (status %d, code %d): %s", e.Status, e.Code, e.Message)
}

// Client executes statements against the engine. It implements rollup.Executor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	properties map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithProperty sets a streams property sent with every statement, e.g.
// ksql.streams.auto.offset.reset.
func WithProperty(key, value string) Option {
	return func(c *Client) { c.properties[key] = value }
}

// NewClient creates a client for the engine at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		properties: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ksqlRequest struct {
	KSQL              string            `json:"ksql"`
	StreamsProperties map[string]string `json:"streamsProperties"`
}

// Execute posts one statement to /ksql.
func (c *Client) Execute(ctx context.Context, entity model.PhysicalEntity, statement string) error {
	body, err := json.Marshal(ksqlRequest{KSQL: statement, StreamsProperties: c.properties})
	if err != nil {
		return fmt.Errorf("encode statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ksql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("post statement for %s: %w", entity.Topic, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response for %s: %w", entity.Topic, err)
	}

	if resp.StatusCode >= 300 {
		stmtErr := &StatementError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(payload, stmtErr); jsonErr != nil || stmtErr.Message == "" {
			stmtErr.Message = strings.TrimSpace(string(payload))
		}
		slog.Warn("[EngineClient] Statement rejected",
			"name", entity.Topic,
			"role", entity.Role.String(),
			"status", resp.StatusCode,
			"error_code", stmtErr.Code,
		)
		return stmtErr
	}

	slog.Debug("[EngineClient] Statement executed",
		"name", entity.Topic,
		"role", entity.Role.String(),
		"duration", time.Since(start),
	)
	return nil
}
