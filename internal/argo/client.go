package argo

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept as the message.
	maxErrorBody = 64 << 10

	// maxLogLine bounds one line of the log stream.
	maxLogLine = 1 << 20

	mainContainer = "main"
)

// Compile-time interface satisfaction check.
var _ Engine = (*Client)(nil)

// ClientConfig holds the connection settings for an Argo server.
type ClientConfig struct {
	// Endpoint is the base URL of the Argo server, e.g. https://localhost:2746.
	Endpoint string

	// Token is sent as a bearer token when set.
	Token string

	// Insecure disables TLS certificate verification.
	Insecure bool

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// Client talks to the Argo Server REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the Argo server described by cfg.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // argo-server ships a self-signed certificate
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		token:   cfg.Token,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		logger:  logger,
	}
}

func workflowsPath(namespace string) string {
	return "/api/v1/workflows/" + url.PathEscape(namespace)
}

func workflowPath(namespace, name string) string {
	return workflowsPath(namespace) + "/" + url.PathEscape(name)
}

// Create submits wf to the namespace.
func (c *Client) Create(ctx context.Context, namespace string, wf *Workflow) (*Workflow, error) {
	body := struct {
		Workflow *Workflow `json:"workflow"`
	}{Workflow: wf}

	var created Workflow
	if err := c.do(ctx, opCreate, http.MethodPost, workflowsPath(namespace), body, &created); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	return &created, nil
}

// List returns the workflows of the namespace.
func (c *Client) List(ctx context.Context, namespace string) ([]Workflow, error) {
	var list struct {
		Items []Workflow `json:"items"`
	}
	if err := c.do(ctx, opList, http.MethodGet, workflowsPath(namespace), nil, &list); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	if list.Items == nil {
		return []Workflow{}, nil
	}
	return list.Items, nil
}

// Get returns one workflow.
func (c *Client) Get(ctx context.Context, namespace, name string) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, opGet, http.MethodGet, workflowPath(namespace, name), nil, &wf); err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", name, err)
	}
	return &wf, nil
}

// Delete removes a workflow and its pods.
func (c *Client) Delete(ctx context.Context, namespace, name string) error {
	if err := c.do(ctx, opDelete, http.MethodDelete, workflowPath(namespace, name), nil, nil); err != nil {
		return fmt.Errorf("delete workflow %s: %w", name, err)
	}
	return nil
}

// Stop stops a workflow, letting exit handlers run.
func (c *Client) Stop(ctx context.Context, namespace, name string) (*Workflow, error) {
	return c.action(ctx, opStop, namespace, name)
}

// Suspend suspends a running workflow.
func (c *Client) Suspend(ctx context.Context, namespace, name string) (*Workflow, error) {
	return c.action(ctx, opSuspend, namespace, name)
}

// Resume resumes a suspended workflow.
func (c *Client) Resume(ctx context.Context, namespace, name string) (*Workflow, error) {
	return c.action(ctx, opResume, namespace, name)
}

func (c *Client) action(ctx context.Context, op, namespace, name string) (*Workflow, error) {
	var wf Workflow
	path := workflowPath(namespace, name) + "/" + op
	if err := c.do(ctx, op, http.MethodPut, path, struct{}{}, &wf); err != nil {
		return nil, fmt.Errorf("%s workflow %s: %w", op, name, err)
	}
	return &wf, nil
}

// logEntry is one line of the newline-delimited log stream.
type logEntry struct {
	Result *struct {
		Content string `json:"content"`
		PodName string `json:"podName"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Logs returns the main container log of a workflow pod, one line per entry.
func (c *Client) Logs(ctx context.Context, namespace, name, podName string) (string, error) {
	q := url.Values{}
	q.Set("podName", podName)
	q.Set("logOptions.container", mainContainer)
	path := workflowPath(namespace, name) + "/log?" + q.Encode()

	start := time.Now()
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.observe(opLogs, start, err)
		return "", fmt.Errorf("get log of %s/%s: %w", name, podName, err)
	}
	defer resp.Body.Close()

	out, err := readLogStream(resp.Body)
	c.observe(opLogs, start, err)
	if err != nil {
		return "", fmt.Errorf("get log of %s/%s: %w", name, podName, err)
	}
	return out, nil
}

func readLogStream(r io.Reader) (string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLogLine)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry logEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return "", fmt.Errorf("decode log entry: %w", err)
		}
		if entry.Error != nil {
			return "", &APIError{StatusCode: http.StatusInternalServerError, Message: entry.Error.Message}
		}
		if entry.Result != nil {
			lines = append(lines, entry.Result.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read log stream: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// do sends one request, decodes a 2xx body into out when out is non-nil,
// and records the request in the engine metrics.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, in, out)
	c.observe(op, start, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
// On success the caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// decodeAPIError extracts the gRPC-gateway error message when present.
func decodeAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *Client) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	engineRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	engineRequestsTotal.WithLabelValues(op, outcomeOf(err)).Inc()

	if err != nil {
		c.logger.Debug("argo request failed", "op", op, "error", err, "duration_ms", elapsed.Milliseconds())
	}
}
