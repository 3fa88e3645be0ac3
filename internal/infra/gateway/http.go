package gateway

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

	"github.com/agora-market/agora/internal/domain"
)

// HTTPClient talks to the real delivery backend over JSON/HTTP.
// Every request carries the configured timeout; transport failures and
// timeouts surface as domain.ErrGatewayUnavailable so the engine degrades
// to the local mirror instead of hanging.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL.
// A zero timeout defaults to 5 seconds.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListAvailable(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/available", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *HTTPClient) Accept(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	var task domain.Task
	body := map[string]string{"actor_id": actorID}
	path := "/v1/tasks/" + url.PathEscape(taskID) + "/accept"
	if err := c.do(ctx, http.MethodPost, path, body, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, taskID string, status domain.DeliveryStatus) error {
	body := map[string]string{"status": string(status)}
	path := "/v1/tasks/" + url.PathEscape(taskID) + "/status"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *HTTPClient) Complete(ctx context.Context, taskID string) error {
	path := "/v1/tasks/" + url.PathEscape(taskID) + "/complete"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *HTTPClient) ListCompleted(ctx context.Context, actorID string) ([]domain.Task, error) {
	var tasks []domain.Task
	path := "/v1/partners/" + url.PathEscape(actorID) + "/completed"
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *HTTPClient) GetEarnings(ctx context.Context, actorID string, period EarningsPeriod) (EarningsSummary, error) {
	var sum EarningsSummary
	path := "/v1/partners/" + url.PathEscape(actorID) + "/earnings?period=" + url.QueryEscape(string(period))
	if err := c.do(ctx, http.MethodGet, path, nil, &sum); err != nil {
		return EarningsSummary{}, err
	}
	return sum, nil
}

// do performs one JSON request/response round trip.
// Status mapping: 409 → ErrAlreadyAssigned, 404 → ErrTaskNotFound,
// anything else non-2xx (and any transport error) → ErrGatewayUnavailable.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: gateway rejected duplicate accept", domain.ErrAlreadyAssigned)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: gateway has no such task", domain.ErrTaskNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
