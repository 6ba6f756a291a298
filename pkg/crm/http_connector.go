package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPConnector delivers updates to the CRM's webhook endpoint. Transport
// failures and 5xx responses come back as retryable results; a 4xx means
// the CRM rejected the payload and retrying cannot help.
type HTTPConnector struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPConnector(endpoint, token string) *HTTPConnector {
	return &HTTPConnector{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

func (c *HTTPConnector) ApplyUpdate(ctx context.Context, update Update) (Result, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode crm update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create crm request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Retryable: true, Message: err.Error()}, nil
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return Result{Success: true}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return Result{Retryable: true, Message: fmt.Sprintf("crm responded with status %d", resp.StatusCode)}, nil
	default:
		return Result{Message: fmt.Sprintf("crm rejected update with status %d", resp.StatusCode)}, nil
	}
}

// LogConnector writes updates to the log instead of an external system.
// Used when no CRM endpoint is configured.
type LogConnector struct {
	logger *slog.Logger
}

func NewLogConnector(logger *slog.Logger) *LogConnector {
	return &LogConnector{logger: logger.With("module", "crm")}
}

func (c *LogConnector) ApplyUpdate(ctx context.Context, update Update) (Result, error) {
	c.logger.InfoContext(ctx, "crm update (log connector)",
		"task_id", update.TaskID,
		"customer_id", update.CustomerID,
		"fields", update.Fields)

	return Result{Success: true}, nil
}
