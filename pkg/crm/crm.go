// Package crm dispatches CRM field updates produced by task resolution.
// Updates are queued and retried out of band so a slow CRM cannot stall
// queue reads.
package crm

import "context"

// Update is the structured payload sent to the CRM when an update_crm task
// resolves.
type Update struct {
	TaskID     string         `json:"task_id"`
	CustomerID string         `json:"customer_id"`
	Fields     map[string]any `json:"fields"`
}

// Result reports the outcome of a CRM call. Retryable distinguishes
// transient failures (rate limits, timeouts) from permanent ones (unknown
// customer, bad field).
type Result struct {
	Success   bool   `json:"success"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message,omitempty"`
}

// Connector applies an update against the external CRM.
type Connector interface {
	ApplyUpdate(ctx context.Context, update Update) (Result, error)
}

// Queue enqueues updates for asynchronous delivery by a worker.
type Queue interface {
	Enqueue(ctx context.Context, update Update) error
	Dequeue(ctx context.Context) (Update, error)
}
