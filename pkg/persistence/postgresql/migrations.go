package postgresql

// migrations returns the versioned schema statements. The partial unique
// index on workflow_executions serializes concurrent instantiation for
// the same (customer, definition) pair; the notifications unique
// constraint is the delivery idempotency key.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				trigger JSONB,
				base_priority_weight INTEGER NOT NULL DEFAULT 0,
				sequence_number INTEGER NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL REFERENCES workflow_definitions(id),
				customer_id TEXT NOT NULL,
				assigned_owner_id TEXT NOT NULL DEFAULT '',
				escalation_owner_id TEXT,
				status TEXT NOT NULL,
				priority_score INTEGER NOT NULL DEFAULT 0,
				snooze_until TIMESTAMP WITH TIME ZONE,
				version BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX IF NOT EXISTS workflow_executions_active_pair
				ON workflow_executions (customer_id, definition_id)
				WHERE status NOT IN ('completed', 'completed_with_pending_tasks', 'skipped', 'failed');

			CREATE INDEX IF NOT EXISTS workflow_executions_owner
				ON workflow_executions (assigned_owner_id);

			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				workflow_execution_id TEXT NOT NULL REFERENCES workflow_executions(id),
				title TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'general',
				owner TEXT NOT NULL DEFAULT 'human',
				owner_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				requires_decision BOOLEAN NOT NULL DEFAULT FALSE,
				snooze_count INTEGER NOT NULL DEFAULT 0,
				first_snoozed_at TIMESTAMP WITH TIME ZONE,
				snooze_deadline TIMESTAMP WITH TIME ZONE,
				snoozed_until TIMESTAMP WITH TIME ZONE,
				crm_payload JSONB,
				version BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS tasks_execution
				ON tasks (workflow_execution_id);

			CREATE INDEX IF NOT EXISTS tasks_snoozed
				ON tasks (status) WHERE status = 'snoozed';

			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				recipient_id TEXT NOT NULL,
				rule_id TEXT NOT NULL,
				event_id TEXT NOT NULL,
				source_ref TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				priority INTEGER NOT NULL DEFAULT 3,
				read BOOLEAN NOT NULL DEFAULT FALSE,
				resolved_message TEXT NOT NULL DEFAULT '',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT notifications_delivery_key UNIQUE (rule_id, event_id, recipient_id)
			);

			CREATE INDEX IF NOT EXISTS notifications_recipient
				ON notifications (recipient_id, read, created_at DESC);
		`,
	}
}
