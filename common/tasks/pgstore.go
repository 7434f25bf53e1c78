package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists human tasks outside the in-memory queue. The queue stays
// authoritative for ordering and waiters; a store mirrors transitions so
// tasks survive process restarts.
type Store interface {
	Upsert(ctx context.Context, task *HumanTask) error
	Load(ctx context.Context, id string) (*HumanTask, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*HumanTask, error)
	Delete(ctx context.Context, id string) error
}

// PGStore is a Postgres-backed task store on pgx.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a task store over an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate creates the human_task table if missing.
func (s *PGStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS human_task (
			id            TEXT PRIMARY KEY,
			workflow_id   TEXT NOT NULL,
			token_id      TEXT NOT NULL,
			activity_id   TEXT NOT NULL,
			role_id       TEXT NOT NULL,
			priority      TEXT NOT NULL,
			status        TEXT NOT NULL,
			assignee_id   TEXT,
			inputs        JSONB,
			outputs       JSONB,
			reject_reason TEXT,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			due_at        TIMESTAMPTZ,
			completed_at  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS human_task_workflow_idx ON human_task (workflow_id);
		CREATE INDEX IF NOT EXISTS human_task_pending_idx ON human_task (status, priority, created_at);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate human_task: %w", err)
	}
	return nil
}

// Upsert writes the full task row.
func (s *PGStore) Upsert(ctx context.Context, task *HumanTask) error {
	inputs, err := json.Marshal(task.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal task inputs: %w", err)
	}
	outputs, err := json.Marshal(task.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal task outputs: %w", err)
	}

	query := `
		INSERT INTO human_task (
			id, workflow_id, token_id, activity_id, role_id, priority, status,
			assignee_id, inputs, outputs, reject_reason, created_at, updated_at, due_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			assignee_id = EXCLUDED.assignee_id,
			outputs = EXCLUDED.outputs,
			reject_reason = EXCLUDED.reject_reason,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = s.pool.Exec(ctx, query,
		task.ID,
		task.WorkflowID,
		task.TokenID,
		task.ActivityID,
		task.RoleID,
		string(task.Priority),
		string(task.Status),
		nullable(task.AssigneeID),
		inputs,
		outputs,
		nullable(task.RejectReason),
		task.CreatedAt,
		task.UpdatedAt,
		task.DueAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// Load reads one task row.
func (s *PGStore) Load(ctx context.Context, id string) (*HumanTask, error) {
	query := `
		SELECT id, workflow_id, token_id, activity_id, role_id, priority, status,
		       assignee_id, inputs, outputs, reject_reason, created_at, updated_at, due_at, completed_at
		FROM human_task
		WHERE id = $1
	`
	task, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return task, nil
}

// ListByWorkflow reads all task rows for a workflow in pending order.
func (s *PGStore) ListByWorkflow(ctx context.Context, workflowID string) ([]*HumanTask, error) {
	query := `
		SELECT id, workflow_id, token_id, activity_id, role_id, priority, status,
		       assignee_id, inputs, outputs, reject_reason, created_at, updated_at, due_at, completed_at
		FROM human_task
		WHERE workflow_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for workflow %s: %w", workflowID, err)
	}
	defer rows.Close()

	var out []*HumanTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Delete removes a task row.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM human_task WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*HumanTask, error) {
	var (
		task         HumanTask
		priority     string
		status       string
		assignee     *string
		rejectReason *string
		inputs       []byte
		outputs      []byte
	)

	err := row.Scan(
		&task.ID,
		&task.WorkflowID,
		&task.TokenID,
		&task.ActivityID,
		&task.RoleID,
		&priority,
		&status,
		&assignee,
		&inputs,
		&outputs,
		&rejectReason,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.DueAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = Priority(priority)
	task.Status = Status(status)
	if assignee != nil {
		task.AssigneeID = *assignee
	}
	if rejectReason != nil {
		task.RejectReason = *rejectReason
	}
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &task.Inputs); err != nil {
			return nil, err
		}
	}
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &task.Outputs); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ErrNoRows re-exports the pgx sentinel so callers need not import pgx to
// branch on empty lookups.
var ErrNoRows = pgx.ErrNoRows

var _ Store = (*PGStore)(nil)
