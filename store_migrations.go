package crewkit

import (
	"github.com/fernandezvara/dbkit"
)

// Migrations returns all database migrations required by PostgresStore.
// Use db.Migrate(ctx, crewkit.Migrations()) to run them.
func Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "crewkit-001",
			Description: "Create team_members table",
			SQL: `
                CREATE TABLE IF NOT EXISTS team_members (
                    team_id TEXT NOT NULL,
                    user_id TEXT NOT NULL,
                    display_name TEXT NOT NULL DEFAULT '',
                    email TEXT NOT NULL DEFAULT '',
                    role TEXT NOT NULL CHECK (role IN ('admin', 'manager', 'field_worker')),
                    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    last_modified TIMESTAMPTZ,
                    modified_by TEXT,
                    PRIMARY KEY (team_id, user_id)
                )`,
		},
		{
			ID:          "crewkit-002",
			Description: "Create role_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_audit_log (
                    id TEXT PRIMARY KEY,
                    action TEXT NOT NULL,
                    actor_id TEXT NOT NULL,
                    actor_display_name TEXT,
                    target_user_id TEXT NOT NULL,
                    target_display_name TEXT,
                    team_id TEXT NOT NULL,
                    details JSONB NOT NULL DEFAULT '{}'::jsonb,
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "crewkit-003",
			Description: "Index role_audit_log by team and time",
			SQL: `
                CREATE INDEX IF NOT EXISTS role_audit_log_team_timestamp_idx
                    ON role_audit_log (team_id, timestamp DESC)`,
		},
		{
			ID:          "crewkit-004",
			Description: "Create role_change_requests table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_change_requests (
                    request_id TEXT PRIMARY KEY,
                    team_id TEXT NOT NULL,
                    requester_id TEXT NOT NULL,
                    target_user_id TEXT NOT NULL,
                    from_role TEXT NOT NULL,
                    to_role TEXT NOT NULL,
                    reason TEXT,
                    status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'completed')),
                    requested_at TIMESTAMPTZ NOT NULL,
                    processed_at TIMESTAMPTZ,
                    processed_by TEXT,
                    rejection_reason TEXT
                )`,
		},
		{
			ID:          "crewkit-005",
			Description: "Index role_change_requests by team and status",
			SQL: `
                CREATE INDEX IF NOT EXISTS role_change_requests_team_status_idx
                    ON role_change_requests (team_id, status, requested_at DESC)`,
		},
	}
}
