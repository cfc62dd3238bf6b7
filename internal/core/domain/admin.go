package domain

import "time"

// AdminAction names an administrative operation recorded in the audit log.
type AdminAction string

const (
	ActionSuspend      AdminAction = "SUSPEND"
	ActionUnsuspend    AdminAction = "UNSUSPEND"
	ActionResetFailure AdminAction = "RESET_FAIL"
)

// AdminLogEntry is one row of the administrative audit trail.
type AdminLogEntry struct {
	ID        string      `json:"id"`
	Actor     string      `json:"actor"`
	Target    string      `json:"target"`
	Action    AdminAction `json:"action"`
	Detail    string      `json:"detail"`
	CreatedAt time.Time   `json:"created_at"`
}
