package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents      = "FITCOACH_EVENTS"
	StreamMaintenance = "FITCOACH_MAINTENANCE"
)

// Subject constants.
const (
	SubjectTurnEvent          = "fitcoach.events.turn"
	SubjectAuditEvent         = "fitcoach.events.audit"
	SubjectMaintenancePrune   = "fitcoach.maintenance.prune"
	SubjectMaintenanceRebuild = "fitcoach.maintenance.rebuild"
)

// TurnEvent is published after each completed conversation turn.
type TurnEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	UsedRAG   bool      `json:"used_rag"`
	Tools     []string  `json:"tools,omitempty"`
	Tokens    int       `json:"tokens"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEvent is published for compliance/audit logging.
type AuditEvent struct {
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"` // info, warn, error
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// MaintenanceRequest asks the maintenance runner to prune old messages or
// rebuild the vector index out of schedule.
type MaintenanceRequest struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by"`
	Timestamp   time.Time `json:"timestamp"`
}
