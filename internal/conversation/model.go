package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one stored conversation turn. Embedding may be empty when the
// embedding provider was unavailable at write time; such rows still take part
// in keyword and direct matching.
type Message struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	RecordedAt time.Time `json:"recorded_at"`
	Embedding  []float32 `json:"-"`
	Topics     []string  `json:"topics"`
	Importance float32   `json:"importance_score"`
}
