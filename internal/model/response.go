package model

import "time"

type ChatResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Phase     Phase  `json:"phase,omitempty"` // 当前会话阶段，前端据此同步画布状态
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type,omitempty"` // message | plan_approved
}

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	Phase        Phase     `json:"phase"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
