package model

import "time"

// Phase 会话阶段
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseCollecting       Phase = "COLLECTING_REQUIREMENTS"
	PhaseScriptReview     Phase = "SCRIPT_REVIEW"
	PhaseGraphPreview     Phase = "GRAPH_PREVIEW"
	PhaseEditConfirmation Phase = "EDIT_CONFIRMATION"
)

// Message 会话内一条消息
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Phase     Phase     `json:"phase,omitempty"` // 产生该消息时会话所处阶段
	Timestamp time.Time `json:"timestamp"`
}

// Session 会话状态：每个对话恰有一个，编排器独占修改。
// Requirements 是计划推导的唯一事实来源；阶段推进与重置都只经过编排器。
type Session struct {
	ID                   string                 `json:"id"`
	Title                string                 `json:"title"`
	Phase                Phase                  `json:"phase"`
	Requirements         Requirements           `json:"requirements"`
	PendingQuestions     []RequirementQuestion  `json:"pending_questions,omitempty"`
	CurrentQuestionIndex int                    `json:"current_question_index"`
	ScriptPlan           *ScriptPlan            `json:"script_plan,omitempty"`
	GraphPlan            *CanvasInstructionPlan `json:"graph_plan,omitempty"`
	PendingEdit          *PendingEdit           `json:"pending_edit,omitempty"`
	ApprovedPlan         *CanvasInstructionPlan `json:"approved_plan,omitempty"` // 最近一次交付执行引擎的计划
	Messages             []Message              `json:"messages"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// CurrentQuestion 当前待回答的问题，没有则返回 nil
func (s *Session) CurrentQuestion() *RequirementQuestion {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.PendingQuestions) {
		return nil
	}
	return &s.PendingQuestions[s.CurrentQuestionIndex]
}

// Reset 将会话退回初始阶段；已交付的计划保留以供执行引擎拉取
func (s *Session) Reset() {
	s.Phase = PhaseIdle
	s.Requirements = Requirements{}
	s.PendingQuestions = nil
	s.CurrentQuestionIndex = 0
	s.ScriptPlan = nil
	s.GraphPlan = nil
	s.PendingEdit = nil
}
