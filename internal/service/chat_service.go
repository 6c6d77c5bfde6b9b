package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"musecanvas-backend/internal/config"
	"musecanvas-backend/internal/llm"
	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"
	"musecanvas-backend/internal/storage"
	"musecanvas-backend/pkg/logger"

	"github.com/google/uuid"
)

// ChatService 会话生命周期管理 + 编排器调度。
// 每条消息处理完后整个会话落盘，重启后预览与编辑阶段原地恢复。
type ChatService struct {
	storage      storage.Storage
	orchestrator *Orchestrator
	config       *config.SessionConfig
}

func NewChatService(cfg *config.Config, completer llm.Completer, reg *registry.Registry) *ChatService {
	var store storage.Storage

	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStorage(cfg.Storage.DataDir, cfg.Storage.CacheSize)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("存储初始化失败，回退到内存存储: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	cs := &ChatService{
		storage:      store,
		orchestrator: NewOrchestrator(completer, reg),
		config:       &cfg.Session,
	}

	go cs.cleanupOldSessions()
	if cfg.Storage.Type == "disk" && cfg.Storage.BackupInterval > 0 {
		go cs.backupLoop(cfg.Storage.BackupInterval)
	}

	return cs
}

func (s *ChatService) backupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := s.storage.Backup(); err != nil {
			logger.Errorf("定时备份失败: %v", err)
		}
	}
}

func (s *ChatService) CreateSession(title string) (*model.Session, error) {
	if title == "" {
		title = "新对话 " + time.Now().Format("2006-01-02 15:04")
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		Title:     title,
		Phase:     model.PhaseIdle,
		Messages:  make([]model.Message, 0),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *ChatService) GetSession(sessionID string) (*model.Session, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (s *ChatService) GetSessionMessages(sessionID string) ([]model.Message, error) {
	messages, err := s.storage.GetMessages(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = *msg
	}

	return result, nil
}

// StreamChat 处理一条用户消息。
// 响应分两段推送：先回显当前阶段，编排器出结果后推助手消息。
func (s *ChatService) StreamChat(ctx context.Context, req *model.ChatRequest) (<-chan model.ChatResponse, <-chan error) {
	respChan := make(chan model.ChatResponse, 8)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		defer close(errChan)

		if req.SessionID == "" {
			errChan <- fmt.Errorf("session_id is required")
			return
		}

		session, err := s.storage.GetSession(req.SessionID)
		if err != nil {
			errChan <- fmt.Errorf("session not found: %s", req.SessionID)
			return
		}

		s.appendMessage(session, "user", req.Message)

		reply, err := s.orchestrator.HandleMessage(ctx, session, req.Message, req.SelectedImageIDs)
		if err != nil {
			errChan <- err
			return
		}

		msg := s.appendMessage(session, "assistant", reply.Text)
		session.UpdatedAt = time.Now()
		if err := s.storage.UpdateSession(session); err != nil {
			logger.Errorf("保存会话 %s 失败: %v", session.ID, err)
		}

		respChan <- model.ChatResponse{
			SessionID: session.ID,
			MessageID: msg.ID,
			Content:   reply.Text,
			Role:      "assistant",
			Phase:     session.Phase,
			Timestamp: time.Now().Unix(),
			Type:      reply.Type,
		}
	}()

	return respChan, errChan
}

// appendMessage 只改内存里的会话对象，落盘由调用方统一做
func (s *ChatService) appendMessage(session *model.Session, role, content string) *model.Message {
	msg := model.Message{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      role,
		Content:   content,
		Phase:     session.Phase,
		Timestamp: time.Now(),
	}
	session.Messages = append(session.Messages, msg)
	if max := s.config.MaxMessages; max > 0 && len(session.Messages) > max {
		session.Messages = append([]model.Message(nil), session.Messages[len(session.Messages)-max:]...)
	}

	// 第一条用户消息顺手当标题
	if role == "user" && strings.HasPrefix(session.Title, "新对话") {
		userCount := 0
		for _, m := range session.Messages {
			if m.Role == "user" {
				userCount++
			}
		}
		if userCount == 1 {
			session.Title = truncateRunes(content, 30)
		}
	}

	return &session.Messages[len(session.Messages)-1]
}

func (s *ChatService) cleanupOldSessions() {
	interval := s.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ttl := s.config.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		sessions, err := s.storage.ListSessions()
		if err != nil {
			logger.Errorf("清理会话时列举失败: %v", err)
			continue
		}

		cutoff := time.Now().Add(-ttl)
		for _, session := range sessions {
			if session.UpdatedAt.Before(cutoff) {
				if err := s.storage.DeleteSession(session.ID); err != nil {
					logger.Errorf("删除过期会话 %s 失败: %v", session.ID, err)
				} else {
					logger.Infof("已清理过期会话: %s", session.ID)
				}
			}
		}
	}
}

func (s *ChatService) GetAllSessions() ([]*model.Session, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

func (s *ChatService) DeleteSession(sessionID string) error {
	if err := s.storage.DeleteSession(sessionID); err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (s *ChatService) ClearAllSessions() error {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, session := range sessions {
		if err := s.storage.DeleteSession(session.ID); err != nil {
			logger.Errorf("删除会话 %s 失败: %v", session.ID, err)
		}
	}

	return nil
}

func (s *ChatService) UpdateSessionTitle(sessionID, title string) error {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	session.Title = title
	session.UpdatedAt = time.Now()

	if err := s.storage.UpdateSession(session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// CurrentPlan 执行引擎拉取计划的入口：
// 预览/编辑阶段返回当前指令图，其余阶段返回最近交付的计划
func (s *ChatService) CurrentPlan(sessionID string) (*model.CanvasInstructionPlan, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Phase {
	case model.PhaseGraphPreview, model.PhaseEditConfirmation:
		if session.GraphPlan != nil {
			return session.GraphPlan, nil
		}
	}
	if session.ApprovedPlan != nil {
		return session.ApprovedPlan, nil
	}
	return nil, fmt.Errorf("no plan available for session %s", sessionID)
}

// GetStorage 返回存储实例，供其他组件共享
func (s *ChatService) GetStorage() storage.Storage {
	return s.storage
}

func truncateRunes(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}
