package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/service"
	"musecanvas-backend/internal/utils"
	"musecanvas-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// StreamChat SSE 流式对话入口。
// 规划过程可能要等多次模型调用，心跳防止前端把连接判死。
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Debugf("收到对话请求 - SessionID: %s, 选中图片: %d", req.SessionID, len(req.SelectedImageIDs))

	sseWriter := utils.NewSSEWriter(c.Writer)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	go func() {
		for {
			select {
			case <-heartbeat.C:
				data, _ := json.Marshal(gin.H{
					"type":      "heartbeat",
					"timestamp": time.Now().Unix(),
				})
				if err := sseWriter.Write("heartbeat", string(data)); err != nil {
					logger.Warnf("心跳发送失败: %v", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	respChan, errChan := h.chatService.StreamChat(ctx, &req)

	startData, _ := json.Marshal(gin.H{
		"type":      "processing_start",
		"message":   "开始处理您的请求...",
		"timestamp": time.Now().Unix(),
	})
	sseWriter.Write("status", string(startData))

	for {
		select {
		case resp, ok := <-respChan:
			if !ok {
				completeData, _ := json.Marshal(gin.H{
					"type":      "processing_complete",
					"message":   "处理完成",
					"timestamp": time.Now().Unix(),
				})
				sseWriter.Write("status", string(completeData))
				sseWriter.Close()
				return
			}

			data, err := json.Marshal(resp)
			if err != nil {
				logger.Errorf("序列化响应失败: %v", err)
				continue
			}

			if err := sseWriter.Write("message", string(data)); err != nil {
				logger.Errorf("写入SSE失败: %v", err)
				return
			}

		case err := <-errChan:
			if err != nil {
				errorData, _ := json.Marshal(gin.H{
					"error":     err.Error(),
					"type":      "service_error",
					"timestamp": time.Now().Unix(),
				})
				sseWriter.Write("error", string(errorData))
				sseWriter.Close()
				return
			}

		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				timeoutData, _ := json.Marshal(gin.H{
					"error":     "处理超时",
					"type":      "timeout",
					"timestamp": time.Now().Unix(),
				})
				sseWriter.Write("error", string(timeoutData))
			}
			sseWriter.Close()
			return
		}
	}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Title = ""
	}

	session, err := h.chatService.CreateSession(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	session, err := h.chatService.GetSession(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.SessionResponse{
		SessionID:    session.ID,
		Title:        session.Title,
		Phase:        session.Phase,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		MessageCount: len(session.Messages),
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.GetSessionMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.chatService.GetAllSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
	})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.chatService.DeleteSession(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	if err := h.chatService.ClearAllSessions(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) UpdateSessionTitle(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req struct {
		Title string `json:"title" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.UpdateSessionTitle(sessionID, req.Title); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}
