package handler

import (
	"net/http"

	"musecanvas-backend/internal/registry"
	"musecanvas-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// PlanHandler 执行引擎侧的只读接口：拉取指令图与模型能力清单
type PlanHandler struct {
	chatService *service.ChatService
	reg         *registry.Registry
}

func NewPlanHandler(chatService *service.ChatService, reg *registry.Registry) *PlanHandler {
	return &PlanHandler{chatService: chatService, reg: reg}
}

// GetPlan 返回会话当前可用的指令图。
// 预览/编辑阶段给正在看的那份，其余阶段给最近交付的一份。
func (h *PlanHandler) GetPlan(c *gin.Context) {
	sessionID := c.Param("session_id")

	plan, err := h.chatService.CurrentPlan(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, plan)
}

// ListModels 列出能力清单里的全部模型
func (h *PlanHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models": h.reg.Models(),
	})
}
