package model

// ChatRequest 一次对话请求；SelectedImageIDs 为画布上当前选中的参考图
type ChatRequest struct {
	Message          string   `json:"message" binding:"required"`
	SessionID        string   `json:"session_id"`
	SelectedImageIDs []string `json:"selected_image_ids"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}
