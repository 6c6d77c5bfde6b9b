package storage

import (
	"musecanvas-backend/internal/model"
)

// Storage 会话持久化接口。
// 会话对象整体读写：阶段、需求参数、脚本与指令图都随会话一起落盘，
// 服务重启后对话可以原地续上。
type Storage interface {
	// 会话管理
	CreateSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	UpdateSession(session *model.Session) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.Session, error)

	// 消息管理
	AddMessage(sessionID string, message *model.Message) error
	GetMessages(sessionID string) ([]*model.Message, error)

	// 存储管理
	Init() error
	Close() error
	Backup() error
}
