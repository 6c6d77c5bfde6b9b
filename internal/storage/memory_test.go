package storage

import (
	"testing"
	"time"

	"musecanvas-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(id string) *model.Session {
	return &model.Session{
		ID:        id,
		Title:     "测试会话",
		Phase:     model.PhaseIdle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestMemoryStorage_SessionLifecycle(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Init())

	sess := newTestSession("s1")
	require.NoError(t, s.CreateSession(sess))

	got, err := s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "测试会话", got.Title)

	got.Phase = model.PhaseGraphPreview
	require.NoError(t, s.UpdateSession(got))

	got, err = s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, got.Phase)

	require.NoError(t, s.DeleteSession("s1"))
	_, err = s.GetSession("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStorage_NotFoundErrors(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, s.UpdateSession(newTestSession("missing")), ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession("missing"), ErrSessionNotFound)
	assert.ErrorIs(t, s.AddMessage("missing", &model.Message{}), ErrSessionNotFound)
}

func TestMemoryStorage_Messages(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateSession(newTestSession("s1")))

	require.NoError(t, s.AddMessage("s1", &model.Message{ID: "m1", SessionID: "s1", Role: "user", Content: "你好"}))
	require.NoError(t, s.AddMessage("s1", &model.Message{ID: "m2", SessionID: "s1", Role: "assistant", Content: "想做点什么？"}))

	messages, err := s.GetMessages("s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestDiskStorage_PersistsPlanState(t *testing.T) {
	dir := t.TempDir()

	s := NewDiskStorage(dir, 10)
	require.NoError(t, s.Init())

	sess := newTestSession("s1")
	sess.Phase = model.PhaseGraphPreview
	sess.GraphPlan = &model.CanvasInstructionPlan{
		ID:      "plan-1",
		Summary: "测试计划",
		Steps: []model.PlanStep{
			{ID: "image_nodes", Type: model.StepCreateNode, NodeType: model.NodeImageGenerator, Count: 1},
		},
	}
	require.NoError(t, s.CreateSession(sess))
	require.NoError(t, s.Close())

	// 新实例从磁盘恢复，指令图随会话一起回来
	s2 := NewDiskStorage(dir, 10)
	require.NoError(t, s2.Init())

	got, err := s2.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, got.Phase)
	require.NotNil(t, got.GraphPlan)
	assert.Equal(t, "plan-1", got.GraphPlan.ID)
	require.Len(t, got.GraphPlan.Steps, 1)
}

func TestDiskStorage_ListSessionsSortedByUpdate(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStorage(dir, 10)
	require.NoError(t, s.Init())

	old := newTestSession("old")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateSession(old))

	fresh := newTestSession("fresh")
	require.NoError(t, s.CreateSession(fresh))

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "fresh", sessions[0].ID)
}
