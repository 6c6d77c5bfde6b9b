package service

import (
	"context"
	"strings"
	"testing"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routingCompleter 按提示词内容路由到不同的固定回复，
// 模拟意图分类 / 脚本生成 / 决策裁决三种模型调用
type routingCompleter struct {
	intentResp   string
	scriptResp   string
	decisionResp string
}

func (r *routingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "意图分类器"):
		return r.intentResp, nil
	case strings.Contains(prompt, "短视频导演"):
		return r.scriptResp, nil
	case strings.Contains(prompt, "决策模块"):
		return r.decisionResp, nil
	}
	return "{}", nil
}

func testRegistry() *registry.Registry {
	return registry.New([]registry.ModelCaps{
		{
			ID: "img-default", Name: "Img Default", Kind: "image", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
		},
		{
			ID: "seedance-1.0", Name: "Seedance 1.0", Kind: "video", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16"},
			Temporal:     &registry.TemporalCaps{SupportedDurations: []int{4, 8}, MaxOutputSeconds: 8},
		},
		{
			ID: "veo-3.1", Name: "Veo 3.1", Kind: "video",
			Resolutions:  []string{"720p", "1080p", "4k"},
			AspectRatios: []string{"16:9", "9:16"},
			Temporal:     &registry.TemporalCaps{SupportedDurations: []int{4, 6, 8}, MaxOutputSeconds: 8},
		},
	})
}

func newTestOrchestrator(c *routingCompleter) *Orchestrator {
	return NewOrchestrator(c, testRegistry())
}

func newSession() *model.Session {
	return &model.Session{ID: "s1", Phase: model.PhaseIdle}
}

// 走完需求收集，会话停在指令图预览
func driveToPreview(t *testing.T, o *Orchestrator, sess *model.Session) {
	t.Helper()
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, sess, "帮咖啡新品做一条视频", nil)
	require.NoError(t, err)
	require.Equal(t, model.PhaseCollecting, sess.Phase)

	// 依次回答：时长、平台、比例、分辨率、衔接模式、是否要脚本
	answers := []string{"B", "A", "B", "A", "C", "B"}
	for _, answer := range answers {
		_, err = o.HandleMessage(ctx, sess, answer, nil)
		require.NoError(t, err)
	}
	require.Equal(t, model.PhaseGraphPreview, sess.Phase)
}

func TestOrchestrator_FullVideoFlowToPreview(t *testing.T) {
	o := newTestOrchestrator(&routingCompleter{
		intentResp: `{"task":"text_to_video","topic":"咖啡新品"}`,
	})
	sess := newSession()

	driveToPreview(t, o, sess)

	require.NotNil(t, sess.GraphPlan)
	// 20秒、单段上限8秒 → 3个片段；首尾帧模式 → 4张边界帧
	clips := sess.GraphPlan.FindStep("video_clips")
	require.NotNil(t, clips)
	assert.Equal(t, 3, clips.Count)
	boundary := sess.GraphPlan.FindStep("boundary_frames")
	require.NotNil(t, boundary)
	assert.Equal(t, 4, boundary.Count)
	assert.Equal(t, model.ConnectionFirstLast, sess.GraphPlan.Metadata.ConnectionMode)
}

func TestOrchestrator_UnknownIntentStaysIdle(t *testing.T) {
	o := newTestOrchestrator(&routingCompleter{intentResp: "看不懂"})
	sess := newSession()

	reply, err := o.HandleMessage(context.Background(), sess, "呃", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseIdle, sess.Phase)
	assert.NotEmpty(t, reply.Text)
}

func TestOrchestrator_ExecuteApprovesPlanAndResets(t *testing.T) {
	o := newTestOrchestrator(&routingCompleter{
		intentResp: `{"task":"text_to_video","topic":"咖啡新品"}`,
	})
	sess := newSession()
	driveToPreview(t, o, sess)
	planID := sess.GraphPlan.ID

	reply, err := o.HandleMessage(context.Background(), sess, "A", nil)

	require.NoError(t, err)
	assert.Equal(t, "plan_approved", reply.Type)
	assert.Equal(t, model.PhaseIdle, sess.Phase)
	// 已交付的计划在重置后保留，供执行引擎拉取
	require.NotNil(t, sess.ApprovedPlan)
	assert.Equal(t, planID, sess.ApprovedPlan.ID)
	assert.Nil(t, sess.GraphPlan)
}

func TestOrchestrator_CancelResetsWithoutApproval(t *testing.T) {
	o := newTestOrchestrator(&routingCompleter{
		intentResp: `{"task":"text_to_video","topic":"咖啡新品"}`,
	})
	sess := newSession()
	driveToPreview(t, o, sess)

	_, err := o.HandleMessage(context.Background(), sess, "取消", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseIdle, sess.Phase)
	assert.Nil(t, sess.ApprovedPlan)
}

func TestOrchestrator_EditConfirmationReplaysPlan(t *testing.T) {
	c := &routingCompleter{
		intentResp:   `{"task":"text_to_video","topic":"咖啡新品"}`,
		decisionResp: `{"decision":"MODIFY","changes":{"model":"Veo 3.1","aspect_ratio":"16:9","resolution":"1080p"}}`,
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	driveToPreview(t, o, sess)

	reply, err := o.HandleMessage(context.Background(), sess, "换成 Veo 3.1，比例16:9，分辨率1080p", nil)
	require.NoError(t, err)
	require.Equal(t, model.PhaseEditConfirmation, sess.Phase)
	assert.Contains(t, reply.Text, "Veo 3.1")

	// 确认修改：改动写回参数并整图重放
	_, err = o.HandleMessage(context.Background(), sess, "A", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, sess.Phase)
	assert.Equal(t, "Veo 3.1", sess.Requirements.Model)
	assert.Equal(t, "16:9", sess.Requirements.AspectRatio)
	assert.Equal(t, "1080p", sess.Requirements.Resolution)
	require.NotNil(t, sess.GraphPlan)
	assert.Equal(t, "veo-3.1", sess.GraphPlan.Metadata.Model)
}

func TestOrchestrator_EditDeclineKeepsOriginalPlan(t *testing.T) {
	c := &routingCompleter{
		intentResp:   `{"task":"text_to_video","topic":"咖啡新品"}`,
		decisionResp: `{"decision":"MODIFY","changes":{"duration_seconds":40}}`,
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	driveToPreview(t, o, sess)
	originalPlanID := sess.GraphPlan.ID

	_, err := o.HandleMessage(context.Background(), sess, "时长改成40秒", nil)
	require.NoError(t, err)
	require.Equal(t, model.PhaseEditConfirmation, sess.Phase)

	_, err = o.HandleMessage(context.Background(), sess, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, sess.Phase)
	assert.Equal(t, originalPlanID, sess.GraphPlan.ID)
	assert.Equal(t, 20, sess.Requirements.DurationSeconds)
	assert.Nil(t, sess.PendingEdit)
}

func TestOrchestrator_ScriptReviewFlow(t *testing.T) {
	c := &routingCompleter{
		intentResp: `{"task":"text_to_video","topic":"咖啡新品"}`,
		scriptResp: `{"script":"晨光咖啡故事","scenes":[
			{"index":1,"prompt":"晨光里的咖啡豆","duration_seconds":8},
			{"index":2,"prompt":"手冲过程","duration_seconds":8},
			{"index":3,"prompt":"第一口的满足","duration_seconds":4}]}`,
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, sess, "帮咖啡新品做一条视频", nil)
	require.NoError(t, err)

	// 时长、平台、比例、分辨率、衔接模式、要脚本
	for _, answer := range []string{"B", "A", "B", "A", "C", "A"} {
		_, err = o.HandleMessage(ctx, sess, answer, nil)
		require.NoError(t, err)
	}
	require.Equal(t, model.PhaseScriptReview, sess.Phase)
	require.NotNil(t, sess.ScriptPlan)
	assert.Len(t, sess.ScriptPlan.Scenes, 3)

	// 提修改意见 → 留在脚本审阅并重写
	reply, err := o.HandleMessage(ctx, sess, "第二幕换成拉花特写", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseScriptReview, sess.Phase)
	assert.Contains(t, reply.Text, "分镜")

	// 确认脚本 → 进入指令图预览
	_, err = o.HandleMessage(ctx, sess, "确认", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, sess.Phase)
	require.NotNil(t, sess.GraphPlan)
}

func TestOrchestrator_ScriptApprovalAsksTransitionWhenUnset(t *testing.T) {
	o := newTestOrchestrator(&routingCompleter{})
	sess := newSession()
	sess.Phase = model.PhaseScriptReview
	sess.Requirements = model.Requirements{
		Task:            model.TaskTextToVideo,
		Topic:           "咖啡新品",
		DurationSeconds: 20,
		AspectRatio:     "9:16",
		Resolution:      "720p",
		NeedsScript:     true,
	}
	sess.ScriptPlan = &model.ScriptPlan{
		Script: "故事",
		Scenes: []model.Scene{
			{Index: 1, Prompt: "晨光里的咖啡豆", DurationSeconds: 8},
			{Index: 2, Prompt: "手冲过程", DurationSeconds: 8},
			{Index: 3, Prompt: "第一口的满足", DurationSeconds: 4},
		},
	}
	ctx := context.Background()

	// 衔接模式还没定，确认脚本时先补问再合成
	reply, err := o.HandleMessage(ctx, sess, "确认", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseScriptReview, sess.Phase)
	assert.Contains(t, reply.Text, "衔接")

	_, err = o.HandleMessage(ctx, sess, "C", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, sess.Phase)
	assert.Equal(t, model.ConnectionFirstLast, sess.Requirements.ConnectionMode)
	require.NotNil(t, sess.GraphPlan)
}

func TestOrchestrator_NewRequestDuringPreviewResets(t *testing.T) {
	c := &routingCompleter{
		intentResp:   `{"task":"text_to_video","topic":"咖啡新品"}`,
		decisionResp: "这个我裁决不了",
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	driveToPreview(t, o, sess)

	// 预览阶段突然来一个全新的创作请求：放弃当前计划，按新任务走
	_, err := o.HandleMessage(context.Background(), sess, "再帮我做一条茶饮的视频", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseCollecting, sess.Phase)
	assert.Equal(t, model.TaskTextToVideo, sess.Requirements.Task)
}

func TestOrchestrator_VideoRequestDuringImagePreviewResets(t *testing.T) {
	c := &routingCompleter{
		intentResp: `{"task":"text_to_image","topic":"咖啡海报"}`,
		// 裁决器若被调用会误判为修改意见，这里必须在裁决前就识别出新请求
		decisionResp: `{"decision":"MODIFY","changes":{"prompt":"一条视频"}}`,
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, sess, "做一张咖啡海报", nil)
	require.NoError(t, err)
	require.Equal(t, model.PhaseCollecting, sess.Phase)
	for _, answer := range []string{"A", "B"} {
		_, err = o.HandleMessage(ctx, sess, answer, nil)
		require.NoError(t, err)
	}
	require.Equal(t, model.PhaseGraphPreview, sess.Phase)

	// 图片计划挂着预览，用户却要做视频：直接重置按新任务走
	c.intentResp = `{"task":"text_to_video","topic":"这款产品"}`
	_, err = o.HandleMessage(ctx, sess, "帮我把这款产品做一条视频", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseCollecting, sess.Phase)
	assert.Equal(t, model.TaskTextToVideo, sess.Requirements.Task)
	assert.Nil(t, sess.PendingEdit)
}

func TestOrchestrator_ClarifyStaysInPreview(t *testing.T) {
	c := &routingCompleter{
		intentResp:   `{"task":"text_to_video","topic":"咖啡新品"}`,
		decisionResp: `{"decision":"CLARIFY","question":"你是想改参数还是直接生成？"}`,
	}
	o := newTestOrchestrator(c)
	sess := newSession()
	driveToPreview(t, o, sess)

	reply, err := o.HandleMessage(context.Background(), sess, "那个再想想", nil)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseGraphPreview, sess.Phase)
	assert.Equal(t, "你是想改参数还是直接生成？", reply.Text)
}
