package planner

import (
	"fmt"
	"time"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"
	"musecanvas-backend/pkg/logger"

	"github.com/google/uuid"
)

// 步骤ID固定，保证同一 Requirements 重复合成得到结构相同的指令图
const (
	stepIDImages    = "image_nodes"
	stepIDBoundary  = "boundary_frames"
	stepIDClips     = "video_clips"
	stepIDMusic     = "soundtrack"
	stepIDSequence  = "clip_sequence"
	stepIDGroup     = "plan_group"
	stepIDPlugin    = "plugin_apply"
	soundtrackNote  = "统一配乐：全片共用同一首背景音乐，节奏与画面情绪一致"
	consistencyNote = "保持与前序场景一致的人物形象、色调与视觉风格"
)

// Synthesizer 图规划器：把 Requirements（+ScriptPlan）编译为声明式指令图
type Synthesizer struct {
	reg *registry.Registry
}

func NewSynthesizer(reg *registry.Registry) *Synthesizer {
	return &Synthesizer{reg: reg}
}

// Synthesize 合成计划。输入相同则输出的步骤结构逐字段相同（计划ID除外）。
func (s *Synthesizer) Synthesize(req *model.Requirements, script *model.ScriptPlan) (*model.CanvasInstructionPlan, error) {
	switch {
	case req.Task == model.TaskPluginAction:
		return s.synthesizePlugin(req)
	case req.Task.IsImage():
		return s.synthesizeImage(req)
	case req.Task.IsVideo():
		return s.synthesizeVideo(req, script)
	default:
		return nil, fmt.Errorf("cannot synthesize plan for task %s", req.Task)
	}
}

func (s *Synthesizer) synthesizePlugin(req *model.Requirements) (*model.CanvasInstructionPlan, error) {
	if req.Plugin == "" {
		return nil, fmt.Errorf("plugin action requires a plugin id")
	}

	steps := []model.PlanStep{
		{
			ID:     stepIDPlugin,
			Type:   model.StepApplyPlugin,
			Plugin: req.Plugin,
			ConfigTemplate: &model.NodeConfig{
				Plugin: &model.PluginNodeConfig{
					Plugin:         req.Plugin,
					TargetImageIDs: req.ReferenceImageIDs,
				},
			},
		},
	}

	plan := s.newPlan(req, steps)
	plan.Summary = buildPluginSummary(req)
	return plan, nil
}

func (s *Synthesizer) synthesizeImage(req *model.Requirements) (*model.CanvasInstructionPlan, error) {
	mc := s.resolveImageModel(req)

	count := req.ImageCount
	if count <= 0 {
		count = 1
	}

	cfg := model.ImageNodeConfig{
		Prompt:      SanitizePrompt(req.Subject()),
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	}
	if mc != nil {
		cfg.Model = mc.ID
	}
	if req.Task == model.TaskImageToImage {
		cfg.ReferenceImageIDs = req.ReferenceImageIDs
		cfg.Strength = req.ReferenceStrength
		if req.ReferenceNotes != "" {
			cfg.Prompt = SanitizePrompt(req.Subject() + "，参考图要求：" + req.ReferenceNotes)
		}
	}

	steps := []model.PlanStep{
		{
			ID:             stepIDImages,
			Type:           model.StepCreateNode,
			NodeType:       model.NodeImageGenerator,
			Count:          count,
			ConfigTemplate: &model.NodeConfig{Image: &cfg},
		},
	}
	if count > 1 {
		steps = append(steps, model.PlanStep{
			ID:            stepIDGroup,
			Type:          model.StepGroupNodes,
			SourceStepIDs: []string{stepIDImages},
		})
	}

	plan := s.newPlan(req, steps)
	plan.Summary = buildImageSummary(req, count, cfg)
	return plan, nil
}

func (s *Synthesizer) synthesizeVideo(req *model.Requirements, script *model.ScriptPlan) (*model.CanvasInstructionPlan, error) {
	mc := s.resolveVideoModel(req)
	if mc == nil {
		return nil, fmt.Errorf("no video model available in registry")
	}

	maxClip := mc.MaxClipSeconds()
	duration := req.DurationSeconds
	if duration <= 0 {
		duration = maxClip
	}

	scenes := sceneSource(req, script, duration)
	clips := ExpandScenesToClips(scenes, duration, maxClip)
	if len(clips) == 0 {
		return nil, fmt.Errorf("scene expansion produced no clips")
	}

	mode := req.ConnectionMode
	if mode == "" {
		mode = model.ConnectionSingle
	}

	multiClip := len(clips) > 1
	var steps []model.PlanStep

	// 先生成图片步骤（single 模式不需要生成图）
	var imagePrompts []string
	switch mode {
	case model.ConnectionFirstFrame:
		imagePrompts = firstFramePrompts(clips)
		steps = append(steps, s.imageStep(stepIDBoundary, imagePrompts, req))
	case model.ConnectionFirstLast:
		imagePrompts = boundaryFramePrompts(clips)
		steps = append(steps, s.imageStep(stepIDBoundary, imagePrompts, req))
	}

	// 视频片段步骤
	videoConfigs := make([]model.NodeConfig, len(clips))
	for i, clip := range clips {
		prompt := SanitizePrompt(clip.Prompt)
		if multiClip {
			prompt += "。" + soundtrackNote
		}
		vc := model.VideoNodeConfig{
			Prompt:          prompt,
			Model:           mc.ID,
			AspectRatio:     req.AspectRatio,
			Resolution:      req.Resolution,
			DurationSeconds: clip.DurationSeconds,
			SceneIndex:      clip.Index,
			ConnectToFrames: frameConnection(mode, req, i),
		}
		videoConfigs[i] = model.NodeConfig{Video: &vc}
	}

	template := *videoConfigs[0].Video
	clipStep := model.PlanStep{
		ID:             stepIDClips,
		Type:           model.StepCreateNode,
		NodeType:       model.NodeVideoGenerator,
		Count:          len(clips),
		ConfigTemplate: &model.NodeConfig{Video: &template},
	}
	if len(clips) > 1 {
		clipStep.BatchConfigs = videoConfigs
	}
	steps = append(steps, clipStep)

	// 多片段共享一条配乐：每个计划恰好一个配乐步骤，而不是每段一个
	musicPrompt := ""
	if multiClip {
		musicPrompt = SanitizePrompt(fmt.Sprintf("为「%s」创作的背景音乐，整体情绪统一", req.Subject()))
		steps = append(steps, model.PlanStep{
			ID:       stepIDMusic,
			Type:     model.StepCreateNode,
			NodeType: model.NodeMusicGenerator,
			Count:    1,
			ConfigTemplate: &model.NodeConfig{
				Music: &model.MusicNodeConfig{
					Prompt:          musicPrompt,
					DurationSeconds: totalDuration(clips),
				},
			},
		})
	}

	// 图片步骤接到视频步骤，再把片段串成序列
	if mode == model.ConnectionFirstFrame || mode == model.ConnectionFirstLast {
		steps = append(steps, model.PlanStep{
			ID:            stepIDSequence,
			Type:          model.StepConnectSequentially,
			SourceStepIDs: []string{stepIDBoundary, stepIDClips},
		})
	} else {
		steps = append(steps, model.PlanStep{
			ID:            stepIDSequence,
			Type:          model.StepConnectSequentially,
			SourceStepIDs: []string{stepIDClips},
		})
	}
	steps = append(steps, model.PlanStep{
		ID:            stepIDGroup,
		Type:          model.StepGroupNodes,
		SourceStepIDs: groupSources(mode, multiClip),
	})

	plan := s.newPlan(req, steps)
	plan.Metadata.Model = mc.ID
	plan.Metadata.TotalDuration = totalDuration(clips)
	plan.Metadata.ClipCount = len(clips)
	plan.Metadata.ConnectionMode = mode
	plan.Summary = buildVideoSummary(req, mc, clips, imagePrompts, musicPrompt, mode)

	logger.Infof("合成视频计划：%d 个片段，模式 %s，总时长 %ds", len(clips), mode, totalDuration(clips))
	return plan, nil
}

// frameConnection 按衔接模式生成第 i 个片段（0起始）的帧挂接描述。
// first_last 模式下帧下标按 1 起始：片段 i（1起始）挂接边界帧 i 与 i+1，
// N 个片段恰好消费 N+1 张边界帧。
func frameConnection(mode model.ConnectionMode, req *model.Requirements, i int) *model.FrameConnection {
	switch mode {
	case model.ConnectionSingle:
		ref := req.PrimaryReference()
		if ref == "" {
			return nil
		}
		return &model.FrameConnection{
			Mode:             model.FrameFirstOnly,
			ReferenceImageID: ref,
		}
	case model.ConnectionFirstFrame:
		idx := i + 1
		return &model.FrameConnection{
			Mode:            model.FrameFirstOnly,
			SourceStepID:    stepIDBoundary,
			FirstFrameIndex: &idx,
		}
	case model.ConnectionFirstLast:
		first := i + 1
		last := i + 2
		return &model.FrameConnection{
			Mode:            model.FrameFirstLast,
			SourceStepID:    stepIDBoundary,
			FirstFrameIndex: &first,
			LastFrameIndex:  &last,
		}
	}
	return nil
}

// firstFramePrompts 每个片段一张首帧图；第二张起显式要求延续前序视觉
func firstFramePrompts(clips []model.Scene) []string {
	prompts := make([]string, len(clips))
	for i, clip := range clips {
		p := clip.Prompt
		if i > 0 {
			p += "。" + consistencyNote
		}
		prompts[i] = SanitizePrompt(p)
	}
	return prompts
}

// boundaryFramePrompts N 个片段生成 N+1 张边界帧：
// 帧 i 同时是片段 i 的尾帧与片段 i+1 的首帧
func boundaryFramePrompts(clips []model.Scene) []string {
	prompts := make([]string, len(clips)+1)
	for i := range prompts {
		var p string
		switch {
		case i == 0:
			p = clips[0].Prompt + "。开场静帧"
		case i == len(clips):
			p = clips[len(clips)-1].Prompt + "。收尾静帧"
		default:
			p = clips[i].Prompt + "。衔接帧，" + consistencyNote
		}
		prompts[i] = SanitizePrompt(p)
	}
	return prompts
}

// imageStep 边界帧统一用默认图片模型生成，不跟随用户指定的视频模型
func (s *Synthesizer) imageStep(id string, prompts []string, req *model.Requirements) model.PlanStep {
	imageModel := ""
	if mc := s.reg.DefaultModel("image"); mc != nil {
		imageModel = mc.ID
	}

	configs := make([]model.NodeConfig, len(prompts))
	for i, p := range prompts {
		configs[i] = model.NodeConfig{
			Image: &model.ImageNodeConfig{
				Prompt:      p,
				Model:       imageModel,
				AspectRatio: req.AspectRatio,
				Resolution:  req.Resolution,
			},
		}
	}

	template := *configs[0].Image
	step := model.PlanStep{
		ID:             id,
		Type:           model.StepCreateNode,
		NodeType:       model.NodeImageGenerator,
		Count:          len(prompts),
		ConfigTemplate: &model.NodeConfig{Image: &template},
	}
	if len(prompts) > 1 {
		step.BatchConfigs = configs
	}
	return step
}

func groupSources(mode model.ConnectionMode, multiClip bool) []string {
	sources := []string{stepIDClips}
	if mode == model.ConnectionFirstFrame || mode == model.ConnectionFirstLast {
		sources = append([]string{stepIDBoundary}, sources...)
	}
	if multiClip {
		sources = append(sources, stepIDMusic)
	}
	return sources
}

// sceneSource 有脚本用脚本分镜；没有则从 Requirements 造单分镜
func sceneSource(req *model.Requirements, script *model.ScriptPlan, duration int) []model.Scene {
	if script != nil && len(script.Scenes) > 0 {
		return script.Scenes
	}
	subject := req.Subject()
	if subject == "" {
		subject = "展示画面"
	}
	return []model.Scene{{Index: 1, Prompt: subject, DurationSeconds: duration}}
}

func (s *Synthesizer) resolveImageModel(req *model.Requirements) *registry.ModelCaps {
	if req.Model != "" {
		if mc, err := s.reg.Lookup(req.Model); err == nil {
			return mc
		}
		logger.Warnf("模型 %s 不在能力清单中，使用默认模型", req.Model)
	}
	// 图生图必须落到默认图生图模型，即便全局默认是文生图模型
	if req.Task == model.TaskImageToImage {
		if mc := s.reg.DefaultImageToImageModel(); mc != nil {
			return mc
		}
	}
	return s.reg.DefaultModel("image")
}

func (s *Synthesizer) resolveVideoModel(req *model.Requirements) *registry.ModelCaps {
	if req.Model != "" {
		if mc, err := s.reg.Lookup(req.Model); err == nil && mc.Kind == "video" {
			return mc
		}
		logger.Warnf("视频模型 %s 不可用，使用默认模型", req.Model)
	}
	return s.reg.DefaultModel("video")
}

func (s *Synthesizer) newPlan(req *model.Requirements, steps []model.PlanStep) *model.CanvasInstructionPlan {
	return &model.CanvasInstructionPlan{
		ID:    uuid.New().String(),
		Steps: steps,
		Metadata: model.PlanMetadata{
			Goal:      req.Subject(),
			Task:      req.Task,
			CreatedAt: time.Now(),
		},
	}
}

func totalDuration(clips []model.Scene) int {
	total := 0
	for _, c := range clips {
		total += c.DurationSeconds
	}
	return total
}
