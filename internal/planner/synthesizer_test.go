package planner

import (
	"testing"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.Registry {
	return registry.New([]registry.ModelCaps{
		{
			ID: "img-default", Name: "Img Default", Kind: "image", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
		},
		{
			ID: "img-edit", Name: "Img Edit", Kind: "image", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
			ImageToImage: true,
		},
		{
			ID: "vid-default", Name: "Vid Default", Kind: "video", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16"},
			Temporal:     &registry.TemporalCaps{SupportedDurations: []int{4, 8}, MaxOutputSeconds: 8},
		},
	})
}

func videoRequirements() *model.Requirements {
	return &model.Requirements{
		Task:            model.TaskTextToVideo,
		Topic:           "咖啡新品上市",
		DurationSeconds: 20,
		Platform:        "tiktok",
		AspectRatio:     "9:16",
		Resolution:      "720p",
		ConnectionMode:  model.ConnectionFirstLast,
	}
}

func singleSceneScript(duration int) *model.ScriptPlan {
	return &model.ScriptPlan{
		Script: "新品咖啡从晨光中醒来",
		Scenes: []model.Scene{{Index: 1, Prompt: "晨光里的咖啡杯特写", DurationSeconds: duration}},
	}
}

func TestSynthesize_FirstLastBoundaryFrames(t *testing.T) {
	s := NewSynthesizer(testRegistry())

	plan, err := s.Synthesize(videoRequirements(), singleSceneScript(20))
	require.NoError(t, err)

	// 20秒 / 单段上限8秒 → 3个片段，首尾帧模式要 4 张边界帧
	clips := plan.FindStep("video_clips")
	require.NotNil(t, clips)
	assert.Equal(t, 3, clips.Count)
	require.Len(t, clips.BatchConfigs, 3)

	boundary := plan.FindStep("boundary_frames")
	require.NotNil(t, boundary)
	assert.Equal(t, model.NodeImageGenerator, boundary.NodeType)
	assert.Equal(t, 4, boundary.Count)
	require.Len(t, boundary.BatchConfigs, 4)

	// 片段 i 挂接边界帧 i 与 i+1
	for i, cfg := range clips.BatchConfigs {
		fc := cfg.Video.ConnectToFrames
		require.NotNil(t, fc)
		assert.Equal(t, model.FrameFirstLast, fc.Mode)
		assert.Equal(t, "boundary_frames", fc.SourceStepID)
		require.NotNil(t, fc.FirstFrameIndex)
		require.NotNil(t, fc.LastFrameIndex)
		assert.Equal(t, i+1, *fc.FirstFrameIndex)
		assert.Equal(t, i+2, *fc.LastFrameIndex)
	}
}

func TestSynthesize_MusicStepEmittedOncePerPlan(t *testing.T) {
	s := NewSynthesizer(testRegistry())

	plan, err := s.Synthesize(videoRequirements(), singleSceneScript(20))
	require.NoError(t, err)

	musicSteps := 0
	for _, step := range plan.Steps {
		if step.NodeType == model.NodeMusicGenerator {
			musicSteps++
			assert.Equal(t, 1, step.Count)
		}
	}
	assert.Equal(t, 1, musicSteps)

	// 每个片段的提示词都带统一配乐指示
	clips := plan.FindStep("video_clips")
	require.NotNil(t, clips)
	for _, cfg := range clips.BatchConfigs {
		assert.Contains(t, cfg.Video.Prompt, "统一配乐")
	}
}

func TestSynthesize_SingleClipSkipsMusic(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := videoRequirements()
	req.DurationSeconds = 8
	req.ConnectionMode = model.ConnectionSingle

	plan, err := s.Synthesize(req, singleSceneScript(8))
	require.NoError(t, err)

	for _, step := range plan.Steps {
		assert.NotEqual(t, model.NodeMusicGenerator, step.NodeType)
	}
	clips := plan.FindStep("video_clips")
	require.NotNil(t, clips)
	assert.Equal(t, 1, clips.Count)
	assert.NotContains(t, clips.ConfigTemplate.Video.Prompt, "统一配乐")
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := videoRequirements()
	script := singleSceneScript(20)

	plan1, err := s.Synthesize(req, script)
	require.NoError(t, err)
	plan2, err := s.Synthesize(req, script)
	require.NoError(t, err)

	// 计划ID每次不同，步骤结构必须逐字段一致
	assert.NotEqual(t, plan1.ID, plan2.ID)
	assert.Equal(t, plan1.Steps, plan2.Steps)
}

func TestSynthesize_ImageToImageUsesEditDefault(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := &model.Requirements{
		Task:              model.TaskImageToImage,
		Topic:             "把背景换成夜景",
		AspectRatio:       "1:1",
		ReferenceImageIDs: []string{"img-001"},
		ReferenceStrength: model.StrengthMedium,
	}

	plan, err := s.Synthesize(req, nil)
	require.NoError(t, err)

	step := plan.FindStep("image_nodes")
	require.NotNil(t, step)
	// 全局默认是文生图模型，图生图必须落到支持图生图的默认模型
	assert.Equal(t, "img-edit", step.ConfigTemplate.Image.Model)
	assert.Equal(t, []string{"img-001"}, step.ConfigTemplate.Image.ReferenceImageIDs)
}

func TestSynthesize_ImageToImageCarriesReferenceNotes(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := &model.Requirements{
		Task:              model.TaskImageToImage,
		Topic:             "把背景换成夜景",
		AspectRatio:       "1:1",
		ReferenceImageIDs: []string{"img-001"},
		ReferenceNotes:    "保留杯身的金色花纹",
	}

	plan, err := s.Synthesize(req, nil)
	require.NoError(t, err)

	step := plan.FindStep("image_nodes")
	require.NotNil(t, step)
	assert.Contains(t, step.ConfigTemplate.Image.Prompt, "把背景换成夜景")
	assert.Contains(t, step.ConfigTemplate.Image.Prompt, "保留杯身的金色花纹")
}

func TestSynthesize_FirstFrameModeOneImagePerClip(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := videoRequirements()
	req.ConnectionMode = model.ConnectionFirstFrame

	plan, err := s.Synthesize(req, singleSceneScript(20))
	require.NoError(t, err)

	boundary := plan.FindStep("boundary_frames")
	require.NotNil(t, boundary)
	assert.Equal(t, 3, boundary.Count)

	clips := plan.FindStep("video_clips")
	require.NotNil(t, clips)
	for i, cfg := range clips.BatchConfigs {
		fc := cfg.Video.ConnectToFrames
		require.NotNil(t, fc)
		assert.Equal(t, model.FrameFirstOnly, fc.Mode)
		require.NotNil(t, fc.FirstFrameIndex)
		assert.Equal(t, i+1, *fc.FirstFrameIndex)
		assert.Nil(t, fc.LastFrameIndex)
	}
}

func TestSynthesize_PluginAction(t *testing.T) {
	s := NewSynthesizer(testRegistry())
	req := &model.Requirements{
		Task:              model.TaskPluginAction,
		Plugin:            "upscale",
		ReferenceImageIDs: []string{"img-001", "img-002"},
	}

	plan, err := s.Synthesize(req, nil)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, model.StepApplyPlugin, plan.Steps[0].Type)
	assert.Equal(t, "upscale", plan.Steps[0].Plugin)
	assert.Equal(t, []string{"img-001", "img-002"}, plan.Steps[0].ConfigTemplate.Plugin.TargetImageIDs)
}

func TestSynthesize_UnknownTaskFails(t *testing.T) {
	s := NewSynthesizer(testRegistry())

	_, err := s.Synthesize(&model.Requirements{Task: model.TaskUnknown}, nil)
	assert.Error(t, err)
}
