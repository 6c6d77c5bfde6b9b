package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func TestPlan_TruncatesExtraScenes(t *testing.T) {
	p := NewPlanner(&stubCompleter{response: `{
		"script": "四幕故事",
		"scenes": [
			{"index": 1, "prompt": "一", "duration_seconds": 5},
			{"index": 2, "prompt": "二", "duration_seconds": 5},
			{"index": 3, "prompt": "三", "duration_seconds": 5},
			{"index": 4, "prompt": "四", "duration_seconds": 5}
		]
	}`})

	plan := p.Plan(context.Background(), Request{Topic: "故事", TotalSeconds: 15, TargetClips: 3, MaxClipSeconds: 8})

	require.Len(t, plan.Scenes, 3)
	assert.Equal(t, "三", plan.Scenes[2].Prompt)
}

func TestPlan_PadsByRepeatingLastScene(t *testing.T) {
	p := NewPlanner(&stubCompleter{response: `{
		"script": "单幕",
		"scenes": [{"index": 1, "prompt": "唯一画面", "duration_seconds": 8}]
	}`})

	plan := p.Plan(context.Background(), Request{Topic: "产品", TotalSeconds: 24, TargetClips: 3, MaxClipSeconds: 8})

	require.Len(t, plan.Scenes, 3)
	for i, scene := range plan.Scenes {
		assert.Equal(t, i+1, scene.Index)
		assert.Equal(t, "唯一画面", scene.Prompt)
	}
}

func TestPlan_ClampsDurationsToMaxClip(t *testing.T) {
	p := NewPlanner(&stubCompleter{response: `{
		"script": "超长分镜",
		"scenes": [
			{"index": 1, "prompt": "一", "duration_seconds": 30},
			{"index": 2, "prompt": "二", "duration_seconds": 0}
		]
	}`})

	plan := p.Plan(context.Background(), Request{Topic: "产品", TotalSeconds: 16, TargetClips: 2, MaxClipSeconds: 8})

	require.Len(t, plan.Scenes, 2)
	assert.Equal(t, 8, plan.Scenes[0].DurationSeconds)
	assert.GreaterOrEqual(t, plan.Scenes[1].DurationSeconds, 1)
}

func TestPlan_FallbackOnLLMError(t *testing.T) {
	p := NewPlanner(&stubCompleter{err: errors.New("timeout")})

	plan := p.Plan(context.Background(), Request{Topic: "手冲咖啡", TotalSeconds: 8, TargetClips: 1, MaxClipSeconds: 8})

	require.Len(t, plan.Scenes, 1)
	assert.Equal(t, "手冲咖啡", plan.Scenes[0].Prompt)
	assert.Equal(t, 8, plan.Scenes[0].DurationSeconds)
}

func TestPlan_FallbackOnGarbageOutput(t *testing.T) {
	p := NewPlanner(&stubCompleter{response: "抱歉我写不出脚本"})

	plan := p.Plan(context.Background(), Request{Topic: "香水", TotalSeconds: 16, TargetClips: 2, MaxClipSeconds: 8})

	require.Len(t, plan.Scenes, 2)
	assert.NotEmpty(t, plan.Scenes[0].Prompt)
}

func TestPlan_ForceSingleScene(t *testing.T) {
	p := NewPlanner(&stubCompleter{response: `{
		"script": "两幕",
		"scenes": [
			{"index": 1, "prompt": "一", "duration_seconds": 4},
			{"index": 2, "prompt": "二", "duration_seconds": 4}
		]
	}`})

	plan := p.Plan(context.Background(), Request{Topic: "产品", TotalSeconds: 8, TargetClips: 3, MaxClipSeconds: 8, ForceSingleScene: true})

	require.Len(t, plan.Scenes, 1)
}
