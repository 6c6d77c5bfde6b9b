package intent

import (
	"context"
	"errors"
	"testing"

	"musecanvas-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter 固定返回一段文本的假补全器
type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func TestClassify_ParsesLLMOutput(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: "```json\n" +
		`{"task":"text_to_image","topic":"春季海报","image_count":3,"aspect_ratio":"9:16"}` +
		"\n```"})

	in := c.Classify(context.Background(), "帮我做3张春季海报", Context{})

	assert.Equal(t, model.TaskTextToImage, in.Task)
	assert.Equal(t, "春季海报", in.Topic)
	assert.Equal(t, 3, in.ImageCount)
	assert.Equal(t, "9:16", in.AspectRatio)
}

func TestClassify_UnparseableFallsBackToUnknown(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: "我不太确定你想要什么"})

	in := c.Classify(context.Background(), "呃", Context{})

	assert.Equal(t, model.TaskUnknown, in.Task)
	assert.NotEmpty(t, in.Explanation)
}

func TestClassify_LLMErrorFallsBackToUnknown(t *testing.T) {
	c := NewClassifier(&stubCompleter{err: errors.New("connection refused")})

	in := c.Classify(context.Background(), "做张图", Context{})

	assert.Equal(t, model.TaskUnknown, in.Task)
}

func TestClassify_VideoKeywordOverridesLLM(t *testing.T) {
	// LLM 误判成图片任务，关键词规则必须纠正
	c := NewClassifier(&stubCompleter{response: `{"task":"text_to_image","topic":"咖啡"}`})

	in := c.Classify(context.Background(), "给咖啡做一条视频", Context{})
	assert.Equal(t, model.TaskTextToVideo, in.Task)

	// 有选中图时走图生视频
	in = c.Classify(context.Background(), "让这张图动起来", Context{SelectedImageCount: 1})
	assert.Equal(t, model.TaskImageToVideo, in.Task)
}

func TestClassify_PluginKeywordBeatsEditVerb(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: `{"task":"unknown"}`})

	// "放大"既像编辑又像插件，插件规则优先
	in := c.Classify(context.Background(), "把这张图放大", Context{SelectedImageCount: 1})

	assert.Equal(t, model.TaskPluginAction, in.Task)
	assert.Equal(t, "upscale", in.Plugin)
}

func TestClassify_EditVerbRequiresSelection(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: `{"task":"unknown"}`})

	// 没有选中图时编辑动词不触发改写
	in := c.Classify(context.Background(), "修改一下背景颜色", Context{})
	assert.Equal(t, model.TaskUnknown, in.Task)

	in = c.Classify(context.Background(), "修改一下背景颜色", Context{SelectedImageCount: 1})
	assert.Equal(t, model.TaskImageToImage, in.Task)
}

func TestClassify_CountPhrase(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: `{"task":"text_to_image","topic":"头像"}`})

	in := c.Classify(context.Background(), "生成4张头像", Context{})

	assert.Equal(t, 4, in.ImageCount)
}

func TestClassify_OrdinalReference(t *testing.T) {
	c := NewClassifier(&stubCompleter{response: `{"task":"image_to_video"}`})

	in := c.Classify(context.Background(), "用第2张图做视频", Context{SelectedImageCount: 3})
	require.Equal(t, model.TaskImageToVideo, in.Task)
	assert.Equal(t, 2, in.ReferencedImageIndex)

	in = c.Classify(context.Background(), "用第二张图做视频", Context{SelectedImageCount: 3})
	assert.Equal(t, 2, in.ReferencedImageIndex)
}

func TestDetectTaskKeyword(t *testing.T) {
	assert.Equal(t, model.TaskTextToVideo, DetectTaskKeyword("再做一条视频", Context{}))
	assert.Equal(t, model.TaskPluginAction, DetectTaskKeyword("抠图", Context{SelectedImageCount: 1}))
	assert.Equal(t, model.TaskUnknown, DetectTaskKeyword("好的谢谢", Context{}))
}
