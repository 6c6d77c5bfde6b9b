package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"musecanvas-backend/internal/config"
	"musecanvas-backend/internal/llm"
	"musecanvas-backend/internal/model"
	"musecanvas-backend/pkg/logger"
)

// Intent 结构化的任务描述：分类器输出，后续各阶段的输入
type Intent struct {
	Task                 model.TaskKind `json:"task"`
	Topic                string         `json:"topic,omitempty"`
	Product              string         `json:"product,omitempty"`
	Goal                 string         `json:"goal,omitempty"`
	DurationSeconds      int            `json:"duration_seconds,omitempty"`
	Platform             string         `json:"platform,omitempty"`
	Style                string         `json:"style,omitempty"`
	AspectRatio          string         `json:"aspect_ratio,omitempty"`
	Resolution           string         `json:"resolution,omitempty"`
	Model                string         `json:"model,omitempty"`
	ImageCount           int            `json:"image_count,omitempty"`
	Plugin               string         `json:"plugin,omitempty"`
	NeedsReferenceImage  bool           `json:"needs_reference_image"`
	NeedsScript          bool           `json:"needs_script"`
	ReferencedImageIndex int            `json:"referenced_image_index,omitempty"` // 1起始，0表示未指定
	Explanation          string         `json:"explanation,omitempty"`
}

// Context 分类器可见的最小上下文
type Context struct {
	SelectedImageCount int
}

// Classifier 意图分类器：LLM 概率分类 + 确定性覆盖规则链
type Classifier struct {
	completer llm.Completer
}

func NewClassifier(completer llm.Completer) *Classifier {
	return &Classifier{completer: completer}
}

const defaultIntentPrompt = `你是一个画布创作助手的意图分类器。根据用户消息判断任务类型并提取参数。

任务类型（task）只能是以下之一：
- text_to_image：文字生成图片
- image_to_image：基于已有图片修改/重绘
- text_to_video：文字生成视频
- image_to_video：基于已有图片生成视频
- plugin_action：对图片执行插件操作（放大、抠图、扩图、擦除、矢量化、多角度、分镜、下一场景）
- unknown：无法判断

当前画布上选中的参考图数量：%d

只输出一个 JSON 对象，不要输出其他内容：
{"task":"...","topic":"","product":"","goal":"","duration_seconds":0,"platform":"","style":"","aspect_ratio":"","resolution":"","model":"","image_count":0,"plugin":"","needs_reference_image":false,"needs_script":false,"explanation":""}

用户消息：%s`

// Classify 对用户消息做意图分类。
// LLM 输出不可解析时退化为 unknown，从不抛错。
func (c *Classifier) Classify(ctx context.Context, text string, cctx Context) *Intent {
	intent := c.classifyWithLLM(ctx, text, cctx)

	// 确定性覆盖规则优先于概率结果，按固定顺序应用，先命中者为准
	applyOverrideRules(intent, text, cctx)

	// 从消息里解析 "第2张图" 这类序数引用
	if idx := parseOrdinalReference(text); idx > 0 {
		intent.ReferencedImageIndex = idx
	}

	return intent
}

func (c *Classifier) classifyWithLLM(ctx context.Context, text string, cctx Context) *Intent {
	promptTpl := defaultIntentPrompt
	if cfg := config.Get(); cfg != nil && cfg.Agent.IntentPrompt != "" {
		promptTpl = cfg.Agent.IntentPrompt
	}
	prompt := fmt.Sprintf(promptTpl, cctx.SelectedImageCount, text)

	raw, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Warnf("意图分类调用失败，退化为 unknown: %v", err)
		return &Intent{Task: model.TaskUnknown, Explanation: err.Error()}
	}

	extracted := llm.ExtractJSON(raw)
	if extracted == "" {
		logger.Warnf("意图分类输出不含 JSON，退化为 unknown")
		return &Intent{Task: model.TaskUnknown, Explanation: strings.TrimSpace(raw)}
	}

	var intent Intent
	if err := json.Unmarshal([]byte(extracted), &intent); err != nil {
		logger.Warnf("意图分类 JSON 解析失败，退化为 unknown: %v", err)
		return &Intent{Task: model.TaskUnknown, Explanation: strings.TrimSpace(raw)}
	}

	if !isKnownTask(intent.Task) {
		intent.Task = model.TaskUnknown
	}

	return &intent
}

func isKnownTask(t model.TaskKind) bool {
	switch t {
	case model.TaskTextToImage, model.TaskImageToImage, model.TaskTextToVideo,
		model.TaskImageToVideo, model.TaskPluginAction, model.TaskUnknown:
		return true
	}
	return false
}
