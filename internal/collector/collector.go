package collector

import (
	"regexp"
	"strconv"
	"strings"

	"musecanvas-backend/internal/intent"
	"musecanvas-backend/internal/model"
)

// Context 需求收集可见的上下文
type Context struct {
	SelectedImageCount int
}

// BuildQuestions 纯函数：按固定优先级算出仍缺失的参数并生成提问列表。
// 衔接模式问题刻意排在脚本确认之前，脚本生成才能利用已选的视频结构。
func BuildQuestions(in *intent.Intent, req *model.Requirements, cctx Context) []model.RequirementQuestion {
	var questions []model.RequirementQuestion

	if req.Task == model.TaskPluginAction {
		// 插件操作只在缺参考图时提问
		if len(req.ReferenceImageIDs) == 0 && cctx.SelectedImageCount == 0 {
			questions = append(questions, referenceImagesQuestion())
		}
		return questions
	}

	if req.Subject() == "" {
		questions = append(questions, topicQuestion(req.Task))
	}

	if req.Task.IsVideo() {
		if req.DurationSeconds == 0 {
			questions = append(questions, durationQuestion())
		}
		if req.Platform == "" {
			questions = append(questions, platformQuestion())
		}
	}

	if req.AspectRatio == "" {
		questions = append(questions, aspectRatioQuestion())
	}
	if req.Resolution == "" {
		questions = append(questions, resolutionQuestion())
	}

	if (req.Task == model.TaskImageToImage || req.Task == model.TaskImageToVideo) &&
		len(req.ReferenceImageIDs) == 0 && cctx.SelectedImageCount == 0 {
		questions = append(questions, referenceImagesQuestion())
	}

	if req.Task.IsVideo() {
		if req.ConnectionMode == "" {
			questions = append(questions, TransitionModeQuestion())
		}
		questions = append(questions, needsScriptQuestion())
	}

	return questions
}

func topicQuestion(task model.TaskKind) model.RequirementQuestion {
	text := "想要创作什么内容？简单描述一下主题或产品。"
	if task.IsVideo() {
		text = "这条视频想表达什么？描述一下主题、产品或目标。"
	}
	return model.RequirementQuestion{
		Key:      model.QuestionTopic,
		Question: text,
		Freeform: true,
	}
}

func durationQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionDuration,
		Question: "视频总时长希望是多少？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "8秒（快闪）", Value: "8"},
			{Label: "B", Text: "20秒（短视频）", Value: "20"},
			{Label: "C", Text: "40秒（完整叙事）", Value: "40"},
			{Label: "D", Text: "60秒（长内容）", Value: "60"},
		},
	}
}

func platformQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionPlatform,
		Question: "视频主要投放到哪个平台？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "抖音 / TikTok", Value: "tiktok"},
			{Label: "B", Text: "小红书", Value: "xiaohongshu"},
			{Label: "C", Text: "YouTube", Value: "youtube"},
			{Label: "D", Text: "通用", Value: "general"},
		},
	}
}

func aspectRatioQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionAspectRatio,
		Question: "画面比例选哪种？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "16:9（横屏）", Value: "16:9"},
			{Label: "B", Text: "9:16（竖屏）", Value: "9:16"},
			{Label: "C", Text: "1:1（方形）", Value: "1:1"},
			{Label: "D", Text: "4:3（传统）", Value: "4:3"},
		},
	}
}

func resolutionQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionResolution,
		Question: "分辨率要求？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "720p（预览够用）", Value: "720p"},
			{Label: "B", Text: "1080p（标准高清）", Value: "1080p"},
			{Label: "C", Text: "4K（最高质量）", Value: "4k"},
		},
	}
}

func referenceImagesQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionReferenceImages,
		Question: "请在画布上选中要使用的参考图，或直接描述要用哪几张。",
		Freeform: true,
	}
}

// TransitionModeQuestion 衔接模式问题；脚本审阅阶段补问时也会用到
func TransitionModeQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionTransitionMode,
		Question: "多个片段之间如何衔接？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "固定参考图（所有片段共用一张图）", Value: string(model.ConnectionSingle)},
			{Label: "B", Text: "逐段首帧（每段单独生成首帧图）", Value: string(model.ConnectionFirstFrame)},
			{Label: "C", Text: "首尾帧衔接（相邻片段共享边界帧，过渡最自然）", Value: string(model.ConnectionFirstLast)},
		},
	}
}

func needsScriptQuestion() model.RequirementQuestion {
	return model.RequirementQuestion{
		Key:      model.QuestionNeedsScript,
		Question: "需要先生成叙事脚本供你审阅吗？",
		Options: []model.QuestionOption{
			{Label: "A", Text: "要，先看脚本", Value: "yes"},
			{Label: "B", Text: "不用，直接出计划", Value: "no"},
		},
	}
}

var optionLabelPattern = regexp.MustCompile(`(?i)^(?:option\s+|选项\s*)?([a-d])[\.。：:]?\s*$`)

// ApplyAnswer 把用户回复写回 Requirements。
// 全函数、无副作用、永不失败：无法识别的回答按原文兜底存储。
func ApplyAnswer(req *model.Requirements, q *model.RequirementQuestion, answer string, cctx Context) *model.Requirements {
	out := req.Clone()
	value := matchAnswer(q, answer)

	switch q.Key {
	case model.QuestionTopic:
		out.Topic = value
	case model.QuestionDuration:
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			out.DurationSeconds = n
		} else {
			out.DurationSeconds = parseLooseDuration(value)
		}
	case model.QuestionPlatform:
		out.Platform = value
	case model.QuestionAspectRatio:
		out.AspectRatio = value
	case model.QuestionResolution:
		out.Resolution = value
	case model.QuestionReferenceImages:
		// 优先采用画布上实际选中的图；没有则把文字描述单独记下，不混入主题推导
		if cctx.SelectedImageCount > 0 {
			// 编排器已把选中图ID写入 Requirements，这里不覆盖
		} else if value != "" {
			out.ReferenceNotes = value
		}
	case model.QuestionTransitionMode:
		switch model.ConnectionMode(value) {
		case model.ConnectionSingle, model.ConnectionFirstFrame, model.ConnectionFirstLast:
			out.ConnectionMode = model.ConnectionMode(value)
		default:
			out.ConnectionMode = model.ConnectionFirstLast
		}
	case model.QuestionNeedsScript:
		out.NeedsScript = value == "yes" || isAffirmative(value)
	}

	return out
}

// matchAnswer 选项题按标签、"option X"/"选项X"或选项值匹配；
// 自由题返回去除首尾空白的原文；匹配不上也返回原文兜底。
func matchAnswer(q *model.RequirementQuestion, answer string) string {
	trimmed := strings.TrimSpace(answer)
	if q.Freeform || len(q.Options) == 0 {
		return trimmed
	}

	if m := optionLabelPattern.FindStringSubmatch(trimmed); m != nil {
		label := strings.ToUpper(m[1])
		for _, opt := range q.Options {
			if opt.Label == label {
				return opt.Value
			}
		}
	}

	lower := strings.ToLower(trimmed)
	for _, opt := range q.Options {
		if strings.EqualFold(opt.Value, trimmed) ||
			containsToken(lower, strings.ToLower(opt.Value)) ||
			strings.Contains(trimmed, opt.Text) {
			return opt.Value
		}
	}

	return trimmed
}

// containsToken 判断 value 是否以完整词元出现在 text 中。
// 紧邻的 ASCII 字母或数字视为同一词元，"18秒"不会误中选项值"8"。
func containsToken(text, value string) bool {
	if value == "" {
		return false
	}
	for start := 0; start+len(value) <= len(text); {
		i := strings.Index(text[start:], value)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(value)
		beforeOK := i == 0 || !isASCIIAlnum(text[i-1])
		afterOK := end == len(text) || !isASCIIAlnum(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = i + 1
	}
	return false
}

func isASCIIAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

var looseDurationPattern = regexp.MustCompile(`(\d+)\s*(?:秒|s|sec|seconds?)`)

func parseLooseDuration(text string) int {
	if m := looseDurationPattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

func isAffirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range []string{"yes", "y", "要", "是", "好", "需要", "ok"} {
		if lower == kw || strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}
