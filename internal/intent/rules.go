package intent

import (
	"regexp"
	"strconv"
	"strings"

	"musecanvas-backend/internal/model"
)

// overrideRule 确定性覆盖规则。
// apply 返回 true 表示本规则改写了任务类型；规则链按固定顺序执行，
// 任务一旦被前面的规则确定，后面改任务的规则不再生效。
type overrideRule struct {
	name  string
	apply func(intent *Intent, text string, cctx Context) bool
}

// 规则链顺序即优先级。插件规则必须排在图生图改写规则之前，
// 否则"把这张图放大"会被误判为 image_to_image。
var overrideRules = []overrideRule{
	{name: "video_keyword", apply: applyVideoRule},
	{name: "plugin_keyword", apply: applyPluginRule},
	{name: "edit_verb", apply: applyEditRule},
}

func applyOverrideRules(intent *Intent, text string, cctx Context) {
	taskSet := false
	for _, rule := range overrideRules {
		if taskSet {
			break
		}
		if rule.apply(intent, text, cctx) {
			taskSet = true
		}
	}

	// 数量短语独立于任务覆盖：分类器没给数量时补上
	if intent.ImageCount == 0 {
		if n := parseCountPhrase(text); n > 0 {
			intent.ImageCount = n
		}
	}
}

// DetectTaskKeyword 只跑关键词规则链、不碰模型的轻量探测。
// 预览阶段判断用户是否发起了全新创作请求时使用。
func DetectTaskKeyword(text string, cctx Context) model.TaskKind {
	probe := &Intent{Task: model.TaskUnknown}
	applyOverrideRules(probe, text, cctx)
	return probe.Task
}

var videoKeywords = []string{
	"视频", "短片", "动起来", "动画", "vlog", "video", "clip", "animate", "animation",
}

// applyVideoRule 视频关键词：有选中参考图走图生视频，否则文生视频
func applyVideoRule(intent *Intent, text string, cctx Context) bool {
	lower := strings.ToLower(text)
	for _, kw := range videoKeywords {
		if strings.Contains(lower, kw) {
			if cctx.SelectedImageCount > 0 {
				intent.Task = model.TaskImageToVideo
				intent.NeedsReferenceImage = true
			} else {
				intent.Task = model.TaskTextToVideo
			}
			return true
		}
	}
	return false
}

// pluginKeywords 插件触发词 → 插件标识
var pluginKeywords = []struct {
	keywords []string
	plugin   string
}{
	{[]string{"放大", "高清化", "超分", "upscale"}, "upscale"},
	{[]string{"抠图", "去背景", "去除背景", "remove background", "remove the background"}, "remove_background"},
	{[]string{"扩图", "扩展画面", "expand", "outpaint"}, "expand"},
	{[]string{"擦除", "消除", "erase", "remove object"}, "erase"},
	{[]string{"矢量化", "转矢量", "vectorize"}, "vectorize"},
	{[]string{"多角度", "多视角", "multi-angle", "multi angle"}, "multi_angle"},
	{[]string{"分镜", "故事板", "storyboard"}, "storyboard"},
	{[]string{"下一场景", "下一个场景", "next scene"}, "next_scene"},
}

// applyPluginRule 插件关键词强制改写为 plugin_action 并附上插件标识
func applyPluginRule(intent *Intent, text string, cctx Context) bool {
	lower := strings.ToLower(text)
	for _, entry := range pluginKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				intent.Task = model.TaskPluginAction
				intent.Plugin = entry.plugin
				intent.NeedsReferenceImage = true
				return true
			}
		}
	}
	return false
}

var editVerbs = []string{
	"修改", "改成", "换成", "调整", "重绘", "变成", "edit", "change", "modify", "redraw", "turn it into",
}

// applyEditRule 编辑动词 + 已选中图片 → 图生图
func applyEditRule(intent *Intent, text string, cctx Context) bool {
	if cctx.SelectedImageCount == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, verb := range editVerbs {
		if strings.Contains(lower, verb) {
			intent.Task = model.TaskImageToImage
			intent.NeedsReferenceImage = true
			return true
		}
	}
	return false
}

var (
	countPhrasePattern = regexp.MustCompile(`(\d+)\s*(?:张|幅|个|images?|pics?|pictures?)`)
	ordinalPattern     = regexp.MustCompile(`(?:第\s*(\d+)\s*张|(\d+)(?:st|nd|rd|th)\s+(?:image|pic|picture))`)
	chineseOrdinals    = map[string]int{"一": 1, "二": 2, "三": 3, "四": 4, "五": 5, "六": 6, "七": 7, "八": 8, "九": 9}
)

// parseCountPhrase 解析"3张图"/"3 images"这类数量短语
func parseCountPhrase(text string) int {
	matches := countPhrasePattern.FindStringSubmatch(strings.ToLower(text))
	if len(matches) < 2 {
		return 0
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// parseOrdinalReference 解析"第2张"/"2nd image"这类序数引用，1起始
func parseOrdinalReference(text string) int {
	lower := strings.ToLower(text)
	if matches := ordinalPattern.FindStringSubmatch(lower); matches != nil {
		for _, g := range matches[1:] {
			if g != "" {
				if n, err := strconv.Atoi(g); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	// 中文数字序数："第二张"
	for word, n := range chineseOrdinals {
		if strings.Contains(text, "第"+word+"张") {
			return n
		}
	}
	return 0
}
