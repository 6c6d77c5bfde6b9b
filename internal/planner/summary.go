package planner

import (
	"fmt"
	"strings"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"
)

// 计划摘要：面向用户的自然语言预览，不是计划本体的一部分。
// 改动计划必须改 Steps，摘要只是 Steps 的投影。

func buildPluginSummary(req *model.Requirements) string {
	var b strings.Builder
	b.WriteString("## 插件操作\n\n")
	b.WriteString(fmt.Sprintf("- 插件：%s\n", req.Plugin))
	if n := len(req.ReferenceImageIDs); n > 0 {
		b.WriteString(fmt.Sprintf("- 作用对象：画布上选中的 %d 张图片\n", n))
	}
	return b.String()
}

func buildImageSummary(req *model.Requirements, count int, cfg model.ImageNodeConfig) string {
	var b strings.Builder
	b.WriteString("## 图片生成计划\n\n")
	b.WriteString("### 参数\n")
	b.WriteString(fmt.Sprintf("- 数量：%d 张\n", count))
	if cfg.Model != "" {
		b.WriteString(fmt.Sprintf("- 模型：%s\n", cfg.Model))
	}
	writeIfSet(&b, "比例", cfg.AspectRatio)
	writeIfSet(&b, "分辨率", cfg.Resolution)
	if req.Task == model.TaskImageToImage {
		b.WriteString(fmt.Sprintf("- 参考图：%d 张（强度 %s）\n",
			len(cfg.ReferenceImageIDs), strengthLabel(cfg.Strength)))
	}
	b.WriteString("\n### 提示词\n")
	b.WriteString(fmt.Sprintf("1. %s\n", cfg.Prompt))
	return b.String()
}

func buildVideoSummary(req *model.Requirements, mc *registry.ModelCaps, clips []model.Scene,
	imagePrompts []string, musicPrompt string, mode model.ConnectionMode) string {

	var b strings.Builder
	b.WriteString("## 视频生成计划\n\n")

	b.WriteString("### 参数\n")
	b.WriteString(fmt.Sprintf("- 模型：%s\n", mc.Name))
	b.WriteString(fmt.Sprintf("- 总时长：%d 秒，共 %d 个片段\n", totalDuration(clips), len(clips)))
	writeIfSet(&b, "平台", req.Platform)
	writeIfSet(&b, "比例", req.AspectRatio)
	writeIfSet(&b, "分辨率", req.Resolution)
	b.WriteString(fmt.Sprintf("- 衔接方式：%s\n", connectionModeLabel(mode)))

	if musicPrompt != "" {
		b.WriteString("\n### 共享配乐\n")
		b.WriteString(fmt.Sprintf("- %s\n", musicPrompt))
	}

	if len(imagePrompts) > 0 {
		b.WriteString("\n### 图片提示词\n")
		for i, p := range imagePrompts {
			b.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, imageTimeMark(clips, i), p))
		}
	}

	b.WriteString("\n### 视频片段提示词\n")
	for i, clip := range clips {
		b.WriteString(fmt.Sprintf("%d. （%d秒）%s\n", i+1, clip.DurationSeconds, clip.Prompt))
	}
	return b.String()
}

// imageTimeMark 标注该图片落在时间轴上的位置。
// 首帧模式下图 i 即片段 i 的开头；首尾帧模式下帧 i 是片段 i 的结尾、
// 片段 i+1 的开头，两种情形累计前 i 段时长即可。
func imageTimeMark(clips []model.Scene, i int) string {
	elapsed := 0
	for j := 0; j < i && j < len(clips); j++ {
		elapsed += clips[j].DurationSeconds
	}
	return fmt.Sprintf("%02d:%02d", elapsed/60, elapsed%60)
}

func connectionModeLabel(mode model.ConnectionMode) string {
	switch mode {
	case model.ConnectionSingle:
		return "固定参考图"
	case model.ConnectionFirstFrame:
		return "每段独立首帧"
	case model.ConnectionFirstLast:
		return "首尾帧衔接"
	}
	return string(mode)
}

func strengthLabel(s model.ReferenceStrength) string {
	switch s {
	case model.StrengthLow:
		return "低"
	case model.StrengthHigh:
		return "高"
	default:
		return "中"
	}
}

func writeIfSet(b *strings.Builder, label, value string) {
	if value != "" {
		b.WriteString(fmt.Sprintf("- %s：%s\n", label, value))
	}
}
