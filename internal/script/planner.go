package script

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

// Request 脚本规划输入。TargetClips 与 MaxClipSeconds 是图规划器给出的
// 结构性提示：分镜数要与最终片段数对齐，单镜时长不能超过模型上限。
type Request struct {
	Topic            string
	Product          string
	Goal             string
	TotalSeconds     int
	Platform         string
	Style            string
	TargetClips      int
	MaxClipSeconds   int
	ForceSingleScene bool
	Feedback         string // 用户对上一版脚本的修改意见
}

func (r *Request) subject() string {
	if r.Topic != "" {
		return r.Topic
	}
	if r.Product != "" {
		return r.Product
	}
	return r.Goal
}

// Planner 脚本/分镜规划器
type Planner struct {
	completer llm.Completer
}

func NewPlanner(completer llm.Completer) *Planner {
	return &Planner{completer: completer}
}

const defaultScriptPrompt = `你是一名短视频导演。为下面的需求写一份叙事脚本并拆分分镜。

要求：
1. 全片视觉与色调统一，人物/产品形象前后一致
2. 每个分镜给出具体画面细节：镜头运动、光线、构图
3. 分镜数量必须恰好是 %d 个
4. 每个分镜时长不超过 %d 秒，总时长约 %d 秒
5. 平台：%s，风格：%s

主题：%s
%s
只输出一个 JSON 对象：
{"script":"整体叙事脚本","scenes":[{"index":1,"prompt":"画面描述","duration_seconds":5}]}`

// Plan 生成脚本。LLM 返回什么都不信任：分镜数、时长都做确定性后处理，
// 彻底解析失败时退回单分镜兜底，保证图规划器总能安全展开。
func (p *Planner) Plan(ctx context.Context, req Request) *model.ScriptPlan {
	targetClips := req.TargetClips
	if req.ForceSingleScene || targetClips <= 0 {
		targetClips = 1
	}

	plan := p.planWithLLM(ctx, req, targetClips)
	if plan == nil || len(plan.Scenes) == 0 {
		logger.Warnf("脚本生成失败，使用兜底单分镜")
		plan = fallbackPlan(req)
	}

	normalize(plan, targetClips, req.MaxClipSeconds)
	return plan
}

func (p *Planner) planWithLLM(ctx context.Context, req Request, targetClips int) *model.ScriptPlan {
	promptTpl := defaultScriptPrompt
	if cfg := config.Get(); cfg != nil && cfg.Agent.ScriptPrompt != "" {
		promptTpl = cfg.Agent.ScriptPrompt
	}

	maxClip := req.MaxClipSeconds
	if maxClip <= 0 {
		maxClip = req.TotalSeconds
	}
	feedback := ""
	if req.Feedback != "" {
		feedback = "用户对上一版的修改意见：" + req.Feedback + "\n"
	}

	prompt := fmt.Sprintf(promptTpl,
		targetClips, maxClip, req.TotalSeconds,
		orDefault(req.Platform, "通用"), orDefault(req.Style, "自然"),
		req.subject(), feedback)

	raw, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Warnf("脚本生成调用失败: %v", err)
		return nil
	}

	extracted := llm.ExtractJSON(raw)
	if extracted == "" {
		return nil
	}

	var plan model.ScriptPlan
	if err := json.Unmarshal([]byte(extracted), &plan); err != nil {
		logger.Warnf("脚本 JSON 解析失败: %v", err)
		return nil
	}

	return &plan
}

// normalize 确定性后处理：分镜数对齐到 targetClips（多裁少补，
// 补齐时重复最后一个分镜），时长全部钳制到 maxClip，编号重排为 1..N。
func normalize(plan *model.ScriptPlan, targetClips, maxClip int) {
	if len(plan.Scenes) > targetClips {
		plan.Scenes = plan.Scenes[:targetClips]
	}
	for len(plan.Scenes) < targetClips {
		last := plan.Scenes[len(plan.Scenes)-1]
		plan.Scenes = append(plan.Scenes, last)
	}

	for i := range plan.Scenes {
		plan.Scenes[i].Index = i + 1
		if plan.Scenes[i].DurationSeconds <= 0 {
			plan.Scenes[i].DurationSeconds = 1
		}
		if maxClip > 0 && plan.Scenes[i].DurationSeconds > maxClip {
			plan.Scenes[i].DurationSeconds = maxClip
		}
	}
}

func fallbackPlan(req Request) *model.ScriptPlan {
	duration := req.TotalSeconds
	if duration <= 0 {
		duration = 8
	}
	subject := req.subject()
	if subject == "" {
		subject = "展示画面"
	}
	return &model.ScriptPlan{
		Script: subject,
		Scenes: []model.Scene{
			{Index: 1, Prompt: subject, DurationSeconds: duration},
		},
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
