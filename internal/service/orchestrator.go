package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"musecanvas-backend/internal/collector"
	"musecanvas-backend/internal/config"
	"musecanvas-backend/internal/decision"
	"musecanvas-backend/internal/intent"
	"musecanvas-backend/internal/llm"
	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/planner"
	"musecanvas-backend/internal/registry"
	"musecanvas-backend/internal/script"
	"musecanvas-backend/internal/validator"
	"musecanvas-backend/pkg/logger"
)

// Reply 编排器对一条用户消息的回应
type Reply struct {
	Text string
	Type string // message | plan_approved
}

// phaseHandler 单个阶段的处理函数
type phaseHandler func(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error)

// Orchestrator 会话编排器：持有各阶段子模块，独占推进会话状态。
// 所有阶段迁移都走 handlers 表，不允许散落在各处的隐式跳转。
type Orchestrator struct {
	classifier *intent.Classifier
	scripter   *script.Planner
	synth      *planner.Synthesizer
	checker    *validator.Validator
	resolver   *decision.Resolver
	reg        *registry.Registry

	handlers map[model.Phase]phaseHandler
}

func NewOrchestrator(completer llm.Completer, reg *registry.Registry) *Orchestrator {
	decisionPrompt := ""
	if cfg := config.Get(); cfg != nil {
		decisionPrompt = cfg.Agent.DecisionPrompt
	}
	o := &Orchestrator{
		classifier: intent.NewClassifier(completer),
		scripter:   script.NewPlanner(completer),
		synth:      planner.NewSynthesizer(reg),
		checker:    validator.New(reg),
		resolver:   decision.NewResolver(completer, decisionPrompt),
		reg:        reg,
	}
	o.handlers = map[model.Phase]phaseHandler{
		model.PhaseIdle:             o.handleIdle,
		model.PhaseCollecting:       o.handleCollecting,
		model.PhaseScriptReview:     o.handleScriptReview,
		model.PhaseGraphPreview:     o.handleGraphPreview,
		model.PhaseEditConfirmation: o.handleEditConfirmation,
	}
	return o
}

// HandleMessage 处理一条用户消息并返回回复。
// 会话对象由调用方加载与保存，这里只读写其内存状态。
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	handler, ok := o.handlers[sess.Phase]
	if !ok {
		logger.Warnf("会话 %s 处于未知阶段 %s，重置", sess.ID, sess.Phase)
		sess.Reset()
		handler = o.handleIdle
	}
	return handler(ctx, sess, text, selected)
}

// ---- IDLE ----

func (o *Orchestrator) handleIdle(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	in := o.classifier.Classify(ctx, text, intent.Context{SelectedImageCount: len(selected)})
	if in.Task == model.TaskUnknown {
		reply := "我可以帮你生成图片、视频，或对画布上的图片执行放大、抠图等操作。想做点什么？"
		if in.Explanation != "" {
			logger.Debugf("意图未识别: %s", in.Explanation)
		}
		return &Reply{Text: reply, Type: "message"}, nil
	}

	sess.Requirements = requirementsFromIntent(in, selected)
	sess.PendingQuestions = collector.BuildQuestions(in, &sess.Requirements, collector.Context{SelectedImageCount: len(selected)})
	sess.CurrentQuestionIndex = 0

	if len(sess.PendingQuestions) > 0 {
		sess.Phase = model.PhaseCollecting
		return &Reply{Text: sess.PendingQuestions[0].Render(), Type: "message"}, nil
	}
	return o.proceedAfterCollection(ctx, sess)
}

// requirementsFromIntent 把分类结果落成 Requirements 初值
func requirementsFromIntent(in *intent.Intent, selected []string) model.Requirements {
	req := model.Requirements{
		Task:            in.Task,
		Topic:           in.Topic,
		Product:         in.Product,
		Goal:            in.Goal,
		DurationSeconds: in.DurationSeconds,
		Platform:        in.Platform,
		Style:           in.Style,
		AspectRatio:     in.AspectRatio,
		Resolution:      in.Resolution,
		Model:           in.Model,
		ImageCount:      in.ImageCount,
		Plugin:          in.Plugin,
		NeedsScript:     in.NeedsScript,
	}
	req.ReferenceImageIDs = append([]string(nil), selected...)
	// “第2张图”这类序数引用提升为主参考
	if idx := in.ReferencedImageIndex; idx > 0 && idx <= len(req.ReferenceImageIDs) {
		id := req.ReferenceImageIDs[idx-1]
		rest := append([]string{}, req.ReferenceImageIDs[:idx-1]...)
		rest = append(rest, req.ReferenceImageIDs[idx:]...)
		req.ReferenceImageIDs = append([]string{id}, rest...)
	}
	return req
}

// ---- COLLECTING_REQUIREMENTS ----

func (o *Orchestrator) handleCollecting(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	q := sess.CurrentQuestion()
	if q == nil {
		return o.proceedAfterCollection(ctx, sess)
	}

	cctx := collector.Context{SelectedImageCount: len(selected)}
	if len(selected) > 0 && len(sess.Requirements.ReferenceImageIDs) == 0 {
		sess.Requirements.ReferenceImageIDs = append([]string(nil), selected...)
	}
	sess.Requirements = *collector.ApplyAnswer(&sess.Requirements, q, text, cctx)
	sess.CurrentQuestionIndex++

	if next := sess.CurrentQuestion(); next != nil {
		return &Reply{Text: next.Render(), Type: "message"}, nil
	}
	return o.proceedAfterCollection(ctx, sess)
}

// proceedAfterCollection 参数齐了：要脚本先走脚本审阅，否则直接出计划
func (o *Orchestrator) proceedAfterCollection(ctx context.Context, sess *model.Session) (*Reply, error) {
	req := &sess.Requirements
	if req.Task.IsVideo() && req.NeedsScript {
		sess.ScriptPlan = o.scripter.Plan(ctx, o.scriptRequest(req, ""))
		sess.Phase = model.PhaseScriptReview
		return &Reply{Text: renderScriptPreview(sess.ScriptPlan), Type: "message"}, nil
	}
	return o.synthesizeAndPreview(sess)
}

func (o *Orchestrator) scriptRequest(req *model.Requirements, feedback string) script.Request {
	maxClip := 0
	targetClips := 1
	if mc := o.resolveVideoModel(req); mc != nil {
		maxClip = mc.MaxClipSeconds()
		if maxClip > 0 && req.DurationSeconds > 0 {
			targetClips = (req.DurationSeconds + maxClip - 1) / maxClip
		}
	}
	return script.Request{
		Topic:          req.Topic,
		Product:        req.Product,
		Goal:           req.Goal,
		TotalSeconds:   req.DurationSeconds,
		Platform:       req.Platform,
		Style:          req.Style,
		TargetClips:    targetClips,
		MaxClipSeconds: maxClip,
		Feedback:       feedback,
	}
}

func (o *Orchestrator) resolveVideoModel(req *model.Requirements) *registry.ModelCaps {
	if req.Model != "" {
		if mc, err := o.reg.Lookup(req.Model); err == nil && mc.Kind == "video" {
			return mc
		}
	}
	return o.reg.DefaultModel("video")
}

// ---- SCRIPT_REVIEW ----

var scriptApprovals = []string{"a", "确认", "可以", "通过", "没问题", "就这样", "approve", "yes", "ok", "好的"}
var scriptCancels = []string{"b", "取消", "算了", "不做了", "cancel", "abort"}

func (o *Orchestrator) handleScriptReview(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	// 上一轮在本阶段补问过衔接模式
	if q := sess.CurrentQuestion(); q != nil && q.Key == model.QuestionTransitionMode {
		sess.Requirements = *collector.ApplyAnswer(&sess.Requirements, q, text, collector.Context{})
		sess.PendingQuestions = nil
		sess.CurrentQuestionIndex = 0
		return o.synthesizeAndPreview(sess)
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range scriptCancels {
		if lower == kw {
			sess.Reset()
			return &Reply{Text: "好的，已放弃这份脚本。需要时随时告诉我。", Type: "message"}, nil
		}
	}
	for _, kw := range scriptApprovals {
		if lower == kw {
			if sess.Requirements.ConnectionMode == "" {
				// 衔接模式没定下来之前不能合成指令图；留在本阶段补问
				q := collector.TransitionModeQuestion()
				sess.PendingQuestions = []model.RequirementQuestion{q}
				sess.CurrentQuestionIndex = 0
				return &Reply{Text: q.Render(), Type: "message"}, nil
			}
			return o.synthesizeAndPreview(sess)
		}
	}

	// 其余文本一律当脚本修改意见，带上重写
	sess.ScriptPlan = o.scripter.Plan(ctx, o.scriptRequest(&sess.Requirements, text))
	return &Reply{Text: renderScriptPreview(sess.ScriptPlan), Type: "message"}, nil
}

func renderScriptPreview(plan *model.ScriptPlan) string {
	var b strings.Builder
	b.WriteString("## 叙事脚本\n\n")
	b.WriteString(plan.Script)
	b.WriteString("\n\n### 分镜\n")
	for _, scene := range plan.Scenes {
		b.WriteString(fmt.Sprintf("%d. （%d秒）%s\n", scene.Index, scene.DurationSeconds, scene.Prompt))
	}
	b.WriteString("\nA. 确认脚本，继续生成计划\nB. 取消\n也可以直接告诉我想怎么改。")
	return b.String()
}

// ---- GRAPH_PREVIEW ----

var fixCommandPattern = regexp.MustCompile(`(?i)^(?:修复|fix)\s*(\d+)$`)

func (o *Orchestrator) handleGraphPreview(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	if sess.GraphPlan == nil {
		sess.Reset()
		return o.handleIdle(ctx, sess, text, selected)
	}

	// “修复 N”直接套用校验器给出的第 N 个补丁
	if m := fixCommandPattern.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return o.applyFixCommand(sess, m[1])
	}

	// 图片/插件计划还在预览，用户却要做视频：这是全新请求而非修改意见，
	// 不交给裁决器，直接重置重来。编辑动词和插件词常出现在修改意见里，
	// 只有视频关键词参与这层判断。
	if task := intent.DetectTaskKeyword(text, intent.Context{SelectedImageCount: len(selected)}); task.IsVideo() && !sess.Requirements.Task.IsVideo() {
		logger.Infof("会话 %s 在预览阶段收到新的视频请求，重置后重新处理", sess.ID)
		sess.Reset()
		return o.handleIdle(ctx, sess, text, selected)
	}

	d := o.resolver.Resolve(ctx, text)
	switch d.Kind {
	case decision.Execute:
		return o.approvePlan(sess)
	case decision.Cancel:
		sess.Reset()
		return &Reply{Text: "好的，已取消这份计划。", Type: "message"}, nil
	case decision.Modify:
		sess.PendingEdit = &model.PendingEdit{
			Changes: d.Changes,
			Summary: describeChanges(&d.Changes),
		}
		sess.Phase = model.PhaseEditConfirmation
		return &Reply{
			Text: fmt.Sprintf("确认以下修改吗？\n%s\nA. 确认修改\nB. 保持原计划", sess.PendingEdit.Summary),
			Type: "message",
		}, nil
	default:
		// 裁决不了时先看是不是一个全新的创作请求
		if task := intent.DetectTaskKeyword(text, intent.Context{SelectedImageCount: len(selected)}); task != model.TaskUnknown {
			logger.Infof("会话 %s 在预览阶段收到新请求，重置后按新任务处理", sess.ID)
			sess.Reset()
			return o.handleIdle(ctx, sess, text, selected)
		}
		return &Reply{Text: d.Question, Type: "message"}, nil
	}
}

func (o *Orchestrator) applyFixCommand(sess *model.Session, numText string) (*Reply, error) {
	n, err := strconv.Atoi(numText)
	result := o.checker.Validate(sess.GraphPlan, &sess.Requirements)
	if err != nil || n < 1 || n > len(result.Fixes) {
		return &Reply{Text: "没有这个编号的修复项，请核对预览里列出的修复建议。", Type: "message"}, nil
	}
	validator.ApplyAutoFix(&sess.Requirements, result.Fixes[n-1])
	return o.synthesizeAndPreview(sess)
}

func (o *Orchestrator) approvePlan(sess *model.Session) (*Reply, error) {
	result := o.checker.Validate(sess.GraphPlan, &sess.Requirements)
	if !result.OK {
		return &Reply{
			Text: "计划还有阻断性问题，暂时不能执行：\n" + strings.Join(result.Errors, "\n"),
			Type: "message",
		}, nil
	}
	sess.ApprovedPlan = sess.GraphPlan
	planID := sess.GraphPlan.ID
	sess.Reset()
	logger.Infof("会话 %s 的计划 %s 已交付执行", sess.ID, planID)
	return &Reply{Text: "已确认，计划开始执行。", Type: "plan_approved"}, nil
}

// ---- EDIT_CONFIRMATION ----

func (o *Orchestrator) handleEditConfirmation(ctx context.Context, sess *model.Session, text string, selected []string) (*Reply, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	confirmed := false
	declined := false
	switch lower {
	case "a", "确认", "确认修改", "好", "好的", "yes", "ok", "confirm":
		confirmed = true
	case "b", "取消", "不改了", "保持原计划", "no", "cancel":
		declined = true
	}

	if declined || sess.PendingEdit == nil {
		sess.PendingEdit = nil
		sess.Phase = model.PhaseGraphPreview
		return &Reply{Text: "好的，保持原计划不变。\n\n" + o.renderPreview(sess), Type: "message"}, nil
	}
	if !confirmed {
		return &Reply{Text: "请回复 A 确认修改，或 B 保持原计划。", Type: "message"}, nil
	}

	// 改动只写回 Requirements，再整图重放，确保计划始终可由参数推导
	applyChanges(&sess.Requirements, &sess.PendingEdit.Changes)
	sess.PendingEdit = nil
	return o.synthesizeAndPreview(sess)
}

// applyChanges 把待确认的字段改动落到 Requirements
func applyChanges(req *model.Requirements, c *model.PlanChanges) {
	if c.Model != nil {
		req.Model = *c.Model
	}
	if c.AspectRatio != nil {
		req.AspectRatio = *c.AspectRatio
	}
	if c.Resolution != nil {
		req.Resolution = *c.Resolution
	}
	if c.Count != nil && *c.Count > 0 {
		req.ImageCount = *c.Count
	}
	if c.Prompt != nil && *c.Prompt != "" {
		req.Topic = *c.Prompt
	}
	if c.DurationSeconds != nil && *c.DurationSeconds > 0 {
		req.DurationSeconds = *c.DurationSeconds
	}
}

func describeChanges(c *model.PlanChanges) string {
	var parts []string
	if c.Model != nil {
		parts = append(parts, "模型 → "+*c.Model)
	}
	if c.AspectRatio != nil {
		parts = append(parts, "比例 → "+*c.AspectRatio)
	}
	if c.Resolution != nil {
		parts = append(parts, "分辨率 → "+*c.Resolution)
	}
	if c.Count != nil {
		parts = append(parts, fmt.Sprintf("数量 → %d", *c.Count))
	}
	if c.DurationSeconds != nil {
		parts = append(parts, fmt.Sprintf("时长 → %d秒", *c.DurationSeconds))
	}
	if c.Prompt != nil {
		parts = append(parts, "描述 → "+*c.Prompt)
	}
	return "- " + strings.Join(parts, "\n- ")
}

// ---- 合成与预览 ----

// synthesizeAndPreview 合成指令图、校验、进入预览阶段
func (o *Orchestrator) synthesizeAndPreview(sess *model.Session) (*Reply, error) {
	plan, err := o.synth.Synthesize(&sess.Requirements, sess.ScriptPlan)
	if err != nil {
		logger.Errorf("会话 %s 合成计划失败: %v", sess.ID, err)
		sess.Reset()
		return &Reply{Text: "抱歉，这个需求我暂时规划不出来：" + err.Error(), Type: "message"}, nil
	}
	sess.GraphPlan = plan
	sess.Phase = model.PhaseGraphPreview
	return &Reply{Text: o.renderPreview(sess), Type: "message"}, nil
}

func (o *Orchestrator) renderPreview(sess *model.Session) string {
	var b strings.Builder
	b.WriteString(sess.GraphPlan.Summary)

	result := o.checker.Validate(sess.GraphPlan, &sess.Requirements)
	if len(result.Errors) > 0 {
		b.WriteString("\n### ⚠️ 阻断问题\n")
		for _, e := range result.Errors {
			b.WriteString("- " + e + "\n")
		}
	}
	if len(result.Warnings) > 0 {
		b.WriteString("\n### 提醒\n")
		for _, w := range result.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	if len(result.Fixes) > 0 {
		b.WriteString("\n### 一键修复（回复「修复 N」应用）\n")
		for i, f := range result.Fixes {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Label))
		}
	}

	b.WriteString("\nA. 执行计划\nB. 取消\n也可以直接说要改哪里（例如：换成竖屏、时长改成30秒）。")
	return b.String()
}
