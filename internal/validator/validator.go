package validator

import (
	"fmt"

	"musecanvas-backend/internal/model"
	"musecanvas-backend/internal/registry"
)

// Validator 对照模型能力清单校验已合成的指令图。
// 结构性缺陷是阻断错误；能力越界只给警告，并附确定性修复补丁。
type Validator struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate 校验计划。修复补丁只描述对 Requirements 的改动，
// 应用后由调用方重新合成整图，这里从不触碰 plan.Steps。
func (v *Validator) Validate(plan *model.CanvasInstructionPlan, req *model.Requirements) *model.ValidationResult {
	result := &model.ValidationResult{OK: true}

	for i := range plan.Steps {
		v.checkStepStructure(&plan.Steps[i], result)
	}
	v.checkCapabilities(plan, req, result)
	v.checkReferences(req, result)

	result.OK = len(result.Errors) == 0
	return result
}

// checkStepStructure 结构性校验：帧挂接字段齐全、批量覆盖数量匹配
func (v *Validator) checkStepStructure(step *model.PlanStep, result *model.ValidationResult) {
	if step.Type == model.StepCreateNode && len(step.BatchConfigs) > 0 && len(step.BatchConfigs) != step.Count {
		result.Errors = append(result.Errors,
			fmt.Sprintf("步骤 %s 的批量配置数 %d 与节点数 %d 不一致", step.ID, len(step.BatchConfigs), step.Count))
	}

	for _, cfg := range step.AllConfigs() {
		vc := cfg.Video
		if vc == nil || vc.ConnectToFrames == nil {
			continue
		}
		fc := vc.ConnectToFrames
		switch fc.Mode {
		case model.FrameFirstLast:
			if fc.SourceStepID == "" || fc.FirstFrameIndex == nil || fc.LastFrameIndex == nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("步骤 %s 片段 %d 的首尾帧挂接缺少来源步骤或帧下标", step.ID, vc.SceneIndex))
			}
		case model.FrameFirstOnly:
			if fc.SourceStepID == "" && fc.ReferenceImageID == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("步骤 %s 片段 %d 的首帧挂接既无来源步骤也无参考图", step.ID, vc.SceneIndex))
			}
		}
	}
}

// checkCapabilities 能力越界校验：时长、分辨率、比例、图生图支持
func (v *Validator) checkCapabilities(plan *model.CanvasInstructionPlan, req *model.Requirements, result *model.ValidationResult) {
	modelID := plan.Metadata.Model
	if modelID == "" {
		modelID = req.Model
	}
	if modelID == "" {
		return
	}
	mc, err := v.reg.Lookup(modelID)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("模型 %s 不在能力清单中", modelID))
		if def := v.defaultFor(req); def != nil {
			result.Fixes = append(result.Fixes, model.AutoFix{
				Kind:  model.FixSwitchModel,
				Label: fmt.Sprintf("改用 %s", def.Name),
				Value: def.ID,
			})
		}
		return
	}

	if req.Task.IsVideo() {
		v.checkClipDurations(plan, mc, result)
	}

	if req.Resolution != "" && len(mc.Resolutions) > 0 && !mc.SupportsResolution(req.Resolution) {
		closest := mc.ClosestResolution(req.Resolution)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s 不支持 %s 分辨率", mc.Name, req.Resolution))
		result.Fixes = append(result.Fixes, model.AutoFix{
			Kind:  model.FixSetResolution,
			Label: fmt.Sprintf("改为 %s", closest),
			Value: closest,
		})
	}

	if req.AspectRatio != "" && len(mc.AspectRatios) > 0 && !mc.SupportsAspectRatio(req.AspectRatio) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s 不支持 %s 画幅比例", mc.Name, req.AspectRatio))
		if len(mc.AspectRatios) > 0 {
			result.Fixes = append(result.Fixes, model.AutoFix{
				Kind:  model.FixSetAspectRatio,
				Label: fmt.Sprintf("改为 %s", mc.AspectRatios[0]),
				Value: mc.AspectRatios[0],
			})
		}
	}

	if req.Task == model.TaskImageToImage && !mc.ImageToImage {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s 不支持图生图", mc.Name))
		if def := v.reg.DefaultImageToImageModel(); def != nil && def.ID != mc.ID {
			result.Fixes = append(result.Fixes, model.AutoFix{
				Kind:  model.FixSwitchModel,
				Label: fmt.Sprintf("改用支持图生图的 %s", def.Name),
				Value: def.ID,
			})
		}
	}
}

// checkClipDurations 逐片段核对时长是否在模型支持范围内
func (v *Validator) checkClipDurations(plan *model.CanvasInstructionPlan, mc *registry.ModelCaps, result *model.ValidationResult) {
	step := plan.FindStep("video_clips")
	if step == nil {
		return
	}
	total := 0
	adjusted := 0
	bad := 0
	for _, cfg := range step.AllConfigs() {
		vc := cfg.Video
		if vc == nil || vc.DurationSeconds <= 0 {
			continue
		}
		total += vc.DurationSeconds
		if mc.SupportsDuration(vc.DurationSeconds) {
			adjusted += vc.DurationSeconds
			continue
		}
		// 把越界片段换成最接近的受支持时长，累计出修正后的总时长
		adjusted += mc.ClosestDuration(vc.DurationSeconds)
		bad = vc.DurationSeconds
	}
	if bad == 0 {
		return
	}
	result.Warnings = append(result.Warnings,
		fmt.Sprintf("%s 不支持 %d 秒的片段时长", mc.Name, bad))
	if adjusted > 0 && adjusted != total {
		result.Fixes = append(result.Fixes, model.AutoFix{
			Kind:     model.FixSetDuration,
			Label:    fmt.Sprintf("总时长调整为 %d 秒以匹配支持的片段时长", adjusted),
			IntValue: adjusted,
		})
	}
}

// checkReferences 多参考图时给出可选的主参考与强度建议，不算警告
func (v *Validator) checkReferences(req *model.Requirements, result *model.ValidationResult) {
	if len(req.ReferenceImageIDs) < 2 {
		return
	}
	result.Fixes = append(result.Fixes, model.AutoFix{
		Kind:  model.FixChoosePrimary,
		Label: "指定首张选中图为主参考",
		Value: req.ReferenceImageIDs[0],
	})
	if req.ReferenceStrength == "" {
		result.Fixes = append(result.Fixes, model.AutoFix{
			Kind:  model.FixSetReferenceStrength,
			Label: "参考强度设为中",
			Value: string(model.StrengthMedium),
		})
	}
}

func (v *Validator) defaultFor(req *model.Requirements) *registry.ModelCaps {
	switch {
	case req.Task.IsVideo():
		return v.reg.DefaultModel("video")
	case req.Task == model.TaskImageToImage:
		return v.reg.DefaultImageToImageModel()
	case req.Task.IsImage():
		return v.reg.DefaultModel("image")
	}
	return nil
}

// ApplyAutoFix 把修复补丁落到 Requirements 上。只动 Requirements，
// 调用方随后整图重合成。
func ApplyAutoFix(req *model.Requirements, fix model.AutoFix) {
	switch fix.Kind {
	case model.FixSetDuration:
		if fix.IntValue > 0 {
			req.DurationSeconds = fix.IntValue
		}
	case model.FixSwitchModel:
		req.Model = fix.Value
	case model.FixSetResolution:
		req.Resolution = fix.Value
	case model.FixSetAspectRatio:
		req.AspectRatio = fix.Value
	case model.FixChoosePrimary:
		promoteReference(req, fix.Value)
	case model.FixSetReferenceStrength:
		req.ReferenceStrength = model.ReferenceStrength(fix.Value)
	}
}

func promoteReference(req *model.Requirements, id string) {
	for i, ref := range req.ReferenceImageIDs {
		if ref == id && i > 0 {
			rest := append([]string{}, req.ReferenceImageIDs[:i]...)
			rest = append(rest, req.ReferenceImageIDs[i+1:]...)
			req.ReferenceImageIDs = append([]string{id}, rest...)
			return
		}
	}
}
