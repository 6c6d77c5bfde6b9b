package model

// AutoFixKind 自动修复补丁类型
type AutoFixKind string

const (
	FixSetDuration          AutoFixKind = "set_duration"
	FixSwitchModel          AutoFixKind = "switch_model"
	FixSetResolution        AutoFixKind = "set_resolution"
	FixSetAspectRatio       AutoFixKind = "set_aspect_ratio"
	FixChoosePrimary        AutoFixKind = "choose_primary_reference"
	FixSetReferenceStrength AutoFixKind = "set_reference_strength"
)

// AutoFix 确定性修复补丁：应用时只改 Requirements 并触发整图重合成，
// 从不原地修改 Plan 的步骤，以保住可重推导不变式。
type AutoFix struct {
	Kind     AutoFixKind `json:"kind"`
	Label    string      `json:"label"`
	Value    string      `json:"value,omitempty"`
	IntValue int         `json:"int_value,omitempty"`
}

// ValidationResult 校验结果：阻断错误、非阻断警告与一键修复
type ValidationResult struct {
	OK       bool      `json:"ok"`
	Errors   []string  `json:"errors,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	Fixes    []AutoFix `json:"fixes,omitempty"`
}
