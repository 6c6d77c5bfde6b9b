package model

// TaskKind 任务类型
type TaskKind string

const (
	TaskTextToImage  TaskKind = "text_to_image"
	TaskImageToImage TaskKind = "image_to_image"
	TaskTextToVideo  TaskKind = "text_to_video"
	TaskImageToVideo TaskKind = "image_to_video"
	TaskPluginAction TaskKind = "plugin_action"
	TaskUnknown      TaskKind = "unknown"
)

// IsVideo 是否为视频类任务
func (t TaskKind) IsVideo() bool {
	return t == TaskTextToVideo || t == TaskImageToVideo
}

// IsImage 是否为图片类任务
func (t TaskKind) IsImage() bool {
	return t == TaskTextToImage || t == TaskImageToImage
}

// ConnectionMode 视频衔接模式：决定参考图/生成图如何锚定各个片段
type ConnectionMode string

const (
	ConnectionSingle     ConnectionMode = "single"      // 所有片段共用一张固定参考图（或无）
	ConnectionFirstFrame ConnectionMode = "first_frame" // 每个片段单独生成首帧图
	ConnectionFirstLast  ConnectionMode = "first_last"  // N个片段共享 N+1 张边界帧
)

// ReferenceStrength 参考图影响强度
type ReferenceStrength string

const (
	StrengthLow    ReferenceStrength = "low"
	StrengthMedium ReferenceStrength = "medium"
	StrengthHigh   ReferenceStrength = "high"
)

// Requirements 规划推导的唯一事实来源。
// 不变式：当前 Plan（若存在）必须能仅凭 Requirements（视频任务再加 ScriptPlan）
// 完整重推导出来，不依赖任何隐藏输入，因此参数修改后可以安全重放。
type Requirements struct {
	Task              TaskKind          `json:"task"`
	Topic             string            `json:"topic,omitempty"`
	Product           string            `json:"product,omitempty"`
	Goal              string            `json:"goal,omitempty"`
	DurationSeconds   int               `json:"duration_seconds,omitempty"`
	Platform          string            `json:"platform,omitempty"`
	Style             string            `json:"style,omitempty"`
	AspectRatio       string            `json:"aspect_ratio,omitempty"`
	Resolution        string            `json:"resolution,omitempty"`
	Model             string            `json:"model,omitempty"`
	ImageCount        int               `json:"image_count,omitempty"`
	Plugin            string            `json:"plugin,omitempty"`
	ConnectionMode    ConnectionMode    `json:"connection_mode,omitempty"`
	ReferenceImageIDs []string          `json:"reference_image_ids,omitempty"` // 有序，首个为主参考
	ReferenceNotes    string            `json:"reference_notes,omitempty"`     // 用户对参考图的文字说明
	ReferenceStrength ReferenceStrength `json:"reference_strength,omitempty"`
	NeedsScript       bool              `json:"needs_script"`
}

// PrimaryReference 返回主参考图ID，无参考图时返回空串
func (r *Requirements) PrimaryReference() string {
	if len(r.ReferenceImageIDs) == 0 {
		return ""
	}
	return r.ReferenceImageIDs[0]
}

// Subject 返回描述主体：优先主题，其次产品，再次目标
func (r *Requirements) Subject() string {
	if r.Topic != "" {
		return r.Topic
	}
	if r.Product != "" {
		return r.Product
	}
	return r.Goal
}

// Clone 深拷贝，重放编辑时避免污染原值
func (r *Requirements) Clone() *Requirements {
	cp := *r
	cp.ReferenceImageIDs = append([]string(nil), r.ReferenceImageIDs...)
	return &cp
}
