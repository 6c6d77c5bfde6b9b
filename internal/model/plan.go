package model

import "time"

// StepType 指令图步骤类型
type StepType string

const (
	StepCreateNode          StepType = "CREATE_NODE"
	StepConnectSequentially StepType = "CONNECT_SEQUENTIALLY"
	StepGroupNodes          StepType = "GROUP_NODES"
	StepApplyPlugin         StepType = "APPLY_PLUGIN"
)

// NodeType 画布节点类型
type NodeType string

const (
	NodeImageGenerator NodeType = "image_generator"
	NodeVideoGenerator NodeType = "video_generator"
	NodeMusicGenerator NodeType = "music_generator"
	NodePlugin         NodeType = "plugin"
)

// FrameConnectionMode 帧锚定方式
type FrameConnectionMode string

const (
	FrameFirstOnly FrameConnectionMode = "FIRST_FRAME_ONLY"
	FrameFirstLast FrameConnectionMode = "FIRST_LAST_FRAME"
)

// FrameConnection 描述视频节点如何挂接首/尾帧。
// FIRST_LAST_FRAME 模式下 SourceStepID 与两个帧下标都必须存在，
// 缺失属于结构性缺陷，由校验器判为阻断错误。
type FrameConnection struct {
	Mode             FrameConnectionMode `json:"mode"`
	SourceStepID     string              `json:"source_step_id,omitempty"`     // 产出边界帧的步骤
	FirstFrameIndex  *int                `json:"first_frame_index,omitempty"`  // 该步骤输出中的下标
	LastFrameIndex   *int                `json:"last_frame_index,omitempty"`   // 仅 FIRST_LAST_FRAME
	ReferenceImageID string              `json:"reference_image_id,omitempty"` // 画布上已有参考图
}

// ImageNodeConfig 图片生成节点配置
type ImageNodeConfig struct {
	Prompt            string            `json:"prompt"`
	Model             string            `json:"model,omitempty"`
	AspectRatio       string            `json:"aspect_ratio,omitempty"`
	Resolution        string            `json:"resolution,omitempty"`
	ReferenceImageIDs []string          `json:"reference_image_ids,omitempty"`
	Strength          ReferenceStrength `json:"strength,omitempty"`
}

// VideoNodeConfig 视频生成节点配置
type VideoNodeConfig struct {
	Prompt          string           `json:"prompt"`
	Model           string           `json:"model,omitempty"`
	AspectRatio     string           `json:"aspect_ratio,omitempty"`
	Resolution      string           `json:"resolution,omitempty"`
	DurationSeconds int              `json:"duration_seconds"`
	SceneIndex      int              `json:"scene_index,omitempty"`
	ConnectToFrames *FrameConnection `json:"connect_to_frames,omitempty"`
}

// MusicNodeConfig 配乐生成节点配置
type MusicNodeConfig struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
}

// PluginNodeConfig 插件节点配置
type PluginNodeConfig struct {
	Plugin         string            `json:"plugin"`
	Params         map[string]string `json:"params,omitempty"`
	TargetImageIDs []string          `json:"target_image_ids,omitempty"`
}

// NodeConfig 按节点类型区分的配置，四个变体恰有一个非空
type NodeConfig struct {
	Image  *ImageNodeConfig  `json:"image,omitempty"`
	Video  *VideoNodeConfig  `json:"video,omitempty"`
	Music  *MusicNodeConfig  `json:"music,omitempty"`
	Plugin *PluginNodeConfig `json:"plugin,omitempty"`
}

// PlanStep 指令图中的一个步骤。
// CREATE_NODE 携带节点类型、数量、模板配置；Count>1 时可带逐实例覆盖
// BatchConfigs，且 len(BatchConfigs) == Count。
type PlanStep struct {
	ID             string       `json:"id"`
	Type           StepType     `json:"type"`
	NodeType       NodeType     `json:"node_type,omitempty"`
	Count          int          `json:"count,omitempty"`
	ConfigTemplate *NodeConfig  `json:"config_template,omitempty"`
	BatchConfigs   []NodeConfig `json:"batch_configs,omitempty"`
	SourceStepIDs  []string     `json:"source_step_ids,omitempty"` // CONNECT_SEQUENTIALLY / GROUP_NODES
	Plugin         string       `json:"plugin,omitempty"`          // APPLY_PLUGIN
}

// AllConfigs 返回该步骤实际生效的节点配置：有逐实例覆盖取覆盖，
// 否则取模板（恰一份）
func (s *PlanStep) AllConfigs() []NodeConfig {
	if len(s.BatchConfigs) > 0 {
		return s.BatchConfigs
	}
	if s.ConfigTemplate != nil {
		return []NodeConfig{*s.ConfigTemplate}
	}
	return nil
}

// PlanMetadata 记录规划来源，便于追溯
type PlanMetadata struct {
	Goal           string         `json:"goal"`
	Task           TaskKind       `json:"task"`
	Model          string         `json:"model,omitempty"`
	TotalDuration  int            `json:"total_duration,omitempty"`
	ClipCount      int            `json:"clip_count,omitempty"`
	ConnectionMode ConnectionMode `json:"connection_mode,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CanvasInstructionPlan 编译产物：交给执行引擎的声明式指令图。
// Steps 即完整契约；本服务从不直接调用执行引擎。
type CanvasInstructionPlan struct {
	ID       string       `json:"id"`
	Summary  string       `json:"summary"`
	Steps    []PlanStep   `json:"steps"`
	Metadata PlanMetadata `json:"metadata"`
}

// FindStep 按ID查找步骤
func (p *CanvasInstructionPlan) FindStep(id string) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// PlanChanges 计划编辑建议的字段级改动，nil 表示不改
type PlanChanges struct {
	Model           *string `json:"model,omitempty"`
	AspectRatio     *string `json:"aspect_ratio,omitempty"`
	Resolution      *string `json:"resolution,omitempty"`
	Count           *int    `json:"count,omitempty"`
	Prompt          *string `json:"prompt,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
}

// Empty 是否没有任何改动
func (c *PlanChanges) Empty() bool {
	return c == nil ||
		(c.Model == nil && c.AspectRatio == nil && c.Resolution == nil &&
			c.Count == nil && c.Prompt == nil && c.DurationSeconds == nil)
}

// PendingEdit 待确认的编辑：确认前计划保持不变
type PendingEdit struct {
	Changes PlanChanges `json:"changes"`
	Summary string      `json:"summary"`
}
