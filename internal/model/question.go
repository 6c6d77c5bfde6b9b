package model

// QuestionKey 需求问题的封闭键集合
type QuestionKey string

const (
	QuestionTopic           QuestionKey = "topic"
	QuestionDuration        QuestionKey = "duration"
	QuestionPlatform        QuestionKey = "platform"
	QuestionAspectRatio     QuestionKey = "aspect_ratio"
	QuestionResolution      QuestionKey = "resolution"
	QuestionReferenceImages QuestionKey = "reference_images"
	QuestionTransitionMode  QuestionKey = "transition_mode"
	QuestionNeedsScript     QuestionKey = "needs_script_confirmation"
)

// QuestionOption 带标签的固定选项
type QuestionOption struct {
	Label string `json:"label"` // A/B/C/D
	Text  string `json:"text"`  // 展示给用户的描述
	Value string `json:"value"` // 写回 Requirements 的值
}

// RequirementQuestion 向用户提出的一个需求补全问题；
// Freeform 为真时接受任意文本，否则按选项匹配（标签、"选项X"或值）。
type RequirementQuestion struct {
	Key      QuestionKey      `json:"key"`
	Question string           `json:"question"`
	Options  []QuestionOption `json:"options,omitempty"`
	Freeform bool             `json:"freeform"`
}

// Render 渲染为用户可读的提问文本
func (q *RequirementQuestion) Render() string {
	out := q.Question
	for _, opt := range q.Options {
		out += "\n" + opt.Label + ". " + opt.Text
	}
	return out
}
