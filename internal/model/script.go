package model

// Scene 一个分镜：1起始连续编号、画面描述与时长
type Scene struct {
	Index           int    `json:"index"`
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ScriptPlan 叙事脚本与有序分镜列表。
// 不变式：分镜编号从1起连续；时长之和近似请求总时长（补齐规则见规划器）。
type ScriptPlan struct {
	Script string  `json:"script"`
	Scenes []Scene `json:"scenes"`
}

// TotalDuration 所有分镜时长之和
func (s *ScriptPlan) TotalDuration() int {
	total := 0
	for _, sc := range s.Scenes {
		total += sc.DurationSeconds
	}
	return total
}
