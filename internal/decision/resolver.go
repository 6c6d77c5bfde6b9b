package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"musecanvas-backend/internal/llm"
	"musecanvas-backend/internal/model"
	"musecanvas-backend/pkg/logger"
)

// Kind 预览阶段对用户回复的裁决
type Kind string

const (
	Execute Kind = "EXECUTE" // 照计划执行
	Cancel  Kind = "CANCEL"  // 放弃当前计划
	Modify  Kind = "MODIFY"  // 带字段改动的修改请求
	Clarify Kind = "CLARIFY" // 看不懂，追问
)

// Decision 裁决结果。Modify 时 Changes 至少有一个字段非空；
// Clarify 时 Question 给出要回给用户的追问。
type Decision struct {
	Kind     Kind
	Changes  model.PlanChanges
	Question string
}

const clarifyQuestion = "抱歉我没理解你的意思。回复「执行」开始生成，「取消」放弃，或者直接说要改哪里（例如：换成竖屏、时长改成30秒）。"

// Resolver 先走确定性规则，规则不命中再交给模型裁决。
// 规则命中时完全不发起模型调用，保证常见回复零延迟且可复现。
type Resolver struct {
	completer llm.Completer
	prompt    string
}

func NewResolver(completer llm.Completer, prompt string) *Resolver {
	if prompt == "" {
		prompt = defaultDecisionPrompt
	}
	return &Resolver{completer: completer, prompt: prompt}
}

var affirmatives = []string{
	"执行", "确认", "开始", "生成", "可以", "好的", "没问题", "就这样",
	"yes", "ok", "go", "confirm", "execute", "lgtm",
}

var cancels = []string{
	"取消", "不要了", "算了", "放弃", "不用了",
	"cancel", "no thanks", "abort", "nevermind", "never mind",
}

// Resolve 裁决用户在计划预览下的回复
func (r *Resolver) Resolve(ctx context.Context, userText string) *Decision {
	if d := resolveDeterministic(userText); d != nil {
		return d
	}
	return r.resolveWithLLM(ctx, userText)
}

// resolveDeterministic 选项字母与常见口头确认/取消直接裁决
func resolveDeterministic(userText string) *Decision {
	text := strings.ToLower(strings.TrimSpace(userText))
	if text == "" {
		return &Decision{Kind: Clarify, Question: clarifyQuestion}
	}

	switch strings.TrimRight(text, ".。!！") {
	case "a", "选项a", "option a":
		return &Decision{Kind: Execute}
	case "b", "选项b", "option b":
		return &Decision{Kind: Cancel}
	}

	for _, kw := range affirmatives {
		if text == kw || text == kw+"！" || text == kw+"!" || text == kw+"。" {
			return &Decision{Kind: Execute}
		}
	}
	for _, kw := range cancels {
		if text == kw || strings.HasPrefix(text, kw+"，") || strings.HasPrefix(text, kw+",") {
			return &Decision{Kind: Cancel}
		}
	}
	return nil
}

const defaultDecisionPrompt = `你是创作计划助手的决策模块。用户正在查看一份生成计划的预览，刚刚回复了一句话。请判断其意图并输出 JSON。

用户回复：%s

四种意图：
- EXECUTE：同意计划，开始执行
- CANCEL：放弃这份计划
- MODIFY：要求修改计划参数（模型、比例、分辨率、数量、提示词、时长）
- CLARIFY：无法判断，需要追问

输出格式（只输出 JSON）：
{
  "decision": "EXECUTE|CANCEL|MODIFY|CLARIFY",
  "changes": {
    "model": "模型名，未提及则省略",
    "aspect_ratio": "如 16:9，未提及则省略",
    "resolution": "如 1080p，未提及则省略",
    "count": 数量，未提及则省略,
    "prompt": "新的画面描述，未提及则省略",
    "duration_seconds": 秒数，未提及则省略
  },
  "question": "仅 CLARIFY 时给出追问"
}

注意：changes 里只放用户明确提到的字段；一次回复可以同时改多个字段。`

type llmDecision struct {
	Decision string            `json:"decision"`
	Changes  model.PlanChanges `json:"changes"`
	Question string            `json:"question"`
}

func (r *Resolver) resolveWithLLM(ctx context.Context, userText string) *Decision {
	prompt := fmt.Sprintf(r.prompt, userText)
	raw, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Errorf("决策模型调用失败: %v", err)
		return &Decision{Kind: Clarify, Question: clarifyQuestion}
	}

	jsonStr := llm.ExtractJSON(raw)
	if jsonStr == "" {
		logger.Warn("决策输出中没有可提取的JSON")
		return &Decision{Kind: Clarify, Question: clarifyQuestion}
	}

	var parsed llmDecision
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		logger.Warnf("决策JSON解析失败: %v", err)
		return &Decision{Kind: Clarify, Question: clarifyQuestion}
	}

	switch Kind(strings.ToUpper(parsed.Decision)) {
	case Execute:
		return &Decision{Kind: Execute}
	case Cancel:
		return &Decision{Kind: Cancel}
	case Modify:
		if parsed.Changes.Empty() {
			// 说是要改却没给出任何字段，按看不懂处理
			return &Decision{Kind: Clarify, Question: clarifyQuestion}
		}
		return &Decision{Kind: Modify, Changes: parsed.Changes}
	case Clarify:
		q := parsed.Question
		if q == "" {
			q = clarifyQuestion
		}
		return &Decision{Kind: Clarify, Question: q}
	}
	return &Decision{Kind: Clarify, Question: clarifyQuestion}
}
