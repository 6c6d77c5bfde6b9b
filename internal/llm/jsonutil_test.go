package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_CodeBlock(t *testing.T) {
	content := "好的，结果如下：\n```json\n{\"task\": \"text_to_video\"}\n```\n希望对你有帮助"

	out := ExtractJSON(content)

	assert.JSONEq(t, `{"task": "text_to_video"}`, out)
}

func TestExtractJSON_BareObject(t *testing.T) {
	content := `前置说明 {"a": 1, "b": {"c": 2}} 后置说明`

	out := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, float64(1), parsed["a"])
}

func TestExtractJSON_TrailingCommas(t *testing.T) {
	content := `{"items": [1, 2, 3,], "done": true,}`

	out := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, true, parsed["done"])
}

func TestExtractJSON_LineComments(t *testing.T) {
	content := `{
		"task": "text_to_image", // 任务类型
		"url": "https://example.com/a//b",
		"count": 2
	}`

	out := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "text_to_image", parsed["task"])
	// 字符串值里的 // 不能被当注释剔除
	assert.Equal(t, "https://example.com/a//b", parsed["url"])
}

func TestExtractJSON_FirstObjectWins(t *testing.T) {
	content := `{"task":"text_to_video"} 补充说明 {"note":"extra"}`

	out := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "text_to_video", parsed["task"])
	assert.NotContains(t, out, "extra")
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	content := `{"prompt": "镜头推近 {主体}，光影 \"柔和\"", "n": 1} 之后还有一个 }`

	out := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, float64(1), parsed["n"])
}

func TestExtractJSON_UnbalancedReturnsEmpty(t *testing.T) {
	assert.Empty(t, ExtractJSON(`{"task": "text_to_video"`))
}

func TestExtractJSON_NoJSONReturnsEmpty(t *testing.T) {
	assert.Empty(t, ExtractJSON("这里没有任何结构化内容"))
	assert.Empty(t, ExtractJSON(""))
}
