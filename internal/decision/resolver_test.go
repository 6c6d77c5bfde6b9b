package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
	called   bool
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.called = true
	return s.response, s.err
}

func TestResolve_OptionLettersShortCircuit(t *testing.T) {
	stub := &stubCompleter{}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "A")
	assert.Equal(t, Execute, d.Kind)

	d = r.Resolve(context.Background(), "b")
	assert.Equal(t, Cancel, d.Kind)

	d = r.Resolve(context.Background(), "选项A")
	assert.Equal(t, Execute, d.Kind)

	// 确定性裁决不许碰模型
	assert.False(t, stub.called)
}

func TestResolve_KeywordsShortCircuit(t *testing.T) {
	stub := &stubCompleter{}
	r := NewResolver(stub, "")

	assert.Equal(t, Execute, r.Resolve(context.Background(), "执行").Kind)
	assert.Equal(t, Execute, r.Resolve(context.Background(), "ok").Kind)
	assert.Equal(t, Cancel, r.Resolve(context.Background(), "取消").Kind)
	assert.Equal(t, Cancel, r.Resolve(context.Background(), "算了").Kind)
	assert.False(t, stub.called)
}

func TestResolve_EmptyInputClarifies(t *testing.T) {
	stub := &stubCompleter{}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "   ")

	assert.Equal(t, Clarify, d.Kind)
	assert.NotEmpty(t, d.Question)
	assert.False(t, stub.called)
}

func TestResolve_ModifyWithChanges(t *testing.T) {
	stub := &stubCompleter{response: `{
		"decision": "MODIFY",
		"changes": {"model": "Veo 3.1", "aspect_ratio": "16:9", "resolution": "1080p"}
	}`}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "换成 Veo 3.1，改成16:9，1080p")

	require.Equal(t, Modify, d.Kind)
	require.NotNil(t, d.Changes.Model)
	assert.Equal(t, "Veo 3.1", *d.Changes.Model)
	require.NotNil(t, d.Changes.AspectRatio)
	assert.Equal(t, "16:9", *d.Changes.AspectRatio)
	require.NotNil(t, d.Changes.Resolution)
	assert.Equal(t, "1080p", *d.Changes.Resolution)
	assert.True(t, stub.called)
}

func TestResolve_ModifyWithoutChangesClarifies(t *testing.T) {
	stub := &stubCompleter{response: `{"decision": "MODIFY", "changes": {}}`}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "改一下吧")

	assert.Equal(t, Clarify, d.Kind)
}

func TestResolve_UnparseableOutputClarifiesWithFixedQuestion(t *testing.T) {
	stub := &stubCompleter{response: "嗯让我想想"}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "那个什么来着")

	assert.Equal(t, Clarify, d.Kind)
	assert.Equal(t, clarifyQuestion, d.Question)
}

func TestResolve_LLMErrorClarifies(t *testing.T) {
	stub := &stubCompleter{err: errors.New("rate limited")}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "把时长改成一分钟")

	assert.Equal(t, Clarify, d.Kind)
}

func TestResolve_ExecuteFromLLM(t *testing.T) {
	stub := &stubCompleter{response: `{"decision": "execute"}`}
	r := NewResolver(stub, "")

	d := r.Resolve(context.Background(), "嗯就按这个来吧")

	assert.Equal(t, Execute, d.Kind)
}
