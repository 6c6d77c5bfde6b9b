package llm

import (
	"context"
	"fmt"
	"net/http"

	"musecanvas-backend/internal/config"
	"musecanvas-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer 文本补全服务：prompt 进，text 出。
// 分类器、脚本规划器与决策解析器都只依赖这个接口，测试时用假实现替换。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client 基于 eino ChatModel 的补全客户端
type Client struct {
	chatModel einoModel.ChatModel
	provider  string
}

// NewClient 按配置创建补全客户端
func NewClient(ctx context.Context) (*Client, error) {
	cfg := config.Get()

	var chatModel einoModel.ChatModel
	var err error

	switch cfg.Model.Provider {
	case "doubao":
		chatModel, err = newDoubaoModel(ctx, cfg.Doubao)
	case "openai":
		chatModel, err = newOpenAIChatModel(ctx, cfg.OpenAI)
	case "qwen":
		chatModel, err = newQwenModel(ctx, cfg.Qwen)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Model.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Client{chatModel: chatModel, provider: cfg.Model.Provider}, nil
}

// Complete 单轮补全
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	return msg.Content, nil
}

func newDoubaoModel(ctx context.Context, cfg config.DoubaoConfig) (einoModel.ChatModel, error) {
	if len(cfg.APIKey) > 10 {
		logger.Infof("Using Doubao API Key: %s..., Model: %s", cfg.APIKey[:10], cfg.Model)
	} else {
		logger.Infof("Using Doubao API Key: %s, Model: %s", cfg.APIKey, cfg.Model)
	}

	arkCfg := &ark.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	}
	if cfg.BaseURL != "" {
		arkCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		arkCfg.Timeout = &cfg.Timeout
	}
	if cfg.MaxTokens > 0 {
		arkCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		arkCfg.Temperature = &cfg.Temperature
	}

	return ark.NewChatModel(ctx, arkCfg)
}

func newQwenModel(ctx context.Context, cfg config.QwenConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using Qwen Model: %s, BaseURL: %s", cfg.Model, cfg.BaseURL)

	httpClient := &http.Client{
		Transport: newDebugTransport(nil, cfg.DebugRequest),
		Timeout:   cfg.Timeout,
	}

	return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
}
