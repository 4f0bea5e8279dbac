package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultDeepSeekModel = "deepseek-chat"
)

// 上游错误分类。
const (
	UpstreamRateLimited  = "rate_limited"
	UpstreamQuota        = "quota_exhausted"
	UpstreamUnauthorized = "unauthorized"
	UpstreamFailure      = "upstream_error"
)

// UpstreamError 表示模型接口返回了非 2xx 状态。
type UpstreamError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ai gateway returned %d (%s)", e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("ai gateway returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

func newUpstreamError(status int, message string) *UpstreamError {
	kind := UpstreamFailure
	switch status {
	case http.StatusTooManyRequests:
		kind = UpstreamRateLimited
	case http.StatusPaymentRequired:
		kind = UpstreamQuota
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = UpstreamUnauthorized
	}
	return &UpstreamError{StatusCode: status, Kind: kind, Message: message}
}

// AsUpstreamError 从错误链中取出 UpstreamError。
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// aiChatClient 调用 OpenAI 兼容的 /chat/completions 接口，平台与 Key 取自系统设置。
type aiChatClient struct {
	settings        *SystemSettingService
	http            httpDoer
	openAIBaseURL   string
	deepSeekBaseURL string
}

func newAIChatClient(settings *SystemSettingService) *aiChatClient {
	return &aiChatClient{
		settings:        settings,
		http:            &http.Client{Timeout: 60 * time.Second},
		openAIBaseURL:   "https://api.openai.com/v1",
		deepSeekBaseURL: "https://api.deepseek.com/v1",
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetOpenAIBaseURL(base string) {
	if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
		c.openAIBaseURL = trimmed
	}
}

func (c *aiChatClient) SetDeepSeekBaseURL(base string) {
	if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
		c.deepSeekBaseURL = trimmed
	}
}

func (c *aiChatClient) call(ctx context.Context, req aiChatRequest) (aiChatResponse, error) {
	if c.settings == nil {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}
	settings, err := c.settings.GetSettings()
	if err != nil {
		return aiChatResponse{}, err
	}
	return c.callWithSettings(ctx, settings, req)
}

func (c *aiChatClient) callWithSettings(ctx context.Context, settings SystemSettings, req aiChatRequest) (aiChatResponse, error) {
	provider := normalizeAIProvider(settings.AIProvider)
	if provider == "" {
		provider = AIProviderOpenAI
	}

	apiKey := strings.TrimSpace(settings.OpenAIAPIKey)
	base := c.openAIBaseURL
	model := defaultOpenAIModel
	label := "OpenAI"
	if provider == AIProviderDeepSeek {
		apiKey = strings.TrimSpace(settings.DeepSeekAPIKey)
		base = c.deepSeekBaseURL
		model = defaultDeepSeekModel
		label = "DeepSeek"
	}
	if custom := strings.TrimSpace(settings.AIModel); custom != "" {
		model = custom
	}

	if apiKey == "" {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = 0
	}

	payload := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("build %s request: %w", label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "studentpulse-ai/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("request %s: %w", label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("read %s response: %w", label, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var failure chatCompletionResponse
		_ = json.Unmarshal(respBody, &failure)
		errMsg := strings.TrimSpace(failure.Error.Message)
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		return aiChatResponse{}, newUpstreamError(resp.StatusCode, errMsg)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return aiChatResponse{}, fmt.Errorf("decode %s response: %w", label, err)
	}
	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%s returned no choices", label)
	}

	return aiChatResponse{
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
