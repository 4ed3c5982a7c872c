package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

var versionSuffix = regexp.MustCompile(`/v\d+$`)

// LLMAdapter talks to any OpenAI-compatible chat completion endpoint
type LLMAdapter struct {
	client      *openai.Client
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
	backoff     time.Duration
	mu          sync.RWMutex // Protects model field for concurrent access
	logger      *zap.Logger
}

// Option configures an LLMAdapter
type Option func(*LLMAdapter)

// WithTemperature sets the default sampling temperature
func WithTemperature(t float32) Option {
	return func(a *LLMAdapter) { a.temperature = t }
}

// WithMaxTokens caps completion length
func WithMaxTokens(n int) Option {
	return func(a *LLMAdapter) { a.maxTokens = n }
}

// WithRetryBackoff sets the base delay between attempts; attempt n waits n*d
func WithRetryBackoff(d time.Duration) Option {
	return func(a *LLMAdapter) { a.backoff = d }
}

// NewLLMAdapter creates a new LLM adapter. "/v1" is appended to baseURL
// unless it already ends in a version segment.
func NewLLMAdapter(baseURL, apiKey, modelID string, opts ...Option) *LLMAdapter {
	// Local proxies accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	baseURL = strings.TrimRight(baseURL, "/")
	if !versionSuffix.MatchString(baseURL) {
		baseURL += "/v1"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	a := &LLMAdapter{
		client:      openai.NewClientWithConfig(config),
		baseURL:     baseURL,
		model:       modelID,
		temperature: 1.0,
		maxTokens:   4096,
		backoff:     time.Second,
		logger:      logger.Named("llm"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// BaseURL returns the resolved API root
func (a *LLMAdapter) BaseURL() string {
	return a.baseURL
}

// Request is one chat completion call
type Request struct {
	Messages []state.Message
	// Temperature overrides the adapter default when set
	Temperature *float32
}

// Response is the assistant's reply
type Response struct {
	Content          string
	ReasoningContent string // thinking output, when the model emits any
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Complete sends the conversation and waits for the full reply. Transient
// failures are retried with linear backoff.
func (a *LLMAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := a.buildRequest(req, false)

	var resp openai.ChatCompletionResponse
	err := a.withRetry(ctx, chatReq.Model, func() error {
		var err error
		resp, err = a.client.CreateChatCompletion(ctx, chatReq)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.NewChatFailed(chatReq.Model, 1, false, fmt.Errorf("no choices in LLM response"))
	}
	choice := resp.Choices[0]

	a.logger.Debug("LLM response generated",
		zap.String("model", chatReq.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return &Response{
		Content:          choice.Message.Content,
		ReasoningContent: choice.Message.ReasoningContent,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Validate sends a minimal completion to check that the endpoint accepts the
// credentials and model. It is not retried.
func (a *LLMAdapter) Validate(ctx context.Context) error {
	model := a.GetModel()
	_, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: constants.ValidationMaxTokens,
	})
	if err != nil {
		a.logger.Warn("LLM credentials rejected", zap.String("model", model), zap.Error(err))
		return apperrors.NewChatFailed(model, 1, false, err)
	}
	return nil
}

// Delta is one streamed fragment. Exactly one of the fields is set.
type Delta struct {
	Reasoning string
	Content   string
}

// Stream sends the conversation and calls onDelta for every reasoning or
// content fragment as it arrives. Opening the stream is retried; a failure
// mid-stream is not. If onDelta returns an error the stream is abandoned with
// that error.
func (a *LLMAdapter) Stream(ctx context.Context, req Request, onDelta func(Delta) error) (*Response, error) {
	chatReq := a.buildRequest(req, true)

	var stream *openai.ChatCompletionStream
	err := a.withRetry(ctx, chatReq.Model, func() error {
		var err error
		stream, err = a.client.CreateChatCompletionStream(ctx, chatReq)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var (
		content   strings.Builder
		reasoning strings.Builder
		finish    string
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewChatFailed(chatReq.Model, 1, false, err)
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
			if r := choice.Delta.ReasoningContent; r != "" {
				reasoning.WriteString(r)
				if err := onDelta(Delta{Reasoning: r}); err != nil {
					return nil, err
				}
			}
			if c := choice.Delta.Content; c != "" {
				content.WriteString(c)
				if err := onDelta(Delta{Content: c}); err != nil {
					return nil, err
				}
			}
		}
	}

	a.logger.Debug("LLM stream finished",
		zap.String("model", chatReq.Model),
		zap.Int("content_length", content.Len()),
		zap.Int("reasoning_length", reasoning.Len()),
		zap.String("finish_reason", finish),
	)
	return &Response{
		Content:          content.String(),
		ReasoningContent: reasoning.String(),
		FinishReason:     finish,
	}, nil
}

func (a *LLMAdapter) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	temperature := a.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       a.GetModel(),
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   a.maxTokens,
		Stream:      stream,
	}
}

func (a *LLMAdapter) withRetry(ctx context.Context, model string, call func() error) error {
	var err error
	attempt := 0
	for attempt < constants.MaxLLMAttempts {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.backoff
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return apperrors.NewChatFailed(model, attempt, false, ctx.Err())
			case <-time.After(backoff):
			}
		}
		attempt++

		err = call()
		if err == nil {
			return nil
		}

		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("model", model),
		)
		if !retryable(ctx, err) {
			return apperrors.NewChatFailed(model, attempt, false, err)
		}
	}
	return apperrors.NewChatFailed(model, attempt, true, err)
}

// retryable reports whether err looks transient: network failures,
// rate limiting and server errors. Client errors and cancellation are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}

func toOpenAIRole(r state.Role) string {
	switch r {
	case state.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case state.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
