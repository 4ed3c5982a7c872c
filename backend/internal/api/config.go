package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"thinkflow/backend/internal/adapter"
	apperrors "thinkflow/backend/pkg/errors"
)

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLLMDefaults sets the endpoint, model and adapter options used when
// chat is configured at runtime and the request leaves them out
func WithLLMDefaults(baseURL, model string, opts ...adapter.Option) HandlerOption {
	return func(h *Handler) {
		h.llmBaseURL = baseURL
		h.llmModel = model
		h.llmOptions = opts
	}
}

// aiConfigRequest accepts a JSON body or an api_key query parameter
type aiConfigRequest struct {
	APIKey  string `json:"api_key" form:"api_key" binding:"required"`
	BaseURL string `json:"base_url" form:"base_url"`
	Model   string `json:"model" form:"model"`
}

// configureAI builds an LLM client from the posted credentials, checks them
// with a small completion and swaps it in. A rejected key leaves the current
// configuration untouched.
func (h *Handler) configureAI(c *gin.Context) {
	var req aiConfigRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	baseURL := firstNonEmpty(req.BaseURL, h.llmBaseURL)
	model := firstNonEmpty(req.Model, h.llmModel)
	if baseURL == "" {
		h.fail(c, apperrors.NewValidationFailed("base_url", "no LLM endpoint configured"))
		return
	}
	if model == "" {
		h.fail(c, apperrors.NewValidationFailed("model", "no model configured"))
		return
	}

	llm := adapter.NewLLMAdapter(baseURL, req.APIKey, model, h.llmOptions...)
	if err := llm.Validate(c.Request.Context()); err != nil {
		h.fail(c, apperrors.NewValidationFailed("api_key", "rejected by "+llm.BaseURL()))
		return
	}
	h.chat.Configure(llm)

	h.logger.Info("AI service configured",
		zap.String("base_url", llm.BaseURL()),
		zap.String("model", model),
	)
	h.aiStatus(c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
