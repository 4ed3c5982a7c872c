package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"thinkflow/backend/internal/adapter"
	"thinkflow/backend/internal/chat"
)

type chatRequest struct {
	NodeID      string   `json:"node_id" binding:"required"`
	Message     string   `json:"message" binding:"required"`
	Temperature *float32 `json:"temperature" binding:"omitempty,min=0,max=2"`
}

func (r chatRequest) turn(mapID string) chat.TurnRequest {
	return chat.TurnRequest{
		MapID:       mapID,
		NodeID:      r.NodeID,
		Message:     r.Message,
		Temperature: r.Temperature,
	}
}

// streamEvent is one Server-Sent Event of a streamed chat turn. Type is
// reasoning, content, error or done.
type streamEvent struct {
	Type    string           `json:"type"`
	Content string           `json:"content,omitempty"`
	Error   string           `json:"error,omitempty"`
	Result  *chat.TurnResult `json:"result,omitempty"`
}

func (h *Handler) chatTurn(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.chat.RunTurn(c.Request.Context(), req.turn(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

// chatStream relays the reply as it is generated. Errors found before the
// first byte is written are answered with a normal status code; later ones
// arrive as an error event.
func (h *Handler) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
	}

	result, err := h.chat.StreamTurn(c.Request.Context(), req.turn(c.Param("id")), func(d adapter.Delta) error {
		start()
		if d.Reasoning != "" {
			return h.writeEvent(c, streamEvent{Type: "reasoning", Content: d.Reasoning})
		}
		return h.writeEvent(c, streamEvent{Type: "content", Content: d.Content})
	})
	if err != nil && !started {
		h.fail(c, err)
		return
	}
	start()
	if err != nil {
		h.logger.Warn("Chat stream failed", zap.String("node_id", req.NodeID), zap.Error(err))
		_ = h.writeEvent(c, streamEvent{Type: "error", Error: err.Error()})
		return
	}
	_ = h.writeEvent(c, streamEvent{Type: "done", Result: result})
}

func (h *Handler) writeEvent(c *gin.Context, ev streamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
