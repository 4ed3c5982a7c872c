package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"thinkflow/backend/internal/adapter"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/metrics"
	"thinkflow/backend/internal/state"
	"thinkflow/backend/internal/workspace"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

// LLM is the completion backend a chat turn is sent to
type LLM interface {
	Complete(ctx context.Context, req adapter.Request) (*adapter.Response, error)
	Stream(ctx context.Context, req adapter.Request, onDelta func(adapter.Delta) error) (*adapter.Response, error)
	GetModel() string
}

// Orchestrator runs chat turns against nodes of a workspace. The map lock is
// held only while reading context and while recording the finished turn,
// never across the LLM call.
type Orchestrator struct {
	workspace    *workspace.Workspace
	mu           sync.RWMutex // Protects llm, which Configure swaps at runtime
	llm          LLM
	systemPrompt string
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSystemPrompt prepends a fixed system message to every turn
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithClock overrides time.Now for message timestamps
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// NewOrchestrator creates a chat orchestrator. llm may be nil, in which case
// every turn fails with ErrChatUnavailable.
func NewOrchestrator(ws *workspace.Workspace, llm LLM, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workspace: ws,
		llm:       llm,
		now:       time.Now,
		logger:    logger.Named("chat"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configure replaces the LLM used by later turns. Turns already running
// finish on the previous one. A nil llm disables chat.
func (o *Orchestrator) Configure(llm LLM) {
	o.mu.Lock()
	o.llm = llm
	o.mu.Unlock()
	if llm == nil {
		o.logger.Info("Chat disabled")
		return
	}
	o.logger.Info("Chat LLM configured", zap.String("model", llm.GetModel()))
}

func (o *Orchestrator) current() LLM {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.llm
}

// Available reports whether an LLM is configured
func (o *Orchestrator) Available() bool {
	return o.current() != nil
}

// Model returns the configured model, or "" without an LLM
func (o *Orchestrator) Model() string {
	llm := o.current()
	if llm == nil {
		return ""
	}
	return llm.GetModel()
}

// TurnRequest is one user message sent on a node
type TurnRequest struct {
	MapID       string
	NodeID      string
	Message     string
	Temperature *float32
}

// TurnResult is the assistant's reply to a turn
type TurnResult struct {
	NodeID           string `json:"node_id"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	ContextMessages  int    `json:"context_messages"`
}

// Preview returns the context a turn on nodeID would be sent with
func (o *Orchestrator) Preview(ctx context.Context, mapID, nodeID string) ([]state.Message, error) {
	var msgs []state.Message
	err := o.workspace.View(ctx, mapID, func(s *graph.Store) error {
		if _, ok := s.Node(nodeID); !ok {
			return apperrors.NewNodeNotFound(nodeID)
		}
		msgs = s.Context(nodeID)
		return nil
	})
	return msgs, err
}

// RunTurn sends the message with its resolved context and records both the
// user message and the reply as one conversation update.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	started := time.Now()
	llm, userMsg, prompt, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := llm.Complete(ctx, adapter.Request{Messages: prompt, Temperature: req.Temperature})
	metrics.ObserveChat("complete", started, err)
	if err != nil {
		o.logger.Error("Chat turn failed",
			zap.String("map_id", req.MapID),
			zap.String("node_id", req.NodeID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := o.record(ctx, req, userMsg, resp); err != nil {
		return nil, err
	}
	return newTurnResult(req, resp, len(prompt)), nil
}

// StreamTurn is RunTurn with incremental delivery. onDelta receives every
// reasoning and content fragment; the turn is recorded only once the stream
// completes, so a cancelled or failed stream leaves the conversation
// untouched.
func (o *Orchestrator) StreamTurn(ctx context.Context, req TurnRequest, onDelta func(adapter.Delta) error) (*TurnResult, error) {
	started := time.Now()
	llm, userMsg, prompt, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := llm.Stream(ctx, adapter.Request{Messages: prompt, Temperature: req.Temperature}, onDelta)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	metrics.ObserveChat("stream", started, err)
	if err != nil {
		o.logger.Warn("Chat stream aborted",
			zap.String("map_id", req.MapID),
			zap.String("node_id", req.NodeID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := o.record(ctx, req, userMsg, resp); err != nil {
		return nil, err
	}
	return newTurnResult(req, resp, len(prompt)), nil
}

func newTurnResult(req TurnRequest, resp *adapter.Response, contextMessages int) *TurnResult {
	return &TurnResult{
		NodeID:           req.NodeID,
		Content:          resp.Content,
		ReasoningContent: resp.ReasoningContent,
		FinishReason:     resp.FinishReason,
		ContextMessages:  contextMessages,
	}
}

// prepare validates the request and builds the prompt: optional system
// prompt, resolved context, then the new user message. The LLM is read once
// so a concurrent Configure cannot split a turn across two backends.
func (o *Orchestrator) prepare(ctx context.Context, req TurnRequest) (LLM, state.Message, []state.Message, error) {
	llm := o.current()
	if llm == nil {
		return nil, state.Message{}, nil, apperrors.ErrChatUnavailable
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, state.Message{}, nil, apperrors.NewValidationFailed("message", "cannot be empty")
	}

	resolved, err := o.Preview(ctx, req.MapID, req.NodeID)
	if err != nil {
		return nil, state.Message{}, nil, err
	}
	metrics.ContextMessages.Observe(float64(len(resolved)))

	userMsg := state.Message{Role: state.RoleUser, Content: req.Message, Timestamp: o.now()}
	prompt := make([]state.Message, 0, len(resolved)+2)
	if o.systemPrompt != "" {
		prompt = append(prompt, state.Message{Role: state.RoleSystem, Content: o.systemPrompt})
	}
	prompt = append(prompt, resolved...)
	prompt = append(prompt, userMsg)

	o.logger.Debug("Chat turn prepared",
		zap.String("map_id", req.MapID),
		zap.String("node_id", req.NodeID),
		zap.Int("context_messages", len(resolved)),
	)
	return llm, userMsg, prompt, nil
}

// record appends the turn. The node may have been deleted while the LLM was
// answering; that surfaces as a reference error and nothing is written.
func (o *Orchestrator) record(ctx context.Context, req TurnRequest, userMsg state.Message, reply *adapter.Response) error {
	assistant := state.Message{
		Role:             state.RoleAssistant,
		Content:          reply.Content,
		ReasoningContent: reply.ReasoningContent,
		Timestamp:        o.now(),
	}
	err := o.workspace.Mutate(ctx, req.MapID, func(s *graph.Store) error {
		return s.AppendMessages(req.NodeID, userMsg, assistant)
	})
	if err != nil {
		o.logger.Warn("Failed to record chat turn",
			zap.String("map_id", req.MapID),
			zap.String("node_id", req.NodeID),
			zap.Error(err),
		)
	}
	return err
}
