package api

import (
	"github.com/gin-gonic/gin"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
)

type mindMapRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// mindMapView is a map's metadata together with its whole graph
type mindMapView struct {
	persistence.MapRecord
	Graph *state.Snapshot `json:"graph"`
}

func (h *Handler) listMindMaps(c *gin.Context) {
	records, err := h.workspace.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, records)
}

func (h *Handler) createMindMap(c *gin.Context) {
	var req mindMapRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	record, err := h.workspace.Create(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, mindMapView{MapRecord: record, Graph: &state.Snapshot{
		Nodes:         []*state.Node{},
		Relations:     []*state.Relation{},
		Conversations: []*state.Conversation{},
	}})
}

func (h *Handler) getMindMap(c *gin.Context) {
	view, err := h.view(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, view)
}

func (h *Handler) renameMindMap(c *gin.Context) {
	var req mindMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	record, err := h.workspace.Rename(c.Request.Context(), c.Param("id"), req.Title, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, record)
}

func (h *Handler) deleteMindMap(c *gin.Context) {
	if err := h.workspace.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

// view captures the current record and graph of the map named in the path
func (h *Handler) view(c *gin.Context) (*mindMapView, error) {
	id := c.Param("id")
	m, err := h.workspace.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	var snap *state.Snapshot
	err = h.workspace.View(c.Request.Context(), id, func(s *graph.Store) error {
		snap = s.Export()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mindMapView{MapRecord: m.Record(), Graph: snap}, nil
}

// bindOptional binds a JSON body when one was sent
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}
