package api

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"thinkflow/backend/internal/export"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/state"
)

type historyView struct {
	Records []state.HistoryRecord `json:"records"`
	Index   int                   `json:"index"`
	Limit   int                   `json:"limit"`
	CanUndo bool                  `json:"can_undo"`
	CanRedo bool                  `json:"can_redo"`
}

func (h *Handler) history(c *gin.Context) {
	var view historyView
	err := h.workspace.View(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		hist := s.History()
		view = historyView{
			Records: hist.Records(),
			Index:   hist.Index(),
			Limit:   hist.Limit(),
			CanUndo: hist.CanUndo(),
			CanRedo: hist.CanRedo(),
		}
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if view.Records == nil {
		view.Records = []state.HistoryRecord{}
	}
	ok(c, view)
}

func (h *Handler) undo(c *gin.Context) {
	h.step(c, h.workspace.Undo)
}

func (h *Handler) redo(c *gin.Context) {
	h.step(c, h.workspace.Redo)
}

// step answers with whether anything changed and the resulting graph
func (h *Handler) step(c *gin.Context, fn func(context.Context, string) (bool, error)) {
	applied, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.view(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"applied": applied, "mind_map": view})
}

func (h *Handler) exportJSON(c *gin.Context) {
	view, err := h.view(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.ID+".json"))
	ok(c, view)
}

func (h *Handler) exportMarkdown(c *gin.Context) {
	view, err := h.view(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"markdown": export.Markdown(view.MapRecord, view.Graph)})
}

// importJSON replaces the graph of an existing map. It accepts either a bare
// snapshot or the body returned by export/json.
func (h *Handler) importJSON(c *gin.Context) {
	var body struct {
		state.Snapshot
		Graph *state.Snapshot `json:"graph"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	snap := body.Graph
	if snap == nil {
		snap = &body.Snapshot
	}
	report, err := h.workspace.Import(c.Request.Context(), c.Param("id"), snap)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, report)
}
