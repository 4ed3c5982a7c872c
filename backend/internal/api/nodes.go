package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
)

type createNodeRequest struct {
	Title    string `json:"title"`
	ParentID string `json:"parent_id"`
}

type moveNodeRequest struct {
	X *float64 `json:"position_x" binding:"required"`
	Y *float64 `json:"position_y" binding:"required"`
}

type createCompositeRequest struct {
	Title     string   `json:"title"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

type createEdgeRequest struct {
	SourceID     string `json:"source_id" binding:"required"`
	TargetID     string `json:"target_id" binding:"required"`
	RelationType string `json:"relation_type"`
	Label        string `json:"label"`
}

// createNode adds a root node, or a child when parent_id is given
func (h *Handler) createNode(c *gin.Context) {
	var req createNodeRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = constants.DefaultNodeTitle
	}

	var node *state.Node
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		var id string
		if req.ParentID == "" {
			id = s.CreateRootNode(title)
		} else {
			var err error
			if id, err = s.CreateChildNode(req.ParentID, title); err != nil {
				return err
			}
		}
		node, _ = s.Node(id)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, node)
}

func (h *Handler) updateNode(c *gin.Context) {
	var upd graph.NodeUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}
	h.mutateNode(c, func(s *graph.Store, id string) error {
		return s.UpdateNode(id, upd)
	})
}

func (h *Handler) deleteNode(c *gin.Context) {
	nodeID := c.Param("node_id")
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		return s.DeleteNode(nodeID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": nodeID})
}

func (h *Handler) moveNode(c *gin.Context) {
	var req moveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutateNode(c, func(s *graph.Store, id string) error {
		return s.MoveNode(id, state.Position{X: *req.X, Y: *req.Y})
	})
}

func (h *Handler) nodeContext(c *gin.Context) {
	msgs, err := h.chat.Preview(c.Request.Context(), c.Param("id"), c.Param("node_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []state.Message{}
	}
	ok(c, gin.H{"node_id": c.Param("node_id"), "messages": msgs})
}

func (h *Handler) createComposite(c *gin.Context) {
	var req createCompositeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("%d nodes", len(req.MemberIDs))
	}

	var node *state.Node
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		id, err := s.CreateCompositeNode(title, req.MemberIDs)
		if err != nil {
			return err
		}
		node, _ = s.Node(id)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, node)
}

func (h *Handler) toggleComposite(c *gin.Context) {
	h.mutateComposite(c, (*graph.Store).ToggleComposite)
}

func (h *Handler) expandComposite(c *gin.Context) {
	h.mutateComposite(c, (*graph.Store).ExpandComposite)
}

func (h *Handler) collapseComposite(c *gin.Context) {
	h.mutateComposite(c, (*graph.Store).CollapseComposite)
}

// mutateComposite answers with the composite and its members so a client can
// redraw the fan in one round trip
func (h *Handler) mutateComposite(c *gin.Context, op func(*graph.Store, string) error) {
	nodeID := c.Param("node_id")
	var nodes []*state.Node
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		if err := op(s, nodeID); err != nil {
			return err
		}
		composite, _ := s.Node(nodeID)
		nodes = append(nodes, composite)
		for _, id := range composite.CompositeChildren {
			if m, ok := s.Node(id); ok {
				nodes = append(nodes, m)
			}
		}
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"composite": nodes[0], "members": nodes[1:]})
}

// mutateNode applies fn to the node named in the path and answers with it
func (h *Handler) mutateNode(c *gin.Context, fn func(*graph.Store, string) error) {
	nodeID := c.Param("node_id")
	var node *state.Node
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		if err := fn(s, nodeID); err != nil {
			return err
		}
		node, _ = s.Node(nodeID)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, node)
}

func (h *Handler) createEdge(c *gin.Context) {
	var req createEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RelationType == "" {
		req.RelationType = string(state.RelationReferences)
	}
	relType, valid := state.ParseRelationType(req.RelationType)
	if !valid {
		badRequest(c, apperrors.NewInvalidRelationType(req.RelationType))
		return
	}

	var rel *state.Relation
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		id, err := s.AddRelation(req.SourceID, req.TargetID, relType, req.Label)
		if err != nil {
			return err
		}
		rel, _ = s.Relation(id)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, rel)
}

func (h *Handler) deleteEdge(c *gin.Context) {
	edgeID := c.Param("edge_id")
	err := h.workspace.Mutate(c.Request.Context(), c.Param("id"), func(s *graph.Store) error {
		return s.DeleteRelation(edgeID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"id": edgeID})
}
