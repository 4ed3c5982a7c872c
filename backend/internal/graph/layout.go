package graph

import (
	"fmt"
	"math"

	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
)

// FanLayout places n points on an arc around center. The radius grows by
// FanRadiusStep per member beyond the baseline and the spread widens by
// FanSpreadStepDeg per member, capped at a half circle.
func FanLayout(center state.Position, n int) []state.Position {
	if n <= 0 {
		return nil
	}
	radius := math.Max(constants.FanBaseRadius,
		constants.FanBaseRadius+float64(n-constants.FanRadiusBaseline)*constants.FanRadiusStep)
	spread := math.Min(constants.FanMaxSpreadDeg, constants.FanBaseSpreadDeg+constants.FanSpreadStepDeg*float64(n))
	step := 0.0
	if n > 1 {
		step = spread / float64(n-1)
	}

	out := make([]state.Position, n)
	for i := 0; i < n; i++ {
		angle := (-spread/2 + step*float64(i)) * math.Pi / 180
		out[i] = state.Position{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return out
}

// CreateCompositeNode aggregates existing nodes into a new collapsed composite
// placed at their centroid. Members are hidden until the composite is expanded.
func (s *Store) CreateCompositeNode(title string, memberIDs []string) (string, error) {
	if len(memberIDs) == 0 {
		return "", apperrors.NewInvalidComposite("at least one member is required")
	}
	seen := make(map[string]bool, len(memberIDs))
	var cx, cy float64
	for _, id := range memberIDs {
		m, ok := s.nodes[id]
		if !ok {
			return "", apperrors.NewNodeNotFound(id)
		}
		if seen[id] {
			return "", apperrors.NewInvalidComposite("duplicate member " + id)
		}
		if m.IsComposite {
			return "", apperrors.NewInvalidComposite("composites cannot be nested: " + id)
		}
		if m.CompositeParent != "" {
			return "", apperrors.NewInvalidComposite(fmt.Sprintf("%s already belongs to composite %s", id, m.CompositeParent))
		}
		seen[id] = true
		cx += m.Position.X
		cy += m.Position.Y
	}
	before := s.Export()

	count := float64(len(memberIDs))
	c := s.newNode(title, state.Position{X: cx / count, Y: cy / count})
	c.IsComposite = true
	c.CompositeChildren = append([]string(nil), memberIDs...)
	s.insertNode(c)
	for _, id := range memberIDs {
		m := s.nodes[id]
		m.CompositeParent = c.ID
		m.Hidden = true
	}

	s.record(state.ActionCreateNode, fmt.Sprintf("Create composite %q from %d nodes", title, len(memberIDs)), before)
	return c.ID, nil
}

// ExpandComposite fans the members around the composite and shows them.
// Expanding an already expanded composite changes nothing.
func (s *Store) ExpandComposite(id string) error {
	c, err := s.composite(id)
	if err != nil {
		return err
	}
	if c.Expanded {
		return nil
	}
	before := s.Export()

	positions := FanLayout(c.Position, len(c.CompositeChildren))
	for i, mid := range c.CompositeChildren {
		m, ok := s.nodes[mid]
		if !ok {
			continue
		}
		m.Position = positions[i]
		m.Hidden = false
		m.CompositeParent = c.ID
	}
	c.Expanded = true
	c.UpdatedAt = s.now()

	s.record(state.ActionUpdateNode, fmt.Sprintf("Expand composite %q", c.Title), before)
	return nil
}

// CollapseComposite hides the members; their positions are left as they are.
// Collapsing an already collapsed composite changes nothing.
func (s *Store) CollapseComposite(id string) error {
	c, err := s.composite(id)
	if err != nil {
		return err
	}
	if !c.Expanded {
		return nil
	}
	before := s.Export()

	for _, mid := range c.CompositeChildren {
		if m, ok := s.nodes[mid]; ok {
			m.Hidden = true
		}
	}
	c.Expanded = false
	c.UpdatedAt = s.now()

	s.record(state.ActionUpdateNode, fmt.Sprintf("Collapse composite %q", c.Title), before)
	return nil
}

// ToggleComposite expands a collapsed composite and collapses an expanded one
func (s *Store) ToggleComposite(id string) error {
	c, err := s.composite(id)
	if err != nil {
		return err
	}
	if c.Expanded {
		return s.CollapseComposite(id)
	}
	return s.ExpandComposite(id)
}

func (s *Store) composite(id string) (*state.Node, error) {
	c, ok := s.nodes[id]
	if !ok {
		return nil, apperrors.NewNodeNotFound(id)
	}
	if !c.IsComposite {
		return nil, apperrors.NewInvalidComposite(id + " is not a composite node")
	}
	return c, nil
}
