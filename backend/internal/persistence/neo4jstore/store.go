package neo4jstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

const backendName = "neo4j"

// Store persists each mind map as a graph:
//
//	(:MindMap)-[:CONTAINS]->(:ThoughtNode)-[:RELATES {type}]->(:ThoughtNode)
//	(:ThoughtNode)-[:HAS_CONVERSATION]->(:Conversation)
//
// Saving replaces the whole subgraph of a map inside one write transaction.
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New wraps an existing driver
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Named("neo4j"),
	}
}

// Connect creates a driver and verifies connectivity
func Connect(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "connect", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.NewPersistenceFailed(backendName, "verify connectivity", err)
	}
	return New(driver), nil
}

func (s *Store) Name() string { return backendName }

// Close closes the Neo4j driver connection
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates the uniqueness constraints and lookup indexes. Failures
// are logged and skipped since older servers reject some statements.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT mind_map_id_unique IF NOT EXISTS FOR (m:MindMap) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT thought_node_key_unique IF NOT EXISTS FOR (n:ThoughtNode) REQUIRE (n.map_id, n.id) IS UNIQUE",
		"CREATE INDEX thought_node_map IF NOT EXISTS FOR (n:ThoughtNode) ON (n.map_id)",
		"CREATE INDEX conversation_node IF NOT EXISTS FOR (c:Conversation) ON (c.map_id, c.node_id)",
		"CREATE INDEX mind_map_updated_at IF NOT EXISTS FOR (m:MindMap) ON (m.updated_at)",
	}

	failed := 0
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			failed++
			s.logger.Warn("Failed to apply schema statement (may already exist)", zap.String("statement", stmt), zap.Error(err))
		}
	}
	if failed == len(statements) {
		return apperrors.NewPersistenceFailed(backendName, "ensure schema", fmt.Errorf("all %d statements failed", failed))
	}
	s.logger.Info("Neo4j schema ensured", zap.Int("statements", len(statements)), zap.Int("failed", failed))
	return nil
}

// Save replaces the stored subgraph of doc.Map.ID
func (s *Store) Save(ctx context.Context, doc *persistence.Document) error {
	if doc == nil || doc.Map.ID == "" {
		return apperrors.NewValidationFailed("document.map.id", "cannot be empty")
	}
	snap := doc.Snapshot
	if snap == nil {
		snap = &state.Snapshot{}
	}
	nodes, relations, conversations, err := toParams(snap)
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "encode snapshot", err)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			query  string
			params map[string]any
		}{
			{
				query: `
					MERGE (m:MindMap {id: $mapID})
					SET m.title = $title,
					    m.description = $description,
					    m.created_at = $createdAt,
					    m.updated_at = $updatedAt
					WITH m
					OPTIONAL MATCH (m)-[:CONTAINS]->(n:ThoughtNode)
					OPTIONAL MATCH (n)-[:HAS_CONVERSATION]->(c:Conversation)
					DETACH DELETE n, c
				`,
				params: map[string]any{
					"mapID":       doc.Map.ID,
					"title":       doc.Map.Title,
					"description": doc.Map.Description,
					"createdAt":   formatTime(doc.Map.CreatedAt),
					"updatedAt":   formatTime(doc.Map.UpdatedAt),
				},
			},
			{
				query: `
					MATCH (m:MindMap {id: $mapID})
					UNWIND $nodes AS props
					CREATE (m)-[:CONTAINS]->(n:ThoughtNode)
					SET n = props, n.map_id = $mapID
				`,
				params: map[string]any{"mapID": doc.Map.ID, "nodes": nodes},
			},
			{
				query: `
					UNWIND $relations AS rel
					MATCH (src:ThoughtNode {map_id: $mapID, id: rel.source_id})
					MATCH (dst:ThoughtNode {map_id: $mapID, id: rel.target_id})
					CREATE (src)-[r:RELATES]->(dst)
					SET r.id = rel.id,
					    r.type = rel.type,
					    r.description = rel.description,
					    r.created_at = rel.created_at,
					    r.ordinal = rel.ordinal
				`,
				params: map[string]any{"mapID": doc.Map.ID, "relations": relations},
			},
			{
				query: `
					UNWIND $conversations AS conv
					MATCH (n:ThoughtNode {map_id: $mapID, id: conv.node_id})
					CREATE (n)-[:HAS_CONVERSATION]->(c:Conversation)
					SET c = conv, c.map_id = $mapID
				`,
				params: map[string]any{"mapID": doc.Map.ID, "conversations": conversations},
			},
		}
		for _, step := range steps {
			result, err := tx.Run(ctx, step.query, step.params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "save", err)
	}

	s.logger.Debug("Mind map saved",
		zap.String("map_id", doc.Map.ID),
		zap.Int("nodes", len(nodes)),
		zap.Int("relations", len(relations)),
	)
	return nil
}

// Load reads a mind map subgraph back into a document
func (s *Store) Load(ctx context.Context, id string) (*persistence.Document, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (m:MindMap {id: $mapID})
		OPTIONAL MATCH (m)-[:CONTAINS]->(n:ThoughtNode)
		WITH m, n ORDER BY n.ordinal
		WITH m, collect(n {.*}) AS nodes
		OPTIONAL MATCH (m)-[:CONTAINS]->(:ThoughtNode)-[r:RELATES]->(dst:ThoughtNode)
		WITH m, nodes, r, startNode(r) AS src, dst ORDER BY r.ordinal
		WITH m, nodes, collect(CASE WHEN r IS NULL THEN NULL ELSE {
			id: r.id, type: r.type, description: r.description, created_at: r.created_at,
			source_id: src.id, target_id: dst.id
		} END) AS relations
		OPTIONAL MATCH (m)-[:CONTAINS]->(:ThoughtNode)-[:HAS_CONVERSATION]->(c:Conversation)
		RETURN
			m.id AS id,
			m.title AS title,
			m.description AS description,
			m.created_at AS created_at,
			m.updated_at AS updated_at,
			nodes,
			relations,
			collect(c {.*}) AS conversations
	`

	result, err := session.Run(ctx, query, map[string]any{"mapID": id})
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "load", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, apperrors.NewPersistenceFailed(backendName, "load", err)
		}
		return nil, apperrors.NewMindMapNotFound(id)
	}
	record := result.Record()

	doc := &persistence.Document{
		Map:      mapRecord(record),
		Snapshot: &state.Snapshot{},
	}
	if doc.Snapshot.Nodes, err = nodesFrom(listFromRecord(record, "nodes")); err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "decode nodes", err)
	}
	doc.Snapshot.Relations = relationsFrom(listFromRecord(record, "relations"))
	if doc.Snapshot.Conversations, err = conversationsFrom(listFromRecord(record, "conversations")); err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "decode conversations", err)
	}
	return doc, nil
}

// Delete removes a mind map and everything it contains
func (s *Store) Delete(ctx context.Context, id string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (m:MindMap {id: $mapID})
		OPTIONAL MATCH (m)-[:CONTAINS]->(n:ThoughtNode)
		OPTIONAL MATCH (n)-[:HAS_CONVERSATION]->(c:Conversation)
		DETACH DELETE m, n, c
		RETURN count(DISTINCT m) AS deleted
	`
	result, err := session.Run(ctx, query, map[string]any{"mapID": id})
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "delete", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "delete", err)
	}
	if getInt64FromRecord(record, "deleted") == 0 {
		return apperrors.NewMindMapNotFound(id)
	}

	s.logger.Info("Mind map deleted", zap.String("map_id", id))
	return nil
}

// List returns every stored mind map, most recently updated first
func (s *Store) List(ctx context.Context) ([]persistence.MapRecord, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (m:MindMap)
		RETURN
			m.id AS id,
			m.title AS title,
			m.description AS description,
			m.created_at AS created_at,
			m.updated_at AS updated_at
	`
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "list", err)
	}

	records := []persistence.MapRecord{}
	for result.Next(ctx) {
		records = append(records, mapRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "list", err)
	}
	persistence.SortRecords(records)
	return records, nil
}

// ============================================================================
// Encoding
// ============================================================================

// toParams flattens a snapshot into Cypher parameter maps. Neo4j properties
// cannot hold nested maps, so positions are split and messages are JSON text.
// ordinal preserves creation order across a round trip.
func toParams(snap *state.Snapshot) (nodes, relations, conversations []any, err error) {
	nodes = make([]any, 0, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodes = append(nodes, map[string]any{
			"id":                  n.ID,
			"ordinal":             i,
			"title":               n.Title,
			"summary":             n.Summary,
			"color":               n.Color,
			"x":                   n.Position.X,
			"y":                   n.Position.Y,
			"is_root":             n.IsRoot,
			"is_composite":        n.IsComposite,
			"hidden":              n.Hidden,
			"expanded":            n.Expanded,
			"collapsed":           n.Collapsed,
			"skip_parent_context": n.SkipParentContext,
			"parent_ids":          stringsOrEmpty(n.ParentIDs),
			"children_ids":        stringsOrEmpty(n.ChildrenIDs),
			"composite_children":  stringsOrEmpty(n.CompositeChildren),
			"composite_parent":    n.CompositeParent,
			"conversation_id":     n.ConversationID,
			"tags":                stringsOrEmpty(n.Tags),
			"created_at":          formatTime(n.CreatedAt),
			"updated_at":          formatTime(n.UpdatedAt),
		})
	}

	relations = make([]any, 0, len(snap.Relations))
	for i, r := range snap.Relations {
		relations = append(relations, map[string]any{
			"id":          r.ID,
			"ordinal":     i,
			"source_id":   r.SourceID,
			"target_id":   r.TargetID,
			"type":        string(r.Type),
			"description": r.Description,
			"created_at":  formatTime(r.CreatedAt),
		})
	}

	conversations = make([]any, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		messages, err := json.Marshal(c.Messages)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("conversation %s: %w", c.ID, err)
		}
		conversations = append(conversations, map[string]any{
			"id":       c.ID,
			"node_id":  c.NodeID,
			"messages": string(messages),
		})
	}
	return nodes, relations, conversations, nil
}

func nodesFrom(items []map[string]any) ([]*state.Node, error) {
	out := make([]*state.Node, 0, len(items))
	for _, m := range items {
		id := getStringFromMap(m, "id", "")
		if id == "" {
			continue
		}
		out = append(out, &state.Node{
			ID:                id,
			Title:             getStringFromMap(m, "title", ""),
			Summary:           getStringFromMap(m, "summary", ""),
			Color:             getStringFromMap(m, "color", state.DefaultNodeColor),
			Position:          state.Position{X: getFloat64FromMap(m, "x", 0), Y: getFloat64FromMap(m, "y", 0)},
			IsRoot:            getBoolFromMap(m, "is_root"),
			IsComposite:       getBoolFromMap(m, "is_composite"),
			Hidden:            getBoolFromMap(m, "hidden"),
			Expanded:          getBoolFromMap(m, "expanded"),
			Collapsed:         getBoolFromMap(m, "collapsed"),
			SkipParentContext: getBoolFromMap(m, "skip_parent_context"),
			ParentIDs:         getStringSliceFromMap(m, "parent_ids"),
			ChildrenIDs:       getStringSliceFromMap(m, "children_ids"),
			CompositeChildren: nilIfEmpty(getStringSliceFromMap(m, "composite_children")),
			CompositeParent:   getStringFromMap(m, "composite_parent", ""),
			ConversationID:    getStringFromMap(m, "conversation_id", ""),
			Tags:              nilIfEmpty(getStringSliceFromMap(m, "tags")),
			CreatedAt:         getTimeFromMap(m, "created_at"),
			UpdatedAt:         getTimeFromMap(m, "updated_at"),
		})
	}
	return out, nil
}

func relationsFrom(items []map[string]any) []*state.Relation {
	out := make([]*state.Relation, 0, len(items))
	for _, m := range items {
		out = append(out, &state.Relation{
			ID:          getStringFromMap(m, "id", ""),
			SourceID:    getStringFromMap(m, "source_id", ""),
			TargetID:    getStringFromMap(m, "target_id", ""),
			Type:        state.RelationType(getStringFromMap(m, "type", "")),
			Description: getStringFromMap(m, "description", ""),
			CreatedAt:   getTimeFromMap(m, "created_at"),
		})
	}
	return out
}

func conversationsFrom(items []map[string]any) ([]*state.Conversation, error) {
	out := make([]*state.Conversation, 0, len(items))
	for _, m := range items {
		c := &state.Conversation{
			ID:     getStringFromMap(m, "id", ""),
			NodeID: getStringFromMap(m, "node_id", ""),
		}
		if raw := getStringFromMap(m, "messages", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &c.Messages); err != nil {
				return nil, fmt.Errorf("conversation %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func mapRecord(record *neo4j.Record) persistence.MapRecord {
	return persistence.MapRecord{
		ID:          getStringFromRecord(record, "id"),
		Title:       getStringFromRecord(record, "title"),
		Description: getStringFromRecord(record, "description"),
		CreatedAt:   parseTime(getStringFromRecord(record, "created_at")),
		UpdatedAt:   parseTime(getStringFromRecord(record, "updated_at")),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
