package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"thinkflow/backend/internal/bootstrap"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	"thinkflow/backend/internal/workspace"
	"thinkflow/backend/pkg/config"
	"thinkflow/backend/pkg/logger"
)

const demoTitle = "Getting started"

func main() {
	title := flag.String("title", demoTitle, "Title of the demo mind map")
	force := flag.Bool("force", false, "Create the map even if one with the same title exists")
	reset := flag.Bool("reset", false, "Delete every map with the same title before seeding")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Opening the backend also creates Neo4j constraints and indexes
	ctx := context.Background()
	backend, err := bootstrap.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open persistence backend", zap.Error(err))
	}
	defer backend.Close()

	ws := workspace.New(backend, workspace.WithHistoryLimit(cfg.HistoryLimit))

	if *reset {
		removed, err := deleteByTitle(ctx, ws, *title)
		if err != nil {
			log.Fatal("Failed to reset mind maps", zap.Error(err))
		}
		log.Info("Reset complete", zap.Int("deleted", removed))
	}

	if existing, found, err := findByTitle(ctx, ws, *title); err != nil {
		log.Fatal("Failed to list mind maps", zap.Error(err))
	} else if found && !*force {
		log.Info("Mind map already exists, skipping creation (use -force to recreate)",
			zap.String("map_id", existing.ID),
			zap.String("title", existing.Title),
		)
		os.Exit(0)
	}

	record, err := seed(ctx, ws, *title)
	if err != nil {
		log.Fatal("Failed to seed mind map", zap.Error(err))
	}

	log.Info("Seeding complete",
		zap.String("map_id", record.ID),
		zap.String("backend", backend.Name()),
	)
}

func findByTitle(ctx context.Context, ws *workspace.Workspace, title string) (persistence.MapRecord, bool, error) {
	records, err := ws.List(ctx)
	if err != nil {
		return persistence.MapRecord{}, false, err
	}
	for _, r := range records {
		if r.Title == title {
			return r, true, nil
		}
	}
	return persistence.MapRecord{}, false, nil
}

// deleteByTitle removes every map titled title and reports how many went
func deleteByTitle(ctx context.Context, ws *workspace.Workspace, title string) (int, error) {
	records, err := ws.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, r := range records {
		if r.Title != title {
			continue
		}
		if err := ws.Delete(ctx, r.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// seed creates a small map that shows off every relation kind the context
// resolver follows, plus a collapsed composite
func seed(ctx context.Context, ws *workspace.Workspace, title string) (persistence.MapRecord, error) {
	record, err := ws.Create(ctx, title, "A tour of thought nodes, relations and per-node conversations.")
	if err != nil {
		return persistence.MapRecord{}, err
	}

	err = ws.Mutate(ctx, record.ID, func(s *graph.Store) error {
		root := s.CreateRootNode("Should we adopt a four-day week?")

		pros, err := s.CreateChildNode(root, "Arguments for")
		if err != nil {
			return err
		}
		cons, err := s.CreateChildNode(root, "Arguments against")
		if err != nil {
			return err
		}
		focus, err := s.CreateChildNode(pros, "Better focus")
		if err != nil {
			return err
		}
		coverage, err := s.CreateChildNode(cons, "Customer coverage")
		if err != nil {
			return err
		}
		study := s.CreateRootNode("Pilot study results")
		verdict := s.CreateRootNode("Recommendation")

		links := []struct {
			source, target string
			relType        state.RelationType
			description    string
		}{
			{study, focus, state.RelationSupports, "pilot measured output per hour"},
			{coverage, focus, state.RelationContradicts, "fewer staffed days"},
			{study, verdict, state.RelationPrerequisite, ""},
			{pros, verdict, state.RelationConclusion, ""},
			{cons, verdict, state.RelationConclusion, ""},
		}
		for _, l := range links {
			if _, err := s.AddRelation(l.source, l.target, l.relType, l.description); err != nil {
				return err
			}
		}

		if err := s.AppendMessages(root,
			state.Message{Role: state.RoleUser, Content: "Frame the decision: what would have to be true for a four-day week to work here?"},
			state.Message{Role: state.RoleAssistant, Content: "Output must hold steady, customers must still reach us five days a week, and people must actually rest on the fifth day."},
		); err != nil {
			return err
		}
		if err := s.AppendMessages(study,
			state.Message{Role: state.RoleUser, Content: "Summarize the pilot."},
			state.Message{Role: state.RoleAssistant, Content: "Twelve weeks, two teams, output per hour up 9%, no change in ticket response times."},
		); err != nil {
			return err
		}

		_, err = s.CreateCompositeNode("Open questions", []string{coverage})
		return err
	})
	if err != nil {
		return persistence.MapRecord{}, err
	}
	return record, nil
}
