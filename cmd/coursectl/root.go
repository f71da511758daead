package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/indexer"
	"skillgoblin/internal/startup"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coursectl",
		Short:        "Maintain the SkillGoblin course catalog",
		Long:         "Scan, inspect and prune the course catalog using the server's configuration",
		SilenceUsage: true,
		Version:      startup.Version,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newScanCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newRescanCourseCmd())
	root.AddCommand(newRemoveCourseCmd())
	return root
}

// catalog is an open database plus an orchestrator over the content root.
type catalog struct {
	db   *database.Database
	orch *indexer.Orchestrator
}

func openCatalog(ctx context.Context) (*catalog, error) {
	cfg, err := startup.ReadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}

	return &catalog{
		db:   db,
		orch: indexer.NewOrchestrator(db, course.NewPaths(cfg.ContentDir)),
	}, nil
}

func (c *catalog) Close() error {
	c.orch.Stop()
	return c.db.Close()
}

// withCatalog opens the catalog for the duration of fn.
func withCatalog(cmd *cobra.Command, fn func(ctx context.Context, c *catalog) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()

	return fn(ctx, c)
}
