package handlers

import (
	"time"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/delivery"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/indexer"
	"skillgoblin/internal/thumbnail"
)

type Handlers struct {
	db        *database.Database
	orch      *indexer.Orchestrator
	engine    *delivery.Engine
	thumbs    *thumbnail.Synchronizer
	paths     course.Paths
	retry     filesystem.RetryConfig
	startTime time.Time
}

func New(db *database.Database, orch *indexer.Orchestrator, engine *delivery.Engine) *Handlers {
	paths := orch.Paths()
	return &Handlers{
		db:        db,
		orch:      orch,
		engine:    engine,
		thumbs:    thumbnail.NewSynchronizer(db, paths),
		paths:     paths,
		retry:     filesystem.DefaultRetryConfig(),
		startTime: time.Now(),
	}
}
