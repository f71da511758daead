package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/delivery"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/handlers"
	"skillgoblin/internal/indexer"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/memory"
	"skillgoblin/internal/metrics"
	"skillgoblin/internal/middleware"
	"skillgoblin/internal/startup"
)

func main() {
	startTime := time.Now()

	// Must run before significant allocations
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		config.ContentDir: "content",
		config.DataDir:    "data",
	}))
	metrics.InitializeMetrics(startup.Version, startup.Commit, startup.GoVersion)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	courses, err := db.CourseCount(context.Background())
	if err != nil {
		startup.LogFatal("Failed to read catalog: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), courses)

	paths := course.NewPaths(config.ContentDir)
	engine := delivery.New(config.Delivery, db, paths, monitor)
	engine.Start()

	orch := indexer.NewOrchestrator(db, paths)
	orch.SetMemoryMonitor(monitor)
	orch.SetOnScanComplete(func(indexer.Status) {
		// a scan may have imported thumbnails that are cached as placeholders
		engine.PurgeThumbnails()
	})

	watcher := indexer.NewWatcher(orch, config.WatchInterval)

	startup.LogScanInit(config.WatchInterval)
	go func() {
		// non-forced: returns at once when the catalog is already populated
		if err := orch.FullScan(context.Background(), false, true); err != nil {
			logging.Error("Initial scan failed: %v", err)
		}
		if err := watcher.Start(context.Background()); err != nil {
			logging.Error("Failed to start directory watcher: %v", err)
		}
	}()
	startup.LogScanStarted()

	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	h := handlers.New(db, orch, engine)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Logger(loggingConfig)(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Content responses set per-chunk write deadlines themselves
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, watcher, orch, engine, collector, monitor)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	<-done
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	// Content paths are confined by the delivery engine, which must see
	// dot segments to refuse them
	r := mux.NewRouter().SkipClean(true)

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Courses; fixed paths before {id}
	api.HandleFunc("/courses", h.ListCourses).Methods("GET")
	api.HandleFunc("/courses/edit", h.EditCourse).Methods("POST")
	api.HandleFunc("/courses/rescan", h.Rescan).Methods("POST")
	api.HandleFunc("/courses/{id}", h.GetCourse).Methods("GET")
	api.HandleFunc("/courses/{id}/refresh", h.RefreshCourse).Methods("POST")
	api.HandleFunc("/courses/{id}/list-files", h.ListCourseFiles).Methods("GET")
	api.HandleFunc("/courses/{id}/download-file", h.DownloadCourseFile).Methods("GET", "HEAD")
	api.HandleFunc("/categories", h.ListCategories).Methods("GET")
	api.HandleFunc("/course-thumbnail/{id}", h.GetCourseThumbnail).Methods("GET", "HEAD")

	// Content delivery
	api.HandleFunc("/content/{path:.*}", h.ServeContent).Methods("GET", "HEAD")

	// Scan status
	api.HandleFunc("/status/scan", h.GetScanStatus).Methods("GET")

	// Users
	api.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")
	api.HandleFunc("/user-progress/{userId}", h.GetUserProgress).Methods("GET")
	api.HandleFunc("/user-progress/{userId}", h.SetUserProgress).Methods("PUT")
	api.HandleFunc("/user-favorites/{userId}", h.GetFavorites).Methods("GET")
	api.HandleFunc("/user-favorites/{userId}/{courseId}", h.AddFavorite).Methods("POST")
	api.HandleFunc("/user-favorites/{userId}/{courseId}", h.RemoveFavorite).Methods("DELETE")

	// Static files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./public")))

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, watcher *indexer.Watcher, orch *indexer.Orchestrator,
	engine *delivery.Engine, collector *metrics.Collector, monitor *memory.Monitor,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping directory watcher")
	watcher.Stop()
	startup.LogShutdownStepComplete("Directory watcher stopped")

	startup.LogShutdownStep("Stopping scans")
	orch.Stop()
	startup.LogShutdownStepComplete("Scans stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Releasing file handles and caches")
	engine.Stop()
	startup.LogShutdownStepComplete("Delivery engine stopped")

	collector.Stop()
	monitor.Stop()

	startup.LogShutdownComplete()
}
