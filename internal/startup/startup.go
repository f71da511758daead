package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"skillgoblin/internal/database"
	"skillgoblin/internal/delivery"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	ContentDir      string
	DataDir         string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	WatchInterval   time.Duration
	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	DatabasePath string

	// Delivery holds the content delivery limits and cache sizes.
	Delivery delivery.Config
}

// LoadConfig prints the startup banner, reads the configuration and prepares
// the data directory. A .env file in the working directory is applied first.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Content directory (absolute): %s", config.ContentDir)
	logging.Info("  Data directory (absolute):    %s", config.DataDir)

	// Check/create content directory (warning only)
	if err := ensureDirectory(config.ContentDir, "content"); err != nil {
		logging.Warn("  Content directory issue: %v", err)
	}

	// Ensure data directory exists (required for database)
	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(config.DataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if _, err := os.Stat(config.Delivery.PlaceholderPath); err != nil {
		logging.Info("  Placeholder image %s not found, a generated one will be used", config.Delivery.PlaceholderPath)
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Watcher:     %s", enabledString(config.WatchInterval > 0))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// ReadConfig reads the configuration from the environment without touching
// the filesystem beyond an optional .env file. Invalid values log a warning
// and fall back to their defaults.
func ReadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("  Failed to load .env: %v", err)
	}

	contentDir, err := filepath.Abs(getEnv("CONTENT_DIR", "/app/data/content"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content directory path: %w", err)
	}
	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "/app/data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	d := delivery.DefaultConfig()
	d.MaxChunkSize = getEnvBytes("MAX_CHUNK_SIZE", d.MaxChunkSize)
	d.MaxFullFileSize = getEnvBytes("MAX_FULL_FILE_SIZE", d.MaxFullFileSize)
	d.HandleCacheSize = getEnvInt("HANDLE_CACHE_SIZE", d.HandleCacheSize)
	d.HandleCacheTTL = getEnvDuration("HANDLE_CACHE_TTL", d.HandleCacheTTL)
	d.ChunkCacheSize = getEnvInt("CHUNK_CACHE_SIZE", d.ChunkCacheSize)
	d.ChunkCacheTTL = getEnvDuration("CHUNK_CACHE_TTL", d.ChunkCacheTTL)
	d.ThumbnailCacheSize = getEnvInt("THUMBNAIL_CACHE_SIZE", d.ThumbnailCacheSize)
	d.ThumbnailCacheTTL = getEnvDuration("THUMBNAIL_CACHE_TTL", d.ThumbnailCacheTTL)
	d.PlaceholderPath = getEnv("PLACEHOLDER_IMAGE", d.PlaceholderPath)
	if d.MaxCachedChunkSize > d.MaxChunkSize {
		d.MaxCachedChunkSize = d.MaxChunkSize
	}

	return &Config{
		ContentDir:      contentDir,
		DataDir:         dataDir,
		Port:            getEnv("PORT", "3000"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		WatchInterval:   getEnvDuration("WATCH_INTERVAL", 10*time.Second),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		DatabasePath:    filepath.Join(dataDir, database.FileName),
		Delivery:        d,
	}, nil
}

func logConfig(c *Config) {
	logging.Info("  CONTENT_DIR:          %s", c.ContentDir)
	logging.Info("  DATA_DIR:             %s", c.DataDir)
	logging.Info("  PORT:                 %s", c.Port)
	logging.Info("  METRICS_PORT:         %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:      %v", c.MetricsEnabled)
	logging.Info("  WATCH_INTERVAL:       %v", c.WatchInterval)
	logging.Info("  MAX_CHUNK_SIZE:       %s", humanize.IBytes(uint64(c.Delivery.MaxChunkSize)))
	logging.Info("  MAX_FULL_FILE_SIZE:   %s", humanize.IBytes(uint64(c.Delivery.MaxFullFileSize)))
	logging.Info("  HANDLE_CACHE:         %d entries, %v", c.Delivery.HandleCacheSize, c.Delivery.HandleCacheTTL)
	logging.Info("  CHUNK_CACHE:          %d entries, %v", c.Delivery.ChunkCacheSize, c.Delivery.ChunkCacheTTL)
	logging.Info("  THUMBNAIL_CACHE:      %d entries, %v", c.Delivery.ThumbnailCacheSize, c.Delivery.ThumbnailCacheTTL)
	logging.Info("  PLACEHOLDER_IMAGE:    %s", c.Delivery.PlaceholderPath)
	logging.Info("  LOG_STATIC_FILES:     %v", c.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  Memory limit: %s (from GOMEMLIMIT)", humanize.IBytes(uint64(result.GoMemLimit)))
	case "MEMORY_LIMIT":
		logging.Info("  Memory limit: %s (%.0f%% of %s container limit)",
			humanize.IBytes(uint64(result.GoMemLimit)), result.Ratio*100, humanize.IBytes(uint64(result.ContainerLimit)))
	default:
		logging.Info("  Memory limit: not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, courses int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v (%d courses in catalog)", duration, courses)
}

// LogScanInit logs the startup scan and watcher configuration
func LogScanInit(watchInterval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("COURSE SCANNER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if watchInterval > 0 {
		logging.Info("  Watch interval: %v", watchInterval)
	} else {
		logging.Info("  Directory watcher disabled (WATCH_INTERVAL=0)")
	}
	logging.Info("  Starting initial scan...")
}

// LogScanStarted logs that the startup scan and watcher are running
func LogScanStarted() {
	logging.Info("  [OK] Course scanner started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   _____ __   _ ____   ______      __    ___
  / ___// /__(_) / /  / ____/___  / /_  / (_)___
  \__ \/ //_/ / / /  / / __/ __ \/ __ \/ / / __ \
 ___/ / ,< / / / /  / /_/ / /_/ / /_/ / / / / / /
/____/_/|_/_/_/_/   \____/\____/_.___/_/_/_/ /_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	if name == "content" && logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			courses := 0
			for _, e := range entries {
				if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
					courses++
				}
			}
			logging.Debug("    Contents: %d course folders", courses)
		}
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvBytes accepts plain byte counts and humanized sizes such as 2MiB or 20MB.
func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := humanize.ParseBytes(value)
	if err != nil || parsed == 0 || parsed > 1<<40 {
		logging.Warn("Invalid size for %s: %q, using default: %s", key, value, humanize.IBytes(uint64(defaultValue)))
		return defaultValue
	}
	return int64(parsed)
}
