package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"skillgoblin/internal/database"
	"skillgoblin/internal/delivery"
	"skillgoblin/internal/memory"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

// chdirTemp moves into an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return dir
}

func TestReadConfigDefaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{"CONTENT_DIR", "DATA_DIR", "PORT", "METRICS_PORT", "WATCH_INTERVAL",
		"MAX_CHUNK_SIZE", "MAX_FULL_FILE_SIZE", "HANDLE_CACHE_SIZE", "PLACEHOLDER_IMAGE"} {
		t.Setenv(key, "")
	}

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	def := delivery.DefaultConfig()
	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"content dir", cfg.ContentDir, "/app/data/content"},
		{"data dir", cfg.DataDir, "/app/data"},
		{"database path", cfg.DatabasePath, filepath.Join("/app/data", database.FileName)},
		{"port", cfg.Port, "3000"},
		{"metrics port", cfg.MetricsPort, "9090"},
		{"metrics enabled", cfg.MetricsEnabled, true},
		{"watch interval", cfg.WatchInterval, 10 * time.Second},
		{"max chunk", cfg.Delivery.MaxChunkSize, def.MaxChunkSize},
		{"max full file", cfg.Delivery.MaxFullFileSize, def.MaxFullFileSize},
		{"handle cache", cfg.Delivery.HandleCacheSize, 30},
		{"chunk ttl", cfg.Delivery.ChunkCacheTTL, 5 * time.Minute},
		{"placeholder", cfg.Delivery.PlaceholderPath, "public/images/placeholder.png"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestReadConfigOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONTENT_DIR", "/srv/courses")
	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("PORT", "8081")
	t.Setenv("WATCH_INTERVAL", "0")
	t.Setenv("MAX_CHUNK_SIZE", "1MiB")
	t.Setenv("MAX_FULL_FILE_SIZE", "5000000")
	t.Setenv("CHUNK_CACHE_SIZE", "7")
	t.Setenv("THUMBNAIL_CACHE_TTL", "90s")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	if cfg.ContentDir != "/srv/courses" || cfg.DataDir != "/srv/data" || cfg.Port != "8081" {
		t.Errorf("unexpected paths/port: %+v", cfg)
	}
	if cfg.WatchInterval != 0 {
		t.Errorf("WatchInterval = %v, want 0 (disabled)", cfg.WatchInterval)
	}
	if cfg.Delivery.MaxChunkSize != 1<<20 {
		t.Errorf("MaxChunkSize = %d, want %d", cfg.Delivery.MaxChunkSize, 1<<20)
	}
	if cfg.Delivery.MaxCachedChunkSize != 1<<20 {
		t.Errorf("MaxCachedChunkSize = %d, should follow a smaller chunk size", cfg.Delivery.MaxCachedChunkSize)
	}
	if cfg.Delivery.MaxFullFileSize != 5000000 {
		t.Errorf("MaxFullFileSize = %d", cfg.Delivery.MaxFullFileSize)
	}
	if cfg.Delivery.ChunkCacheSize != 7 || cfg.Delivery.ThumbnailCacheTTL != 90*time.Second {
		t.Errorf("cache overrides not applied: %+v", cfg.Delivery)
	}
	if cfg.MetricsEnabled {
		t.Error("METRICS_ENABLED=false ignored")
	}
}

func TestReadConfigInvalidValuesFallBack(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WATCH_INTERVAL", "soon")
	t.Setenv("MAX_CHUNK_SIZE", "lots")
	t.Setenv("HANDLE_CACHE_SIZE", "-3")
	t.Setenv("HANDLE_CACHE_TTL", "-1s")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	def := delivery.DefaultConfig()
	if cfg.WatchInterval != 10*time.Second {
		t.Errorf("WatchInterval = %v", cfg.WatchInterval)
	}
	if cfg.Delivery.MaxChunkSize != def.MaxChunkSize {
		t.Errorf("MaxChunkSize = %d", cfg.Delivery.MaxChunkSize)
	}
	if cfg.Delivery.HandleCacheSize != def.HandleCacheSize || cfg.Delivery.HandleCacheTTL != def.HandleCacheTTL {
		t.Errorf("handle cache = %d/%v", cfg.Delivery.HandleCacheSize, cfg.Delivery.HandleCacheTTL)
	}
	if !cfg.MetricsEnabled {
		t.Error("invalid METRICS_ENABLED should keep the default")
	}
}

func TestReadConfigDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("PORT", "")
	// godotenv never overrides variables that are already set
	t.Setenv("METRICS_PORT", "9999")
	os.Unsetenv("PORT")

	env := "PORT=4040\nMETRICS_PORT=1111\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Port != "4040" {
		t.Errorf("Port = %q, want value from .env", cfg.Port)
	}
	if cfg.MetricsPort != "9999" {
		t.Errorf("MetricsPort = %q, environment must win over .env", cfg.MetricsPort)
	}
}

func TestLoadConfigPreparesDirectories(t *testing.T) {
	root := chdirTemp(t)
	content := filepath.Join(root, "content")
	data := filepath.Join(root, "nested", "data")
	t.Setenv("CONTENT_DIR", content)
	t.Setenv("DATA_DIR", data)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	for _, dir := range []string{content, data} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected %s to be created: %v", dir, err)
		}
	}
	if cfg.DatabasePath != filepath.Join(data, database.FileName) {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
}

func TestLoadConfigDataDirIsFile(t *testing.T) {
	root := chdirTemp(t)
	file := filepath.Join(root, "data")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONTENT_DIR", filepath.Join(root, "content"))
	t.Setenv("DATA_DIR", file)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error when DATA_DIR is a file")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SG_TEST_BOOL", "yes")
	if getEnvBool("SG_TEST_BOOL", true) != true {
		t.Error("invalid bool should return the default")
	}
	t.Setenv("SG_TEST_BOOL", "0")
	if getEnvBool("SG_TEST_BOOL", true) != false {
		t.Error("0 should parse as false")
	}

	t.Setenv("SG_TEST_BYTES", "2MB")
	if got := getEnvBytes("SG_TEST_BYTES", 1); got != 2_000_000 {
		t.Errorf("getEnvBytes(2MB) = %d", got)
	}
	t.Setenv("SG_TEST_BYTES", "0")
	if got := getEnvBytes("SG_TEST_BYTES", 42); got != 42 {
		t.Errorf("zero size should fall back, got %d", got)
	}

	if got := getEnv("SG_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q", got)
	}
}

func TestGetRoutesAndGroups(t *testing.T) {
	r := mux.NewRouter()
	noop := func(_ http.ResponseWriter, _ *http.Request) {}
	r.HandleFunc("/health", noop).Methods("GET")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/courses/{id}", noop).Methods("GET", "POST")
	api.HandleFunc("/content/{path:.*}", noop)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}

	var courseMethods []string
	wildcard := false
	for _, route := range routes {
		if route.Path == "/api/courses/{id}" {
			courseMethods = append(courseMethods, route.Method)
		}
		if route.Path == "/api/content/{path:.*}" && route.Method == "*" {
			wildcard = true
		}
	}
	if len(courseMethods) != 2 {
		t.Errorf("expected GET and POST for courses, got %v", courseMethods)
	}
	if !wildcard {
		t.Error("route without methods should be listed as *")
	}

	groups := map[string]string{
		"/health":           "health",
		"/api/courses/{id}": "api/courses",
		"/api/status/scan":  "api/status",
		"/":                 "",
	}
	for path, want := range groups {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}

	LogHTTPRoutes(r, false, true)
}

func TestLogHelpersDoNotPanic(_ *testing.T) {
	LogMemoryConfig(memory.ConfigResult{Source: "none"})
	LogMemoryConfig(memory.ConfigResult{Source: "GOMEMLIMIT", GoMemLimit: 1 << 30})
	LogMemoryConfig(memory.ConfigResult{Source: "MEMORY_LIMIT", GoMemLimit: 1 << 29, ContainerLimit: 1 << 30, Ratio: 0.5})
	LogDatabaseInit(time.Millisecond, 3)
	LogScanInit(0)
	LogScanInit(time.Second)
	LogScanStarted()
	LogServerStarted(ServerConfig{Port: "3000", MetricsPort: "9090", MetricsEnabled: true})
	LogShutdownInitiated("SIGTERM")
	LogShutdownStep("Stopping watcher")
	LogShutdownStepComplete("Watcher stopped")
	LogShutdownComplete()
}
