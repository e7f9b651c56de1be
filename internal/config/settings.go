// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings holds the runtime configuration for the daemon
type Settings struct {
	DBPath         string
	TmpRoot        string
	ArchiveRoot    string
	AuthProfileDir string
	ListenAddr     string

	Environment     string
	MockDownloads   bool
	MaintenanceMode bool

	MaxParallelJobs      int
	MaxQueueLength       int
	SchedulerInterval    time.Duration
	DeliveryInterval     time.Duration
	CleanupInterval      time.Duration
	MaxDeliveryAttempts  int
	MaxFileSizeMB        int // 0 means unlimited
	TmpRetentionDays     int // 0 disables cleanup
	MaxSubmissionsPerMin int
}

// Load reads settings from environment variables, creating the data
// directories as a side effect.
func Load() (*Settings, error) {
	baseDir := os.Getenv("APP_BASE_DIR")
	if baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = cwd
	}

	s := &Settings{
		DBPath:         getString("DB_PATH", filepath.Join(baseDir, "db.sqlite3")),
		TmpRoot:        getString("TMP_ROOT", filepath.Join(baseDir, "tmp")),
		ArchiveRoot:    getString("ARCHIVE_ROOT", filepath.Join(baseDir, "archive")),
		AuthProfileDir: getString("AUTH_PROFILE_DIR", filepath.Join(baseDir, "auth_profiles")),
		ListenAddr:     getString("LISTEN_ADDR", ":8080"),

		Environment:     getString("ENVIRONMENT", "dev"),
		MockDownloads:   getBool("MOCK_DOWNLOADS", false),
		MaintenanceMode: getBool("MAINTENANCE_MODE", false),

		MaxParallelJobs:      getInt("MAX_PARALLEL_JOBS", 3),
		MaxQueueLength:       getInt("MAX_QUEUE_LENGTH", 100),
		SchedulerInterval:    getSeconds("SCHEDULER_POLL_INTERVAL_SECONDS", 5),
		DeliveryInterval:     getSeconds("DELIVERY_POLL_INTERVAL_SECONDS", 5),
		CleanupInterval:      getSeconds("CLEANUP_POLL_INTERVAL_SECONDS", 3600),
		MaxDeliveryAttempts:  getInt("MAX_DELIVERY_ATTEMPTS", 5),
		MaxFileSizeMB:        getInt("MAX_FILE_SIZE_MB", 0),
		TmpRetentionDays:     getInt("TMP_RETENTION_DAYS", 0),
		MaxSubmissionsPerMin: getInt("MAX_SUBMISSIONS_PER_MINUTE", 10),
	}

	for _, dir := range []string{s.TmpRoot, s.ArchiveRoot, s.AuthProfileDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return s, nil
}

// MaxFileSizeBytes returns the configured artifact size ceiling, or 0 when unlimited
func (s *Settings) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// CleanupEnabled reports whether retention cleanup should run at all
func (s *Settings) CleanupEnabled() bool {
	return s.TmpRetentionDays > 0
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Second
}
