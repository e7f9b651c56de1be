package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	base := t.TempDir()
	t.Setenv("APP_BASE_DIR", base)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "db.sqlite3"), s.DBPath)
	assert.Equal(t, filepath.Join(base, "tmp"), s.TmpRoot)
	assert.Equal(t, filepath.Join(base, "archive"), s.ArchiveRoot)
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, 3, s.MaxParallelJobs)
	assert.Equal(t, 100, s.MaxQueueLength)
	assert.Equal(t, 5*time.Second, s.SchedulerInterval)
	assert.Equal(t, 5, s.MaxDeliveryAttempts)
	assert.False(t, s.MaintenanceMode)
	assert.False(t, s.CleanupEnabled())
	assert.Equal(t, int64(0), s.MaxFileSizeBytes())

	// Data directories are created
	for _, dir := range []string{s.TmpRoot, s.ArchiveRoot, s.AuthProfileDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoad_Overrides(t *testing.T) {
	base := t.TempDir()
	t.Setenv("APP_BASE_DIR", base)
	t.Setenv("MAX_PARALLEL_JOBS", "7")
	t.Setenv("MAX_FILE_SIZE_MB", "50")
	t.Setenv("TMP_RETENTION_DAYS", "14")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("SCHEDULER_POLL_INTERVAL_SECONDS", "30")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, s.MaxParallelJobs)
	assert.Equal(t, int64(50*1024*1024), s.MaxFileSizeBytes())
	assert.True(t, s.CleanupEnabled())
	assert.True(t, s.MaintenanceMode)
	assert.Equal(t, 30*time.Second, s.SchedulerInterval)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	base := t.TempDir()
	t.Setenv("APP_BASE_DIR", base)
	t.Setenv("MAX_PARALLEL_JOBS", "many")
	t.Setenv("MOCK_DOWNLOADS", "sometimes")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, s.MaxParallelJobs)
	assert.False(t, s.MockDownloads)
}

func TestGetBool(t *testing.T) {
	t.Setenv("FLAG", "on")
	assert.True(t, getBool("FLAG", false))
	t.Setenv("FLAG", "0")
	assert.False(t, getBool("FLAG", true))
	t.Setenv("FLAG", "")
	assert.True(t, getBool("FLAG", true))
}
