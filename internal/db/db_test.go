package db

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	tables, err := db.TableNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"evaluation_runs", "frame_verdicts", "label_scores", "mode_scores"}, tables)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.False(t, dirty)
	latest, err := GetLatestMigrationVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)
	assert.Equal(t, latest, version)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(Migrations()))
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrateDownAndTo(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown(Migrations()))
	version, _, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	tables, err := db.TableNames()
	require.NoError(t, err)
	assert.NotContains(t, tables, "frame_verdicts")

	require.NoError(t, db.MigrateTo(Migrations(), 1))
	tables, err = db.TableNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"evaluation_runs"}, tables)

	require.NoError(t, db.MigrateForce(Migrations(), 3))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
}

func TestNilMigrationsFS(t *testing.T) {
	db := newTestDB(t)
	assert.Error(t, db.MigrateUp(nil))
}

func TestGetLatestMigrationVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_b.up.sql":   {Data: []byte("SELECT 1;")},
		"000002_b.down.sql": {Data: []byte("SELECT 1;")},
		"000010_c.up.sql":   {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("notes")},
		"bogus_x.up.sql":    {Data: []byte("SELECT 1;")},
	}
	v, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(10), v)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 3")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "up to date")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "1 version(s) behind")

	require.NoError(t, RunMigrateCommand([]string{"version", "3"}, path, io.Discard))
	assert.Error(t, RunMigrateCommand([]string{"version"}, path, io.Discard))
	assert.Error(t, RunMigrateCommand([]string{"version", "x"}, path, io.Discard))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, io.Discard))
	assert.Error(t, RunMigrateCommand(nil, path, io.Discard))

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, path, &out))
	assert.Contains(t, out.String(), "Usage: perception-eval migrate")
}

func TestAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(`INSERT INTO evaluation_runs (run_id, scenario_name, interpolation, num_frames, passed_frames,
		pass_rate, required_pass_rate, passed, created_at) VALUES ('r1', 's', 'continuous', 1, 1, 100, 50, 1, 1)`)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))
	for _, route := range []string{"/debug/backup", "/debug/tailsql/"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route, nil))
		// Access control may answer 403; the route must exist either way.
		assert.NotEqual(t, http.StatusNotFound, rec.Code, route)
	}

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3")))
}
