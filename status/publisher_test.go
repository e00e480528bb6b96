package status

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readDocument(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func newTestPublisher(t *testing.T) (*Publisher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provisioning.status")
	p, err := New(path, testLogger())
	require.NoError(t, err)
	return p, path
}

func TestInitialStatus(t *testing.T) {
	p, path := newTestPublisher(t)

	doc := readDocument(t, path)
	assert.Equal(t, "STARTING", doc["status"])
	assert.Equal(t, float64(0), doc["progress_percentage"])
	assert.NotEmpty(t, doc["timestamp"])
	assert.NotContains(t, doc, "error_details")

	cur := p.Current()
	assert.Equal(t, PhaseStarting, cur.Phase)
}

func TestDefaultMessageAndProgress(t *testing.T) {
	p, path := newTestPublisher(t)

	p.Update(PhaseCheckingConnectivity, "", ProgressUnset)

	doc := readDocument(t, path)
	assert.Equal(t, "CHECKING_CONNECTIVITY", doc["status"])
	assert.Equal(t, "Checking internet connectivity", doc["message"])
	assert.Equal(t, float64(20), doc["progress_percentage"])
}

func TestProgressClamping(t *testing.T) {
	p, _ := newTestPublisher(t)

	p.Update(PhaseInstalling, "working", 150)
	assert.LessOrEqual(t, p.Current().Progress, 100)
	assert.Equal(t, 100, p.Current().Progress)

	p.Update(PhaseInstalling, "working", -10)
	// Negative progress means "unset"; the phase default is substituted.
	assert.GreaterOrEqual(t, p.Current().Progress, 0)
	assert.Equal(t, defaultProgress[PhaseInstalling], p.Current().Progress)
}

func TestReportErrorDetails(t *testing.T) {
	p, path := newTestPublisher(t)

	p.ReportError("Provisioning failed", "disk full")
	doc := readDocument(t, path)
	assert.Equal(t, "ERROR", doc["status"])
	assert.Equal(t, "Provisioning failed", doc["message"])
	assert.Equal(t, "disk full", doc["error_details"])
}

func TestReportErrorEmptyDetailsOmitted(t *testing.T) {
	p, path := newTestPublisher(t)

	p.ReportError("Provisioning failed", "")
	doc := readDocument(t, path)
	assert.Equal(t, "ERROR", doc["status"])
	assert.NotContains(t, doc, "error_details")
}

func TestNonErrorUpdateClearsErrorDetails(t *testing.T) {
	p, path := newTestPublisher(t)

	p.ReportError("Provisioning failed", "transient")
	p.Update(PhaseInstalling, "", ProgressUnset)

	doc := readDocument(t, path)
	assert.Equal(t, "PROVISIONING", doc["status"])
	assert.NotContains(t, doc, "error_details")
	assert.Empty(t, p.Current().ErrorDetails)
}

func TestErrorKeepsLastProgress(t *testing.T) {
	p, _ := newTestPublisher(t)

	p.Update(PhaseInstalling, "", 73)
	p.ReportError("Provisioning failed", "systemctl start failed")
	assert.Equal(t, 73, p.Current().Progress)
}

func TestStatusFileWorldReadable(t *testing.T) {
	_, path := newTestPublisher(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	mode := info.Mode().Perm()
	assert.Equal(t, os.FileMode(0044), mode&0044, "status file must be group/world readable")
	assert.Equal(t, os.FileMode(0), mode&0022, "status file must not be group/world writable")
}

func TestNoTempFileLeftBehind(t *testing.T) {
	p, path := newTestPublisher(t)
	p.Update(PhaseCompleted, "", ProgressUnset)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
