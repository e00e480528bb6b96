package installer

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSourceForSchemes(t *testing.T) {
	log := testLogger()

	httpSource, err := SourceFor("https://d2s8p88vqu9w66.cloudfront.net/releases", log)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, httpSource)

	s3Source, err := SourceFor("s3://artifacts/greengrass/releases?region=eu-west-1", log)
	require.NoError(t, err)
	require.IsType(t, &S3Source{}, s3Source)
	assert.Equal(t, "artifacts", s3Source.(*S3Source).bucket)
	assert.Equal(t, "greengrass/releases", s3Source.(*S3Source).prefix)

	fileSource, err := SourceFor("/var/cache/greengrass", log)
	require.NoError(t, err)
	require.IsType(t, &FileSource{}, fileSource)
	assert.Equal(t, "/var/cache/greengrass", fileSource.(*FileSource).dir)

	_, err = SourceFor("ftp://mirror/releases", log)
	assert.Error(t, err)
}

func TestHTTPSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/releases/greengrass-2.9.0.zip", r.URL.Path)
		w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "lib", "Greengrass.jar")
	source, err := SourceFor(server.URL+"/releases", testLogger())
	require.NoError(t, err)

	require.NoError(t, source.Fetch(context.Background(), "2.9.0", destination))

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(content))
	assert.NoFileExists(t, destination+".tmp")
}

func TestHTTPSourceFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "Greengrass.jar")
	source, err := SourceFor(server.URL, testLogger())
	require.NoError(t, err)

	err = source.Fetch(context.Background(), "9.9.9", destination)
	assert.Error(t, err)
	assert.NoFileExists(t, destination)
}

func TestFileSourceFetch(t *testing.T) {
	mirror := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(mirror, "greengrass-2.12.1.zip"), []byte("local-archive"), 0o644))

	destination := filepath.Join(t.TempDir(), "Greengrass.jar")
	source, err := SourceFor(mirror, testLogger())
	require.NoError(t, err)

	require.NoError(t, source.Fetch(context.Background(), "2.12.1", destination))

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "local-archive", string(content))
}

func TestFileSourceFetchMissing(t *testing.T) {
	source, err := SourceFor(t.TempDir(), testLogger())
	require.NoError(t, err)

	err = source.Fetch(context.Background(), "2.9.0", filepath.Join(t.TempDir(), "Greengrass.jar"))
	assert.Error(t, err)
}
