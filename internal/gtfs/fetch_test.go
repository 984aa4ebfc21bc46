package gtfs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadWithAuthSendsCredentials(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.zip")
	writeZip(t, src, sampleFeed)
	body, err := os.ReadFile(src)
	require.NoError(t, err)

	var gotID, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("app_id")
		gotKey = r.URL.Query().Get("app_key")
		w.Write(body)
	}))
	defer srv.Close()

	zipPath := filepath.Join(t.TempDir(), "cache", "tfwm_gtfs.zip")
	err = DownloadWithAuth(context.Background(), srv.Client(), srv.URL+"/gtfs/tfwm_gtfs.zip", zipPath, "id-1", "key-2")
	require.NoError(t, err)

	assert.Equal(t, "id-1", gotID)
	assert.Equal(t, "key-2", gotKey)

	written, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	assert.Equal(t, body, written)
}

func TestDownloadBadStatusKeepsPreviousZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	zipPath := filepath.Join(t.TempDir(), "feed.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("previous"), 0644))

	err := Download(context.Background(), srv.Client(), srv.URL, zipPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadStatus))

	kept, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(kept))
}

func TestDownloadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Download(ctx, srv.Client(), srv.URL, filepath.Join(t.TempDir(), "feed.zip"))
	assert.Error(t, err)
}

func TestExtractAndList(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "feed.zip")
	writeZip(t, zipPath, sampleFeed)

	outDir := filepath.Join(t.TempDir(), "gtfs_data")
	require.NoError(t, Extract(zipPath, outDir))

	files, err := ListFeedFiles(outDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"agency.txt",
		"feed_info.txt",
		"routes.txt",
		"shapes.txt",
		"stop_times.txt",
		"stops.txt",
		"trips.txt",
	}, files)

	data, err := LoadDir(outDir)
	require.NoError(t, err)
	assertSampleFeed(t, data)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.txt": "nope"})

	outDir := filepath.Join(t.TempDir(), "out")
	err := Extract(zipPath, outDir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafePath))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(outDir), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestListFeedFilesIgnoresOtherEntries(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{"stops.txt": "", "notes.md": "", "agency.txt": ""})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0755))

	files, err := ListFeedFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"agency.txt", "stops.txt"}, files)
}
