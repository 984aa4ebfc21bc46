package gtfs

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrBadStatus is returned when the feed server answers with a non-200 status
	ErrBadStatus = errors.New("unexpected status from GTFS server")

	// ErrUnsafePath is returned when an archive entry would land outside the target directory
	ErrUnsafePath = errors.New("archive entry escapes target directory")
)

// Download fetches a GTFS zip and writes it to zipPath
func Download(ctx context.Context, client *http.Client, rawURL, zipPath string) error {
	return download(ctx, client, rawURL, zipPath, nil)
}

// DownloadWithAuth fetches a GTFS zip from a feed that takes app_id/app_key query parameters
func DownloadWithAuth(ctx context.Context, client *http.Client, rawURL, zipPath, appID, appKey string) error {
	params := url.Values{}
	params.Set("app_id", appID)
	params.Set("app_key", appKey)
	return download(ctx, client, rawURL, zipPath, params)
}

func download(ctx context.Context, client *http.Client, rawURL, zipPath string, params url.Values) error {
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse GTFS url: %w", err)
	}
	if params != nil {
		q := u.Query()
		for k, v := range params {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GTFS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write next to the target and rename so a failed transfer never
	// replaces a good archive
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), filepath.Base(zipPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write GTFS zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write GTFS zip: %w", err)
	}

	if err := os.Rename(tmp.Name(), zipPath); err != nil {
		return fmt.Errorf("failed to move GTFS zip into place: %w", err)
	}

	log.Info().Str("path", zipPath).Int64("bytes", n).Msg("GTFS zip downloaded")
	return nil
}

// Extract unpacks every file in the archive into outDir, creating it if needed
func Extract(zipPath, outDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create GTFS directory: %w", err)
	}

	root, err := filepath.Abs(outDir)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ListFeedFiles returns the sorted names of the .txt tables in dir
func ListFeedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
