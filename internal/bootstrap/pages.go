package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pecha-studio/internal/domain"
	"pecha-studio/internal/imageprep"
	"pecha-studio/internal/run"
)

const pageDownloadTimeout = 10 * time.Minute

// AddPages prepares the given image files and stages them in order.
func (a *App) AddPages(paths []string) ([]domain.PageImage, error) {
	staged := 0
	for _, path := range paths {
		page, err := imageprep.Prepare(path)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", filepath.Base(path), err)
		}
		a.Tracker.StagePage(page)
		staged++
	}

	if staged > 0 {
		a.publishEvent(run.Event{
			Type:    run.EventTypeLog,
			Message: fmt.Sprintf("staged %d pages", staged),
		})
	}
	return a.Tracker.Pages(), nil
}

// ListPages returns the staged pages in display order.
func (a *App) ListPages() []domain.PageImage {
	return a.Tracker.Pages()
}

// RemovePage drops one staged page and returns the remaining list.
func (a *App) RemovePage(id string) []domain.PageImage {
	if a.Tracker.RemovePage(id) {
		a.publishEvent(run.Event{
			Type:    run.EventTypeLog,
			PageID:  id,
			Message: "removed page",
		})
	}
	return a.Tracker.Pages()
}

// ImportPageFromURL downloads a page scan into the imports directory and
// stages it.
func (a *App) ImportPageFromURL(rawURL string) (domain.PageImage, error) {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("parse page URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.PageImage{}, fmt.Errorf("unsupported page URL scheme: %q", parsed.Scheme)
	}

	importsDir := a.importsDir()
	name := filepath.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("page-%d", time.Now().UnixNano())
	}
	destination := filepath.Join(importsDir, name)
	if !isWithinBaseDir(importsDir, destination) {
		return domain.PageImage{}, fmt.Errorf("page URL resolves outside imports directory: %s", name)
	}

	if err := downloadURLToFile(destination, trimmed, pageDownloadTimeout); err != nil {
		return domain.PageImage{}, fmt.Errorf("download page: %w", err)
	}

	page, err := imageprep.Prepare(destination)
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("prepare %s: %w", name, err)
	}

	stagedPage := a.Tracker.StagePage(page)
	a.publishEvent(run.Event{
		Type:    run.EventTypeLog,
		PageID:  stagedPage.ID,
		Message: "imported page from " + parsed.Host,
	})
	return stagedPage, nil
}

// OpenImportsFolder shows downloaded page scans in the platform file manager.
func (a *App) OpenImportsFolder() error {
	dir := a.importsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create imports directory: %w", err)
	}
	return openInFileManager(dir)
}

func (a *App) importsDir() string {
	return filepath.Join(a.configDir, "imports")
}

// downloadURLToFile fetches a URL into place via a temp file so interrupted
// downloads never leave a partial destination behind.
func downloadURLToFile(destinationPath string, sourceURL string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequest(http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "pecha-studio")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Remove(destinationPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("remove old destination file: %w", err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}

	return nil
}

// isWithinBaseDir reports whether targetPath stays inside baseDir after
// cleaning.
func isWithinBaseDir(baseDir string, targetPath string) bool {
	baseClean := filepath.Clean(baseDir)
	targetClean := filepath.Clean(targetPath)
	relative, err := filepath.Rel(baseClean, targetClean)
	if err != nil {
		return false
	}
	return relative == "." || (!strings.HasPrefix(relative, "..") && relative != "")
}
