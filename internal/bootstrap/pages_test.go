package bootstrap

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pecha-studio/internal/domain"
)

// encodePNG renders a small in-memory page image.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// writePageFile drops a PNG page scan into a temp directory.
func writePageFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, encodePNG(t, 4, 4), 0o644); err != nil {
		t.Fatalf("write page file: %v", err)
	}
	return path
}

// TestAddPagesStagesPreparedImages checks disk staging in order.
func TestAddPagesStagesPreparedImages(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})
	root := t.TempDir()
	first := writePageFile(t, root, "folio-1.png")
	second := writePageFile(t, root, "folio-2.png")

	pages, err := app.AddPages([]string{first, second})
	if err != nil {
		t.Fatalf("add pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if pages[0].SourceRef != first || pages[1].SourceRef != second {
		t.Fatalf("sourceRefs = %q, %q", pages[0].SourceRef, pages[1].SourceRef)
	}
	for _, page := range pages {
		if page.Status != domain.PageStatusPending {
			t.Fatalf("status = %s, want %s", page.Status, domain.PageStatusPending)
		}
		if page.ID == "" {
			t.Fatal("expected content-derived page id")
		}
	}

	events := app.PipelineEvents(0)
	if len(events) != 1 || !strings.Contains(events[0].Message, "staged 2 pages") {
		t.Fatalf("events = %+v, want one staging log", events)
	}
}

// TestAddPagesRejectsMissingFile checks error surfacing.
func TestAddPagesRejectsMissingFile(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	if _, err := app.AddPages([]string{filepath.Join(t.TempDir(), "absent.png")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestRemovePageDropsStagedPage checks removal by id.
func TestRemovePageDropsStagedPage(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})
	path := writePageFile(t, t.TempDir(), "folio.png")

	pages, err := app.AddPages([]string{path})
	if err != nil {
		t.Fatalf("add pages: %v", err)
	}

	remaining := app.RemovePage(pages[0].ID)
	if len(remaining) != 0 {
		t.Fatalf("remaining = %d, want 0", len(remaining))
	}
	if len(app.ListPages()) != 0 {
		t.Fatal("expected no staged pages")
	}
}

// TestImportPageFromURLDownloadsAndStages checks the download flow.
func TestImportPageFromURLDownloadsAndStages(t *testing.T) {
	payload := encodePNG(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "pecha-studio" {
			t.Errorf("user-agent = %q, want %q", got, "pecha-studio")
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	page, err := app.ImportPageFromURL(server.URL + "/scans/folio-3.png")
	if err != nil {
		t.Fatalf("import page: %v", err)
	}

	wantPath := filepath.Join(app.configDir, "imports", "folio-3.png")
	if page.SourceRef != wantPath {
		t.Fatalf("sourceRef = %q, want %q", page.SourceRef, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("stat downloaded page: %v", err)
	}
	if len(app.ListPages()) != 1 {
		t.Fatal("expected one staged page")
	}
}

// TestImportPageFromURLRejectsBadScheme checks scheme validation.
func TestImportPageFromURLRejectsBadScheme(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	if _, err := app.ImportPageFromURL("ftp://example.com/folio.png"); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

// TestImportPageFromURLSurfacesHTTPErrors checks failed downloads.
func TestImportPageFromURLSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	if _, err := app.ImportPageFromURL(server.URL + "/gone.png"); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if len(app.ListPages()) != 0 {
		t.Fatal("expected no staged pages after failed download")
	}
}

// TestIsWithinBaseDir checks path containment decisions.
func TestIsWithinBaseDir(t *testing.T) {
	base := "imports"
	cases := []struct {
		target string
		want   bool
	}{
		{filepath.Join("imports", "folio.png"), true},
		{"imports", true},
		{filepath.Join("imports", "..", "evil.png"), false},
		{filepath.Join("imports-sibling", "folio.png"), false},
	}
	for _, tc := range cases {
		if got := isWithinBaseDir(base, tc.target); got != tc.want {
			t.Fatalf("isWithinBaseDir(%q, %q) = %v, want %v", base, tc.target, got, tc.want)
		}
	}
}
