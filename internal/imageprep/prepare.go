package imageprep

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"math"
	"net/http"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/zeebo/blake3"

	"pecha-studio/internal/domain"
)

// maxPixels caps the pixel count of an upload; larger pages are downscaled
// before they go to the model.
const maxPixels = 18_000_000

const jpegQuality = 90

// Prepare loads one page image from disk and normalizes it for upload.
func Prepare(path string) (domain.PageImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("read page image: %w", err)
	}
	return PrepareBytes(data, path)
}

// PrepareBytes normalizes raw image bytes for upload. The page ID is
// hashed from the original bytes, so re-adding the same file keeps its
// identity even when the normalized upload differs.
func PrepareBytes(data []byte, sourceRef string) (domain.PageImage, error) {
	return prepareWithLimit(data, sourceRef, maxPixels)
}

func prepareWithLimit(data []byte, sourceRef string, limit int) (domain.PageImage, error) {
	if len(data) == 0 {
		return domain.PageImage{}, fmt.Errorf("page image %s is empty", sourceRef)
	}

	mime := http.DetectContentType(data)
	switch mime {
	case "image/png", "image/jpeg":
	case "image/webp":
		// Accepted by the model as-is; Go cannot re-encode it anyway.
		return page(data, data, mime, sourceRef), nil
	default:
		return domain.PageImage{}, fmt.Errorf("page image %s: unsupported format %s", sourceRef, mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("page image %s: %w", sourceRef, err)
	}
	if cfg.Width*cfg.Height <= limit {
		return page(data, data, mime, sourceRef), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("page image %s: %w", sourceRef, err)
	}
	scale := math.Sqrt(float64(limit) / float64(cfg.Width*cfg.Height))
	width := int(float64(cfg.Width) * scale)
	if width < 1 {
		width = 1
	}
	resized := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return domain.PageImage{}, fmt.Errorf("page image %s: %w", sourceRef, err)
	}
	return page(data, buf.Bytes(), "image/jpeg", sourceRef), nil
}

// page assembles a staged record with an ID hashed from the original bytes.
func page(original, upload []byte, mime, sourceRef string) domain.PageImage {
	sum := blake3.Sum256(original)
	return domain.PageImage{
		ID:        hex.EncodeToString(sum[:16]),
		SourceRef: sourceRef,
		Bytes:     upload,
		MIME:      mime,
	}
}
