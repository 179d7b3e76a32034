package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// OCR renders PDF pages to images with pdftoppm and reads them with
// tesseract. It is the last resort for scanned statements.
type OCR struct {
	Language string // tesseract language pack, "spa" when empty
	DPI      int    // 300 when zero
	Logger   zerolog.Logger
}

// IsOCRAvailable reports whether pdftoppm and tesseract are on PATH.
func IsOCRAvailable() bool {
	_, err1 := exec.LookPath("pdftoppm")
	_, err2 := exec.LookPath("tesseract")
	return err1 == nil && err2 == nil
}

// ExtractText returns the OCR'd text of each page of the PDF at path.
func (o OCR) ExtractText(ctx context.Context, path string) ([]string, error) {
	if !IsOCRAvailable() {
		return nil, fmt.Errorf("%w: install poppler-utils and tesseract-ocr", ErrOCRUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ocr input: %w", err)
	}

	lang, dpi := o.Language, o.DPI
	if lang == "" {
		lang = "spa"
	}
	if dpi == 0 {
		dpi = 300
	}

	tmpDir, err := os.MkdirTemp("", "ledger-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", fmt.Sprint(dpi), "-png", path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(images)
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}

	var pages []string
	for _, img := range images {
		outBase := strings.TrimSuffix(img, ".png") + "-ocr"
		// PSM 4: a single column of text of variable sizes.
		cmd := exec.CommandContext(ctx, "tesseract", img, outBase, "-l", lang, "--psm", "4")
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.Logger.Warn().Err(err).Str("image", filepath.Base(img)).Str("output", strings.TrimSpace(string(out))).Msg("tesseract failed on page")
			continue
		}
		data, err := os.ReadFile(outBase + ".txt")
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: tesseract produced no text from %d page images", ErrNoReadableText, len(images))
	}
	o.Logger.Debug().Int("pages", len(pages)).Str("lang", lang).Msg("ocr complete")
	return pages, nil
}
