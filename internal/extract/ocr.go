// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// OCR shells out to the poppler and tesseract CLIs rather than linking
// native libraries. Both tools are ubiquitous on the platforms Ollama
// runs on, and a missing binary degrades to a clear error instead of a
// build-time dependency.

// ocrRenderDPI balances OCR accuracy against render time.
const ocrRenderDPI = 200

// renderPDFPages rasterizes every page of the PDF into outDir and
// returns the image paths in page order.
func renderPDFPages(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	prefix := filepath.Join(outDir, "page")

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(ocrRenderDPI),
		pdfPath, prefix)
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}

	// pdftoppm zero-pads page numbers, so lexicographic order is page order.
	sort.Strings(images)
	return images, nil
}

// ocrImageFile runs tesseract on one page image and returns its text.
func ocrImageFile(ctx context.Context, imagePath string) (string, error) {
	// "stdout" makes tesseract print the text instead of writing a file.
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
