// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract turns uploaded files into chat context.
//
// PDFs become plain text: the embedded text layer is read first, and
// scanned documents fall back to OCR page images. Images are passed
// through untouched for vision models to interpret.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ExtractError represents a file-extraction error.
type ExtractError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing extraction errors.
func (e *ExtractError) Is(target error) bool {
	t, ok := target.(*ExtractError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// ErrorType categorizes extraction errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnsupported
	ErrTypeTooLarge
	ErrTypeRead
	ErrTypeEmpty
	ErrTypeOCR
)

// Sentinel errors for easy checking.
var (
	ErrUnsupportedType = &ExtractError{Type: ErrTypeUnsupported, Message: "unsupported file type"}
	ErrFileTooLarge    = &ExtractError{Type: ErrTypeTooLarge, Message: "file exceeds upload size limit"}
	ErrNoText          = &ExtractError{Type: ErrTypeEmpty, Message: "no text could be extracted"}
)

// =============================================================================
// BLOB TYPE
// =============================================================================

// Kind identifies what an uploaded file extracted into.
type Kind int

const (
	KindPDF Kind = iota
	KindImage
)

// Blob is the result of extracting one uploaded file. Exactly one of
// Text or Image carries the payload, selected by Kind.
type Blob struct {
	Kind Kind
	Name string

	// Text is the extracted document text (PDFs only).
	Text string

	// Image is the raw image bytes (images only).
	Image []byte

	// OCRUsed records whether the text came from OCR rather than the
	// PDF's embedded text layer.
	OCRUsed bool
}

// ImageBase64 returns the image payload encoded for the Ollama API.
func (b *Blob) ImageBase64() string {
	if len(b.Image) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b.Image)
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// DefaultMaxUploadBytes limits uploaded file size (32 MiB).
const DefaultMaxUploadBytes = 32 << 20

// StatusFunc receives human-readable progress lines during slow
// operations (OCR in particular).
type StatusFunc func(status string)

// Extractor converts files into Blobs.
type Extractor struct {
	// MaxUploadBytes rejects files larger than this (default 32 MiB).
	MaxUploadBytes int64

	// Status, if set, receives progress updates.
	Status StatusFunc

	// Overridable pipeline stages. Tests swap these; production code
	// leaves them nil and gets the real implementations.
	pdfText     func(path string) ([]string, error)
	renderPages func(ctx context.Context, pdfPath, outDir string) ([]string, error)
	ocrPage     func(ctx context.Context, imagePath string) (string, error)
}

// NewExtractor creates an extractor with default limits and the real
// PDF and OCR pipeline.
func NewExtractor() *Extractor {
	return &Extractor{
		MaxUploadBytes: DefaultMaxUploadBytes,
		pdfText:        readPDFText,
		renderPages:    renderPDFPages,
		ocrPage:        ocrImageFile,
	}
}

// imageExtensions are the image types passed through for vision models.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ExtractFile converts the file at path into a Blob. PDFs yield text,
// images yield raw bytes; anything else is rejected.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to stat file", Cause: err}
	}
	if info.Size() > e.maxBytes() {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return e.extractPDF(ctx, path)
	case imageExtensions[ext]:
		return e.extractImage(path)
	default:
		return nil, ErrUnsupportedType
	}
}

// ExtractBytes converts in-memory file data into a Blob. The name's
// extension selects the handling, as in ExtractFile. PDF data is
// staged to a temp file because the page pipeline works on paths.
func (e *Extractor) ExtractBytes(ctx context.Context, name string, data []byte) (*Blob, error) {
	if int64(len(data)) > e.maxBytes() {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		tmp, err := os.CreateTemp("", "theseus-upload-*.pdf")
		if err != nil {
			return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to stage PDF", Cause: err}
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to stage PDF", Cause: err}
		}
		if err := tmp.Close(); err != nil {
			return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to stage PDF", Cause: err}
		}
		blob, err := e.extractPDF(ctx, tmp.Name())
		if blob != nil {
			blob.Name = filepath.Base(name)
		}
		return blob, err
	case imageExtensions[ext]:
		return &Blob{Kind: KindImage, Name: filepath.Base(name), Image: data}, nil
	default:
		return nil, ErrUnsupportedType
	}
}

func (e *Extractor) maxBytes() int64 {
	if e.MaxUploadBytes > 0 {
		return e.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (e *Extractor) status(s string) {
	if e.Status != nil {
		e.Status(s)
	}
}

// =============================================================================
// IMAGE PASS-THROUGH
// =============================================================================

// extractImage reads the image verbatim. No decoding happens here; the
// vision model receives the original bytes.
func (e *Extractor) extractImage(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to read image", Cause: err}
	}

	return &Blob{
		Kind:  KindImage,
		Name:  filepath.Base(path),
		Image: data,
	}, nil
}

// =============================================================================
// PDF EXTRACTION
// =============================================================================

// extractPDF reads the text layer first and falls back to OCR when the
// document carries no usable text (scanned PDFs).
func (e *Extractor) extractPDF(ctx context.Context, path string) (*Blob, error) {
	name := filepath.Base(path)

	e.status("Reading " + name + "...")
	pages, err := e.pdfText(path)
	if err != nil {
		return nil, &ExtractError{Type: ErrTypeRead, Message: "failed to read PDF", Cause: err}
	}

	text := joinPages(pages)
	if strings.TrimSpace(text) != "" {
		e.status(fmt.Sprintf("Extracted %d characters from %s", len(text), name))
		return &Blob{Kind: KindPDF, Name: name, Text: text}, nil
	}

	// No text layer: scanned document. OCR each page image.
	e.status("No text layer in " + name + ", running OCR...")
	text, err = e.ocrPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	return &Blob{Kind: KindPDF, Name: name, Text: text, OCRUsed: true}, nil
}

// ocrPDF renders every page to an image and OCRs them one at a time.
// A page that fails to OCR is skipped; the remaining pages still
// contribute text.
func (e *Extractor) ocrPDF(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "theseus-ocr-")
	if err != nil {
		return "", &ExtractError{Type: ErrTypeOCR, Message: "failed to create temp dir", Cause: err}
	}
	defer os.RemoveAll(tmpDir)

	images, err := e.renderPages(ctx, path, tmpDir)
	if err != nil {
		return "", &ExtractError{Type: ErrTypeOCR, Message: "failed to render PDF pages", Cause: err}
	}

	var sb strings.Builder
	for i, img := range images {
		e.status(fmt.Sprintf("OCR page %d/%d...", i+1, len(images)))

		pageText, err := e.ocrPage(ctx, img)
		if err != nil {
			continue // Skip unreadable pages
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}

	return sb.String(), nil
}

// joinPages concatenates non-empty page texts with blank lines between.
func joinPages(pages []string) string {
	var sb strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p)
	}
	return sb.String()
}
