package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/zorli-ai/docvault/internal/domain"
)

// OCREngine recognizes text in a raster image.
type OCREngine interface {
	RecognizeImage(img image.Image) (string, error)
}

// TesseractEngine runs OCR through a local tesseract installation.
type TesseractEngine struct {
	language string
}

// NewTesseractEngine creates an OCR engine for the given language code
// (tesseract notation, e.g. "eng").
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language}
}

// RecognizeImage implements OCREngine. A gosseract client is not safe
// for concurrent use, so each call gets its own.
func (t *TesseractEngine) RecognizeImage(img image.Image) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("set ocr language: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image for ocr: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load image into ocr: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// prepareForOCR normalizes small images before recognition. Images at
// or above MinImageWidth pass through untouched.
func (e *Extractor) prepareForOCR(img image.Image) image.Image {
	width := img.Bounds().Dx()
	if width >= e.opts.MinImageWidth {
		return img
	}
	scaled := imaging.Resize(img, width*2, 0, imaging.Lanczos)
	gray := imaging.Grayscale(scaled)
	gray = imaging.AdjustContrast(gray, 20)
	return imaging.Sharpen(gray, 1.0)
}

// extractImage decodes a raster image and recognizes its text.
func (e *Extractor) extractImage(ctx context.Context, data []byte) (Result, error) {
	if e.ocr == nil {
		return Result{}, domain.NewDomainError(domain.ErrCodeExtractionFailed,
			"image extraction requires an ocr engine")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed,
			"decode image", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	text, err := e.ocr.RecognizeImage(e.prepareForOCR(img))
	if err != nil {
		return Result{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed,
			"image ocr failed", err)
	}

	return Result{
		Content:    strings.TrimSpace(text),
		Method:     MethodImageOCR,
		Confidence: 1,
		PageCount:  1,
	}, nil
}
