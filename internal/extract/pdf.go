package extract

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/zorli-ai/docvault/internal/domain"
)

// RenderedPage pairs a rasterized page with its 1-based page number.
type RenderedPage struct {
	Number int
	Image  image.Image
}

// PageRenderer rasterizes the pages of a paged document so they can be
// run through OCR.
type PageRenderer interface {
	// RenderPages rasterizes up to maxPages pages and reports the total
	// page count of the document. Pages that fail to render are skipped
	// rather than treated as errors.
	RenderPages(data []byte, maxPages int) ([]RenderedPage, int, error)
}

// FitzRenderer rasterizes PDF pages with MuPDF.
type FitzRenderer struct{}

// NewFitzRenderer creates a MuPDF-backed page renderer.
func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

// RenderPages implements PageRenderer.
func (r *FitzRenderer) RenderPages(data []byte, maxPages int) ([]RenderedPage, int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	limit := total
	if maxPages > 0 && limit > maxPages {
		limit = maxPages
	}

	pages := make([]RenderedPage, 0, limit)
	for i := 0; i < limit; i++ {
		img, err := doc.Image(i)
		if err != nil {
			log.Printf("Skipping unrenderable pdf page %d: %v", i+1, err)
			continue
		}
		pages = append(pages, RenderedPage{Number: i + 1, Image: img})
	}
	return pages, total, nil
}

// extractPDF renders each page and recognizes it with OCR. Per-page
// failures skip the page; the extraction fails only when no page at all
// could be recognized.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	if e.renderer == nil || e.ocr == nil {
		return Result{}, domain.NewDomainError(domain.ErrCodeExtractionFailed,
			"pdf extraction requires a page renderer and an ocr engine")
	}

	pages, total, err := e.renderer.RenderPages(data, e.opts.MaxPDFPages)
	if err != nil {
		return textFallback(data, err)
	}
	if total == 0 {
		return Result{Method: MethodPDFOCR}, nil
	}

	attempted := total
	if attempted > e.opts.MaxPDFPages {
		attempted = e.opts.MaxPDFPages
	}

	var b strings.Builder
	recognized := 0
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := e.ocr.RecognizeImage(page.Image)
		if err != nil {
			log.Printf("Skipping pdf page %d after ocr failure: %v", page.Number, err)
			continue
		}
		recognized++

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", page.Number, text)
	}

	if recognized == 0 {
		return Result{}, domain.NewDomainError(domain.ErrCodeExtractionFailed,
			"no pdf page could be rendered and recognized")
	}

	return Result{
		Content:    b.String(),
		Method:     MethodPDFOCR,
		Confidence: float64(recognized) / float64(attempted),
		PageCount:  total,
	}, nil
}
