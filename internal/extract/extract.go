// Package extract turns uploaded document bytes into plain text for
// chunking and indexing. Each media kind has its own strategy; formats
// without one get a single plain-text decode attempt before rejection.
package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/zorli-ai/docvault/internal/domain"
)

// Result holds the text pulled out of a document.
type Result struct {
	Content    string
	Method     string
	Confidence float64
	PageCount  int
}

// Extraction method identifiers recorded on the document row.
const (
	MethodPDFOCR      = "pdf_ocr"
	MethodImageOCR    = "image_ocr"
	MethodDocxXML     = "docx_xml"
	MethodPptxXML     = "pptx_xml"
	MethodPptxScrape  = "pptx_scrape"
	MethodDocconv     = "docconv"
	MethodSpreadsheet = "spreadsheet"
	MethodHTML        = "html"
	MethodDelimited   = "delimited"
	MethodPlainText   = "text"
)

// Options tunes format-specific extraction behavior.
type Options struct {
	// MaxPDFPages caps how many PDF pages are rendered and recognized.
	// Longer documents are truncated, not rejected.
	MaxPDFPages int

	// MinImageWidth is the width below which images are upscaled and
	// sharpened before OCR.
	MinImageWidth int

	// PresentationMinChars is the minimum amount of text a presentation
	// parsing stage must produce before its result is accepted.
	PresentationMinChars int
}

// DefaultOptions returns the extraction defaults used in production.
func DefaultOptions() Options {
	return Options{
		MaxPDFPages:          50,
		MinImageWidth:        1200,
		PresentationMinChars: 20,
	}
}

// Extractor dispatches document bytes to a format-specific strategy.
type Extractor struct {
	renderer PageRenderer
	ocr      OCREngine
	opts     Options
}

// NewExtractor creates an extractor. The renderer and OCR engine may be
// nil, in which case PDF and image extraction report failures instead of
// text.
func NewExtractor(renderer PageRenderer, ocr OCREngine, opts Options) *Extractor {
	defaults := DefaultOptions()
	if opts.MaxPDFPages <= 0 {
		opts.MaxPDFPages = defaults.MaxPDFPages
	}
	if opts.MinImageWidth <= 0 {
		opts.MinImageWidth = defaults.MinImageWidth
	}
	if opts.PresentationMinChars <= 0 {
		opts.PresentationMinChars = defaults.PresentationMinChars
	}
	return &Extractor{
		renderer: renderer,
		ocr:      ocr,
		opts:     opts,
	}
}

// Extract converts document bytes to text based on the detected media
// kind. Unknown kinds get one plain-text decode attempt and fail with
// UNSUPPORTED_FORMAT only when the bytes are not plausibly text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename, contentType string) (Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, domain.ErrNoExtractableContent
	}

	kind := domain.DetectMediaKind(filename, contentType)
	switch kind {
	case domain.MediaPDF:
		return e.extractPDF(ctx, data)
	case domain.MediaDocx, domain.MediaDoc:
		return e.extractWordDocument(data, kind)
	case domain.MediaPptx, domain.MediaPpt:
		return e.extractPresentation(data)
	case domain.MediaXlsx, domain.MediaXls:
		return e.extractSpreadsheet(data)
	case domain.MediaHTML:
		return extractHTML(data)
	case domain.MediaCSV:
		return extractDelimited(data, ',')
	case domain.MediaTSV:
		return extractDelimited(data, '\t')
	case domain.MediaPNG, domain.MediaJPEG, domain.MediaTIFF, domain.MediaBMP:
		return e.extractImage(ctx, data)
	case domain.MediaPlainText, domain.MediaMarkdown:
		return extractPlainText(data)
	default:
		res, err := extractPlainText(data)
		if err != nil {
			return Result{}, domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedFormat,
				fmt.Sprintf("no extraction strategy for %q", contentType), err)
		}
		return res, nil
	}
}

// textFallback attempts a plain-text decode after a structured parser
// failed. The original failure wins when the bytes are not plausibly
// text.
func textFallback(data []byte, cause error) (Result, error) {
	res, err := extractPlainText(data)
	if err != nil {
		return Result{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed,
			"document could not be parsed", cause)
	}
	return res, nil
}
