package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zorli-ai/docvault/internal/domain"
)

type stubRenderer struct {
	total       int
	err         error
	gotMaxPages int
}

func (s *stubRenderer) RenderPages(data []byte, maxPages int) ([]RenderedPage, int, error) {
	s.gotMaxPages = maxPages
	if s.err != nil {
		return nil, 0, s.err
	}
	limit := s.total
	if maxPages > 0 && limit > maxPages {
		limit = maxPages
	}
	pages := make([]RenderedPage, 0, limit)
	for i := 0; i < limit; i++ {
		pages = append(pages, RenderedPage{Number: i + 1, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))})
	}
	return pages, s.total, nil
}

// stubOCR returns canned text for consecutive calls.
type stubOCR struct {
	texts []string
	errs  []error
	calls int
}

func (s *stubOCR) RecognizeImage(img image.Image) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.texts) {
		return s.texts[i], nil
	}
	return "", nil
}

var fakePDF = []byte("%PDF-1.4 fake body for dispatch")

func TestExtractor_Extract_PDF(t *testing.T) {
	renderer := &stubRenderer{total: 2}
	ocr := &stubOCR{texts: []string{"First page words.", "Second page words."}}
	extractor := NewExtractor(renderer, ocr, Options{})

	res, err := extractor.Extract(context.Background(), fakePDF, "report.pdf", "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nFirst page words.\n\n--- Page 2 ---\nSecond page words.", res.Content)
	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestExtractor_Extract_PDFPageCap(t *testing.T) {
	renderer := &stubRenderer{total: 3}
	ocr := &stubOCR{texts: []string{"only page rendered"}}
	extractor := NewExtractor(renderer, ocr, Options{MaxPDFPages: 1})

	res, err := extractor.Extract(context.Background(), fakePDF, "long.pdf", "")

	require.NoError(t, err)
	assert.Equal(t, 1, renderer.gotMaxPages)
	assert.Equal(t, "--- Page 1 ---\nonly page rendered", res.Content)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, 1, ocr.calls)
}

func TestExtractor_Extract_PDFSkipsFailedPages(t *testing.T) {
	renderer := &stubRenderer{total: 3}
	ocr := &stubOCR{
		texts: []string{"page one", "", "page three"},
		errs:  []error{nil, errors.New("tesseract crashed"), nil},
	}
	extractor := NewExtractor(renderer, ocr, Options{})

	res, err := extractor.Extract(context.Background(), fakePDF, "flaky.pdf", "")

	require.NoError(t, err)
	assert.Contains(t, res.Content, "--- Page 1 ---")
	assert.NotContains(t, res.Content, "--- Page 2 ---")
	assert.Contains(t, res.Content, "--- Page 3 ---")
	assert.InDelta(t, 2.0/3.0, res.Confidence, 0.0001)
}

func TestExtractor_Extract_PDFAllPagesFail(t *testing.T) {
	renderer := &stubRenderer{total: 2}
	ocr := &stubOCR{errs: []error{errors.New("boom"), errors.New("boom")}}
	extractor := NewExtractor(renderer, ocr, Options{})

	_, err := extractor.Extract(context.Background(), fakePDF, "dead.pdf", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domainCode(t, err))
}

func TestExtractor_Extract_PDFRenderErrorFallsBack(t *testing.T) {
	renderer := &stubRenderer{err: errors.New("not a pdf")}
	extractor := NewExtractor(renderer, &stubOCR{}, Options{})

	// Binary payload: the text fallback must not rescue it.
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x00, 0x01}, 20)...)

	_, err := extractor.Extract(context.Background(), data, "corrupt.pdf", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domainCode(t, err))
}

func TestExtractor_Extract_PDFMislabeledTextRescued(t *testing.T) {
	renderer := &stubRenderer{err: errors.New("not a pdf")}
	extractor := NewExtractor(renderer, &stubOCR{}, Options{})

	res, err := extractor.Extract(context.Background(), []byte("just words in a renamed file"), "memo.pdf", "")

	require.NoError(t, err)
	assert.Equal(t, MethodPlainText, res.Method)
}

func TestExtractor_Extract_PDFEmptyDocument(t *testing.T) {
	renderer := &stubRenderer{total: 0}
	extractor := NewExtractor(renderer, &stubOCR{}, Options{})

	res, err := extractor.Extract(context.Background(), fakePDF, "empty.pdf", "")

	require.NoError(t, err)
	assert.Empty(t, res.Content)
	assert.Equal(t, MethodPDFOCR, res.Method)
}

func TestExtractor_Extract_PDFWithoutEngines(t *testing.T) {
	extractor := NewExtractor(nil, nil, Options{})

	_, err := extractor.Extract(context.Background(), fakePDF, "report.pdf", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domainCode(t, err))
}

func TestExtractor_Extract_PDFCancelled(t *testing.T) {
	renderer := &stubRenderer{total: 2}
	extractor := NewExtractor(renderer, &stubOCR{texts: []string{"a", "b"}}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extractor.Extract(ctx, fakePDF, "report.pdf", "")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_Extract_Image(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 30))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	ocr := &stubOCR{texts: []string{"  Receipt total: 42.00  \n"}}
	extractor := NewExtractor(nil, ocr, Options{})

	res, err := extractor.Extract(context.Background(), buf.Bytes(), "receipt.png", "image/png")

	require.NoError(t, err)
	assert.Equal(t, "Receipt total: 42.00", res.Content)
	assert.Equal(t, MethodImageOCR, res.Method)
	assert.Equal(t, 1, res.PageCount)
}

func TestExtractor_Extract_ImageCorrupt(t *testing.T) {
	extractor := NewExtractor(nil, &stubOCR{}, Options{})

	_, err := extractor.Extract(context.Background(), []byte("not an image"), "photo.jpg", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domainCode(t, err))
}

func TestExtractor_Extract_ImageWithoutEngine(t *testing.T) {
	extractor := NewExtractor(nil, nil, Options{})

	_, err := extractor.Extract(context.Background(), []byte("PNGish"), "photo.png", "")

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domainCode(t, err))
}

func TestExtractor_PrepareForOCR_UpscalesSmallImages(t *testing.T) {
	extractor := NewExtractor(nil, nil, Options{MinImageWidth: 1200})
	small := image.NewRGBA(image.Rect(0, 0, 100, 40))

	out := extractor.prepareForOCR(small)

	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 80, out.Bounds().Dy())
}

func TestExtractor_PrepareForOCR_PassesThroughLargeImages(t *testing.T) {
	extractor := NewExtractor(nil, nil, Options{MinImageWidth: 1200})
	large := image.NewRGBA(image.Rect(0, 0, 1300, 500))

	out := extractor.prepareForOCR(large)

	assert.Same(t, large, out)
}
