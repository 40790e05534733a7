package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
)

// Slide text lives in arbitrarily nested DrawingML trees (placeholders,
// tables, group shapes, floating text boxes), so parsing walks the token
// stream instead of a fixed struct. Three stages run in order, each
// accepted only when it yields at least PresentationMinChars of text:
//
//  1. structural walk collecting <a:t> leaves per paragraph
//  2. raw character-data scrape of the slide parts
//  3. generic office converter
//
// Legacy .ppt goes through the same chain; its binary container fails
// the zip stages immediately and lands on the converter.
func (e *Extractor) extractPresentation(data []byte) (Result, error) {
	minChars := e.opts.PresentationMinChars

	if reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		slides, err := collectSlides(reader, collectDrawingText)
		if err == nil {
			if content, textLen := renderSlides(slides); textLen >= minChars {
				return Result{
					Content:    content,
					Method:     MethodPptxXML,
					Confidence: 1,
					PageCount:  len(slides),
				}, nil
			}
		}

		slides, err = collectSlides(reader, scrapeCharData)
		if err == nil {
			if content, textLen := renderSlides(slides); textLen >= minChars {
				return Result{
					Content:    content,
					Method:     MethodPptxScrape,
					Confidence: 1,
					PageCount:  len(slides),
				}, nil
			}
		}
	}

	if body, _, err := docconv.ConvertPptx(bytes.NewReader(data)); err == nil {
		if text := strings.TrimSpace(body); utf8.RuneCountInString(text) >= minChars {
			return Result{Content: text, Method: MethodDocconv, Confidence: 1}, nil
		}
	}

	return textFallback(data, errors.New("no presentation stage produced usable text"))
}

type slideText struct {
	number int
	lines  []string
}

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// collectSlides runs a per-part collector over every slide part in the
// archive, in slide-number order. Parts that fail to open or parse are
// skipped.
func collectSlides(reader *zip.Reader, collect func(io.Reader) ([]string, error)) ([]slideText, error) {
	type slidePart struct {
		number int
		file   *zip.File
	}

	var parts []slidePart
	for _, f := range reader.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		parts = append(parts, slidePart{number: n, file: f})
	}
	if len(parts) == 0 {
		return nil, errors.New("no slide parts in archive")
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].number < parts[j].number })

	slides := make([]slideText, 0, len(parts))
	for _, part := range parts {
		rc, err := part.file.Open()
		if err != nil {
			continue
		}
		lines, err := collect(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slides = append(slides, slideText{number: part.number, lines: lines})
	}
	return slides, nil
}

// renderSlides joins slide lines under per-slide markers and reports how
// much actual text (markers excluded) was collected.
func renderSlides(slides []slideText) (content string, textLen int) {
	var b strings.Builder
	for _, s := range slides {
		if len(s.lines) == 0 {
			continue
		}
		text := strings.Join(s.lines, "\n")
		textLen += utf8.RuneCountInString(text)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Slide %d ---\n%s", s.number, text)
	}
	return b.String(), textLen
}

const maxSlideDepth = 128

// collectDrawingText walks a slide part collecting every <a:t> text
// leaf, grouped into lines by the enclosing <a:p> paragraph. This
// covers placeholders, tables, and floating text boxes alike.
func collectDrawingText(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines  []string
		para   strings.Builder
		inText bool
		depth  int
	)
	flush := func() {
		if s := strings.TrimSpace(para.String()); s != "" {
			lines = append(lines, s)
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse slide xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxSlideDepth {
				return nil, fmt.Errorf("slide xml nested deeper than %d elements", maxSlideDepth)
			}
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()
	return lines, nil
}

// scrapeCharData pulls every character-data node out of a slide part
// without interpreting structure. Recovery path for slides whose object
// tree defeats the structural walk.
func scrapeCharData(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var lines []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse slide xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if s := strings.TrimSpace(string(cd)); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return lines, nil
}
