package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"code.sajari.com/docconv"

	"github.com/zorli-ai/docvault/internal/domain"
)

// wordDocument mirrors the pieces of word/document.xml we read.
type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Texts []wordText `xml:"t"`
}

type wordText struct {
	Value string `xml:",chardata"`
}

// extractWordDocument handles .docx and legacy .doc files. Legacy files
// are tried against the docx strategy first (mislabeled uploads are
// common), then handed to the generic converter.
func (e *Extractor) extractWordDocument(data []byte, kind domain.MediaKind) (Result, error) {
	res, err := extractDocxXML(data)
	if err == nil {
		return res, nil
	}

	var body string
	var convErr error
	if kind == domain.MediaDoc {
		body, _, convErr = docconv.ConvertDoc(bytes.NewReader(data))
	} else {
		body, _, convErr = docconv.ConvertDocx(bytes.NewReader(data))
	}
	if convErr == nil {
		if text := strings.TrimSpace(body); text != "" {
			return Result{Content: text, Method: MethodDocconv, Confidence: 1}, nil
		}
	}

	return textFallback(data, err)
}

// extractDocxXML parses word/document.xml out of the OOXML archive and
// joins paragraph runs into lines.
func extractDocxXML(data []byte) (Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx archive: %w", err)
	}

	raw, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return Result{}, err
	}

	var doc wordDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return Result{}, fmt.Errorf("parse document xml: %w", err)
	}

	var b strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Texts {
				line.WriteString(t.Value)
			}
		}
		text := strings.TrimSpace(line.String())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}

	return Result{Content: b.String(), Method: MethodDocxXML, Confidence: 1}, nil
}

// readArchiveFile returns the contents of a single named file inside a
// zip archive.
func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	return nil, errors.New(name + " not found in archive")
}
