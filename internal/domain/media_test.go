package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMediaKind(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		expected    MediaKind
	}{
		{"pdf by extension", "report.pdf", "", MediaPDF},
		{"pdf uppercase extension", "REPORT.PDF", "application/octet-stream", MediaPDF},
		{"docx by extension", "letter.docx", "", MediaDocx},
		{"legacy doc", "letter.doc", "", MediaDoc},
		{"pptx by extension", "deck.pptx", "", MediaPptx},
		{"legacy ppt", "deck.ppt", "", MediaPpt},
		{"xlsx by extension", "sheet.xlsx", "", MediaXlsx},
		{"legacy xls", "sheet.xls", "", MediaXls},
		{"html htm variant", "page.htm", "", MediaHTML},
		{"csv", "data.csv", "", MediaCSV},
		{"tsv", "data.tsv", "", MediaTSV},
		{"markdown", "README.md", "", MediaMarkdown},
		{"plain text", "notes.txt", "", MediaPlainText},
		{"log file", "server.log", "", MediaPlainText},
		{"png", "scan.png", "", MediaPNG},
		{"jpeg jpg variant", "photo.jpg", "", MediaJPEG},
		{"tiff", "fax.tiff", "", MediaTIFF},
		{"extension wins over content type", "notes.txt", "application/pdf", MediaPlainText},
		{"content type fallback", "upload", "application/pdf", MediaPDF},
		{"content type with charset", "upload", "text/html; charset=utf-8", MediaHTML},
		{"content type case folded", "upload", "Text/Plain", MediaPlainText},
		{"octet stream no extension", "blob", "application/octet-stream", MediaUnknown},
		{"nothing known", "blob.xyz", "", MediaUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectMediaKind(tt.filename, tt.contentType))
		})
	}
}

func TestMediaKind_IsImage(t *testing.T) {
	assert.True(t, MediaPNG.IsImage())
	assert.True(t, MediaJPEG.IsImage())
	assert.True(t, MediaTIFF.IsImage())
	assert.True(t, MediaBMP.IsImage())
	assert.False(t, MediaPDF.IsImage())
	assert.False(t, MediaPlainText.IsImage())
	assert.False(t, MediaUnknown.IsImage())
}
