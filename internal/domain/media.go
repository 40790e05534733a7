package domain

import (
	"path/filepath"
	"strings"
)

// MediaKind identifies the document family an upload belongs to.
// Extraction strategy is chosen per kind.
type MediaKind string

const (
	MediaPDF       MediaKind = "pdf"
	MediaDocx      MediaKind = "docx"
	MediaDoc       MediaKind = "doc"
	MediaPptx      MediaKind = "pptx"
	MediaPpt       MediaKind = "ppt"
	MediaXlsx      MediaKind = "xlsx"
	MediaXls       MediaKind = "xls"
	MediaHTML      MediaKind = "html"
	MediaCSV       MediaKind = "csv"
	MediaTSV       MediaKind = "tsv"
	MediaMarkdown  MediaKind = "markdown"
	MediaPlainText MediaKind = "text"
	MediaPNG       MediaKind = "png"
	MediaJPEG      MediaKind = "jpeg"
	MediaTIFF      MediaKind = "tiff"
	MediaBMP       MediaKind = "bmp"
	MediaUnknown   MediaKind = "unknown"
)

var extensionKinds = map[string]MediaKind{
	".pdf":      MediaPDF,
	".docx":     MediaDocx,
	".doc":      MediaDoc,
	".pptx":     MediaPptx,
	".ppt":      MediaPpt,
	".xlsx":     MediaXlsx,
	".xls":      MediaXls,
	".html":     MediaHTML,
	".htm":      MediaHTML,
	".csv":      MediaCSV,
	".tsv":      MediaTSV,
	".md":       MediaMarkdown,
	".markdown": MediaMarkdown,
	".txt":      MediaPlainText,
	".log":      MediaPlainText,
	".png":      MediaPNG,
	".jpg":      MediaJPEG,
	".jpeg":     MediaJPEG,
	".tif":      MediaTIFF,
	".tiff":     MediaTIFF,
	".bmp":      MediaBMP,
}

var contentTypeKinds = map[string]MediaKind{
	"application/pdf": MediaPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   MediaDocx,
	"application/msword": MediaDoc,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": MediaPptx,
	"application/vnd.ms-powerpoint": MediaPpt,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         MediaXlsx,
	"application/vnd.ms-excel":      MediaXls,
	"text/html":                     MediaHTML,
	"text/csv":                      MediaCSV,
	"text/tab-separated-values":     MediaTSV,
	"text/markdown":                 MediaMarkdown,
	"text/plain":                    MediaPlainText,
	"image/png":                     MediaPNG,
	"image/jpeg":                    MediaJPEG,
	"image/tiff":                    MediaTIFF,
	"image/bmp":                     MediaBMP,
}

// DetectMediaKind resolves the media kind from the filename extension,
// falling back to the declared content type. Extensions win because
// upload clients routinely send application/octet-stream.
func DetectMediaKind(filename, contentType string) MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}

	mediaType := contentType
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	if kind, ok := contentTypeKinds[mediaType]; ok {
		return kind
	}

	return MediaUnknown
}

// IsImage reports whether the kind is a raster image handled by OCR.
func (k MediaKind) IsImage() bool {
	switch k {
	case MediaPNG, MediaJPEG, MediaTIFF, MediaBMP:
		return true
	}
	return false
}
