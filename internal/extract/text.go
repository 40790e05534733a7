package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTextConfidence = 0.5

// extractPlainText decodes raw bytes as text. Valid UTF-8 is taken as
// is; anything else gets a Latin-1 reinterpretation. A NUL byte marks
// the content as binary outright; otherwise the printable-rune ratio
// decides whether the result is plausibly text.
func extractPlainText(data []byte) (Result, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return Result{}, errors.New("content contains NUL bytes, not plausibly text")
	}

	content := string(data)
	if !utf8.Valid(data) {
		content = decodeLatin1(data)
	}

	ratio := printableRatio(content)
	if ratio < minTextConfidence {
		return Result{}, fmt.Errorf("content is %.0f%% non-printable, not plausibly text", (1-ratio)*100)
	}

	return Result{
		Content:    strings.TrimSpace(content),
		Method:     MethodPlainText,
		Confidence: ratio,
	}, nil
}

// decodeLatin1 maps each byte to the Unicode code point of the same
// value.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func printableRatio(s string) float64 {
	if s == "" {
		return 0
	}
	printable, total := 0, 0
	for _, r := range s {
		total++
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			printable++
		case unicode.IsPrint(r):
			printable++
		}
	}
	return float64(printable) / float64(total)
}
