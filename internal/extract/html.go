package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	headBlockPattern   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBreakPattern  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>|<br\s*/?>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
	spaceRunPattern    = regexp.MustCompile(`[ \t]+`)
)

// extractHTML strips markup down to readable text. The head, script,
// and style blocks are dropped entirely; closing block elements become
// line breaks so document structure survives.
func extractHTML(data []byte) (Result, error) {
	content := string(data)

	content = headBlockPattern.ReplaceAllString(content, " ")
	content = scriptBlockPattern.ReplaceAllString(content, " ")
	content = styleBlockPattern.ReplaceAllString(content, " ")
	content = htmlCommentPattern.ReplaceAllString(content, " ")
	content = blockBreakPattern.ReplaceAllString(content, "\n")
	content = tagPattern.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)
	content = spaceRunPattern.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return Result{
		Content:    strings.Join(lines, "\n"),
		Method:     MethodHTML,
		Confidence: 1,
	}, nil
}
