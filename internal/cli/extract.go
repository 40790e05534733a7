package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zorli-ai/docvault/internal/extract"
)

// ExtractCmd returns the extract command, which runs the text
// extraction pipeline against a local file. Useful for checking what
// the pipeline would pull out of a document without uploading it.
func ExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text from a local document",
		Long:  "Run the text extraction pipeline against a local file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}

	cmd.Flags().String("language", "eng", "Tesseract language for OCR")
	cmd.Flags().Int("max-pages", 0, "Maximum PDF pages to process (0 uses the default)")
	cmd.Flags().Bool("text-only", false, "Print only the extracted text")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	language, _ := cmd.Flags().GetString("language")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	textOnly, _ := cmd.Flags().GetBool("text-only")

	extractor := extract.NewExtractor(
		extract.NewFitzRenderer(),
		extract.NewTesseractEngine(language),
		extract.Options{MaxPDFPages: maxPages},
	)

	result, err := extractor.Extract(cmd.Context(), data, filepath.Base(path), "")
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if textOnly {
		fmt.Println(result.Content)
		return nil
	}

	fmt.Printf("method:     %s\n", result.Method)
	fmt.Printf("confidence: %.2f\n", result.Confidence)
	if result.PageCount > 0 {
		fmt.Printf("pages:      %d\n", result.PageCount)
	}
	fmt.Printf("characters: %d\n", len(result.Content))
	fmt.Println()
	fmt.Println(result.Content)
	return nil
}
