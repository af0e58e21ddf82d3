package statement

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads a PDF statement and returns its plain text, one page per
// element. Row-based extraction is tried first since it preserves the
// column layout the line parser depends on.
func ExtractText(filePath string) (pages []string, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, rowErr := page.GetTextByRow()
		if rowErr != nil {
			// Fall back to plain text for this page.
			if text, textErr := page.GetPlainText(nil); textErr == nil {
				pages = append(pages, text)
			}
			continue
		}

		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text could be extracted; the statement may be scanned or image-based")
	}

	return pages, nil
}

// ExtractTextCombined reads a PDF and returns all pages joined as one string,
// ready for ParseText.
func ExtractTextCombined(filePath string) (string, error) {
	pages, err := ExtractText(filePath)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}
