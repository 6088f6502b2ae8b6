package invoice

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

const previewDPI = 96

// PreviewPage renders one page (1-based) of the PDF at path as PNG and
// returns it with the document's page count. A page outside the document
// matches ErrInvalidRequest.
func PreviewPage(path string, page int) ([]byte, int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if page < 1 || page > pages {
		return nil, pages, invalidf("page %d out of range 1-%d", page, pages)
	}

	png, err := doc.ImagePNG(page-1, previewDPI)
	if err != nil {
		return nil, pages, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return png, pages, nil
}
