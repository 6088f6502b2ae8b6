package invoice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewPage(t *testing.T) {
	rows := make([]models.InvoiceRow, 16)
	for i := range rows {
		rows[i] = invoiceRow(int64(i+1), "5", fmt.Sprintf("Servicio %d", i+1))
	}
	r, _ := newTestRenderer(t, t.TempDir())
	doc, err := r.Render(context.Background(), rows, RenderMeta{Date: renderDate})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "historial.pdf")
	require.NoError(t, os.WriteFile(path, doc.Content, 0644))

	img, pages, err := PreviewPage(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	_, pages, err = PreviewPage(path, 3)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 2, pages)

	_, _, err = PreviewPage(path, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, _, err = PreviewPage(filepath.Join(t.TempDir(), "missing.pdf"), 1)
	assert.Error(t, err)
}
