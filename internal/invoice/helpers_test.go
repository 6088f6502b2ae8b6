package invoice

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
}

// recordingLogger keeps every message so tests can assert on what was logged
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {
	l.add("info", msg)
}

func (l *recordingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.add("error", msg)
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 14))
	for x := 0; x < 24; x++ {
		for y := 0; y < 14; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 14))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func invoiceRow(serviceID int64, cost string, description string) models.InvoiceRow {
	return models.InvoiceRow{
		Service: models.Service{
			ID:          serviceID,
			MotoID:      7,
			Description: description,
			Date:        "2024-01-06",
			Cost:        decimal.RequireFromString(cost),
		},
		Moto:   models.Moto{ID: 7, ClientID: 3, Brand: "Yamaha", Model: "FZ 2.0", Plate: "IB-123"},
		Client: models.Client{ID: 3, Name: "José Muñoz", Phone: "0991112222", Address: "Calle Sucre"},
	}
}
