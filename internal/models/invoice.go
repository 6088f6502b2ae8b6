package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRow is one service joined with its moto and the moto's owner.
// Only services that have both are ever billed.
type InvoiceRow struct {
	Service Service
	Moto    Moto
	Client  Client
}

// InvoiceLine ties one billed service to the document it was printed on.
// Lines that share DocumentPath were bundled into the same document.
type InvoiceLine struct {
	ID           int64           `json:"id"`
	ServiceID    int64           `json:"service_id"`
	Date         string          `json:"date"` // YYYY-MM-DD
	Total        decimal.Decimal `json:"total"`
	DocumentPath string          `json:"pdf_path"`
	CreatedAt    time.Time       `json:"created_at"`
}
