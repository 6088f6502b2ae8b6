package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moreiraracing/taller-motos/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository handles invoice ledger database operations
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one ledger line and sets its ID
func (r *InvoiceRepository) Create(ctx context.Context, line *models.InvoiceLine) error {
	query := `
		INSERT INTO invoices (service_id, date, total, pdf_path)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		line.ServiceID,
		line.Date,
		line.Total,
		line.DocumentPath,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice line",
			zap.Int64("service_id", line.ServiceID),
			zap.String("pdf_path", line.DocumentPath),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	line.ID = id
	return nil
}

// List returns ledger lines, newest first. When document is non-empty only
// the lines printed on that document are returned.
func (r *InvoiceRepository) List(ctx context.Context, document string) ([]*models.InvoiceLine, error) {
	query := `SELECT id, service_id, date, total, pdf_path, created_at FROM invoices`
	var args []interface{}
	if document != "" {
		query += ` WHERE pdf_path = ?`
		args = append(args, document)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoice lines", zap.String("pdf_path", document), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice lines: %w", err)
	}
	defer rows.Close()

	lines := []*models.InvoiceLine{}
	for rows.Next() {
		var line models.InvoiceLine
		var date string
		if err := rows.Scan(&line.ID, &line.ServiceID, &date, &line.Total, &line.DocumentPath, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		line.Date = dateOnly(date)
		lines = append(lines, &line)
	}
	return lines, rows.Err()
}
