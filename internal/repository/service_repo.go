package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/moreiraracing/taller-motos/pkg/database"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceRepository handles service database operations
type ServiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewServiceRepository creates a new service repository
func NewServiceRepository(db *sql.DB, logger *zap.Logger) *ServiceRepository {
	return &ServiceRepository{
		db:     db,
		logger: logger,
	}
}

const serviceColumns = `s.id, s.moto_id, s.description, s.date, s.cost, s.completed, s.image_path, s.created_at`

// invoiceRowQuery uses inner joins: a service without a moto, or a moto
// without an owner, cannot be billed and is left out.
const invoiceRowQuery = `
	SELECT ` + serviceColumns + `,
		m.id, m.client_id, m.brand, m.model, m.year, m.plate,
		c.id, c.name, c.phone, c.address
	FROM services s
	JOIN motos m ON s.moto_id = m.id
	JOIN clients c ON m.client_id = c.id
`

// Create inserts a service and sets its ID
func (r *ServiceRepository) Create(ctx context.Context, svc *models.Service) error {
	query := `
		INSERT INTO services (moto_id, description, date, cost, completed, image_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		svc.MotoID,
		svc.Description,
		svc.Date,
		svc.Cost,
		svc.Completed,
		nullString(svc.ImagePath),
	)
	if err != nil {
		r.logger.Error("Failed to create service", zap.Int64("moto_id", svc.MotoID), zap.Error(err))
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	svc.ID = id
	return nil
}

// GetByID returns the service with its moto summary, or nil when it does not exist
func (r *ServiceRepository) GetByID(ctx context.Context, id int64) (*models.Service, error) {
	query := `
		SELECT ` + serviceColumns + `, m.plate, m.brand, m.model
		FROM services s LEFT JOIN motos m ON s.moto_id = m.id
		WHERE s.id = ?
	`

	svc, err := scanServiceWithMoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get service", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

// List returns all services, newest first
func (r *ServiceRepository) List(ctx context.Context) ([]*models.Service, error) {
	query := `
		SELECT ` + serviceColumns + `, m.plate, m.brand, m.model
		FROM services s LEFT JOIN motos m ON s.moto_id = m.id
		ORDER BY s.created_at DESC, s.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list services", zap.Error(err))
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*models.Service{}
	for rows.Next() {
		svc, err := scanServiceWithMoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// ServiceUpdate holds the fields to change; nil fields are left untouched.
//
// ImagePath, when set, replaces the stored list (an empty string clears it).
// AppendImage, when non-empty, is appended after ImagePath if that was set,
// otherwise after whatever list is currently stored.
type ServiceUpdate struct {
	MotoID      *int64
	Description *string
	Date        *string
	Cost        *decimal.Decimal
	Completed   *bool
	ImagePath   *string
	AppendImage string
}

// Update applies a partial update and returns the affected row count
func (r *ServiceRepository) Update(ctx context.Context, id int64, u ServiceUpdate) (int64, error) {
	query := `
		UPDATE services SET
			moto_id = COALESCE(?, moto_id),
			description = COALESCE(?, description),
			date = COALESCE(?, date),
			cost = COALESCE(?, cost),
			completed = COALESCE(?, completed)`

	var cost, completed interface{}
	if u.Cost != nil {
		cost = *u.Cost
	}
	if u.Completed != nil {
		completed = *u.Completed
	}
	args := []interface{}{optInt64(u.MotoID), optString(u.Description), optString(u.Date), cost, completed}

	switch {
	case u.ImagePath != nil:
		final := *u.ImagePath
		if u.AppendImage != "" {
			final = models.JoinImageRefs(final, u.AppendImage)
		}
		query += `, image_path = ?`
		args = append(args, nullString(final))
	case u.AppendImage != "":
		// append in SQL so concurrent uploads to one service do not overwrite each other
		query += `, image_path = CASE WHEN image_path IS NULL OR image_path = '' THEN ? ELSE image_path || ',' || ? END`
		args = append(args, u.AppendImage, u.AppendImage)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update service", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to update service: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a service and returns the affected row count
func (r *ServiceRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete service", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to delete service: %w", err)
	}
	return result.RowsAffected()
}

// InvoiceRowsByService returns the billable row for one service
func (r *ServiceRepository) InvoiceRowsByService(ctx context.Context, serviceID int64) ([]models.InvoiceRow, error) {
	return r.queryInvoiceRows(ctx, invoiceRowQuery+` WHERE s.id = ? ORDER BY s.id`, serviceID)
}

// InvoiceRowsByMoto returns the billable rows for every service on a moto
func (r *ServiceRepository) InvoiceRowsByMoto(ctx context.Context, motoID int64) ([]models.InvoiceRow, error) {
	return r.queryInvoiceRows(ctx, invoiceRowQuery+` WHERE m.id = ? ORDER BY s.id`, motoID)
}

// InvoiceRowsByServices returns the billable rows for an explicit id list
func (r *ServiceRepository) InvoiceRowsByServices(ctx context.Context, serviceIDs []int64) ([]models.InvoiceRow, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(serviceIDs))
	for i, id := range serviceIDs {
		args[i] = id
	}
	query := invoiceRowQuery + ` WHERE s.id IN (` + database.Placeholders(len(serviceIDs)) + `) ORDER BY s.id`
	return r.queryInvoiceRows(ctx, query, args...)
}

func (r *ServiceRepository) queryInvoiceRows(ctx context.Context, query string, args ...interface{}) ([]models.InvoiceRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoice rows", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoice rows: %w", err)
	}
	defer rows.Close()

	var result []models.InvoiceRow
	for rows.Next() {
		var row models.InvoiceRow
		var date string
		var imagePath, plate, phone, address sql.NullString
		var year sql.NullInt64
		err := rows.Scan(
			&row.Service.ID,
			&row.Service.MotoID,
			&row.Service.Description,
			&date,
			&row.Service.Cost,
			&row.Service.Completed,
			&imagePath,
			&row.Service.CreatedAt,
			&row.Moto.ID,
			&row.Moto.ClientID,
			&row.Moto.Brand,
			&row.Moto.Model,
			&year,
			&plate,
			&row.Client.ID,
			&row.Client.Name,
			&phone,
			&address,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		row.Service.Date = dateOnly(date)
		row.Service.ImagePath = imagePath.String
		if year.Valid {
			y := int(year.Int64)
			row.Moto.Year = &y
		}
		row.Moto.Plate = plate.String
		row.Service.Plate = plate.String
		row.Service.Brand = row.Moto.Brand
		row.Service.Model = row.Moto.Model
		row.Client.Phone = phone.String
		row.Client.Address = address.String
		result = append(result, row)
	}
	return result, rows.Err()
}

func scanServiceWithMoto(s scanner) (*models.Service, error) {
	var svc models.Service
	var date string
	var imagePath, plate, brand, model sql.NullString
	err := s.Scan(
		&svc.ID,
		&svc.MotoID,
		&svc.Description,
		&date,
		&svc.Cost,
		&svc.Completed,
		&imagePath,
		&svc.CreatedAt,
		&plate,
		&brand,
		&model,
	)
	if err != nil {
		return nil, err
	}
	svc.Date = dateOnly(date)
	svc.ImagePath = imagePath.String
	svc.Plate = plate.String
	svc.Brand = brand.String
	svc.Model = model.String
	return &svc, nil
}
