package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moreiraracing/taller-motos/internal/models"
	"go.uber.org/zap"
)

// MotoRepository handles moto database operations
type MotoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMotoRepository creates a new moto repository
func NewMotoRepository(db *sql.DB, logger *zap.Logger) *MotoRepository {
	return &MotoRepository{
		db:     db,
		logger: logger,
	}
}

const motoColumns = `m.id, m.client_id, m.brand, m.model, m.year, m.plate, m.created_at, c.name`

// Create inserts a moto and sets its ID
func (r *MotoRepository) Create(ctx context.Context, moto *models.Moto) error {
	query := `INSERT INTO motos (client_id, brand, model, year, plate) VALUES (?, ?, ?, ?, ?)`

	var year interface{}
	if moto.Year != nil {
		year = *moto.Year
	}

	result, err := r.db.ExecContext(ctx, query,
		moto.ClientID,
		moto.Brand,
		moto.Model,
		year,
		nullString(moto.Plate),
	)
	if err != nil {
		r.logger.Error("Failed to create moto", zap.Int64("client_id", moto.ClientID), zap.Error(err))
		return fmt.Errorf("failed to create moto: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	moto.ID = id
	return nil
}

// GetByID returns the moto with its owner's name, or nil when it does not exist
func (r *MotoRepository) GetByID(ctx context.Context, id int64) (*models.Moto, error) {
	query := `SELECT ` + motoColumns + ` FROM motos m LEFT JOIN clients c ON m.client_id = c.id WHERE m.id = ?`

	moto, err := scanMoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get moto", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get moto: %w", err)
	}
	return moto, nil
}

// List returns all motos, newest first
func (r *MotoRepository) List(ctx context.Context) ([]*models.Moto, error) {
	query := `SELECT ` + motoColumns + ` FROM motos m LEFT JOIN clients c ON m.client_id = c.id ORDER BY m.created_at DESC, m.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list motos", zap.Error(err))
		return nil, fmt.Errorf("failed to list motos: %w", err)
	}
	defer rows.Close()

	motos := []*models.Moto{}
	for rows.Next() {
		moto, err := scanMoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan moto: %w", err)
		}
		motos = append(motos, moto)
	}
	return motos, rows.Err()
}

// MotoUpdate holds the fields to change; nil fields are left untouched
type MotoUpdate struct {
	ClientID *int64
	Brand    *string
	Model    *string
	Year     *int64
	Plate    *string
}

// Update applies a partial update and returns the affected row count
func (r *MotoRepository) Update(ctx context.Context, id int64, u MotoUpdate) (int64, error) {
	query := `
		UPDATE motos SET
			client_id = COALESCE(?, client_id),
			brand = COALESCE(?, brand),
			model = COALESCE(?, model),
			year = COALESCE(?, year),
			plate = COALESCE(?, plate)
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		optInt64(u.ClientID),
		optString(u.Brand),
		optString(u.Model),
		optInt64(u.Year),
		optString(u.Plate),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update moto", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to update moto: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a moto and returns the affected row count
func (r *MotoRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM motos WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete moto", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to delete moto: %w", err)
	}
	return result.RowsAffected()
}

func scanMoto(s scanner) (*models.Moto, error) {
	var moto models.Moto
	var year sql.NullInt64
	var plate, clientName sql.NullString
	err := s.Scan(
		&moto.ID,
		&moto.ClientID,
		&moto.Brand,
		&moto.Model,
		&year,
		&plate,
		&moto.CreatedAt,
		&clientName,
	)
	if err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		moto.Year = &y
	}
	moto.Plate = plate.String
	moto.ClientName = clientName.String
	return &moto, nil
}
