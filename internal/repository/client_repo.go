package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moreiraracing/taller-motos/internal/models"
	"go.uber.org/zap"
)

// ClientRepository handles client database operations
type ClientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sql.DB, logger *zap.Logger) *ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a client and sets its ID
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `INSERT INTO clients (name, phone, address) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		client.Name,
		nullString(client.Phone),
		nullString(client.Address),
	)
	if err != nil {
		r.logger.Error("Failed to create client", zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID returns the client or nil when it does not exist
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	query := `SELECT id, name, phone, address, created_at FROM clients WHERE id = ?`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// List returns all clients, newest first
func (r *ClientRepository) List(ctx context.Context) ([]*models.Client, error) {
	query := `SELECT id, name, phone, address, created_at FROM clients ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list clients", zap.Error(err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// ClientUpdate holds the fields to change; nil fields are left untouched
type ClientUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// Update applies a partial update and returns the affected row count
func (r *ClientRepository) Update(ctx context.Context, id int64, u ClientUpdate) (int64, error) {
	query := `
		UPDATE clients SET
			name = COALESCE(?, name),
			phone = COALESCE(?, phone),
			address = COALESCE(?, address)
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, optString(u.Name), optString(u.Phone), optString(u.Address), id)
	if err != nil {
		r.logger.Error("Failed to update client", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to update client: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a client and returns the affected row count
func (r *ClientRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete client", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to delete client: %w", err)
	}
	return result.RowsAffected()
}

func scanClient(s scanner) (*models.Client, error) {
	var client models.Client
	var phone, address sql.NullString
	if err := s.Scan(&client.ID, &client.Name, &phone, &address, &client.CreatedAt); err != nil {
		return nil, err
	}
	client.Phone = phone.String
	client.Address = address.String
	return &client, nil
}
