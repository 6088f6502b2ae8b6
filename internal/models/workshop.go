package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a shop customer
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Moto is a motorcycle owned by a client
type Moto struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	Year      *int      `json:"year,omitempty"`
	Plate     string    `json:"plate"`
	CreatedAt time.Time `json:"created_at"`

	// ClientName is filled by listing queries that join the owner
	ClientName string `json:"client_name,omitempty"`
}

// Service is a single billable repair or maintenance event on one moto
type Service struct {
	ID          int64           `json:"id"`
	MotoID      int64           `json:"moto_id"`
	Description string          `json:"description"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Cost        decimal.Decimal `json:"cost"`
	Completed   bool            `json:"completed"`
	// ImagePath is the comma separated list of image references as stored
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`

	// Moto summary, filled by listing queries
	Plate string `json:"plate,omitempty"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// ImageRefs splits ImagePath into its non-empty, trimmed references
func (s *Service) ImageRefs() []string {
	return SplitImageRefs(s.ImagePath)
}

// SplitImageRefs splits a comma joined reference list
func SplitImageRefs(joined string) []string {
	var refs []string
	for _, part := range strings.Split(joined, ",") {
		if p := strings.TrimSpace(part); p != "" {
			refs = append(refs, p)
		}
	}
	return refs
}

// JoinImageRefs appends ref to an existing comma joined list
func JoinImageRefs(existing, ref string) string {
	if strings.TrimSpace(existing) == "" {
		return ref
	}
	return existing + "," + ref
}
