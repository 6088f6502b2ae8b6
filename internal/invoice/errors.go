package invoice

import (
	"errors"
	"fmt"

	"github.com/moreiraracing/taller-motos/internal/models"
)

var (
	// ErrInvalidRequest means the selector was missing, empty or malformed
	ErrInvalidRequest = errors.New("invalid invoice request")

	// ErrNotFound means the selector matched no billable service
	ErrNotFound = errors.New("no services found for invoice")
)

// RenderError wraps a failure to build or store the document.
// No ledger line has been written when it is returned.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("invoice %s failed: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when the document was stored but the ledger
// loop stopped early. Written holds the lines persisted before the failure;
// they are not rolled back.
type PersistenceError struct {
	ServiceID int64
	Written   []models.InvoiceLine
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("invoice line for service %d not recorded (%d written before failure): %v",
		e.ServiceID, len(e.Written), e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
