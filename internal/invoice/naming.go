package invoice

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"
)

const (
	historyPrefix = "historial"
	historyExt    = ".pdf"

	// storeAttempts bounds how often a name lost to a concurrent request is retried
	storeAttempts = 5
)

// DocumentStore is where rendered documents are kept
type DocumentStore interface {
	List() ([]string, error)
	CreateExclusive(name string, content []byte) (string, error)
}

// NextHistoryName returns historial.pdf if it is free, otherwise the first
// historialN.pdf (N = 1, 2, ...) not present in existing.
func NextHistoryName(existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}
	name := historyPrefix + historyExt
	for i := 1; taken[name]; i++ {
		name = historyPrefix + strconv.Itoa(i) + historyExt
	}
	return name
}

// fallbackHistoryName is used when the store cannot be listed
func fallbackHistoryName(now time.Time) string {
	return fmt.Sprintf("%s_%d%s", historyPrefix, now.UnixMilli(), historyExt)
}

// storeDocument writes content under the next free history name. The name
// is claimed with an exclusive create, so two requests racing for the same
// name never overwrite each other; the loser picks again.
func storeDocument(store DocumentStore, content []byte, now func() time.Time, logger Logger) (name, path string, err error) {
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		existing, listErr := store.List()
		if listErr != nil {
			name = fallbackHistoryName(now())
			logger.Error("Invoice store not listable, using timestamp name", "name", name, "error", listErr)
		} else {
			name = NextHistoryName(existing)
		}

		path, err = store.CreateExclusive(name, content)
		if err == nil {
			return name, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
		logger.Info("Invoice name taken, retrying", "name", name, "attempt", attempt)
	}
	return "", "", fmt.Errorf("no free invoice name after %d attempts: %w", storeAttempts, err)
}
