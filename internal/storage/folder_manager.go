package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// FolderManager creates the directories uploads and invoices are written to
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// EnsureBase creates the base directory itself
func (m *FolderManager) EnsureBase() error {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		m.logger.Error("Failed to create base folder",
			zap.String("folder_path", m.baseDir),
			zap.Error(err))
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// CreateFolder creates baseDir/{name}/ and returns its full path
func (m *FolderManager) CreateFolder(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cannot create folder: empty name")
	}

	folderPath := m.GetFolderPath(name)
	if folderPath == m.baseDir {
		return "", fmt.Errorf("cannot create folder: %q has no usable characters", name)
	}

	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create folder",
			zap.String("name", name),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created folder",
		zap.String("name", name),
		zap.String("folder_path", folderPath))

	return folderPath, nil
}

// GetFolderPath returns the path for a folder without creating it
func (m *FolderManager) GetFolderPath(name string) string {
	return filepath.Join(m.baseDir, m.SanitizeFolderName(name))
}

// FolderExists checks if the folder already exists
func (m *FolderManager) FolderExists(name string) bool {
	info, err := os.Stat(m.GetFolderPath(name))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SanitizeFolderName returns a filesystem-safe version of the name.
// Only alphanumerics, hyphens and underscores survive.
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}
