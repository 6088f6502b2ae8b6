// internal/storage/file_storage.go
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFile writes content to name inside the base directory, replacing any existing file
	SaveFile(name string, content []byte) (string, error)

	// CreateExclusive writes content to name, failing with fs.ErrExist if it is already taken
	CreateExclusive(name string, content []byte) (string, error)

	// List returns the names of the regular files directly under the base directory
	List() ([]string, error)

	Exists(name string) bool

	// Open opens a stored file for reading
	Open(name string) (*os.File, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the directory files are stored under
func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}

// Path returns the full path name would be stored at
func (s *LocalFileStorage) Path(name string) string {
	return filepath.Join(s.baseDir, name)
}

// SaveFile writes content to name, creating parent directories as needed
func (s *LocalFileStorage) SaveFile(name string, content []byte) (string, error) {
	fullPath := s.Path(name)
	if err := s.prepare(fullPath); err != nil {
		return "", err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// CreateExclusive writes content to a file that must not exist yet and
// syncs it to disk before returning. A name collision returns an error
// matching fs.ErrExist and leaves the existing file untouched.
func (s *LocalFileStorage) CreateExclusive(name string, content []byte) (string, error) {
	fullPath := s.Path(name)
	if err := s.prepare(fullPath); err != nil {
		return "", err
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("file %s already exists: %w", name, err)
		}
		s.logger.Error("Failed to create file", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(fullPath)
		s.logger.Error("Failed to write file", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(fullPath)
		s.logger.Error("Failed to sync file", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	s.logger.Debug("File created",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// List returns the sorted names of regular files in the base directory.
// A base directory that does not exist yet lists as empty.
func (s *LocalFileStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.baseDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether name is a regular file inside the base directory
func (s *LocalFileStorage) Exists(name string) bool {
	fullPath := s.Path(name)
	if s.ValidatePath(fullPath) != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Open opens name for reading after checking it stays inside the base directory
func (s *LocalFileStorage) Open(name string) (*os.File, error) {
	fullPath := s.Path(name)
	if err := s.ValidatePath(fullPath); err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (s *LocalFileStorage) prepare(fullPath string) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// the base itself is not a file name
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
