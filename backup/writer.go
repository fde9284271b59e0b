package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/a2z-academy/course-backup/models"
)

// ExportWriter serializes backup payloads into a staging directory. Moving
// the file to its final destination is the download handler's job, not the
// writer's.
type ExportWriter struct {
	dir string
}

// NewExportWriter stages exports under dir, or under a fresh temp directory
// when dir is empty.
func NewExportWriter(dir string) (*ExportWriter, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "course-backup-")
		if err != nil {
			return nil, fmt.Errorf("create staging directory: %w", err)
		}
		return &ExportWriter{dir: tmp}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	return &ExportWriter{dir: dir}, nil
}

// Dir returns the staging directory.
func (w *ExportWriter) Dir() string {
	return w.dir
}

// Write serializes the payload pretty-printed and returns the staged path.
func (w *ExportWriter) Write(payload models.BackupPayload, filename string) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode backup payload: %w", err)
	}

	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}

// Validate ensures a staged export has content.
func (w *ExportWriter) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat backup file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("backup file is empty")
	}
	return nil
}
