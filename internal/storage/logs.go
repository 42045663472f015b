package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogStorage saves job output to files, one directory per execution.
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a new log storage handler
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveJobLog writes the output of one job run under
// <base>/<executionID>/<job>_<timestamp>.log and returns the path.
func (ls *LogStorage) SaveJobLog(executionID, job string, output string) (string, error) {
	dir := filepath.Join(ls.BaseDir, sanitize(executionID))
	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", err
	}

	// timestamp keeps reruns of the same job apart
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.log", sanitize(job), timestamp)
	filePath := filepath.Join(dir, filename)

	if err := os.WriteFile(filePath, []byte(output), 0644); err != nil {
		return "", err
	}
	return filePath, nil
}

// sanitize removes special characters from names used in filenames
func sanitize(name string) string {
	clean := ""
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean += string(r)
		}
	}
	if clean == "" {
		return "job"
	}
	return clean
}
