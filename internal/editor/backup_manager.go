// Package editor provides safe file editing for Markdown documents: backups,
// encoding normalization, and the validate-fix-revalidate workflow.
package editor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"markdown-checker/internal/logger"
)

// BackupManager manages file backups for safe editing
type BackupManager struct {
	backupDir string
}

// NewBackupManager creates a new BackupManager.
// If backupDir is empty, backups are created next to the original file.
func NewBackupManager(backupDir string) *BackupManager {
	return &BackupManager{
		backupDir: backupDir,
	}
}

// CreateBackup creates a timestamped backup of the specified file and
// returns the backup path.
func (m *BackupManager) CreateBackup(path string) (string, error) {
	logger.Debug("creating backup", logger.String("path", path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupName := fmt.Sprintf("%s.backup_%s", filepath.Base(path), timestamp)

	var backupPath string
	if m.backupDir != "" {
		if err := os.MkdirAll(m.backupDir, 0755); err != nil {
			logger.Error("failed to create backup directory", err)
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		backupPath = filepath.Join(m.backupDir, backupName)
	} else {
		backupPath = path + ".backup_" + timestamp
	}

	if err := copyFile(path, backupPath); err != nil {
		logger.Error("failed to copy file", err)
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	logger.Info("backup created successfully", logger.String("backupPath", backupPath))
	return backupPath, nil
}

// Restore restores a file from its backup
func (m *BackupManager) Restore(backupPath, originalPath string) error {
	logger.Debug("restoring from backup",
		logger.String("backupPath", backupPath),
		logger.String("originalPath", originalPath))

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	if err := copyFile(backupPath, originalPath); err != nil {
		logger.Error("failed to restore backup", err)
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	logger.Info("file restored from backup successfully")
	return nil
}

// ListBackups lists all backups for a given file, newest first
func (m *BackupManager) ListBackups(path string) ([]string, error) {
	basename := filepath.Base(path)
	searchDir := m.backupDir
	if searchDir == "" {
		searchDir = filepath.Dir(path)
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var backups []string
	prefix := basename + ".backup_"

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(searchDir, entry.Name()))
		}
	}

	// Timestamped names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	return backups, nil
}

// CleanupBackups removes old backups, keeping only the most recent keepCount
func (m *BackupManager) CleanupBackups(path string, keepCount int) error {
	backups, err := m.ListBackups(path)
	if err != nil {
		return err
	}

	for i := keepCount; i < len(backups); i++ {
		if err := os.Remove(backups[i]); err != nil {
			logger.Warn("failed to remove backup", logger.Err(err), logger.String("path", backups[i]))
		} else {
			logger.Debug("removed old backup", logger.String("path", backups[i]))
		}
	}

	return nil
}

// GetLatestBackup returns the path to the most recent backup for a file
func (m *BackupManager) GetLatestBackup(path string) (string, error) {
	backups, err := m.ListBackups(path)
	if err != nil {
		return "", err
	}

	if len(backups) == 0 {
		return "", fmt.Errorf("no backups found for file: %s", path)
	}

	return backups[0], nil
}

// copyFile copies a file from src to dst, preserving permissions
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	if err := destFile.Sync(); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}
