// Package results provides check report management functionality.
// It handles storing, listing, and managing validation reports by source.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"markdown-checker/internal/types"
)

// reportFileName is the file each report directory stores its data in.
const reportFileName = "report.json"

// ReportManager manages check reports stored in the user directory
type ReportManager struct {
	baseDir string // Base directory for storing reports (e.g., ~/markdown-checker-reports)
}

// NewReportManager creates a new ReportManager with the specified base directory.
// If baseDir is empty, uses the default location in the user's home directory.
func NewReportManager(baseDir string) (*ReportManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, "markdown-checker-reports")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &ReportManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the base directory for reports
func (m *ReportManager) GetBaseDir() string {
	return m.baseDir
}

// SourceID derives a stable identifier for a source (file path, URL, or
// literal text). Paths and URLs are sanitized directly; long or unsafe
// sources fall back to an MD5-based identifier.
func SourceID(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}

	safe := sanitizeSource(source)
	if len(safe) > 0 && len(safe) <= 100 {
		return safe
	}

	sum := md5.Sum([]byte(source))
	return "md5_" + hex.EncodeToString(sum[:])[:16]
}

// GetReportDir returns the directory path for a specific source
func (m *ReportManager) GetReportDir(sourceID string) string {
	return filepath.Join(m.baseDir, sourceID)
}

// SaveReport saves a check report. The report's SourceID is derived from its
// Source when empty.
func (m *ReportManager) SaveReport(report *types.CheckReport) error {
	if report.SourceID == "" {
		report.SourceID = SourceID(report.Source)
	}
	if report.SourceID == "" {
		return os.ErrInvalid
	}
	if report.CheckedAt == 0 {
		report.CheckedAt = time.Now().UnixMilli()
	}

	reportDir := m.GetReportDir(report.SourceID)
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(reportDir, reportFileName), data, 0644)
}

// LoadReport loads a check report by source ID
func (m *ReportManager) LoadReport(sourceID string) (*types.CheckReport, error) {
	reportPath := filepath.Join(m.GetReportDir(sourceID), reportFileName)

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, err
	}

	var report types.CheckReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

// ListReports returns all stored reports, newest first
func (m *ReportManager) ListReports() ([]*types.CheckReport, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.CheckReport{}, nil
		}
		return nil, err
	}

	var reports []*types.CheckReport
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.baseDir, entry.Name(), reportFileName))
		if err != nil {
			continue // Skip directories without a report
		}

		var report types.CheckReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}

		reports = append(reports, &report)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CheckedAt > reports[j].CheckedAt
	})

	return reports, nil
}

// DeleteReport deletes the stored report for a source
func (m *ReportManager) DeleteReport(sourceID string) error {
	return os.RemoveAll(m.GetReportDir(sourceID))
}

// ReportExists checks if a report exists for the given source ID
func (m *ReportManager) ReportExists(sourceID string) bool {
	_, err := os.Stat(filepath.Join(m.GetReportDir(sourceID), reportFileName))
	return err == nil
}

// ListInvalidReports returns reports whose last validation found defects and
// that have not been fixed yet
func (m *ReportManager) ListInvalidReports() ([]*types.CheckReport, error) {
	reports, err := m.ListReports()
	if err != nil {
		return nil, err
	}

	var invalid []*types.CheckReport
	for _, report := range reports {
		if report.Result != nil && !report.Result.IsValid && !report.Fixed {
			invalid = append(invalid, report)
		}
	}

	return invalid, nil
}

// MarkFixed records that a source has been repaired, with the fixes applied
func (m *ReportManager) MarkFixed(sourceID string, fixesApplied []string) error {
	report, err := m.LoadReport(sourceID)
	if err != nil {
		return err
	}

	report.Fixed = true
	report.FixesApplied = fixesApplied
	report.CheckedAt = time.Now().UnixMilli()

	return m.SaveReport(report)
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// sanitizeSource converts a source string to a safe directory name
func sanitizeSource(source string) string {
	source = strings.TrimPrefix(source, "https://")
	source = strings.TrimPrefix(source, "http://")

	var sb strings.Builder
	for _, r := range source {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	return strings.Trim(sb.String(), "_")
}
