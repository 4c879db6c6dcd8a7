package editor

import (
	"fmt"
	"strings"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
	"markdown-checker/internal/validator"
)

// FixWorkflow implements the backup-normalize-validate-fix-revalidate
// workflow over Markdown files.
type FixWorkflow struct {
	encodingHandler *EncodingHandler
	validator       *validator.TagValidator
	backupMgr       *BackupManager
}

// NewFixWorkflow creates a new FixWorkflow
func NewFixWorkflow(backupDir string) *FixWorkflow {
	backupMgr := NewBackupManager(backupDir)
	return &FixWorkflow{
		encodingHandler: NewEncodingHandler(backupMgr),
		validator:       validator.NewTagValidator(),
		backupMgr:       backupMgr,
	}
}

// NewFixWorkflowWithValidator creates a FixWorkflow using a preconfigured
// validator (for extra void elements from config).
func NewFixWorkflowWithValidator(backupDir string, v *validator.TagValidator) *FixWorkflow {
	w := NewFixWorkflow(backupDir)
	if v != nil {
		w.validator = v
	}
	return w
}

// WorkflowResult contains the result of a workflow run
type WorkflowResult struct {
	Success          bool
	FixesApplied     []string
	ValidationResult *types.ValidationResult
	BackupPath       string
	ErrorMessage     string
}

// AutoFix normalizes encoding, validates the file, repairs tag defects, and
// re-validates. The backup is restored if the repair cannot be written.
func (w *FixWorkflow) AutoFix(path string) (*WorkflowResult, error) {
	logger.Info("starting auto-fix workflow", logger.String("path", path))

	result := &WorkflowResult{
		Success:      false,
		FixesApplied: []string{},
	}

	backup, err := w.backupMgr.CreateBackup(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup: %w", err)
	}
	result.BackupPath = backup

	// Encoding normalization comes first so the scanner sees UTF-8.
	if err := w.normalizeEncoding(path, result); err != nil {
		logger.Warn("encoding normalization failed", logger.Err(err))
		// Continue anyway - encoding might be fine
	}

	content, err := w.encodingHandler.ReadFileWithEncoding(path)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to read file: %v", err)
		return result, err
	}

	validation := w.validator.Validate(content)
	result.ValidationResult = validation

	if !validation.IsValid {
		fixed := w.validator.Fix(content)
		if fixed != content {
			fixer := validator.NewFileFixer(w.validator, false)
			fixResult, err := fixer.FixFile(path)
			if err != nil {
				logger.Error("failed to apply fixes", err)
				result.ErrorMessage = fmt.Sprintf("failed to apply fixes: %v", err)
				w.backupMgr.Restore(backup, path)
				return result, err
			}
			result.FixesApplied = append(result.FixesApplied, fixResult.FixesApplied...)

			// Re-validate after fixes
			content, err = w.encodingHandler.ReadFileWithEncoding(path)
			if err != nil {
				result.ErrorMessage = fmt.Sprintf("re-read failed: %v", err)
				return result, err
			}
			validation = w.validator.Validate(content)
			result.ValidationResult = validation
		}
	}

	result.Success = validation.IsValid
	logger.Info("auto-fix workflow completed",
		logger.Bool("success", result.Success),
		logger.Int("fixCount", len(result.FixesApplied)))

	return result, nil
}

// normalizeEncoding converts the file to UTF-8 without BOM
func (w *FixWorkflow) normalizeEncoding(path string, result *WorkflowResult) error {
	encoding, err := w.encodingHandler.DetectEncoding(path)
	if err != nil {
		return err
	}

	logger.Debug("detected encoding", logger.String("encoding", encoding))

	if encoding == "UTF-8" {
		return nil
	}

	if encoding == "UTF-8-BOM" {
		if err := w.encodingHandler.RemoveBOM(path); err != nil {
			return err
		}
		result.FixesApplied = append(result.FixesApplied, "Removed UTF-8 BOM")
		return nil
	}

	if err := w.encodingHandler.EnsureUTF8(path); err != nil {
		return err
	}
	result.FixesApplied = append(result.FixesApplied,
		fmt.Sprintf("Converted encoding from %s to UTF-8", encoding))

	return nil
}

// ValidateAndFix validates a file and runs the fix workflow only when
// defects exist.
func (w *FixWorkflow) ValidateAndFix(path string) (*WorkflowResult, error) {
	logger.Info("validate and fix", logger.String("path", path))

	content, err := w.encodingHandler.ReadFileWithEncoding(path)
	if err != nil {
		return nil, err
	}

	validation := w.validator.Validate(content)
	if validation.IsValid {
		return &WorkflowResult{
			Success:          true,
			ValidationResult: validation,
			FixesApplied:     []string{},
		}, nil
	}

	return w.AutoFix(path)
}

// BatchFix applies the workflow to multiple files
func (w *FixWorkflow) BatchFix(paths []string) map[string]*WorkflowResult {
	results := make(map[string]*WorkflowResult)

	for _, path := range paths {
		logger.Info("processing file", logger.String("path", path))
		result, err := w.AutoFix(path)
		if err != nil {
			result = &WorkflowResult{
				Success:      false,
				ErrorMessage: err.Error(),
			}
		}
		results[path] = result
	}

	return results
}

// GetEncodingHandler returns the encoding handler
func (w *FixWorkflow) GetEncodingHandler() *EncodingHandler {
	return w.encodingHandler
}

// GetValidator returns the validator
func (w *FixWorkflow) GetValidator() *validator.TagValidator {
	return w.validator
}

// GetBackupManager returns the backup manager
func (w *FixWorkflow) GetBackupManager() *BackupManager {
	return w.backupMgr
}

// FormatWorkflowResult formats a WorkflowResult as a human-readable string
func FormatWorkflowResult(result *WorkflowResult) string {
	var sb strings.Builder

	sb.WriteString("Fix Result:\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")

	if result.Success {
		sb.WriteString("✓ Fix SUCCESSFUL\n\n")
	} else {
		sb.WriteString("✗ Fix FAILED\n\n")
		if result.ErrorMessage != "" {
			sb.WriteString(fmt.Sprintf("Error: %s\n\n", result.ErrorMessage))
		}
	}

	if len(result.FixesApplied) > 0 {
		sb.WriteString(fmt.Sprintf("Fixes Applied (%d):\n", len(result.FixesApplied)))
		for i, fix := range result.FixesApplied {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, fix))
		}
		sb.WriteString("\n")
	}

	if result.BackupPath != "" {
		sb.WriteString(fmt.Sprintf("Backup: %s\n\n", result.BackupPath))
	}

	if result.ValidationResult != nil {
		sb.WriteString("Validation Result:\n")
		if result.ValidationResult.IsValid {
			sb.WriteString("  ✓ Valid\n")
		} else {
			sb.WriteString(fmt.Sprintf("  ✗ Invalid (%d errors, %d warnings)\n",
				len(result.ValidationResult.Errors),
				len(result.ValidationResult.Warnings)))
		}
	}

	return sb.String()
}
