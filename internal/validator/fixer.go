package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
)

// Fix repairs tag nesting problems in content and returns the repaired text.
// Valid input is returned unchanged. Orphaned closing tags are removed by
// first occurrence of their exact raw text, in the order they were recorded;
// a closing tag is then appended for each unclosed element, innermost first.
//
// Removal by first occurrence is an approximation: if the same closing tag
// text appears earlier in the document for an unrelated reason, the earlier
// occurrence is removed instead.
func (v *TagValidator) Fix(content string) string {
	result := v.Validate(content)
	if result.IsValid {
		return content
	}

	logger.Debug("fixing tag nesting problems",
		logger.Int("unclosed", len(result.Unclosed)),
		logger.Int("orphaned", len(result.Orphaned)))

	fixed := content
	for _, orphan := range result.Orphaned {
		if idx := strings.Index(fixed, orphan.RawTag); idx >= 0 {
			fixed = fixed[:idx] + fixed[idx+len(orphan.RawTag):]
		}
	}

	var closers strings.Builder
	for i := len(result.Unclosed) - 1; i >= 0; i-- {
		closers.WriteString("</")
		closers.WriteString(result.Unclosed[i].Name)
		closers.WriteString(">")
	}

	return fixed + closers.String()
}

// Fix repairs content with a default TagValidator. Like Validate, it is a
// pure function of its input.
func Fix(content string) string {
	return NewTagValidator().Fix(content)
}

// FileFixer provides validation-guided repair of Markdown files on disk.
type FileFixer struct {
	validator *TagValidator
	backups   bool
}

// FileFixResult contains the result of a file fix attempt
type FileFixResult struct {
	Fixed        bool     // Whether any fixes were applied
	FixesApplied []string // List of fixes that were applied
	BackupPath   string   // Path to backup file
	Result       *types.ValidationResult
}

// NewFileFixer creates a new FileFixer. When backups is true, a .backup copy
// of each file is written before it is modified.
func NewFileFixer(validator *TagValidator, backups bool) *FileFixer {
	if validator == nil {
		validator = NewTagValidator()
	}
	return &FileFixer{validator: validator, backups: backups}
}

// FixFile repairs a single Markdown file in place.
func (f *FileFixer) FixFile(path string) (*FileFixResult, error) {
	logger.Info("attempting to fix markdown file", logger.String("file", path))

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found", err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to read file", err)
	}

	return f.fixContent(path, string(content))
}

// SmartFix validates a file first and repairs it only when defects exist.
// A clean file is never rewritten.
func (f *FileFixer) SmartFix(path string) (*FileFixResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found", err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to read file", err)
	}

	result := f.validator.Validate(string(content))
	if result.IsValid {
		logger.Info("file is valid, no fixes needed", logger.String("file", path))
		return &FileFixResult{Fixed: false, Result: result}, nil
	}

	return f.fixContent(path, string(content))
}

// fixContent applies the deterministic fixer to content and rewrites the
// file when the text changed.
func (f *FileFixer) fixContent(path, content string) (*FileFixResult, error) {
	result := &FileFixResult{
		Fixed:        false,
		FixesApplied: []string{},
	}

	validation := f.validator.Validate(content)
	result.Result = validation
	if validation.IsValid {
		return result, nil
	}

	if f.backups {
		backupPath := path + ".backup"
		if err := os.WriteFile(backupPath, []byte(content), 0644); err != nil {
			logger.Warn("failed to create backup", logger.Err(err))
		} else {
			result.BackupPath = backupPath
			logger.Debug("created backup", logger.String("path", backupPath))
		}
	}

	fixed := f.validator.Fix(content)

	for _, orphan := range validation.Orphaned {
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("Removed orphaned closing tag %s", orphan.RawTag))
	}
	if len(validation.Unclosed) > 0 {
		names := make([]string, 0, len(validation.Unclosed))
		for i := len(validation.Unclosed) - 1; i >= 0; i-- {
			names = append(names, "</"+validation.Unclosed[i].Name+">")
		}
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("Appended closing tags %s", strings.Join(names, "")))
	}

	if fixed != content {
		result.Fixed = true
		if err := os.WriteFile(path, []byte(fixed), 0644); err != nil {
			return nil, types.NewAppError(types.ErrInternal, "failed to write fixed file", err)
		}
		logger.Info("applied fixes to file",
			logger.String("file", path),
			logger.Int("fixCount", len(result.FixesApplied)))
	} else {
		// Mismatch-only defects leave the text unchanged; those need the
		// LLM fixer or manual attention.
		result.FixesApplied = result.FixesApplied[:0]
		logger.Info("no textual fixes applicable", logger.String("file", path))
	}

	return result, nil
}

// RestoreBackup restores a file from its .backup copy
func (f *FileFixer) RestoreBackup(path string) error {
	backupPath := path + ".backup"

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return types.NewAppError(types.ErrFileNotFound, "backup file not found", err)
	}

	content, err := os.ReadFile(backupPath)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to read backup", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to restore backup", err)
	}

	logger.Info("restored file from backup", logger.String("file", path))
	return nil
}

// CleanupBackup removes the .backup copy for a file
func (f *FileFixer) CleanupBackup(path string) error {
	backupPath := path + ".backup"

	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove backup", logger.Err(err))
		return err
	}

	logger.Debug("removed backup file", logger.String("path", backupPath))
	return nil
}

// FixAllMarkdownFiles repairs every Markdown file under dir. The returned
// map contains an entry for each file that was modified, keyed by its path
// relative to dir.
func (f *FileFixer) FixAllMarkdownFiles(dir string) (map[string]*FileFixResult, error) {
	results := make(map[string]*FileFixResult)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isMarkdownFile(info.Name()) {
			return nil
		}

		fixResult, err := f.SmartFix(path)
		if err != nil {
			logger.Warn("fix failed", logger.String("file", path), logger.Err(err))
			return nil
		}

		if fixResult.Fixed {
			relPath, _ := filepath.Rel(dir, path)
			results[relPath] = fixResult
		}
		return nil
	})

	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to walk directory", err)
	}

	return results, nil
}

// isMarkdownFile reports whether name has a Markdown file extension.
func isMarkdownFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}
