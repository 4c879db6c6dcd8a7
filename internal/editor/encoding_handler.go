package editor

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"markdown-checker/internal/logger"
)

// EncodingHandler handles file encoding detection and conversion for
// Markdown documents. Documents exported from Windows editors regularly
// arrive as GBK or UTF-16; the tag scanner expects UTF-8.
type EncodingHandler struct {
	backupMgr *BackupManager
}

// NewEncodingHandler creates a new EncodingHandler
func NewEncodingHandler(backupMgr *BackupManager) *EncodingHandler {
	return &EncodingHandler{
		backupMgr: backupMgr,
	}
}

// DetectEncoding detects the encoding of a file.
// Returns: "UTF-8", "UTF-8-BOM", "GBK", "UTF-16LE", "UTF-16BE", or "UNKNOWN".
func (h *EncodingHandler) DetectEncoding(path string) (string, error) {
	logger.Debug("detecting file encoding", logger.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", err)
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	// BOM markers first
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return "UTF-8-BOM", nil
	}
	if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
		return "UTF-16LE", nil
	}
	if len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
		return "UTF-16BE", nil
	}

	if utf8.Valid(data) {
		return "UTF-8", nil
	}

	if h.isValidGBK(data) {
		return "GBK", nil
	}

	logger.Warn("unknown encoding detected", logger.String("path", path))
	return "UNKNOWN", nil
}

// isValidGBK checks if data decodes cleanly as GBK
func (h *EncodingHandler) isValidGBK(data []byte) bool {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	return utf8.Valid(decoded)
}

// ReadFileWithEncoding reads a file and returns its content as a UTF-8
// string, converting from the detected encoding when necessary.
func (h *EncodingHandler) ReadFileWithEncoding(path string) (string, error) {
	encoding, err := h.DetectEncoding(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var decoded []byte
	switch encoding {
	case "UTF-8":
		decoded = data
	case "UTF-8-BOM":
		decoded = data[3:]
	case "GBK":
		decoded, err = simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode GBK: %w", err)
		}
	case "UTF-16LE":
		decoded, err = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode UTF-16LE: %w", err)
		}
	case "UTF-16BE":
		decoded, err = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode UTF-16BE: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported encoding: %s", encoding)
	}

	return string(decoded), nil
}

// RemoveBOM removes a UTF-8 BOM marker from a file
func (h *EncodingHandler) RemoveBOM(path string) error {
	logger.Debug("removing BOM", logger.String("path", path))

	backup, err := h.backupMgr.CreateBackup(path)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) < 3 || !bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		logger.Debug("no BOM found")
		return nil
	}

	if err := os.WriteFile(path, data[3:], 0644); err != nil {
		h.backupMgr.Restore(backup, path)
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Info("BOM removed successfully", logger.String("path", path))
	return nil
}

// EnsureUTF8 normalizes a file to UTF-8 without BOM, converting from GBK or
// UTF-16 when needed.
func (h *EncodingHandler) EnsureUTF8(path string) error {
	encoding, err := h.DetectEncoding(path)
	if err != nil {
		return err
	}

	if encoding == "UTF-8" {
		return nil
	}
	if encoding == "UTF-8-BOM" {
		return h.RemoveBOM(path)
	}

	logger.Info("converting to UTF-8", logger.String("path", path), logger.String("from", encoding))

	backup, err := h.backupMgr.CreateBackup(path)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	content, err := h.ReadFileWithEncoding(path)
	if err != nil {
		h.backupMgr.Restore(backup, path)
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.backupMgr.Restore(backup, path)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// ValidateUTF8 checks if a file is valid UTF-8
func (h *EncodingHandler) ValidateUTF8(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	return utf8.Valid(data), nil
}
