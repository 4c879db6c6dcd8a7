// Package parser provides input classification for the markdown checker.
package parser

import (
	"os"
	"strings"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
)

// markdownExtensions are the file extensions treated as Markdown documents.
var markdownExtensions = []string{".md", ".markdown", ".mdown", ".html", ".htm"}

// ParseInput analyzes the input string and determines its type.
// It returns the InputType and an error if the input is invalid.
//
// Input type rules:
// - Starts with http:// or https:// → URL type
// - Existing directory path → Dir type
// - Existing file, or path with a markdown extension → File type
// - Contains a tag-like substring or a newline → Literal type (raw document text)
// - Otherwise → error (invalid input)
func ParseInput(input string) (types.InputType, error) {
	logger.Debug("parsing input", logger.String("input", truncateForLog(input)))

	if input == "" {
		logger.Warn("parse input failed: empty input")
		return "", types.NewAppError(types.ErrInvalidInput, "输入不能为空", nil)
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		logger.Warn("parse input failed: whitespace-only input")
		return "", types.NewAppError(types.ErrInvalidInput, "输入不能为空", nil)
	}

	if isURL(trimmed) {
		logger.Info("input identified as URL", logger.String("input", trimmed))
		return types.InputTypeURL, nil
	}

	// Filesystem checks before literal heuristics so that an existing
	// path named "notes<1>.md" is still treated as a file.
	if info, err := os.Stat(trimmed); err == nil {
		if info.IsDir() {
			logger.Info("input identified as directory", logger.String("input", trimmed))
			return types.InputTypeDir, nil
		}
		logger.Info("input identified as file", logger.String("input", trimmed))
		return types.InputTypeFile, nil
	}

	if hasMarkdownExtension(trimmed) {
		logger.Info("input identified as markdown file path", logger.String("input", trimmed))
		return types.InputTypeFile, nil
	}

	if isLiteralDocument(input) {
		logger.Info("input identified as literal document text",
			logger.Int("length", len(input)))
		return types.InputTypeLiteral, nil
	}

	logger.Warn("invalid input format", logger.String("input", truncateForLog(input)))
	return "", types.NewAppError(types.ErrInvalidInput, "无效的输入格式", nil)
}

// isURL checks if the input is an HTTP or HTTPS URL.
func isURL(input string) bool {
	lowerInput := strings.ToLower(input)
	return strings.HasPrefix(lowerInput, "http://") || strings.HasPrefix(lowerInput, "https://")
}

// hasMarkdownExtension checks if the input ends with a known markdown or
// HTML file extension (case-insensitive).
func hasMarkdownExtension(input string) bool {
	lowerInput := strings.ToLower(input)
	for _, ext := range markdownExtensions {
		if strings.HasSuffix(lowerInput, ext) {
			return true
		}
	}
	return false
}

// isLiteralDocument checks if the input looks like raw document text rather
// than a path: multi-line content or anything containing a tag-like substring.
func isLiteralDocument(input string) bool {
	if strings.ContainsAny(input, "\n\r") {
		return true
	}
	open := strings.IndexByte(input, '<')
	if open == -1 {
		return false
	}
	return strings.IndexByte(input[open:], '>') != -1
}

// truncateForLog shortens long literal inputs for log output.
func truncateForLog(input string) string {
	const maxLen = 80
	if len(input) <= maxLen {
		return input
	}
	return input[:maxLen] + "..."
}
