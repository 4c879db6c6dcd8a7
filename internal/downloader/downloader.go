// Package downloader provides functionality for fetching remote Markdown
// documents so they can be validated and fixed locally.
package downloader

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
)

const (
	// DefaultTimeout is the default HTTP client timeout for downloads
	DefaultTimeout = 60 * time.Second
	// MaxRetries is the maximum number of retry attempts for network errors
	MaxRetries = 3
	// BaseRetryDelay is the base delay between retries (will be multiplied by attempt number)
	BaseRetryDelay = 2 * time.Second
	// MaxDocumentSize caps the size of a downloaded document (16 MB)
	MaxDocumentSize = 16 << 20
)

// DocumentDownloader fetches remote Markdown or HTML documents into a local
// work directory.
type DocumentDownloader struct {
	httpClient *http.Client
	workDir    string
}

// NewDocumentDownloader creates a new DocumentDownloader with the specified
// work directory.
func NewDocumentDownloader(workDir string) *DocumentDownloader {
	return &DocumentDownloader{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return types.NewAppError(types.ErrNetwork, "too many redirects", nil)
				}
				return nil
			},
		},
		workDir: workDir,
	}
}

// NewDocumentDownloaderWithTimeout creates a new DocumentDownloader with a
// custom timeout.
func NewDocumentDownloaderWithTimeout(workDir string, timeout time.Duration) *DocumentDownloader {
	d := NewDocumentDownloader(workDir)
	d.httpClient.Timeout = timeout
	return d
}

// GetWorkDir returns the work directory for the downloader.
func (d *DocumentDownloader) GetWorkDir() string {
	return d.workDir
}

// SetWorkDir sets the work directory for the downloader.
func (d *DocumentDownloader) SetWorkDir(workDir string) {
	d.workDir = workDir
}

// GetHTTPClient returns the HTTP client used by the downloader.
func (d *DocumentDownloader) GetHTTPClient() *http.Client {
	return d.httpClient
}

// Download fetches a document from a URL and saves it to the work directory.
// It validates the URL, downloads the content with retry logic, and returns
// the local path of the saved file.
func (d *DocumentDownloader) Download(url string) (string, error) {
	logger.Info("downloading document", logger.String("url", url))

	if url == "" {
		logger.Warn("download failed: empty URL")
		return "", types.NewAppError(types.ErrInvalidInput, "URL cannot be empty", nil)
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		logger.Warn("download failed: invalid URL format", logger.String("url", url))
		return "", types.NewAppError(types.ErrInvalidInput, "invalid URL format: must start with http:// or https://", nil)
	}

	if err := os.MkdirAll(d.workDir, 0755); err != nil {
		logger.Error("failed to create work directory", err, logger.String("workDir", d.workDir))
		return "", types.NewAppError(types.ErrInternal, "failed to create work directory", err)
	}

	filename := extractFilenameFromURL(url)
	destPath := filepath.Join(d.workDir, filename)
	logger.Debug("download destination", logger.String("path", destPath))

	if err := d.downloadWithRetry(url, destPath); err != nil {
		return "", err
	}

	logger.Info("download completed successfully", logger.String("url", url), logger.String("destPath", destPath))
	return destPath, nil
}

// downloadWithRetry performs an HTTP GET request with retry logic for network
// errors. It retries up to MaxRetries times with increasing delays between
// attempts.
func (d *DocumentDownloader) downloadWithRetry(url, destPath string) error {
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		logger.Debug("download attempt", logger.Int("attempt", attempt), logger.String("url", url))
		err := d.downloadFile(url, destPath)
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("download attempt failed", logger.Int("attempt", attempt), logger.Err(err))

		if !isRetryableError(err) {
			logger.Error("non-retryable download error", err, logger.String("url", url))
			return err
		}

		if attempt < MaxRetries {
			delay := BaseRetryDelay * time.Duration(attempt)
			logger.Debug("retrying after delay", logger.String("delay", delay.String()))
			time.Sleep(delay)
		}
	}

	logger.Error("download failed after all retries", lastErr, logger.String("url", url), logger.Int("maxRetries", MaxRetries))
	return types.NewAppErrorWithDetails(
		types.ErrNetwork,
		"download failed after multiple retries",
		fmt.Sprintf("attempted %d times", MaxRetries),
		lastErr,
	)
}

// downloadFile performs the actual HTTP download and saves the content to a file.
func (d *DocumentDownloader) downloadFile(url, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}

	req.Header.Set("User-Agent", "Markdown-Checker/1.0")
	req.Header.Set("Accept", "text/markdown, text/html, text/plain, */*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrNetwork, "network request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleHTTPError(resp.StatusCode, url)
	}

	if resp.ContentLength > MaxDocumentSize {
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"document too large",
			fmt.Sprintf("content length %d exceeds limit of %d bytes", resp.ContentLength, MaxDocumentSize),
			nil,
		)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create destination file", err)
	}
	defer file.Close()

	// LimitReader guards against responses without Content-Length
	written, err := io.Copy(file, io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		os.Remove(destPath)
		return types.NewAppError(types.ErrNetwork, "failed to save downloaded content", err)
	}
	if written > MaxDocumentSize {
		os.Remove(destPath)
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"document too large",
			fmt.Sprintf("response exceeds limit of %d bytes", MaxDocumentSize),
			nil,
		)
	}

	return nil
}

// extractFilenameFromURL extracts a filename from a URL, falling back to a
// generic name when the URL has no usable path segment.
func extractFilenameFromURL(url string) string {
	trimmed := url
	if idx := strings.IndexAny(trimmed, "?#"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	parts := strings.Split(strings.TrimSuffix(trimmed, "/"), "/")
	if len(parts) > 0 {
		filename := parts[len(parts)-1]
		if filename != "" && !strings.HasPrefix(filename, "http") {
			if !strings.Contains(filename, ".") {
				filename += ".md"
			}
			return sanitizeFilename(filename)
		}
	}

	return "download.md"
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// handleHTTPError creates an appropriate AppError based on the HTTP status code.
func handleHTTPError(statusCode int, url string) error {
	switch statusCode {
	case http.StatusNotFound:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"resource not found",
			fmt.Sprintf("URL: %s returned 404", url),
			nil,
		)
	case http.StatusForbidden:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"access forbidden",
			fmt.Sprintf("URL: %s returned 403", url),
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrAPIRateLimit,
			"rate limit exceeded",
			"too many requests, please try again later",
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrNetwork,
			"server error",
			fmt.Sprintf("URL: %s returned %d", url, statusCode),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"download failed",
			fmt.Sprintf("URL: %s returned status %d", url, statusCode),
			nil,
		)
	}
}

// isRetryableError determines if an error should trigger a retry.
// Network errors and rate limits are retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if appErr, ok := err.(*types.AppError); ok {
		switch appErr.Code {
		case types.ErrNetwork:
			return true
		case types.ErrAPIRateLimit:
			return true
		default:
			return false
		}
	}

	// For other errors, assume they might be network-related
	return true
}
