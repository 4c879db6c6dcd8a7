package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
)

const (
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 120 * time.Second
	// MaxRetries is the maximum number of retry attempts for API errors
	MaxRetries = 2
	// BaseRetryDelay is the base delay between retries
	BaseRetryDelay = 2 * time.Second
	// OpenAIAPIURL is the OpenAI chat completions API endpoint
	OpenAIAPIURL = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is the default OpenAI model to use
	DefaultModel = "gpt-4o"
)

// LLMFixer repairs documents whose defects the deterministic fixer cannot
// resolve, such as mismatched tag names, by asking an OpenAI-compatible
// model for a minimal correction.
type LLMFixer struct {
	apiKey string
	client *http.Client
	model  string
	apiURL string
}

// NewLLMFixer creates a new LLMFixer with the specified API key.
func NewLLMFixer(apiKey string) *LLMFixer {
	return &LLMFixer{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		model:  DefaultModel,
		apiURL: OpenAIAPIURL,
	}
}

// NewLLMFixerWithConfig creates a new LLMFixer with full configuration.
func NewLLMFixerWithConfig(apiKey, model, apiURL string, timeout time.Duration) *LLMFixer {
	if model == "" {
		model = DefaultModel
	}
	if apiURL == "" {
		apiURL = OpenAIAPIURL
	} else {
		apiURL = normalizeAPIURL(apiURL)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &LLMFixer{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		model:  model,
		apiURL: apiURL,
	}
}

// normalizeAPIURL ensures the API URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// GetModel returns the model used by the fixer.
func (f *LLMFixer) GetModel() string {
	return f.model
}

// SetModel sets the model to use for fixing.
func (f *LLMFixer) SetModel(model string) {
	f.model = model
}

// SetAPIURL sets the API URL (useful for testing with mock servers).
func (f *LLMFixer) SetAPIURL(url string) {
	f.apiURL = url
}

// Fix asks the model to repair the tag problems listed in result and returns
// the corrected document.
func (f *LLMFixer) Fix(content string, result *types.ValidationResult) (string, error) {
	logger.Info("fixing tag problems with LLM", logger.Int("errorCount", len(result.Errors)))

	if f.apiKey == "" {
		logger.Error("API key not configured", nil)
		return "", types.NewAppError(types.ErrConfig, "OpenAI API key is not configured", nil)
	}

	if content == "" {
		return "", nil
	}

	if result == nil || len(result.Errors) == 0 {
		logger.Debug("no errors to fix, returning original content")
		return content, nil
	}

	fixed, err := f.fixWithRetry(content, result)
	if err != nil {
		logger.Error("LLM fix failed", err)
		return "", err
	}

	logger.Info("tag problems fixed successfully")
	return fixed, nil
}

// fixWithRetry attempts to fix content with retry logic for transient errors.
func (f *LLMFixer) fixWithRetry(content string, result *types.ValidationResult) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		logger.Debug("fix attempt", logger.Int("attempt", attempt))
		fixed, err := f.doFix(content, result)
		if err == nil {
			return fixed, nil
		}

		lastErr = err
		logger.Warn("fix attempt failed", logger.Int("attempt", attempt), logger.Err(err))

		if !isRetryableAPIError(err) {
			return "", err
		}

		if attempt < MaxRetries {
			delay := BaseRetryDelay * time.Duration(attempt)
			logger.Debug("retrying after delay", logger.String("delay", delay.String()))
			time.Sleep(delay)
		}
	}

	return "", types.NewAppErrorWithDetails(
		types.ErrAPICall,
		"LLM fix failed after multiple retries",
		fmt.Sprintf("attempted %d times", MaxRetries),
		lastErr,
	)
}

// ChatCompletionRequest represents the request body for OpenAI chat completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message represents a message in the chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from OpenAI chat completions API.
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the chat completion response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// APIError represents an error response from the OpenAI API.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// doFix performs the actual API call.
func (f *LLMFixer) doFix(content string, result *types.ValidationResult) (string, error) {
	logger.Debug("calling OpenAI API for tag fix", logger.String("model", f.model))

	reqBody := ChatCompletionRequest{
		Model: f.model,
		Messages: []Message{
			{Role: "system", Content: buildFixSystemPrompt()},
			{Role: "user", Content: buildFixUserPrompt(content, result)},
		},
		Temperature: 0.1, // Very low temperature for consistent fixes
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	req, err := http.NewRequest(http.MethodPost, f.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrNetwork, "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrNetwork, "failed to read API response", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("API returned error status", nil, logger.Int("statusCode", resp.StatusCode))
		return "", handleAPIHTTPError(resp.StatusCode, body)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", types.NewAppError(types.ErrAPICall, "failed to parse API response", err)
	}

	if chatResp.Error != nil {
		return "", types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API returned error",
			chatResp.Error.Message,
			nil,
		)
	}

	if len(chatResp.Choices) == 0 {
		return "", types.NewAppError(types.ErrAPICall, "API returned no choices", nil)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// buildFixSystemPrompt creates the system prompt for the fix task.
func buildFixSystemPrompt() string {
	return `You are an HTML and Markdown expert. Your task is to fix HTML tag nesting errors in Markdown documents.

CRITICAL RULES:
1. Fix ONLY the tag errors mentioned - do not change anything else.
2. Preserve all content, formatting, and Markdown structure.
3. Common fixes include:
   - Renaming a mismatched closing tag to match its opening tag
   - Adding a missing closing tag at the correct nesting position
   - Removing a closing tag that has no opening tag
4. Output ONLY the corrected document - no explanations or comments.
5. Maintain the exact same line structure where possible.
6. Do not add any new content or remove existing content beyond fixing tags.`
}

// buildFixUserPrompt creates the user prompt with the content and errors to fix.
func buildFixUserPrompt(content string, result *types.ValidationResult) string {
	var errorDescriptions []string
	for _, msg := range result.Errors {
		errorDescriptions = append(errorDescriptions, "- "+msg)
	}

	return fmt.Sprintf(`Fix the following HTML tag errors in the Markdown document below.

ERRORS TO FIX:
%s

DOCUMENT:
%s`, strings.Join(errorDescriptions, "\n"), content)
}

// handleAPIHTTPError creates an appropriate AppError based on the HTTP status code.
func handleAPIHTTPError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	errorDetails := ""
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		errorDetails = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API authentication failed",
			"invalid API key or unauthorized access",
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrAPIRateLimit,
			"API rate limit exceeded",
			errorDetails,
			nil,
		)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"invalid API request",
			errorDetails,
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API server error",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API request failed",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	}
}

// isRetryableAPIError determines if an error should trigger a retry.
func isRetryableAPIError(err error) bool {
	if err == nil {
		return false
	}

	if appErr, ok := err.(*types.AppError); ok {
		switch appErr.Code {
		case types.ErrNetwork:
			return true
		case types.ErrAPIRateLimit:
			return true
		case types.ErrAPICall:
			// Retry on server errors, but not on client errors
			return strings.Contains(appErr.Details, "status 5")
		default:
			return false
		}
	}

	return false
}
