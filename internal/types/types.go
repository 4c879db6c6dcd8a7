// Package types defines core data types and enums for the markdown checker application.
package types

// Config 应用配置
type Config struct {
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"` // OpenAI 兼容 API 的 Base URL
	OpenAIModel   string `json:"openai_model"`
	WorkDirectory string `json:"work_directory"`
	// 检查配置
	ExtraVoidElements []string `json:"extra_void_elements"` // 额外视为自闭合的标签名
	BackupEnabled     bool     `json:"backup_enabled"`      // 修复前是否创建备份
	ReportDirectory   string   `json:"report_directory"`    // 批量检查报告保存目录
}

// InputType 输入类型枚举
type InputType string

const (
	InputTypeFile    InputType = "file"
	InputTypeDir     InputType = "dir"
	InputTypeURL     InputType = "url"
	InputTypeLiteral InputType = "literal"
)

// SuggestionKind identifies the repair a suggestion proposes.
type SuggestionKind string

const (
	// SuggestionAddClosingTag proposes appending a synthesized closing tag
	// for an element left open at end of input.
	SuggestionAddClosingTag SuggestionKind = "add_closing_tag"
	// SuggestionRemoveOrphanedTag proposes removing a closing tag that has
	// no corresponding opening tag.
	SuggestionRemoveOrphanedTag SuggestionKind = "remove_orphaned_tag"
)

// TagRecord 标签记录：一个未闭合或孤立的标签
type TagRecord struct {
	Name     string `json:"name"`     // 规范化（小写）标签名
	Position int    `json:"position"` // 在源文本中的字节偏移
	RawTag   string `json:"raw_tag"`  // 原始标签文本，保留大小写
}

// Suggestion 修复建议
type Suggestion struct {
	Kind     SuggestionKind `json:"kind"`
	Name     string         `json:"name,omitempty"`    // add_closing_tag 的标签名
	RawTag   string         `json:"raw_tag,omitempty"` // remove_orphaned_tag 的原始标签文本
	Position int            `json:"position"`
}

// ValidationResult 标签校验结果
type ValidationResult struct {
	IsValid     bool         `json:"is_valid"`
	Errors      []string     `json:"errors"`
	Warnings    []string     `json:"warnings,omitempty"`
	Unclosed    []TagRecord  `json:"unclosed"`
	Orphaned    []TagRecord  `json:"orphaned"`
	Suggestions []Suggestion `json:"suggestions"`
}

// CheckReport 单个文档的检查报告
type CheckReport struct {
	SourceID  string            `json:"source_id"`  // 文件路径或 URL 的标识
	Source    string            `json:"source"`     // 原始输入
	CheckedAt int64             `json:"checked_at"` // Unix 毫秒
	Result    *ValidationResult `json:"result"`
	Fixed     bool              `json:"fixed"`
	FixesApplied []string       `json:"fixes_applied,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrDownload     ErrorCode = "DOWNLOAD_ERROR"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit ErrorCode = "API_RATE_LIMIT"
	ErrEncoding     ErrorCode = "ENCODING_ERROR"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
