// Package agent provides LLM-agent based repair for Markdown documents whose
// tag defects the deterministic fixer cannot resolve cleanly, such as
// mismatched tag names deep inside nested structures.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/validator"
)

// AgentFixer uses the eino framework's ReAct agent for intelligent repair of
// HTML tag problems in Markdown documents.
type AgentFixer struct {
	apiKey    string
	baseURL   string
	model     string
	docDir    string
	validator *validator.TagValidator
	maxSteps  int
}

// NewAgentFixer creates a new eino-based agent fixer
func NewAgentFixer(apiKey, baseURL, model string) *AgentFixer {
	if model == "" {
		model = "gpt-4o"
	}
	return &AgentFixer{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		validator: validator.NewTagValidator(),
		maxSteps:  20, // ReAct agent steps (each loop = 2 steps)
	}
}

// Tool parameter structs with jsonschema tags for eino's InferTool

// ReadFileParams parameters for read_file tool
type ReadFileParams struct {
	Filename string `json:"filename" jsonschema:"description=The name of the file to read (relative to the document directory)"`
}

// WriteFileParams parameters for write_file tool
type WriteFileParams struct {
	Filename string `json:"filename" jsonschema:"description=The name of the file to write (relative to the document directory)"`
	Content  string `json:"content" jsonschema:"description=The complete content to write to the file"`
}

// ValidateParams parameters for validate_markdown tool
type ValidateParams struct {
	Filename string `json:"filename" jsonschema:"description=The markdown file to validate"`
}

// SearchParams parameters for search_in_files tool
type SearchParams struct {
	Pattern string `json:"pattern" jsonschema:"description=The pattern to search for (supports regex)"`
}

// FixCompleteParams parameters for fix_complete tool
type FixCompleteParams struct {
	Summary string `json:"summary" jsonschema:"description=A summary of all fixes applied"`
}

// createTools creates the tools for the eino agent
func (f *AgentFixer) createTools() ([]tool.BaseTool, error) {
	readFileTool, err := utils.InferTool(
		"read_file",
		"Read the content of a markdown file. Use this to understand the document structure and find the broken tags.",
		func(ctx context.Context, params *ReadFileParams) (string, error) {
			return f.toolReadFile(params.Filename)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create read_file tool: %w", err)
	}

	writeFileTool, err := utils.InferTool(
		"write_file",
		"Write content to a markdown file. Use this to apply fixes to the document.",
		func(ctx context.Context, params *WriteFileParams) (string, error) {
			return f.toolWriteFile(params.Filename, params.Content)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write_file tool: %w", err)
	}

	validateTool, err := utils.InferTool(
		"validate_markdown",
		"Validate HTML tag nesting in a markdown file and return the remaining problems. Use this to test if your fixes work.",
		func(ctx context.Context, params *ValidateParams) (string, error) {
			return f.toolValidate(params.Filename)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validate_markdown tool: %w", err)
	}

	listFilesTool, err := utils.InferTool(
		"list_files",
		"List all markdown files in the directory. Use this to discover the documents.",
		func(ctx context.Context, params *struct{}) (string, error) {
			return f.toolListFiles()
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list_files tool: %w", err)
	}

	searchTool, err := utils.InferTool(
		"search_in_files",
		"Search for a pattern in all markdown files. Use this to find specific tags or content.",
		func(ctx context.Context, params *SearchParams) (string, error) {
			return f.toolSearchInFiles(params.Pattern)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_in_files tool: %w", err)
	}

	fixCompleteTool, err := utils.InferTool(
		"fix_complete",
		"Call this when you have successfully fixed all tag problems and validation passes.",
		func(ctx context.Context, params *FixCompleteParams) (string, error) {
			return fmt.Sprintf("Fix complete: %s", params.Summary), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fix_complete tool: %w", err)
	}

	return []tool.BaseTool{
		readFileTool,
		writeFileTool,
		validateTool,
		listFilesTool,
		searchTool,
		fixCompleteTool,
	}, nil
}

// Tool implementations

func (f *AgentFixer) toolReadFile(filename string) (string, error) {
	filePath := filepath.Join(f.docDir, filename)
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	// Truncate if too large
	if len(content) > 30000 {
		return string(content[:15000]) + "\n...[truncated]...\n" + string(content[len(content)-15000:]), nil
	}
	return string(content), nil
}

func (f *AgentFixer) toolWriteFile(filename, content string) (string, error) {
	filePath := filepath.Join(f.docDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", filename, err)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), filename), nil
}

func (f *AgentFixer) toolValidate(filename string) (string, error) {
	filePath := filepath.Join(f.docDir, filename)
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	result := f.validator.Validate(string(content))
	if result.IsValid {
		return "Validation passed! All tags are correctly nested and closed.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation failed with %d problems:\n", len(result.Errors)))
	for i, msg := range result.Errors {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, msg))
	}
	return sb.String(), nil
}

func (f *AgentFixer) toolListFiles() (string, error) {
	var files []string
	err := filepath.Walk(f.docDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		lower := strings.ToLower(path)
		if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown") {
			relPath, _ := filepath.Rel(f.docDir, path)
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Files found:\n%s", strings.Join(files, "\n")), nil
}

func (f *AgentFixer) toolSearchInFiles(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern: %w", err)
	}

	var results []string
	filepath.Walk(f.docDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		relPath, _ := filepath.Rel(f.docDir, path)
		lines := strings.Split(string(content), "\n")
		for i, line := range lines {
			if re.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", relPath, i+1, strings.TrimSpace(line)))
				if len(results) > 50 {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})

	if len(results) == 0 {
		return "No matches found", nil
	}
	return fmt.Sprintf("Found %d matches:\n%s", len(results), strings.Join(results, "\n")), nil
}

// AgentFixResult represents the result of agent-based fixing
type AgentFixResult struct {
	Success    bool              `json:"success"`
	FixedFiles map[string]string `json:"fixed_files"`
	Summary    string            `json:"summary"`
	Steps      int               `json:"steps"`
}

// FixWithAgent uses the eino ReAct agent to repair tag problems in a
// document that deterministic fixing left invalid.
func (f *AgentFixer) FixWithAgent(
	ctx context.Context,
	docDir string,
	mainFile string,
	problems string,
	progressCallback func(step int, message string),
) (*AgentFixResult, error) {
	f.docDir = docDir

	logger.Info("starting agent-based tag fix",
		logger.String("docDir", docDir),
		logger.String("mainFile", mainFile),
		logger.String("model", f.model))

	result := &AgentFixResult{
		Success:    false,
		FixedFiles: make(map[string]string),
	}

	tools, err := f.createTools()
	if err != nil {
		return result, fmt.Errorf("failed to create tools: %w", err)
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:  f.model,
		APIKey: f.apiKey,
	}
	if f.baseURL != "" {
		chatModelConfig.BaseURL = f.baseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return result, fmt.Errorf("failed to create chat model: %w", err)
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
		MaxStep: f.maxSteps,
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			systemMsg := schema.SystemMessage(f.buildSystemPrompt())
			return append([]*schema.Message{systemMsg}, input...)
		},
	})
	if err != nil {
		return result, fmt.Errorf("failed to create ReAct agent: %w", err)
	}

	userMessage := f.buildInitialUserMessage(mainFile, problems)

	if progressCallback != nil {
		progressCallback(1, "agent analyzing document...")
	}

	response, err := reactAgent.Generate(ctx, []*schema.Message{
		schema.UserMessage(userMessage),
	})
	if err != nil {
		logger.Error("agent execution failed", err)
		return result, fmt.Errorf("agent execution failed: %w", err)
	}

	// Check whether the document validates after the agent's edits
	mainPath := filepath.Join(docDir, mainFile)
	if content, readErr := os.ReadFile(mainPath); readErr == nil {
		validation := f.validator.Validate(string(content))
		result.Success = validation.IsValid
		result.FixedFiles[mainFile] = string(content)
	}

	if response != nil && response.Content != "" {
		result.Summary = response.Content
	} else if result.Success {
		result.Summary = "agent repaired all tag problems"
	} else {
		result.Summary = "agent did not fully repair the tag problems"
	}

	if result.Success {
		logger.Info("agent fix succeeded")
	} else {
		logger.Warn("agent fix did not fully succeed")
	}

	return result, nil
}

func (f *AgentFixer) buildSystemPrompt() string {
	return `You are a markdown repair agent. Your job is to fix HTML tag nesting errors in markdown documents by locating the problem, understanding it, and making precise fixes.

TOOLS:
- read_file(filename): Read file content
- write_file(filename, content): Write file
- validate_markdown(filename): Validate and get remaining problems
- search_in_files(pattern): Regex search across files
- list_files(): List all markdown files
- fix_complete(summary): Call when validation passes

WORKFLOW - Follow this process for each problem:

STEP 1: PARSE THE PROBLEM
From the validation report, extract:
- Problem type (mismatched tag, orphaned closing tag, unclosed tag)
- Line and column numbers

STEP 2: READ THE PROBLEM LOCATION
Use read_file to see the problematic area and understand the intended nesting.

STEP 3: ANALYZE AND FIX

For mismatched tags (e.g. <p> closed by </div>):
- Decide whether the opening or the closing tag is wrong from context
- Rename one of them so they match, or insert the missing closer

For orphaned closing tags:
- Remove the closing tag, or add an opening tag if one was clearly intended

For unclosed tags:
- Insert the closing tag at the correct nesting position, not blindly at the end

STEP 4: APPLY THE FIX
Make the minimal change needed. When writing the fixed file:
- Keep ALL existing content
- Only change what's necessary to fix the tags
- Preserve all markdown formatting

STEP 5: VERIFY
Validate again. If there are more problems, repeat from Step 1.

IMPORTANT RULES:
1. Always read the file before fixing - don't guess
2. Make minimal changes - don't rewrite sections unnecessarily
3. Never delete document content
4. Fix one problem at a time, then revalidate
5. The first problem in the report is usually the root cause

When validation passes, call fix_complete.`
}

func (f *AgentFixer) buildInitialUserMessage(mainFile, problems string) string {
	var sb strings.Builder
	sb.WriteString("Please fix the HTML tag nesting errors in this markdown document.\n\n")
	sb.WriteString(fmt.Sprintf("Main file: %s\n\n", mainFile))
	sb.WriteString("Validation report:\n")
	sb.WriteString("```\n")
	sb.WriteString(problems)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Start by reading the main file to understand the document structure. Then analyze the problems and fix them one by one.")
	return sb.String()
}
