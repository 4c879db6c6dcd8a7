// Command mdcheck validates HTML tag nesting in Markdown documents and
// optionally repairs the defects it finds.
//
// Usage:
//
//	mdcheck check <file|dir|url|text>
//	mdcheck fix [-backup=false] [-llm] [-agent] <file|dir|url|text>
//	mdcheck reports [list|clear]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"markdown-checker/internal/agent"
	"markdown-checker/internal/config"
	"markdown-checker/internal/downloader"
	"markdown-checker/internal/editor"
	"markdown-checker/internal/logger"
	"markdown-checker/internal/parser"
	"markdown-checker/internal/results"
	"markdown-checker/internal/types"
	"markdown-checker/internal/validator"
)

func main() {
	if err := logger.Init(&logger.Config{
		Level:       logger.LevelInfo,
		LogFilePath: "markdown-checker.log",
	}); err != nil {
		fmt.Printf("Warning: failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfgMgr, err := config.NewConfigManager("")
	if err != nil {
		fmt.Printf("Error: failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	if err := cfgMgr.Load(); err != nil {
		fmt.Printf("Warning: failed to load config: %v\n", err)
	}

	var exitCode int
	switch os.Args[1] {
	case "check":
		exitCode = runCheck(cfgMgr, os.Args[2:])
	case "fix":
		exitCode = runFix(cfgMgr, os.Args[2:])
	case "reports":
		exitCode = runReports(cfgMgr, os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		exitCode = 1
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println("mdcheck - HTML tag nesting checker for Markdown documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mdcheck check <file|dir|url|text>    Validate tag nesting")
	fmt.Println("  mdcheck fix [options] <input>        Validate and repair")
	fmt.Println("  mdcheck reports [list|clear]         Manage stored reports")
	fmt.Println()
	fmt.Println("Fix options:")
	fmt.Println("  -backup=false   Do not create .backup files before fixing")
	fmt.Println("  -llm            Use the OpenAI API for repairs the deterministic")
	fmt.Println("                  fixer cannot handle (requires OPENAI_API_KEY)")
	fmt.Println("  -agent          Use the tool-calling agent for complex repairs")
}

// newValidator builds a TagValidator honoring extra void elements from config.
func newValidator(cfgMgr *config.ConfigManager) *validator.TagValidator {
	return validator.NewTagValidatorWithConfig(cfgMgr.GetConfig())
}

func runCheck(cfgMgr *config.ConfigManager, args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: mdcheck check <file|dir|url|text>")
		return 1
	}
	input := args[0]

	inputType, err := parser.ParseInput(input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	v := newValidator(cfgMgr)
	reportMgr, _ := results.NewReportManager(cfgMgr.GetConfig().ReportDirectory)

	switch inputType {
	case types.InputTypeLiteral:
		result := v.Validate(input)
		fmt.Print(validator.FormatReport("(literal input)", result))
		if !result.IsValid {
			return 1
		}
		return 0

	case types.InputTypeURL:
		path, err := fetchDocument(cfgMgr, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		return checkFile(v, reportMgr, path, input)

	case types.InputTypeDir:
		return checkDirectory(v, reportMgr, input)

	default:
		return checkFile(v, reportMgr, input, input)
	}
}

func checkFile(v *validator.TagValidator, reportMgr *results.ReportManager, path, source string) int {
	handler := editor.NewEncodingHandler(editor.NewBackupManager(""))
	content, err := handler.ReadFileWithEncoding(path)
	if err != nil {
		fmt.Printf("Error: failed to read %s: %v\n", path, err)
		return 1
	}

	result := v.Validate(content)
	fmt.Print(validator.FormatReport(path, result))

	saveReport(reportMgr, source, result, false, nil)

	if !result.IsValid {
		return 1
	}
	return 0
}

func checkDirectory(v *validator.TagValidator, reportMgr *results.ReportManager, dir string) int {
	var checked, invalid int

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !isMarkdownPath(path) {
			return nil
		}
		checked++
		if checkFile(v, reportMgr, path, path) != 0 {
			invalid++
		}
		return nil
	})
	if err != nil {
		fmt.Printf("Error: failed to walk directory: %v\n", err)
		return 1
	}

	fmt.Printf("Checked %d files, %d with problems\n", checked, invalid)
	if invalid > 0 {
		return 1
	}
	return 0
}

func runFix(cfgMgr *config.ConfigManager, args []string) int {
	fs := flag.NewFlagSet("fix", flag.ExitOnError)
	backup := fs.Bool("backup", cfgMgr.IsBackupEnabled(), "create backup files before fixing")
	useLLM := fs.Bool("llm", false, "use the OpenAI API for unfixable defects")
	useAgent := fs.Bool("agent", false, "use the tool-calling agent for complex repairs")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: mdcheck fix [options] <file|dir|url|text>")
		return 1
	}
	input := fs.Arg(0)

	inputType, err := parser.ParseInput(input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	v := newValidator(cfgMgr)

	switch inputType {
	case types.InputTypeLiteral:
		return fixLiteral(cfgMgr, v, input, *useLLM)

	case types.InputTypeURL:
		path, err := fetchDocument(cfgMgr, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		fmt.Printf("Downloaded to %s\n", path)
		return fixFile(cfgMgr, v, path, input, *backup, *useLLM, *useAgent)

	case types.InputTypeDir:
		return fixDirectory(cfgMgr, v, input, *backup)

	default:
		return fixFile(cfgMgr, v, input, input, *backup, *useLLM, *useAgent)
	}
}

func fixLiteral(cfgMgr *config.ConfigManager, v *validator.TagValidator, input string, useLLM bool) int {
	result := v.Validate(input)
	if result.IsValid {
		fmt.Println("No problems found.")
		fmt.Print(input)
		return 0
	}

	fixed := v.Fix(input)
	if fixed == input && useLLM {
		llm := validator.NewLLMFixerWithConfig(cfgMgr.GetAPIKey(), cfgMgr.GetModel(), cfgMgr.GetBaseURL(), 0)
		llmFixed, err := llm.Fix(input, result)
		if err != nil {
			fmt.Printf("Error: LLM fix failed: %v\n", err)
			return 1
		}
		fixed = llmFixed
	}

	fmt.Print(validator.FormatReport("(literal input)", result))
	fmt.Println("Fixed text:")
	fmt.Print(fixed)

	if !v.Validate(fixed).IsValid {
		return 1
	}
	return 0
}

func fixFile(cfgMgr *config.ConfigManager, v *validator.TagValidator, path, source string, backup, useLLM, useAgent bool) int {
	workflow := editor.NewFixWorkflowWithValidator("", v)

	result, err := workflow.ValidateAndFix(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	// Mismatched tags survive deterministic fixing; escalate if requested
	if !result.Success && (useLLM || useAgent) {
		if escalateErr := escalateFix(cfgMgr, v, path, useAgent); escalateErr != nil {
			fmt.Printf("Error: %v\n", escalateErr)
		} else {
			result, err = workflow.ValidateAndFix(path)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return 1
			}
		}
	}

	if !backup && result.BackupPath != "" {
		os.Remove(result.BackupPath)
		result.BackupPath = ""
	}

	fmt.Print(editor.FormatWorkflowResult(result))

	reportMgr, _ := results.NewReportManager(cfgMgr.GetConfig().ReportDirectory)
	saveReport(reportMgr, source, result.ValidationResult, result.Success, result.FixesApplied)

	if !result.Success {
		return 1
	}
	return 0
}

// escalateFix repairs defects the deterministic fixer left behind, using
// either the single-shot LLM fixer or the tool-calling agent.
func escalateFix(cfgMgr *config.ConfigManager, v *validator.TagValidator, path string, useAgent bool) error {
	apiKey := cfgMgr.GetAPIKey()
	if apiKey == "" {
		return types.NewAppError(types.ErrConfig, "no API key configured, set OPENAI_API_KEY", nil)
	}

	handler := editor.NewEncodingHandler(editor.NewBackupManager(""))
	content, err := handler.ReadFileWithEncoding(path)
	if err != nil {
		return err
	}
	result := v.Validate(content)
	if result.IsValid {
		return nil
	}

	if useAgent {
		return runAgentFix(cfgMgr, path, result)
	}

	llm := validator.NewLLMFixerWithConfig(cfgMgr.GetAPIKey(), cfgMgr.GetModel(), cfgMgr.GetBaseURL(), 0)
	fixed, err := llm.Fix(content, result)
	if err != nil {
		return err
	}
	if fixed == content {
		return nil
	}
	return os.WriteFile(path, []byte(fixed), 0644)
}

// runAgentFix hands the file to the tool-calling agent, which edits it in
// place until validation passes or the step budget runs out.
func runAgentFix(cfgMgr *config.ConfigManager, path string, result *types.ValidationResult) error {
	fixer := agent.NewAgentFixer(cfgMgr.GetAPIKey(), cfgMgr.GetBaseURL(), cfgMgr.GetModel())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	problems := validator.FormatReport(path, result)
	agentResult, err := fixer.FixWithAgent(ctx, filepath.Dir(absPath), filepath.Base(absPath), problems,
		func(step int, message string) {
			fmt.Printf("  [agent] %s\n", message)
		})
	if err != nil {
		return err
	}

	fmt.Printf("Agent summary: %s\n", agentResult.Summary)
	return nil
}

func fixDirectory(cfgMgr *config.ConfigManager, v *validator.TagValidator, dir string, backup bool) int {
	fixer := validator.NewFileFixer(v, backup)

	fixResults, err := fixer.FixAllMarkdownFiles(dir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	var failed int
	for relPath, res := range fixResults {
		status := "✓"
		// Result records the pre-fix state; re-validate to report the outcome
		if content, readErr := os.ReadFile(filepath.Join(dir, relPath)); readErr != nil || !v.Validate(string(content)).IsValid {
			status = "✗"
			failed++
		}
		fmt.Printf("%s %s (%d fixes)\n", status, relPath, len(res.FixesApplied))
	}

	fmt.Printf("Processed %d files, %d failed\n", len(fixResults), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func runReports(cfgMgr *config.ConfigManager, args []string) int {
	reportMgr, err := results.NewReportManager(cfgMgr.GetConfig().ReportDirectory)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		reports, err := reportMgr.ListReports()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		if len(reports) == 0 {
			fmt.Println("No reports stored.")
			return 0
		}
		for _, r := range reports {
			status := "valid"
			if r.Result != nil && !r.Result.IsValid {
				status = fmt.Sprintf("%d errors", len(r.Result.Errors))
				if r.Fixed {
					status += ", fixed"
				}
			}
			checkedAt := time.UnixMilli(r.CheckedAt).Format("2006-01-02 15:04")
			fmt.Printf("%-40s %-20s %s\n", r.Source, status, checkedAt)
		}
		return 0

	case "clear":
		reports, err := reportMgr.ListReports()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		for _, r := range reports {
			reportMgr.DeleteReport(r.SourceID)
		}
		fmt.Printf("Deleted %d reports.\n", len(reports))
		return 0

	default:
		fmt.Printf("Unknown reports action: %s\n", action)
		return 1
	}
}

// fetchDocument downloads a remote document into the configured work
// directory and returns its local path.
func fetchDocument(cfgMgr *config.ConfigManager, url string) (string, error) {
	workDir := cfgMgr.GetWorkDirectory()
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "markdown-checker")
	}
	dl := downloader.NewDocumentDownloader(workDir)
	return dl.Download(url)
}

func saveReport(reportMgr *results.ReportManager, source string, result *types.ValidationResult, fixed bool, fixesApplied []string) {
	if reportMgr == nil || result == nil {
		return
	}
	report := &types.CheckReport{
		Source:       source,
		CheckedAt:    time.Now().UnixMilli(),
		Result:       result,
		Fixed:        fixed,
		FixesApplied: fixesApplied,
	}
	if err := reportMgr.SaveReport(report); err != nil {
		logger.Warn("failed to save report", logger.Err(err), logger.String("source", source))
	}
}

func isMarkdownPath(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".md" || ext == ".markdown"
}
