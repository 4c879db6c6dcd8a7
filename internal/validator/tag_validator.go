// Package validator provides HTML tag nesting validation and fixing for
// Markdown documents. It detects unclosed, orphaned, and mismatched tags and
// produces repair suggestions consumed by the fixers.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"

	"markdown-checker/internal/logger"
	"markdown-checker/internal/types"
)

// tagPattern matches tag-like substrings: "<", an optional "/", a letter,
// then any run of non-">" characters up to the next ">". A "<" that is never
// followed by ">" does not complete a match and is ignored, as are Markdown
// constructs, which never match this shape.
var tagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// voidElements are HTML elements with no closing tag by construction.
var voidElements = map[string]bool{
	"img":   true,
	"br":    true,
	"hr":    true,
	"input": true,
	"meta":  true,
	"link":  true,
}

// tagToken is one scanned tag-like substring. Tokens are transient and
// scoped to a single validation pass.
type tagToken struct {
	raw         string // original text, case preserved
	pos         int    // byte offset in the source
	name        string // lower-cased element name
	closing     bool   // starts with "</"
	selfClosing bool   // ends with "/>" or name is a void element
}

// TagValidator validates HTML tag nesting in Markdown content.
type TagValidator struct {
	extraVoid map[string]bool
}

// NewTagValidator creates a new TagValidator.
func NewTagValidator() *TagValidator {
	return &TagValidator{extraVoid: map[string]bool{}}
}

// NewTagValidatorWithConfig creates a TagValidator that additionally treats
// the configured element names as void.
func NewTagValidatorWithConfig(cfg *types.Config) *TagValidator {
	v := NewTagValidator()
	if cfg != nil {
		for _, name := range cfg.ExtraVoidElements {
			v.extraVoid[strings.ToLower(name)] = true
		}
	}
	return v
}

// Validate checks Markdown content for HTML tag nesting problems.
// It performs a single left-to-right scan:
// - self-closing and void tags are skipped entirely
// - a closing tag with an empty stack is recorded as orphaned
// - a closing tag whose name differs from the popped frame is recorded as a
//   mismatch; the frame is still popped so scanning continues at the
//   corrected depth
// - opening tags are pushed unconditionally
// Every frame left on the stack after the scan is an unclosed tag.
//
// The function is total over any string input and has no side effects beyond
// logging; domain defects are reported in the result, never as errors.
func (v *TagValidator) Validate(content string) *types.ValidationResult {
	logger.Debug("validating tag nesting", logger.Int("contentLength", len(content)))

	result := &types.ValidationResult{
		IsValid:     true,
		Errors:      []string{},
		Unclosed:    []types.TagRecord{},
		Orphaned:    []types.TagRecord{},
		Suggestions: []types.Suggestion{},
	}

	if content == "" {
		return result
	}

	var stack []types.TagRecord
	seenUnknown := map[string]bool{}

	for _, tok := range v.scanTags(content) {
		if !seenUnknown[tok.name] && !v.knownElement(tok.name) {
			line, col := lineAndColumn(content, tok.pos)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unrecognized HTML element <%s> at line %d, column %d", tok.name, line, col))
			seenUnknown[tok.name] = true
		}

		if tok.selfClosing {
			continue
		}

		if tok.closing {
			if len(stack) == 0 {
				line, col := lineAndColumn(content, tok.pos)
				result.Errors = append(result.Errors,
					fmt.Sprintf("orphaned closing tag %s at line %d, column %d with no matching opening tag", tok.raw, line, col))
				result.Orphaned = append(result.Orphaned, types.TagRecord{
					Name:     tok.name,
					Position: tok.pos,
					RawTag:   tok.raw,
				})
				continue
			}

			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.Name != tok.name {
				openLine, openCol := lineAndColumn(content, top.Position)
				closeLine, closeCol := lineAndColumn(content, tok.pos)
				result.Errors = append(result.Errors,
					fmt.Sprintf("mismatched tag: %s opened at line %d, column %d closed by %s at line %d, column %d",
						top.RawTag, openLine, openCol, tok.raw, closeLine, closeCol))
			}
			continue
		}

		stack = append(stack, types.TagRecord{
			Name:     tok.name,
			Position: tok.pos,
			RawTag:   tok.raw,
		})
	}

	// Remaining frames are unclosed tags, reported in push order.
	for _, frame := range stack {
		line, col := lineAndColumn(content, frame.Position)
		result.Errors = append(result.Errors,
			fmt.Sprintf("unclosed tag %s at line %d, column %d", frame.RawTag, line, col))
		result.Unclosed = append(result.Unclosed, frame)
	}

	result.IsValid = len(result.Errors) == 0

	if !result.IsValid {
		result.Suggestions = buildSuggestions(result)
		logger.Warn("tag nesting problems found",
			logger.Int("errorCount", len(result.Errors)),
			logger.Int("unclosed", len(result.Unclosed)),
			logger.Int("orphaned", len(result.Orphaned)))
	}

	return result
}

// scanTags extracts every maximal tag-like token from content in
// left-to-right order.
func (v *TagValidator) scanTags(content string) []tagToken {
	matches := tagPattern.FindAllStringIndex(content, -1)
	tokens := make([]tagToken, 0, len(matches))

	for _, m := range matches {
		raw := content[m[0]:m[1]]
		name := elementName(raw)
		tokens = append(tokens, tagToken{
			raw:         raw,
			pos:         m[0],
			name:        name,
			closing:     strings.HasPrefix(raw, "</"),
			selfClosing: strings.HasSuffix(raw, "/>") || voidElements[name] || v.extraVoid[name],
		})
	}

	return tokens
}

// elementName derives the lower-cased element name from a raw tag: the run
// from the first letter up to the next whitespace, "/", or ">".
func elementName(raw string) string {
	inner := strings.TrimPrefix(raw, "<")
	inner = strings.TrimPrefix(inner, "/")
	inner = strings.TrimSuffix(inner, ">")

	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/' {
			return strings.ToLower(inner[:i])
		}
	}
	return strings.ToLower(inner)
}

// knownElement reports whether name is a standard HTML element or one of the
// configured extra void elements. Unknown names only generate warnings; they
// never affect validity.
func (v *TagValidator) knownElement(name string) bool {
	if v.extraVoid[name] {
		return true
	}
	return atom.Lookup([]byte(name)) != 0
}

// buildSuggestions assembles the repair suggestion list: one add_closing_tag
// per unclosed frame in push order, then one remove_orphaned_tag per orphaned
// closer in scan order. Closing-tag additions always precede orphan removals.
func buildSuggestions(result *types.ValidationResult) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(result.Unclosed)+len(result.Orphaned))

	for _, frame := range result.Unclosed {
		suggestions = append(suggestions, types.Suggestion{
			Kind:     types.SuggestionAddClosingTag,
			Name:     frame.Name,
			Position: frame.Position,
		})
	}
	for _, orphan := range result.Orphaned {
		suggestions = append(suggestions, types.Suggestion{
			Kind:     types.SuggestionRemoveOrphanedTag,
			RawTag:   orphan.RawTag,
			Position: orphan.Position,
		})
	}

	return suggestions
}

// lineAndColumn converts a byte position to 1-based line and column numbers.
func lineAndColumn(content string, pos int) (int, int) {
	if pos < 0 || pos > len(content) {
		return 1, 1
	}

	line := 1
	lastNewline := -1

	for i := 0; i < pos; i++ {
		if content[i] == '\n' {
			line++
			lastNewline = i
		}
	}

	return line, pos - lastNewline
}

// Validate checks content with a default TagValidator. It is a pure function
// of its input and safe for concurrent use.
func Validate(content string) *types.ValidationResult {
	return NewTagValidator().Validate(content)
}

// QuickCheck reports whether content has correctly nested and closed tags.
func QuickCheck(content string) bool {
	return NewTagValidator().Validate(content).IsValid
}

// FormatReport formats a validation result as a human-readable report.
func FormatReport(source string, result *types.ValidationResult) string {
	var report strings.Builder
	report.WriteString(fmt.Sprintf("Validation Report for: %s\n", source))
	report.WriteString(strings.Repeat("=", 60) + "\n\n")

	if result.IsValid {
		report.WriteString("✓ Validation PASSED\n\n")
	} else {
		report.WriteString("✗ Validation FAILED\n\n")
	}

	if len(result.Errors) > 0 {
		report.WriteString(fmt.Sprintf("Errors (%d):\n", len(result.Errors)))
		for i, msg := range result.Errors {
			report.WriteString(fmt.Sprintf("  %d. %s\n", i+1, msg))
		}
		report.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		report.WriteString(fmt.Sprintf("Warnings (%d):\n", len(result.Warnings)))
		for i, msg := range result.Warnings {
			report.WriteString(fmt.Sprintf("  %d. %s\n", i+1, msg))
		}
		report.WriteString("\n")
	}

	if len(result.Suggestions) > 0 {
		report.WriteString(fmt.Sprintf("Suggestions (%d):\n", len(result.Suggestions)))
		for i, s := range result.Suggestions {
			switch s.Kind {
			case types.SuggestionAddClosingTag:
				report.WriteString(fmt.Sprintf("  %d. add closing tag </%s>\n", i+1, s.Name))
			case types.SuggestionRemoveOrphanedTag:
				report.WriteString(fmt.Sprintf("  %d. remove orphaned tag %s\n", i+1, s.RawTag))
			}
		}
		report.WriteString("\n")
	}

	if result.IsValid && len(result.Warnings) == 0 {
		report.WriteString("No issues found.\n")
	}

	return report.String()
}
