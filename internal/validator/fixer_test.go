package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFix_ValidContentUnchanged(t *testing.T) {
	content := `<div><p>fine</p></div>`
	fixed := NewTagValidator().Fix(content)

	if fixed != content {
		t.Errorf("Expected valid content unchanged, got %q", fixed)
	}
}

func TestFix_AppendsClosersInReverseOrder(t *testing.T) {
	content := `<ul><li>a</li><li>b`
	fixed := NewTagValidator().Fix(content)

	want := content + "</li></ul>"
	if fixed != want {
		t.Errorf("Expected %q, got %q", want, fixed)
	}

	if !NewTagValidator().Validate(fixed).IsValid {
		t.Error("Expected fixed content to validate")
	}
}

func TestFix_RemovesOrphanedClosingTag(t *testing.T) {
	content := `<p>text</p></p>`
	fixed := NewTagValidator().Fix(content)

	// The orphan is removed by first occurrence of its raw text, which here
	// removes the earlier identical </p>; the resulting text is the same.
	if fixed != `<p>text</p>` {
		t.Errorf("Expected '<p>text</p>', got %q", fixed)
	}

	if !NewTagValidator().Validate(fixed).IsValid {
		t.Error("Expected fixed content to validate")
	}
}

func TestFix_OrphanAndUnclosedCombined(t *testing.T) {
	content := `</em><div>text`
	fixed := NewTagValidator().Fix(content)

	want := `<div>text</div>`
	if fixed != want {
		t.Errorf("Expected %q, got %q", want, fixed)
	}
}

func TestFix_MismatchOnlyUnchanged(t *testing.T) {
	// A pure mismatch leaves no unclosed or orphaned records, so the
	// deterministic fixer has nothing to apply.
	content := `<b>x</i>`
	fixed := NewTagValidator().Fix(content)

	if fixed != content {
		t.Errorf("Expected mismatch-only content unchanged, got %q", fixed)
	}
}

func TestFix_Idempotent(t *testing.T) {
	cases := []string{
		`<ul><li>a</li><li>b`,
		`<p>text</p></p>`,
		`</em><div>text`,
		`<div><p>x</div>`,
		`<b>x</i>`,
		``,
		`plain markdown text`,
	}

	for _, content := range cases {
		once := NewTagValidator().Fix(content)
		twice := NewTagValidator().Fix(once)
		if once != twice {
			t.Errorf("Fix not idempotent for %q: first %q, second %q", content, once, twice)
		}
	}
}

func TestFix_EmptyInput(t *testing.T) {
	if fixed := Fix(""); fixed != "" {
		t.Errorf("Expected empty output for empty input, got %q", fixed)
	}
}

// === FileFixer tests ===

func TestFileFixer_FixFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")

	content := `# Doc

<ul><li>a</li><li>b
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fixer := NewFileFixer(nil, true)
	result, err := fixer.FixFile(path)
	if err != nil {
		t.Fatalf("FixFile failed: %v", err)
	}

	if !result.Fixed {
		t.Error("Expected fixes to be applied")
	}
	if len(result.FixesApplied) == 0 {
		t.Error("Expected FixesApplied to describe the changes")
	}
	if result.BackupPath == "" {
		t.Error("Expected a backup to be created")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Errorf("Expected backup file to exist: %v", err)
	}

	fixed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixed file: %v", err)
	}
	if !NewTagValidator().Validate(string(fixed)).IsValid {
		t.Error("Expected fixed file to validate")
	}
	if !strings.Contains(string(fixed), "</li></ul>") {
		t.Errorf("Expected appended closers in fixed file, got:\n%s", fixed)
	}
}

func TestFileFixer_FixFileNotFound(t *testing.T) {
	fixer := NewFileFixer(nil, false)

	_, err := fixer.FixFile(filepath.Join(t.TempDir(), "missing.md"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestFileFixer_SmartFixLeavesCleanFileAlone(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "clean.md")

	content := `<p>all good</p>`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	before := info.ModTime()

	fixer := NewFileFixer(nil, true)
	result, err := fixer.SmartFix(path)
	if err != nil {
		t.Fatalf("SmartFix failed: %v", err)
	}

	if result.Fixed {
		t.Error("Expected no fixes for a clean file")
	}
	if result.BackupPath != "" {
		t.Error("Expected no backup for a clean file")
	}

	info, err = os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(before) {
		t.Error("Expected clean file not to be rewritten")
	}
}

func TestFileFixer_NoBackupWhenDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")

	if err := os.WriteFile(path, []byte(`<div>unclosed`), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fixer := NewFileFixer(nil, false)
	result, err := fixer.FixFile(path)
	if err != nil {
		t.Fatalf("FixFile failed: %v", err)
	}

	if result.BackupPath != "" {
		t.Errorf("Expected no backup, got %q", result.BackupPath)
	}
	if _, err := os.Stat(path + ".backup"); !os.IsNotExist(err) {
		t.Error("Expected no .backup file on disk")
	}
}

func TestFileFixer_MismatchOnlyLeavesFileUnchanged(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")

	content := `<b>x</i>`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fixer := NewFileFixer(nil, false)
	result, err := fixer.FixFile(path)
	if err != nil {
		t.Fatalf("FixFile failed: %v", err)
	}

	if result.Fixed {
		t.Error("Expected no textual fix for a pure mismatch")
	}
	if len(result.FixesApplied) != 0 {
		t.Errorf("Expected empty FixesApplied, got %v", result.FixesApplied)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Errorf("Expected file unchanged, got %q", data)
	}
}

func TestFileFixer_RestoreBackup(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")

	original := `<div>unclosed`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fixer := NewFileFixer(nil, true)
	if _, err := fixer.FixFile(path); err != nil {
		t.Fatalf("FixFile failed: %v", err)
	}

	if err := fixer.RestoreBackup(path); err != nil {
		t.Fatalf("RestoreBackup failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Errorf("Expected original content restored, got %q", data)
	}

	if err := fixer.CleanupBackup(path); err != nil {
		t.Fatalf("CleanupBackup failed: %v", err)
	}
	if _, err := os.Stat(path + ".backup"); !os.IsNotExist(err) {
		t.Error("Expected backup removed after cleanup")
	}
}

func TestFileFixer_FixAllMarkdownFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"broken.md":    `<ul><li>a`,
		"clean.md":     `<p>fine</p>`,
		"nested/b.md":  `<div>open`,
		"ignored.txt":  `<div>not markdown`,
		"also.markdown": `<em>open`,
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	fixer := NewFileFixer(nil, false)
	results, err := fixer.FixAllMarkdownFiles(tmpDir)
	if err != nil {
		t.Fatalf("FixAllMarkdownFiles failed: %v", err)
	}

	// Only the modified markdown files appear in the result map
	if len(results) != 3 {
		t.Fatalf("Expected 3 fixed files, got %d: %v", len(results), results)
	}
	if _, ok := results["clean.md"]; ok {
		t.Error("Expected clean file to be absent from results")
	}
	if _, ok := results["ignored.txt"]; ok {
		t.Error("Expected non-markdown file to be skipped")
	}

	for _, name := range []string{"broken.md", filepath.Join("nested", "b.md"), "also.markdown"} {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		if !NewTagValidator().Validate(string(data)).IsValid {
			t.Errorf("Expected %s to validate after fixing", name)
		}
	}
}
