package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"markdown-checker/internal/types"
)

func newTestManager(t *testing.T) *ReportManager {
	t.Helper()
	mgr, err := NewReportManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportManager failed: %v", err)
	}
	return mgr
}

func invalidResult() *types.ValidationResult {
	return &types.ValidationResult{
		IsValid: false,
		Errors:  []string{"unclosed tag <div> at line 1, column 1"},
		Unclosed: []types.TagRecord{
			{Name: "div", Position: 0, RawTag: "<div>"},
		},
		Suggestions: []types.Suggestion{
			{Kind: types.SuggestionAddClosingTag, Name: "div"},
		},
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	mgr := newTestManager(t)

	report := &types.CheckReport{
		Source: "docs/readme.md",
		Result: invalidResult(),
	}

	if err := mgr.SaveReport(report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	if report.SourceID == "" {
		t.Fatal("Expected SourceID derived on save")
	}
	if report.CheckedAt == 0 {
		t.Error("Expected CheckedAt populated on save")
	}

	loaded, err := mgr.LoadReport(report.SourceID)
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}

	if loaded.Source != "docs/readme.md" {
		t.Errorf("Expected source round-tripped, got %q", loaded.Source)
	}
	if loaded.Result == nil || loaded.Result.IsValid {
		t.Error("Expected invalid result round-tripped")
	}
	if len(loaded.Result.Unclosed) != 1 || loaded.Result.Unclosed[0].Name != "div" {
		t.Errorf("Expected unclosed record round-tripped, got %v", loaded.Result.Unclosed)
	}
	if len(loaded.Result.Suggestions) != 1 || loaded.Result.Suggestions[0].Kind != types.SuggestionAddClosingTag {
		t.Errorf("Expected suggestion round-tripped, got %v", loaded.Result.Suggestions)
	}
}

func TestSaveReport_EmptySourceRejected(t *testing.T) {
	mgr := newTestManager(t)

	if err := mgr.SaveReport(&types.CheckReport{}); err == nil {
		t.Fatal("Expected error for report without source")
	}
}

func TestListReports_NewestFirst(t *testing.T) {
	mgr := newTestManager(t)

	older := &types.CheckReport{
		Source:    "a.md",
		CheckedAt: time.Now().Add(-time.Hour).UnixMilli(),
		Result:    invalidResult(),
	}
	newer := &types.CheckReport{
		Source:    "b.md",
		CheckedAt: time.Now().UnixMilli(),
		Result:    &types.ValidationResult{IsValid: true},
	}

	if err := mgr.SaveReport(older); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SaveReport(newer); err != nil {
		t.Fatal(err)
	}

	reports, err := mgr.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}
	if reports[0].Source != "b.md" {
		t.Errorf("Expected newest report first, got %q", reports[0].Source)
	}
}

func TestListReports_EmptyDir(t *testing.T) {
	mgr := newTestManager(t)

	reports, err := mgr.ListReports()
	if err != nil {
		t.Fatalf("ListReports failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("Expected no reports, got %d", len(reports))
	}
}

func TestDeleteReport(t *testing.T) {
	mgr := newTestManager(t)

	report := &types.CheckReport{Source: "doc.md", Result: invalidResult()}
	if err := mgr.SaveReport(report); err != nil {
		t.Fatal(err)
	}

	if !mgr.ReportExists(report.SourceID) {
		t.Fatal("Expected report to exist after save")
	}

	if err := mgr.DeleteReport(report.SourceID); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}

	if mgr.ReportExists(report.SourceID) {
		t.Error("Expected report removed after delete")
	}
}

func TestListInvalidReports(t *testing.T) {
	mgr := newTestManager(t)

	reports := []*types.CheckReport{
		{Source: "valid.md", Result: &types.ValidationResult{IsValid: true}},
		{Source: "broken.md", Result: invalidResult()},
		{Source: "repaired.md", Result: invalidResult(), Fixed: true},
	}
	for _, r := range reports {
		if err := mgr.SaveReport(r); err != nil {
			t.Fatal(err)
		}
	}

	invalid, err := mgr.ListInvalidReports()
	if err != nil {
		t.Fatalf("ListInvalidReports failed: %v", err)
	}
	if len(invalid) != 1 {
		t.Fatalf("Expected 1 unfixed invalid report, got %d", len(invalid))
	}
	if invalid[0].Source != "broken.md" {
		t.Errorf("Expected broken.md, got %q", invalid[0].Source)
	}
}

func TestMarkFixed(t *testing.T) {
	mgr := newTestManager(t)

	report := &types.CheckReport{Source: "doc.md", Result: invalidResult()}
	if err := mgr.SaveReport(report); err != nil {
		t.Fatal(err)
	}

	fixes := []string{"Appended closing tags </div>"}
	if err := mgr.MarkFixed(report.SourceID, fixes); err != nil {
		t.Fatalf("MarkFixed failed: %v", err)
	}

	loaded, err := mgr.LoadReport(report.SourceID)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Fixed {
		t.Error("Expected report marked fixed")
	}
	if len(loaded.FixesApplied) != 1 || loaded.FixesApplied[0] != fixes[0] {
		t.Errorf("Expected fixes recorded, got %v", loaded.FixesApplied)
	}
}

func TestSourceID(t *testing.T) {
	// Short path-like sources get a readable sanitized ID
	id := SourceID("docs/readme.md")
	if strings.ContainsAny(id, "/\\: ") {
		t.Errorf("Expected sanitized ID, got %q", id)
	}
	if id == "" {
		t.Error("Expected non-empty ID")
	}

	// URLs lose their scheme
	urlID := SourceID("https://example.com/doc.md")
	if strings.Contains(urlID, "https") {
		t.Errorf("Expected scheme stripped, got %q", urlID)
	}

	// Long sources fall back to an MD5-based ID
	longID := SourceID(strings.Repeat("x", 300))
	if !strings.HasPrefix(longID, "md5_") {
		t.Errorf("Expected md5 fallback for long source, got %q", longID)
	}

	// Stable across calls
	if SourceID("docs/readme.md") != id {
		t.Error("Expected SourceID to be deterministic")
	}

	if SourceID("") != "" {
		t.Error("Expected empty ID for empty source")
	}
}

func TestCalculateFileMD5(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := CalculateFileMD5(path)
	if err != nil {
		t.Fatalf("CalculateFileMD5 failed: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("Expected 32 hex chars, got %q", first)
	}

	second, err := CalculateFileMD5(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("Expected stable hash for unchanged file")
	}
}
