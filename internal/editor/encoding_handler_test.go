package editor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

func newTestEncodingHandler(t *testing.T) *EncodingHandler {
	t.Helper()
	return NewEncodingHandler(NewBackupManager(t.TempDir()))
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestDetectEncoding_UTF8(t *testing.T) {
	handler := newTestEncodingHandler(t)
	path := writeTestFile(t, t.TempDir(), "utf8.md", []byte("# Plain UTF-8 with 中文"))

	encoding, err := handler.DetectEncoding(path)
	if err != nil {
		t.Fatalf("DetectEncoding failed: %v", err)
	}
	if encoding != "UTF-8" {
		t.Errorf("Expected UTF-8, got %s", encoding)
	}
}

func TestDetectEncoding_UTF8BOM(t *testing.T) {
	handler := newTestEncodingHandler(t)
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("# With BOM")...)
	path := writeTestFile(t, t.TempDir(), "bom.md", data)

	encoding, err := handler.DetectEncoding(path)
	if err != nil {
		t.Fatalf("DetectEncoding failed: %v", err)
	}
	if encoding != "UTF-8-BOM" {
		t.Errorf("Expected UTF-8-BOM, got %s", encoding)
	}
}

func TestDetectEncoding_UTF16(t *testing.T) {
	handler := newTestEncodingHandler(t)
	tmpDir := t.TempDir()

	lePath := writeTestFile(t, tmpDir, "le.md", []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00})
	bePath := writeTestFile(t, tmpDir, "be.md", []byte{0xFE, 0xFF, 0x00, 'h', 0x00, 'i'})

	if enc, err := handler.DetectEncoding(lePath); err != nil || enc != "UTF-16LE" {
		t.Errorf("Expected UTF-16LE, got %s (err %v)", enc, err)
	}
	if enc, err := handler.DetectEncoding(bePath); err != nil || enc != "UTF-16BE" {
		t.Errorf("Expected UTF-16BE, got %s (err %v)", enc, err)
	}
}

func TestDetectEncoding_GBK(t *testing.T) {
	handler := newTestEncodingHandler(t)

	gbkData, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("中文文档内容"))
	if err != nil {
		t.Fatalf("Failed to encode GBK test data: %v", err)
	}
	path := writeTestFile(t, t.TempDir(), "gbk.md", gbkData)

	encoding, err := handler.DetectEncoding(path)
	if err != nil {
		t.Fatalf("DetectEncoding failed: %v", err)
	}
	if encoding != "GBK" {
		t.Errorf("Expected GBK, got %s", encoding)
	}
}

func TestReadFileWithEncoding_ConvertsToUTF8(t *testing.T) {
	handler := newTestEncodingHandler(t)
	tmpDir := t.TempDir()
	want := "# 标题\n<div>内容</div>\n"

	gbkData, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatal(err)
	}

	utf16Data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"plain.md": []byte(want),
		"bom.md":   append([]byte{0xEF, 0xBB, 0xBF}, []byte(want)...),
		"gbk.md":   gbkData,
		"utf16.md": utf16Data,
	}

	for name, data := range cases {
		path := writeTestFile(t, tmpDir, name, data)
		got, err := handler.ReadFileWithEncoding(path)
		if err != nil {
			t.Errorf("ReadFileWithEncoding(%s) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ReadFileWithEncoding(%s) = %q, want %q", name, got, want)
		}
	}
}

func TestRemoveBOM(t *testing.T) {
	handler := newTestEncodingHandler(t)
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("content")...)
	path := writeTestFile(t, t.TempDir(), "bom.md", data)

	if err := handler.RemoveBOM(path); err != nil {
		t.Fatalf("RemoveBOM failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.HasPrefix(got, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("Expected BOM removed")
	}
	if string(got) != "content" {
		t.Errorf("Expected content preserved, got %q", got)
	}
}

func TestRemoveBOM_NoBOMIsNoop(t *testing.T) {
	handler := newTestEncodingHandler(t)
	path := writeTestFile(t, t.TempDir(), "plain.md", []byte("no bom here"))

	if err := handler.RemoveBOM(path); err != nil {
		t.Fatalf("RemoveBOM failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "no bom here" {
		t.Errorf("Expected content untouched, got %q", got)
	}
}

func TestEnsureUTF8_ConvertsGBKInPlace(t *testing.T) {
	handler := newTestEncodingHandler(t)
	want := "中文内容"

	gbkData, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatal(err)
	}
	path := writeTestFile(t, t.TempDir(), "gbk.md", gbkData)

	if err := handler.EnsureUTF8(path); err != nil {
		t.Fatalf("EnsureUTF8 failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("Expected UTF-8 %q, got %q", want, got)
	}

	valid, err := handler.ValidateUTF8(path)
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Error("Expected converted file to be valid UTF-8")
	}
}

func TestEnsureUTF8_AlreadyUTF8IsNoop(t *testing.T) {
	handler := newTestEncodingHandler(t)
	path := writeTestFile(t, t.TempDir(), "plain.md", []byte("already fine"))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	before := info.ModTime()

	if err := handler.EnsureUTF8(path); err != nil {
		t.Fatalf("EnsureUTF8 failed: %v", err)
	}

	info, err = os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(before) {
		t.Error("Expected UTF-8 file not to be rewritten")
	}
}
