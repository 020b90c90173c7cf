package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "world", "level.dat"), "level data")
	writeFile(t, filepath.Join(src, "world", "region", "r.0.0.mca"), "region data")
	writeFile(t, filepath.Join(src, "world_nether", "region", "r.0.0.mca"), "nether data")

	dest := filepath.Join(t.TempDir(), "backup.zip")
	roots := []Root{
		{Label: "world", Path: filepath.Join(src, "world")},
		{Label: "world_nether", Path: filepath.Join(src, "world_nether")},
	}

	total, err := Pack(roots, dest, nil)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	wantTotal := int64(len("level data") + len("region data") + len("nether data"))
	if total != wantTotal {
		t.Errorf("total = %d, want %d", total, wantTotal)
	}

	out := t.TempDir()
	if err := Unpack(dest, out); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	checks := map[string]string{
		"world/level.dat":              "level data",
		"world/region/r.0.0.mca":       "region data",
		"world_nether/region/r.0.0.mca": "nether data",
	}
	for rel, want := range checks {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", rel, data, want)
		}
	}
}

func TestPackSkipsAbsentRoots(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "world", "level.dat"), "data")

	dest := filepath.Join(t.TempDir(), "backup.zip")
	roots := []Root{
		{Label: "world", Path: filepath.Join(src, "world")},
		{Label: "world_the_end", Path: filepath.Join(src, "does-not-exist")},
	}

	if _, err := Pack(roots, dest, nil); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	reader, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive failed: %v", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if strings.HasPrefix(entry.Name, "world_the_end") {
			t.Errorf("absent root leaked into archive: %s", entry.Name)
		}
	}
}

func TestPackReportsProgress(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "world", "a"), "aaaa")
	writeFile(t, filepath.Join(src, "world", "b"), "bbbb")

	var calls int
	var lastProcessed, lastTotal int64
	_, err := Pack([]Root{{Label: "world", Path: filepath.Join(src, "world")}},
		filepath.Join(t.TempDir(), "backup.zip"),
		func(processed, total int64) {
			calls++
			lastProcessed = processed
			lastTotal = total
		})
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("expected one progress call per file, got %d", calls)
	}
	if lastProcessed != 8 || lastTotal != 8 {
		t.Errorf("final progress = %d/%d, want 8/8", lastProcessed, lastTotal)
	}
}

func TestUnpackRejectsTraversalEntries(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.zip")
	out, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	writer := zip.NewWriter(out)

	good, err := writer.Create("world/level.dat")
	if err != nil {
		t.Fatalf("create entry failed: %v", err)
	}
	good.Write([]byte("safe"))

	evil, err := writer.Create("../escape.txt")
	if err != nil {
		t.Fatalf("create entry failed: %v", err)
	}
	evil.Write([]byte("unsafe"))

	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	out.Close()

	parent := t.TempDir()
	destRoot := filepath.Join(parent, "restore")
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if err := Unpack(archivePath, destRoot); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(destRoot, "world", "level.dat")); err != nil {
		t.Errorf("safe entry not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.txt")); !os.IsNotExist(err) {
		t.Error("traversal entry escaped the destination root")
	}
}

func TestUnpackOverwritesExistingFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "world", "level.dat"), "new content")

	dest := filepath.Join(t.TempDir(), "backup.zip")
	if _, err := Pack([]Root{{Label: "world", Path: filepath.Join(src, "world")}}, dest, nil); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	out := t.TempDir()
	writeFile(t, filepath.Join(out, "world", "level.dat"), "old content")

	if err := Unpack(dest, out); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "world", "level.dat"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "new content" {
		t.Errorf("file = %q, want overwritten content", data)
	}
}

func TestCopyTreePreservesLayoutAndReportsFinalProgress(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "region", "r.0.0.mca"), "chunk")
	writeFile(t, filepath.Join(src, "level.dat"), "level")

	dest := filepath.Join(t.TempDir(), "copied")
	var finalProcessed, finalTotal int64
	copied, err := CopyTree(src, dest, func(processed, total int64) {
		finalProcessed = processed
		finalTotal = total
	})
	if err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}

	want := int64(len("chunk") + len("level"))
	if copied != want {
		t.Errorf("copied = %d, want %d", copied, want)
	}
	if finalProcessed != want || finalTotal != want {
		t.Errorf("final progress = %d/%d, want %d/%d", finalProcessed, finalTotal, want, want)
	}

	data, err := os.ReadFile(filepath.Join(dest, "region", "r.0.0.mca"))
	if err != nil {
		t.Fatalf("missing copied file: %v", err)
	}
	if string(data) != "chunk" {
		t.Errorf("copied content = %q, want chunk", data)
	}
}
