package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

func TestWriteJVMArgs(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJVMArgs(dir, 6); err != nil {
		t.Fatalf("WriteJVMArgs failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "user_jvm_args.txt"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "-Xms6G\n-Xmx6G\n" {
		t.Errorf("content = %q", data)
	}
}

func TestBuildJarCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "server.jar"), []byte("jar"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := models.ServerConfig{InstallDir: dir, MemoryGB: 4, Strategy: models.LaunchJar}
	cmd, err := buildCommand(cfg, "/opt/java/bin/java")
	if err != nil {
		t.Fatalf("buildCommand failed: %v", err)
	}

	if cmd.Dir != dir {
		t.Errorf("Dir = %q, want install dir", cmd.Dir)
	}
	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "-Xmx4G") || !strings.Contains(joined, "-jar server.jar") {
		t.Errorf("args = %v", cmd.Args)
	}
}

func TestBuildArgsFileCommandFindsInstallerArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses the unix args file name")
	}
	dir := t.TempDir()
	argsDir := filepath.Join(dir, "libraries", "net", "forge", "1.20")
	if err := os.MkdirAll(argsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(argsDir, "unix_args.txt"), []byte("-jar forge.jar"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := models.ServerConfig{InstallDir: dir, MemoryGB: 3, Strategy: models.LaunchArgsFile}
	cmd, err := buildCommand(cfg, "java")
	if err != nil {
		t.Fatalf("buildCommand failed: %v", err)
	}

	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "@user_jvm_args.txt") {
		t.Errorf("memory args file not referenced: %v", cmd.Args)
	}
	if !strings.Contains(joined, "unix_args.txt") {
		t.Errorf("installer args file not referenced: %v", cmd.Args)
	}

	// The memory file is rewritten fresh on every build.
	data, err := os.ReadFile(filepath.Join(dir, "user_jvm_args.txt"))
	if err != nil {
		t.Fatalf("memory args file missing: %v", err)
	}
	if string(data) != "-Xms3G\n-Xmx3G\n" {
		t.Errorf("memory args = %q", data)
	}
}

func TestBuildArgsFileCommandMissingArgsFile(t *testing.T) {
	cfg := models.ServerConfig{InstallDir: t.TempDir(), Strategy: models.LaunchArgsFile}
	_, err := buildCommand(cfg, "java")
	if err == nil {
		t.Fatal("expected error for missing installer args file")
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("error kind = %v, want not_found", apperr.KindOf(err))
	}
}
