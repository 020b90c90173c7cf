package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/properties"
	"github.com/Adlikkk/gamehost-one/internal/worldio"
)

type fixture struct {
	service  *Service
	registry *config.Registry
	meta     *config.MetaStore
	server   models.ServerConfig
	backups  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	configDir := t.TempDir()
	registry, err := config.NewRegistry(configDir)
	if err != nil {
		t.Fatal(err)
	}
	meta := config.NewMetaStore(configDir)

	installDir := t.TempDir()
	server, err := registry.Add(models.ServerConfig{
		Name:       "test-server",
		ServerType: "vanilla",
		Version:    "1.21",
		MemoryGB:   2,
		InstallDir: installDir,
	})
	if err != nil {
		t.Fatal(err)
	}

	backupsRoot := t.TempDir()
	proc := process.NewManager(nil, console.NewBuffer(100), t.TempDir())
	stager := worldio.NewStager(t.TempDir())

	service := NewService(backupsRoot, registry, meta, proc, nil, nil, stager, nil)
	return &fixture{
		service:  service,
		registry: registry,
		meta:     meta,
		server:   server,
		backups:  backupsRoot,
	}
}

// writeWorld creates a world folder with three files totaling 900 bytes.
func writeWorld(t *testing.T, installDir string) map[string][]byte {
	t.Helper()

	files := map[string][]byte{
		"world/level.dat":        make([]byte, 300),
		"world/region/r.0.0.mca": make([]byte, 400),
		"world/data/raids.dat":   make([]byte, 200),
	}
	for i, name := range []string{"world/level.dat", "world/region/r.0.0.mca", "world/data/raids.dat"} {
		for j := range files[name] {
			files[name][j] = byte(i*31 + j)
		}
	}

	for name, data := range files {
		path := filepath.Join(installDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return files
}

func TestBackupAndRestoreRoundTrip(t *testing.T) {
	fx := newFixture(t)
	files := writeWorld(t, fx.server.InstallDir)

	for _, dim := range []string{"world_nether", "world_the_end"} {
		if err := os.MkdirAll(filepath.Join(fx.server.InstallDir, dim), 0755); err != nil {
			t.Fatal(err)
		}
	}

	entry, err := fx.service.Backup(fx.server.ID, true, "manual")
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if entry.SizeBytes != 900 {
		t.Errorf("expected 900 bytes archived, got %d", entry.SizeBytes)
	}
	if entry.Reason != "manual" {
		t.Errorf("expected reason manual, got %q", entry.Reason)
	}
	if _, err := os.Stat(entry.Path); err != nil {
		t.Fatalf("archive file missing: %v", err)
	}

	list, err := fx.service.List(fx.server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected manifest of length 1, got %d", len(list))
	}

	meta, err := fx.meta.Get(fx.server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.LastBackupAt == nil {
		t.Error("backup should record last backup time")
	}

	// Mutate and delete world content, then restore.
	if err := os.WriteFile(filepath.Join(fx.server.InstallDir, "world", "level.dat"), []byte("corrupted"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(fx.server.InstallDir, "world", "data")); err != nil {
		t.Fatal(err)
	}

	if err := fx.service.Restore(fx.server.ID, entry.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(fx.server.InstallDir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("restored file missing: %v", err)
		}
		if string(got) != string(want) {
			t.Errorf("restored content differs for %s", name)
		}
	}
}

func TestBackupUnknownServer(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Backup("nope", false, "manual")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeleteBackupRemovesEntryAndFile(t *testing.T) {
	fx := newFixture(t)
	writeWorld(t, fx.server.InstallDir)

	entry, err := fx.service.Backup(fx.server.ID, false, "manual")
	if err != nil {
		t.Fatal(err)
	}

	if err := fx.service.Delete(fx.server.ID, entry.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	list, err := fx.service.List(fx.server.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty manifest, got %d entries", len(list))
	}
	if _, err := os.Stat(entry.Path); !os.IsNotExist(err) {
		t.Error("archive file should be removed")
	}

	if err := fx.service.Delete(fx.server.ID, entry.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for second delete, got %v", err)
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	fx := newFixture(t)
	if err := fx.service.Restore(fx.server.ID, "20240101_000000"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestExportWorldRefusesExistingDestination(t *testing.T) {
	fx := newFixture(t)
	writeWorld(t, fx.server.InstallDir)

	dest := filepath.Join(t.TempDir(), "export.zip")
	if err := os.WriteFile(dest, []byte("occupied"), 0644); err != nil {
		t.Fatal(err)
	}

	err := fx.service.ExportWorld(fx.server.ID, dest, false)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestExportWorldWritesArchive(t *testing.T) {
	fx := newFixture(t)
	writeWorld(t, fx.server.InstallDir)

	dest := filepath.Join(t.TempDir(), "export.zip")
	if err := fx.service.ExportWorld(fx.server.ID, dest, false); err != nil {
		t.Fatalf("ExportWorld failed: %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("export archive missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("export archive is empty")
	}
}

func TestImportWorldReplacesWorldAndRewritesLevelName(t *testing.T) {
	fx := newFixture(t)
	writeWorld(t, fx.server.InstallDir)

	// A different world under a new folder name.
	src := t.TempDir()
	worldDir := filepath.Join(src, "imported_world")
	if err := os.MkdirAll(filepath.Join(worldDir, "region"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(worldDir, "level.dat"), []byte("fresh"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := fx.service.ValidateWorldSource(src, worldio.SourceDir)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("source should validate: %s", result.Message)
	}

	if err := fx.service.ImportWorld(fx.server.ID, result); err != nil {
		t.Fatalf("ImportWorld failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(fx.server.InstallDir, "imported_world", "level.dat"))
	if err != nil {
		t.Fatalf("imported world missing: %v", err)
	}
	if string(data) != "fresh" {
		t.Error("imported world content differs")
	}

	props, err := properties.ReadFile(filepath.Join(fx.server.InstallDir, "server.properties"))
	if err != nil {
		t.Fatal(err)
	}
	if props["level-name"] != "imported_world" {
		t.Errorf("expected level-name imported_world, got %q", props["level-name"])
	}
}

func TestImportWorldRejectsInvalidSource(t *testing.T) {
	fx := newFixture(t)
	err := fx.service.ImportWorld(fx.server.ID, models.WorldValidationResult{Valid: false})
	if !apperr.IsKind(err, apperr.KindUnsupportedInput) {
		t.Fatalf("expected UnsupportedInput, got %v", err)
	}
}

func TestImportModsRefusesOverwrite(t *testing.T) {
	fx := newFixture(t)

	src := t.TempDir()
	for _, name := range []string{"alpha.jar", "beta.jar"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := fx.service.ImportMods(fx.server.ID, src, worldio.SourceDir); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	for _, name := range []string{"alpha.jar", "beta.jar"} {
		if _, err := os.Stat(filepath.Join(fx.server.InstallDir, "mods", name)); err != nil {
			t.Fatalf("mod %s missing after import: %v", name, err)
		}
	}

	err := fx.service.ImportMods(fx.server.ID, src, worldio.SourceDir)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict on re-import, got %v", err)
	}
}

func TestManifestStoreMissingIsEmpty(t *testing.T) {
	store := NewManifestStore(t.TempDir())
	manifest, err := store.Load("nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Entries) != 0 {
		t.Fatalf("expected empty manifest, got %d entries", len(manifest.Entries))
	}
}

func TestBackupDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-24 * time.Hour)
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	cases := []struct {
		name string
		meta models.ServerMeta
		want bool
	}{
		{"no schedule", models.ServerMeta{AutoBackup: true}, false},
		{"interval due", models.ServerMeta{AutoBackup: true, IntervalMinutes: 60, LastBackupAt: &old}, true},
		{"interval not due", models.ServerMeta{AutoBackup: true, IntervalMinutes: 60, LastBackupAt: &recent}, false},
		{"never backed up", models.ServerMeta{AutoBackup: true, IntervalMinutes: 60}, true},
		{"cron due", models.ServerMeta{AutoBackup: true, CronExpr: "0 * * * *", LastBackupAt: &old}, true},
		{"cron not due", models.ServerMeta{AutoBackup: true, CronExpr: "0 0 1 1 *", LastBackupAt: &recent}, false},
	}

	for _, tc := range cases {
		got, err := backupDue(tc.meta, created, now)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected due=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestBackupDueInvalidCron(t *testing.T) {
	meta := models.ServerMeta{AutoBackup: true, CronExpr: "not a cron"}
	if _, err := backupDue(meta, time.Now(), time.Now()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
