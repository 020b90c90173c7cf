// Package backup orchestrates point-in-time world archives, restores, and
// world/mod imports for managed servers.
package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/archive"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/properties"
	"github.com/Adlikkk/gamehost-one/internal/worldio"
)

// backupIDLayout formats backup ids as yyyyMMdd_HHmmss.
const backupIDLayout = "20060102_150405"

// defaultLevelName is used when the properties file does not name a world.
const defaultLevelName = "world"

// secondaryDimSuffixes are appended to the level name to locate auxiliary
// dimension folders next to the primary world.
var secondaryDimSuffixes = []string{"_nether", "_the_end"}

// Service performs backup, restore, export, and import operations. Operations
// on the same server are serialized by a per-server mutex; operations on
// different servers may run concurrently.
type Service struct {
	manifests *ManifestStore
	registry  *config.Registry
	meta      *config.MetaStore
	proc      *process.Manager
	notifier  events.Notifier
	activity  *logging.ActivityLogger
	stager    *worldio.Stager
	offsite   []config.OffsiteDestination

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates the backup service. notifier and activity may be nil.
func NewService(backupsRoot string, registry *config.Registry, meta *config.MetaStore,
	proc *process.Manager, notifier events.Notifier, activity *logging.ActivityLogger,
	stager *worldio.Stager, offsite []config.OffsiteDestination) *Service {
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &Service{
		manifests: NewManifestStore(backupsRoot),
		registry:  registry,
		meta:      meta,
		proc:      proc,
		notifier:  notifier,
		activity:  activity,
		stager:    stager,
		offsite:   offsite,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(serverID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[serverID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[serverID] = mu
	}
	return mu
}

func (s *Service) logOp(serverID, activityType, description string, err error) {
	if s.activity != nil {
		s.activity.LogOperation(serverID, activityType, description, err)
	}
}

// levelName reads the world folder name from the server's properties file,
// falling back to the default when unset.
func levelName(installDir string) string {
	props, err := properties.ReadFile(filepath.Join(installDir, "server.properties"))
	if err != nil {
		return defaultLevelName
	}
	if name := props["level-name"]; name != "" {
		return name
	}
	return defaultLevelName
}

// worldRoots returns the archive roots for a server: the primary world plus,
// when requested, the secondary dimension folders. Absent roots are returned
// anyway; the archive engine skips them.
func worldRoots(cfg models.ServerConfig, includeSecondary bool) []archive.Root {
	level := levelName(cfg.InstallDir)
	roots := []archive.Root{{Label: level, Path: filepath.Join(cfg.InstallDir, level)}}
	if includeSecondary {
		for _, suffix := range secondaryDimSuffixes {
			roots = append(roots, archive.Root{
				Label: level + suffix,
				Path:  filepath.Join(cfg.InstallDir, level+suffix),
			})
		}
	}
	return roots
}

// ensureNotConflicting enforces the single-slot rule for destructive
// operations: if a different server owns the process slot the operation is
// refused; if this server is running it is stopped first.
func (s *Service) ensureNotConflicting(serverID string) error {
	active := s.proc.ActiveServerID()
	if active != "" && active != serverID {
		return apperr.New(apperr.KindConflict, "another server is currently running")
	}
	if active == serverID && s.proc.IsRunning() {
		log.Printf("[Backup] Stopping server %s before destructive operation", serverID)
		if err := s.proc.Stop(); err != nil {
			return fmt.Errorf("failed to stop server before operation: %w", err)
		}
	}
	return nil
}

// Backup archives a server's world folders into a new manifest entry. The
// server may be running; autosave is flushed and paused around the archive
// step, best-effort.
func (s *Service) Backup(serverID string, includeSecondary bool, reason string) (models.BackupEntry, error) {
	cfg, ok := s.registry.GetByID(serverID)
	if !ok {
		return models.BackupEntry{}, apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}

	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	running := s.proc.ActiveServerID() == serverID && s.proc.IsRunning()
	if running {
		// Flush and pause autosave around the archive. Command failures
		// never abort the backup.
		if err := s.proc.SendCommand("save-off"); err != nil {
			log.Printf("[Backup] save-off failed for %s: %v", serverID, err)
		}
		if err := s.proc.SendCommand("save-all"); err != nil {
			log.Printf("[Backup] save-all failed for %s: %v", serverID, err)
		}
		defer func() {
			if err := s.proc.SendCommand("save-on"); err != nil {
				log.Printf("[Backup] save-on failed for %s: %v", serverID, err)
			}
		}()
	}

	now := time.Now()
	id := now.Format(backupIDLayout)
	dir := s.manifests.ServerDir(serverID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.BackupEntry{}, apperr.Wrap(apperr.KindIOFailure, err, "failed to create backup directory")
	}
	archivePath := filepath.Join(dir, id+".zip")

	log.Printf("[Backup] Creating backup %s for server %s (secondary=%v)", id, serverID, includeSecondary)
	size, err := archive.Pack(worldRoots(cfg, includeSecondary), archivePath, func(processed, total int64) {
		s.notifier.Progress(serverID, events.TypeBackupProgress, processed, total)
	})
	if err != nil {
		s.logOp(serverID, logging.ActivityBackupCreate, "backup "+id, err)
		return models.BackupEntry{}, err
	}

	entry := models.BackupEntry{
		ID:        id,
		CreatedAt: now,
		SizeBytes: size,
		Path:      archivePath,
		Reason:    reason,
	}
	if err := s.manifests.Append(serverID, entry); err != nil {
		return models.BackupEntry{}, err
	}

	if err := s.meta.TouchLastBackup(serverID, now); err != nil {
		log.Printf("[Backup] Failed to record last backup time for %s: %v", serverID, err)
	}

	s.replicate(serverID, entry)

	s.logOp(serverID, logging.ActivityBackupCreate, "backup "+id, nil)
	log.Printf("[Backup] Backup %s complete for server %s (%d bytes)", id, serverID, size)
	return entry, nil
}

// List returns all backup entries for a server, newest last.
func (s *Service) List(serverID string) ([]models.BackupEntry, error) {
	if _, ok := s.registry.GetByID(serverID); !ok {
		return nil, apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}
	manifest, err := s.manifests.Load(serverID)
	if err != nil {
		return nil, err
	}
	return manifest.Entries, nil
}

// Delete removes a backup entry from the manifest and, best-effort, its
// archive file and offsite copies.
func (s *Service) Delete(serverID, backupID string) error {
	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.manifests.Remove(serverID, backupID)
	if err != nil {
		return err
	}

	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[Backup] Failed to remove archive %s: %v", entry.Path, err)
	}
	for _, destCfg := range s.offsite {
		dest, err := NewDestination(destCfg)
		if err != nil {
			continue
		}
		if err := dest.Delete(offsiteName(serverID, entry.ID)); err != nil {
			log.Printf("[Backup] Failed to remove offsite copy of %s: %v", entry.ID, err)
		}
		closeDestination(dest)
	}

	s.logOp(serverID, logging.ActivityBackupDelete, "delete backup "+backupID, nil)
	return nil
}

// Restore replaces a server's world folders with the contents of a backup
// archive. The server is stopped first if it is the active one; a different
// active server refuses the operation. The archive is extracted into a sibling
// staging directory and swapped into place folder by folder, so an extraction
// failure leaves the live world untouched; the backup archive itself is never
// modified.
func (s *Service) Restore(serverID, backupID string) error {
	cfg, ok := s.registry.GetByID(serverID)
	if !ok {
		return apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}

	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.manifests.Get(serverID, backupID)
	if err != nil {
		return err
	}

	if err := s.ensureNotConflicting(serverID); err != nil {
		return err
	}

	log.Printf("[Backup] Restoring backup %s for server %s", backupID, serverID)
	staging, err := os.MkdirTemp(cfg.InstallDir, ".restore-")
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create restore staging directory")
	}
	defer os.RemoveAll(staging)

	if err := archive.Unpack(entry.Path, staging); err != nil {
		s.logOp(serverID, logging.ActivityBackupRestore, "restore "+backupID, err)
		return err
	}

	stagedRoots, err := os.ReadDir(staging)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to read restore staging directory")
	}
	restored := make(map[string]bool, len(stagedRoots))
	for _, root := range stagedRoots {
		if !root.IsDir() {
			continue
		}
		restored[root.Name()] = true
		dest := filepath.Join(cfg.InstallDir, root.Name())
		if err := swapInPlace(filepath.Join(staging, root.Name()), dest); err != nil {
			err = apperr.Wrap(apperr.KindIOFailure, err, "failed to swap in world folder %s", root.Name())
			s.logOp(serverID, logging.ActivityBackupRestore, "restore "+backupID, err)
			return err
		}
	}

	// World folders not present in the archive are removed so the on-disk
	// state matches the backup.
	for _, root := range worldRoots(cfg, true) {
		if restored[root.Label] {
			continue
		}
		if err := os.RemoveAll(root.Path); err != nil {
			log.Printf("[Backup] Failed to remove stale world folder %s: %v", root.Label, err)
		}
	}

	s.logOp(serverID, logging.ActivityBackupRestore, "restore "+backupID, nil)
	log.Printf("[Backup] Restore of %s complete for server %s", backupID, serverID)
	return nil
}

// ExportWorld packs a server's world folders into an archive at destination.
// The destination must not exist. The server is stopped first if running.
func (s *Service) ExportWorld(serverID, destination string, includeSecondary bool) error {
	cfg, ok := s.registry.GetByID(serverID)
	if !ok {
		return apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}

	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(destination); err == nil {
		return apperr.New(apperr.KindConflict, "destination file already exists: %s", destination)
	}

	if err := s.ensureNotConflicting(serverID); err != nil {
		return err
	}

	log.Printf("[Backup] Exporting world of server %s to %s", serverID, destination)
	_, err := archive.Pack(worldRoots(cfg, includeSecondary), destination, func(processed, total int64) {
		s.notifier.Progress(serverID, events.TypeExportProgress, processed, total)
	})
	s.logOp(serverID, logging.ActivityWorldExport, "export world to "+destination, err)
	return err
}

// ValidateWorldSource checks an import source without touching the server.
// Zip sources are staged; the returned StagedDir stays on disk until the
// caller imports it or the stager cleans it up.
func (s *Service) ValidateWorldSource(path string, kind worldio.SourceKind) (models.WorldValidationResult, error) {
	return s.stager.ValidateSource(path, kind)
}

// ImportWorld replaces a server's primary world with a validated source and
// rewrites the world folder name in the properties file to match. The source
// is copied into a sibling staging directory and swapped into place, so a copy
// failure leaves the current world untouched. Any staging directory recorded
// in the source is removed afterward, also on failure.
func (s *Service) ImportWorld(serverID string, source models.WorldValidationResult) error {
	defer s.stager.Cleanup(source.StagedDir)

	if !source.Valid || source.WorldRoot == "" {
		return apperr.New(apperr.KindUnsupportedInput, "source is not a valid world")
	}

	cfg, ok := s.registry.GetByID(serverID)
	if !ok {
		return apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}

	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.ensureNotConflicting(serverID); err != nil {
		return err
	}

	worldName := filepath.Base(source.WorldRoot)
	dest := filepath.Join(cfg.InstallDir, worldName)

	log.Printf("[Backup] Importing world %s into server %s", worldName, serverID)
	staging, err := os.MkdirTemp(cfg.InstallDir, ".import-")
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create import staging directory")
	}
	defer os.RemoveAll(staging)

	_, err = archive.CopyTree(source.WorldRoot, filepath.Join(staging, worldName), func(processed, total int64) {
		s.notifier.Progress(serverID, events.TypeCopyProgress, processed, total)
	})
	if err != nil {
		s.logOp(serverID, logging.ActivityWorldImport, "import world "+worldName, err)
		return err
	}

	if err := swapInPlace(filepath.Join(staging, worldName), dest); err != nil {
		err = apperr.Wrap(apperr.KindIOFailure, err, "failed to swap in world folder %s", worldName)
		s.logOp(serverID, logging.ActivityWorldImport, "import world "+worldName, err)
		return err
	}

	err = properties.UpdateFile(filepath.Join(cfg.InstallDir, "server.properties"),
		map[string]string{"level-name": worldName})
	s.logOp(serverID, logging.ActivityWorldImport, "import world "+worldName, err)
	return err
}

// ImportMods copies the .jar files from a source directory or zip into the
// server's mods folder. An existing mod file with the same name refuses the
// whole operation before anything is copied.
func (s *Service) ImportMods(serverID, path string, kind worldio.SourceKind) error {
	cfg, ok := s.registry.GetByID(serverID)
	if !ok {
		return apperr.New(apperr.KindNotFound, "server not found: %s", serverID)
	}

	mu := s.lockFor(serverID)
	mu.Lock()
	defer mu.Unlock()

	sourceDir := path
	if kind == worldio.SourceZip {
		staged, err := s.stager.StageZip(path)
		if err != nil {
			return err
		}
		defer s.stager.Cleanup(staged)
		sourceDir = staged
	}

	jars, err := worldio.ListJars(sourceDir)
	if err != nil {
		return err
	}

	modsDir := filepath.Join(cfg.InstallDir, "mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create mods directory")
	}

	for _, jar := range jars {
		dest := filepath.Join(modsDir, filepath.Base(jar))
		if _, err := os.Stat(dest); err == nil {
			return apperr.New(apperr.KindConflict, "mod file already exists: %s", filepath.Base(jar))
		}
	}

	for _, jar := range jars {
		if err := copyFile(jar, filepath.Join(modsDir, filepath.Base(jar))); err != nil {
			s.logOp(serverID, logging.ActivityModsImport, "import mods", err)
			return err
		}
	}

	s.logOp(serverID, logging.ActivityModsImport, fmt.Sprintf("import %d mods", len(jars)), nil)
	log.Printf("[Backup] Imported %d mods into server %s", len(jars), serverID)
	return nil
}

// replicate uploads a finished archive to every offsite destination.
// Replication is best-effort and never fails the backup that triggered it.
func (s *Service) replicate(serverID string, entry models.BackupEntry) {
	for _, destCfg := range s.offsite {
		dest, err := NewDestination(destCfg)
		if err != nil {
			log.Printf("[Backup] Skipping offsite destination %s: %v", destCfg.Type, err)
			continue
		}

		file, err := os.Open(entry.Path)
		if err != nil {
			log.Printf("[Backup] Failed to open archive for replication: %v", err)
			closeDestination(dest)
			continue
		}

		if err := dest.Upload(offsiteName(serverID, entry.ID), file, entry.SizeBytes); err != nil {
			log.Printf("[Backup] Offsite replication to %s failed: %v", dest.Type(), err)
		}
		file.Close()
		closeDestination(dest)
	}
}

func offsiteName(serverID, backupID string) string {
	return serverID + "_" + backupID + ".zip"
}

func closeDestination(dest Destination) {
	if closer, ok := dest.(io.Closer); ok {
		closer.Close()
	}
}

// swapInPlace replaces dst with the staged directory. The current dst is
// renamed aside first so a failed swap can put it back; when even the fallback
// copy fails after dst was cleared, the prior contents are restored from the
// aside copy. The remove-then-copy fallback is not crash-consistent: a process
// crash between the remove and the copy loses dst.
func swapInPlace(staged, dst string) error {
	aside := dst + ".old"
	if err := os.RemoveAll(aside); err != nil {
		return err
	}

	hasAside := false
	if _, err := os.Stat(dst); err == nil {
		if err := os.Rename(dst, aside); err != nil {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		} else {
			hasAside = true
		}
	}

	if err := os.Rename(staged, dst); err != nil {
		os.RemoveAll(dst)
		if _, copyErr := archive.CopyTree(staged, dst, nil); copyErr != nil {
			if hasAside {
				os.RemoveAll(dst)
				os.Rename(aside, dst)
			}
			return copyErr
		}
	}

	if hasAside {
		return os.RemoveAll(aside)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to copy %s", src)
	}
	return out.Close()
}
