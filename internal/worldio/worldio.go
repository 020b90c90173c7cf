// Package worldio validates and stages world and mod sources for import.
package worldio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/archive"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

// SourceKind names what an import source path points at.
type SourceKind string

const (
	SourceDir SourceKind = "dir"
	SourceZip SourceKind = "zip"
)

// worldMarkerFile plus a region directory identify a world save.
const (
	worldMarkerFile = "level.dat"
	regionDirName   = "region"
)

// IsWorldDir reports whether dir looks like a world save.
func IsWorldDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, worldMarkerFile)); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, regionDirName))
	return err == nil && info.IsDir()
}

// FindWorldRoot locates the world save inside dir: either dir itself or its
// single subdirectory (the layout produced by zipping a world folder).
func FindWorldRoot(dir string) (string, error) {
	if IsWorldDir(dir) {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to read %s", dir)
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
		}
	}
	if len(subdirs) == 1 && IsWorldDir(subdirs[0]) {
		return subdirs[0], nil
	}

	return "", apperr.New(apperr.KindUnsupportedInput,
		"no world found: expected %s and a %s directory at the root or in a single subfolder",
		worldMarkerFile, regionDirName)
}

// Stager prepares import sources under a temp root and cleans them up.
type Stager struct {
	tempRoot string
}

// NewStager creates a stager rooted at tempRoot.
func NewStager(tempRoot string) *Stager {
	return &Stager{tempRoot: tempRoot}
}

// StageZip extracts a zip source into a fresh staging directory and returns
// its path. The caller owns cleanup via Cleanup.
func (s *Stager) StageZip(zipPath string) (string, error) {
	if err := os.MkdirAll(s.tempRoot, 0755); err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to create staging root")
	}
	staged, err := os.MkdirTemp(s.tempRoot, "import-")
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to create staging directory")
	}
	if err := archive.Unpack(zipPath, staged); err != nil {
		os.RemoveAll(staged)
		return "", err
	}
	return staged, nil
}

// Cleanup removes a staging directory, tolerating absence. Only paths under
// the temp root are touched.
func (s *Stager) Cleanup(staged string) {
	if staged == "" {
		return
	}
	absRoot, err := filepath.Abs(s.tempRoot)
	if err != nil {
		return
	}
	absStaged, err := filepath.Abs(staged)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(absRoot, absStaged)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return
	}
	os.RemoveAll(absStaged)
}

// ValidateSource checks a world source and reports its root and size. Zip
// sources are staged first; the returned StagedDir must be passed back to
// the importer (or cleaned up) by the caller.
func (s *Stager) ValidateSource(path string, kind SourceKind) (models.WorldValidationResult, error) {
	switch kind {
	case SourceDir:
		root, err := FindWorldRoot(path)
		if err != nil {
			return models.WorldValidationResult{Valid: false, Message: err.Error()}, nil
		}
		size, err := archive.DirSize(root)
		if err != nil {
			return models.WorldValidationResult{}, apperr.Wrap(apperr.KindIOFailure, err, "failed to measure world")
		}
		return models.WorldValidationResult{Valid: true, WorldRoot: root, SizeBytes: size}, nil

	case SourceZip:
		staged, err := s.StageZip(path)
		if err != nil {
			return models.WorldValidationResult{}, err
		}
		root, err := FindWorldRoot(staged)
		if err != nil {
			s.Cleanup(staged)
			return models.WorldValidationResult{Valid: false, Message: err.Error()}, nil
		}
		size, err := archive.DirSize(root)
		if err != nil {
			s.Cleanup(staged)
			return models.WorldValidationResult{}, apperr.Wrap(apperr.KindIOFailure, err, "failed to measure world")
		}
		return models.WorldValidationResult{Valid: true, WorldRoot: root, SizeBytes: size, StagedDir: staged}, nil

	default:
		return models.WorldValidationResult{}, apperr.New(apperr.KindUnsupportedInput, "unknown source kind %q", kind)
	}
}

// ListJars returns the .jar files directly inside dir.
func ListJars(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "failed to read %s", dir)
	}
	var jars []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jar" {
			jars = append(jars, filepath.Join(dir, entry.Name()))
		}
	}
	if len(jars) == 0 {
		return nil, apperr.New(apperr.KindUnsupportedInput, "no .jar files found in %s", dir)
	}
	return jars, nil
}
