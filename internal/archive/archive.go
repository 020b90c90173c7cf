// Package archive builds and extracts zip archives for world data and copies
// directory trees with progress reporting.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProgressFunc receives cumulative processed bytes against the total
// computed before work started.
type ProgressFunc func(processedBytes, totalBytes int64)

// Root is one directory packed into an archive under its label.
type Root struct {
	Label string
	Path  string
}

const copyBufferSize = 8 * 1024 * 1024

// progressInterval bounds how often CopyTree emits progress so large copies
// do not flood the notification channel.
const progressInterval = 250 * time.Millisecond

// Pack archives the given roots into a zip at destination. Each file is
// stored under "<label>/<relative path>". Roots whose path does not exist
// are skipped silently. onProgress, when non-nil, fires after each file with
// cumulative bytes against the up-front total.
func Pack(roots []Root, destination string, onProgress ProgressFunc) (int64, error) {
	present := make([]Root, 0, len(roots))
	var totalBytes int64
	for _, root := range roots {
		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			continue
		}
		size, err := dirSize(root.Path)
		if err != nil {
			return 0, fmt.Errorf("failed to measure %s: %w", root.Path, err)
		}
		totalBytes += size
		present = append(present, root)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	out, err := os.Create(destination)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	var processed int64

	for _, root := range present {
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root.Path, path)
			if err != nil {
				return err
			}
			entryName := root.Label + "/" + filepath.ToSlash(rel)

			written, err := addFile(writer, path, entryName)
			if err != nil {
				return err
			}
			processed += written
			if onProgress != nil {
				onProgress(processed, totalBytes)
			}
			return nil
		})
		if err != nil {
			writer.Close()
			return 0, fmt.Errorf("failed to pack %s: %w", root.Label, err)
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	log.Printf("[Archive] Packed %d roots (%d bytes) into %s", len(present), totalBytes, destination)
	return totalBytes, nil
}

// Unpack extracts an archive into destinationRoot. Entries whose normalized
// path would land outside destinationRoot are skipped; nothing inside the
// destination is deleted, existing files at the same relative path are
// overwritten.
func Unpack(archivePath, destinationRoot string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	absRoot, err := filepath.Abs(destinationRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	skipped := 0
	for _, entry := range reader.File {
		target, ok := enclosedPath(absRoot, entry.Name)
		if !ok {
			skipped++
			continue
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", entry.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create parent for %s: %w", entry.Name, err)
		}
		if err := extractEntry(entry, target); err != nil {
			return err
		}
	}

	if skipped > 0 {
		log.Printf("[Archive] Skipped %d unsafe entries while extracting %s", skipped, archivePath)
	}
	return nil
}

// CopyTree copies the directory tree at source into destination, creating
// destination if needed. Progress is emitted at most every 250ms plus a
// final emission when the copy completes.
func CopyTree(source, destination string, onProgress ProgressFunc) (int64, error) {
	totalBytes, err := dirSize(source)
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", source, err)
	}

	buf := make([]byte, copyBufferSize)
	var processed int64
	lastEmit := time.Now().Add(-progressInterval)

	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(target)
		if err != nil {
			return err
		}

		for {
			n, readErr := in.Read(buf)
			if n > 0 {
				if _, writeErr := out.Write(buf[:n]); writeErr != nil {
					out.Close()
					return writeErr
				}
				processed += int64(n)
				if onProgress != nil && time.Since(lastEmit) >= progressInterval {
					onProgress(processed, totalBytes)
					lastEmit = time.Now()
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				out.Close()
				return readErr
			}
		}
		return out.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy tree: %w", err)
	}

	if onProgress != nil {
		onProgress(processed, totalBytes)
	}
	return processed, nil
}

// DirSize returns the cumulative size of regular files under root.
func DirSize(root string) (int64, error) {
	return dirSize(root)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func addFile(writer *zip.Writer, path, entryName string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = entryName
	header.Method = zip.Deflate

	entry, err := writer.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("failed to create entry %s: %w", entryName, err)
	}

	written, err := io.Copy(entry, in)
	if err != nil {
		return 0, fmt.Errorf("failed to write entry %s: %w", entryName, err)
	}
	return written, nil
}

func extractEntry(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return out.Close()
}

// enclosedPath joins name onto root and reports whether the result stays
// inside root. Entry names with ".." or absolute components fail the check.
func enclosedPath(root, name string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) {
		return "", false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", false
	}
	target := filepath.Join(root, cleaned)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", false
	}
	return target, true
}
