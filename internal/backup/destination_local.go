package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// LocalDestination replicates archives to a second local path, typically a
// mounted external drive or network share.
type LocalDestination struct {
	basePath string
}

// NewLocalDestination creates a local destination rooted at basePath.
func NewLocalDestination(basePath string) *LocalDestination {
	return &LocalDestination{basePath: basePath}
}

// Upload copies an archive into the destination directory.
func (ld *LocalDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	if err := os.MkdirAll(ld.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	destPath := filepath.Join(ld.basePath, filename)
	log.Printf("[LocalDest] Copying %s to %s (%d bytes)", filename, destPath, sizeBytes)

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write destination file: %w", err)
	}
	if written != sizeBytes {
		os.Remove(destPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}

	log.Printf("[LocalDest] Copy complete: %s", filename)
	return nil
}

// Download reads an archive back from the destination.
func (ld *LocalDestination) Download(filename string, writer io.Writer) error {
	srcPath := filepath.Join(ld.basePath, filename)

	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

// Delete removes an archive from the destination.
func (ld *LocalDestination) Delete(filename string) error {
	destPath := filepath.Join(ld.basePath, filename)
	if err := os.Remove(destPath); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}

// List returns all archives at the destination.
func (ld *LocalDestination) List() ([]RemoteFile, error) {
	if err := os.MkdirAll(ld.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to access destination directory: %w", err)
	}

	entries, err := os.ReadDir(ld.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination directory: %w", err)
	}

	var files []RemoteFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("[LocalDest] Warning: failed to get info for %s: %v", entry.Name(), err)
			continue
		}
		files = append(files, RemoteFile{
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().Unix(),
		})
	}
	return files, nil
}

// Type returns the destination type.
func (ld *LocalDestination) Type() string {
	return "local"
}
