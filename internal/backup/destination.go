package backup

import (
	"fmt"
	"io"

	"github.com/Adlikkk/gamehost-one/internal/config"
)

// Destination is one offsite replication target for backup archives.
type Destination interface {
	// Upload stores an archive under filename at the destination.
	Upload(filename string, reader io.Reader, sizeBytes int64) error

	// Download streams an archive from the destination to the writer.
	Download(filename string, writer io.Writer) error

	// Delete removes an archive from the destination.
	Delete(filename string) error

	// List returns all archive files at the destination.
	List() ([]RemoteFile, error)

	// Type returns the destination type identifier.
	Type() string
}

// RemoteFile describes one archive at a destination.
type RemoteFile struct {
	Filename  string
	SizeBytes int64
	CreatedAt int64 // Unix timestamp
}

// NewDestination builds a destination from its configuration block.
func NewDestination(cfg config.OffsiteDestination) (Destination, error) {
	switch cfg.Type {
	case "local":
		return NewLocalDestination(cfg.Path), nil
	case "sftp":
		return NewSFTPDestination(cfg)
	case "s3":
		return NewS3Destination(cfg)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Type)
	}
}
