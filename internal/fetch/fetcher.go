// Package fetch downloads remote artifacts with digest verification and
// provisions Java runtimes from the Adoptium index.
package fetch

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
)

// Algorithm names a supported digest algorithm. SHA-256 is preferred; SHA-1
// exists only for upstream indexes that publish nothing stronger.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
)

const downloadChunkSize = 1024 * 1024

// ProgressFunc receives cumulative downloaded bytes. totalBytes is -1 when
// the server did not send a Content-Length.
type ProgressFunc func(downloadedBytes, totalBytes int64)

// Fetcher downloads files over HTTPS and verifies them against a declared
// digest before reporting success.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher using the given HTTP client, or
// http.DefaultClient when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client}
}

// Fetch streams rawURL to destination while hashing, then compares the
// digest (hex, case-insensitive) to expectedDigest. On mismatch the
// destination file is left in place for the caller to discard; it must not
// be treated as valid.
func (f *Fetcher) Fetch(rawURL, destination, expectedDigest string, algorithm Algorithm, onProgress ProgressFunc) error {
	if err := ensureHTTPS(rawURL); err != nil {
		return err
	}

	hasher, err := newHasher(algorithm)
	if err != nil {
		return err
	}

	resp, err := f.client.Get(rawURL)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "download failed for %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.KindIOFailure, "download failed for %s: HTTP %d", rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create download directory")
	}

	out, err := os.Create(destination)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create %s", destination)
	}

	totalBytes := resp.ContentLength
	var downloaded int64
	buf := make([]byte, downloadChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return apperr.Wrap(apperr.KindIOFailure, writeErr, "failed to write %s", destination)
			}
			downloaded += int64(n)
			if onProgress != nil {
				onProgress(downloaded, totalBytes)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return apperr.Wrap(apperr.KindIOFailure, readErr, "download interrupted for %s", rawURL)
		}
	}

	if err := out.Close(); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to close %s", destination)
	}

	computed := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(computed, expectedDigest) {
		return apperr.New(apperr.KindVerificationFailed,
			"%s verification failed for %s: expected %s, got %s", algorithm, rawURL, expectedDigest, computed)
	}

	log.Printf("[Fetch] Downloaded and verified %s (%d bytes, %s)", destination, downloaded, algorithm)
	return nil
}

func ensureHTTPS(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperr.Wrap(apperr.KindUnsupportedInput, err, "invalid URL %q", rawURL)
	}
	if parsed.Scheme != "https" {
		return apperr.New(apperr.KindUnsupportedInput, "only HTTPS downloads are allowed, got %q", rawURL)
	}
	return nil
}

func newHasher(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	default:
		return nil, apperr.New(apperr.KindUnsupportedInput, "unsupported digest algorithm %q", algorithm)
	}
}
