package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
)

const adoptiumAssetsURL = "https://api.adoptium.net/v3/assets/latest/%d/hotspot?architecture=%s&image_type=jre&os=%s&vendor=eclipse"

type adoptiumAsset struct {
	ReleaseName string `json:"release_name"`
	Binary      struct {
		Package struct {
			Name     string `json:"name"`
			Link     string `json:"link"`
			Checksum string `json:"checksum"` // sha256 hex
		} `json:"package"`
	} `json:"binary"`
}

// RuntimePackage describes a platform-matched runtime archive resolved from
// the Adoptium index.
type RuntimePackage struct {
	Name     string
	URL      string
	Checksum string
	Release  string
}

// ResolveRuntime looks up the latest JRE package for the given feature
// version matching the current OS and architecture.
func (f *Fetcher) ResolveRuntime(majorVersion int) (*RuntimePackage, error) {
	osName, arch, err := adoptiumPlatform()
	if err != nil {
		return nil, err
	}

	indexURL := fmt.Sprintf(adoptiumAssetsURL, majorVersion, arch, osName)
	resp, err := f.client.Get(indexURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "runtime index lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindNotFound, "no Java %d runtime available for %s/%s (HTTP %d)",
			majorVersion, osName, arch, resp.StatusCode)
	}

	var assets []adoptiumAsset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "failed to decode runtime index")
	}
	if len(assets) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "no Java %d runtime available for %s/%s", majorVersion, osName, arch)
	}

	pkg := assets[0].Binary.Package
	if pkg.Link == "" || pkg.Checksum == "" {
		return nil, apperr.New(apperr.KindNotFound, "runtime index entry for Java %d is incomplete", majorVersion)
	}

	return &RuntimePackage{
		Name:     pkg.Name,
		URL:      pkg.Link,
		Checksum: pkg.Checksum,
		Release:  assets[0].ReleaseName,
	}, nil
}

// FetchAndExtractRuntime resolves, downloads, verifies, and installs a Java
// runtime under installRoot/java-<majorVersion>, replacing any prior
// install. The staging directory is removed on completion, success or not.
func (f *Fetcher) FetchAndExtractRuntime(majorVersion int, installRoot string, onProgress ProgressFunc) (string, error) {
	pkg, err := f.ResolveRuntime(majorVersion)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(installRoot, 0755); err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to create runtime root")
	}

	staging, err := os.MkdirTemp(installRoot, ".runtime-staging-")
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	archivePath := filepath.Join(staging, pkg.Name)
	if err := f.Fetch(pkg.URL, archivePath, pkg.Checksum, SHA256, onProgress); err != nil {
		return "", err
	}

	extractDir := filepath.Join(staging, "extracted")
	if err := extractRuntimeArchive(archivePath, extractDir); err != nil {
		return "", err
	}

	// Adoptium archives wrap everything in a single release directory.
	topLevel, err := firstTopLevelDir(extractDir)
	if err != nil {
		return "", err
	}

	installDir := filepath.Join(installRoot, fmt.Sprintf("java-%d", majorVersion))
	if err := os.RemoveAll(installDir); err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to clear previous runtime install")
	}

	if err := os.Rename(topLevel, installDir); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if _, copyErr := copyPlainTree(topLevel, installDir); copyErr != nil {
			return "", apperr.Wrap(apperr.KindIOFailure, copyErr, "failed to install runtime")
		}
	}

	log.Printf("[Fetch] Installed Java %d runtime (%s) at %s", majorVersion, pkg.Release, installDir)
	return installDir, nil
}

// JavaBinary returns the java executable inside a runtime install, or an
// error when the runtime is absent.
func JavaBinary(installDir string) (string, error) {
	binName := "java"
	if runtime.GOOS == "windows" {
		binName = "java.exe"
	}

	var found string
	err := filepath.Walk(installDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.Name() == binName {
			found = path
			return io.EOF
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to scan runtime install")
	}
	if found == "" {
		return "", apperr.New(apperr.KindExternalToolMissing, "java binary not found under %s", installDir)
	}
	return found, nil
}

func adoptiumPlatform() (string, string, error) {
	var osName string
	switch runtime.GOOS {
	case "linux":
		osName = "linux"
	case "darwin":
		osName = "mac"
	case "windows":
		osName = "windows"
	default:
		return "", "", apperr.New(apperr.KindUnsupportedInput, "unsupported operating system %q", runtime.GOOS)
	}

	var arch string
	switch runtime.GOARCH {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "aarch64"
	default:
		return "", "", apperr.New(apperr.KindUnsupportedInput, "unsupported architecture %q", runtime.GOARCH)
	}

	return osName, arch, nil
}

func extractRuntimeArchive(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create extraction directory")
	}

	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(archivePath, destDir)
	default:
		return apperr.New(apperr.KindUnsupportedInput, "unsupported runtime archive %q", filepath.Base(archivePath))
	}
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open runtime archive")
	}
	defer reader.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, entry := range reader.File {
		target := filepath.Join(absDest, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, absDest+string(os.PathSeparator)) {
			continue
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		in, err := entry.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
		if err != nil {
			in.Close()
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			out.Close()
			return err
		}
		in.Close()
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open runtime archive")
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to read runtime archive")
	}
	defer gz.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperr.Wrap(apperr.KindIOFailure, err, "failed to read runtime archive")
		}

		target := filepath.Join(absDest, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(target, absDest+string(os.PathSeparator)) {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, reader); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func firstTopLevelDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to read extraction directory")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(root, entry.Name()), nil
		}
	}
	return "", apperr.New(apperr.KindUnsupportedInput, "runtime archive has no top-level directory")
}

func copyPlainTree(source, destination string) (int64, error) {
	var copied int64
	err := filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		n, err := io.Copy(out, in)
		if err != nil {
			out.Close()
			return err
		}
		copied += n
		return out.Close()
	})
	return copied, err
}
