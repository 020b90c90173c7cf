package process

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

const (
	serverJarName = "server.jar"
	jvmArgsFile   = "user_jvm_args.txt"
	unixArgsName  = "unix_args.txt"
	winArgsName   = "win_args.txt"
)

// buildCommand resolves a launch command for the config's strategy. The jar
// strategy requires server.jar in the install directory; the args-file
// strategy rewrites the memory arguments file and requires the installer's
// platform args file to exist.
func buildCommand(cfg models.ServerConfig, javaPath string) (*exec.Cmd, error) {
	switch cfg.Strategy {
	case models.LaunchArgsFile:
		return buildArgsFileCommand(cfg, javaPath)
	case models.LaunchJar, "":
		return buildJarCommand(cfg, javaPath)
	default:
		return nil, apperr.New(apperr.KindUnsupportedInput, "unknown launch strategy %q", cfg.Strategy)
	}
}

func buildJarCommand(cfg models.ServerConfig, javaPath string) (*exec.Cmd, error) {
	jarPath := filepath.Join(cfg.InstallDir, serverJarName)
	if _, err := os.Stat(jarPath); err != nil {
		return nil, apperr.New(apperr.KindNotFound, "server jar is missing at %s; reinstall the server", jarPath)
	}

	memory := memoryGB(cfg)
	cmd := exec.Command(javaPath,
		fmt.Sprintf("-Xms%dG", memory),
		fmt.Sprintf("-Xmx%dG", memory),
		"-jar", serverJarName,
		"nogui",
	)
	cmd.Dir = cfg.InstallDir
	return cmd, nil
}

func buildArgsFileCommand(cfg models.ServerConfig, javaPath string) (*exec.Cmd, error) {
	// The memory args file is rewritten on every start so edits to the
	// config take effect without a reinstall.
	if err := WriteJVMArgs(cfg.InstallDir, memoryGB(cfg)); err != nil {
		return nil, err
	}

	argsPath, err := findInstallerArgsFile(cfg.InstallDir)
	if err != nil {
		return nil, err
	}
	relArgs, err := filepath.Rel(cfg.InstallDir, argsPath)
	if err != nil {
		relArgs = argsPath
	}

	cmd := exec.Command(javaPath,
		"@"+jvmArgsFile,
		"@"+filepath.ToSlash(relArgs),
		"nogui",
	)
	cmd.Dir = cfg.InstallDir
	return cmd, nil
}

// WriteJVMArgs writes a fresh memory arguments file into the install
// directory.
func WriteJVMArgs(installDir string, memGB int) error {
	if memGB < 1 {
		memGB = 2
	}
	content := fmt.Sprintf("-Xms%dG\n-Xmx%dG\n", memGB, memGB)
	path := filepath.Join(installDir, jvmArgsFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to write %s", jvmArgsFile)
	}
	return nil
}

// findInstallerArgsFile locates the platform args file the server installer
// dropped somewhere under the install directory.
func findInstallerArgsFile(installDir string) (string, error) {
	wanted := unixArgsName
	if runtime.GOOS == "windows" {
		wanted = winArgsName
	}

	var found string
	err := filepath.WalkDir(installDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == wanted {
			found = path
			return io.EOF
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return "", apperr.Wrap(apperr.KindIOFailure, err, "failed to scan install directory")
	}
	if found == "" {
		return "", apperr.New(apperr.KindNotFound, "installer args file %s not found under %s", wanted, installDir)
	}
	return found, nil
}

func memoryGB(cfg models.ServerConfig) int {
	if cfg.MemoryGB < 1 {
		return 2
	}
	return cfg.MemoryGB
}
