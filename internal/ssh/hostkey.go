// Package ssh verifies host keys for the SFTP backup destination against a
// known_hosts file, optionally trusting a host's key on first use.
package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adlikkk/gamehost-one/internal/logging"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type verifier struct {
	path  string
	tofu  bool
	check ssh.HostKeyCallback
}

// NewHostKeyCallback returns a host key callback backed by the known_hosts
// file at path, creating it if needed. With trustOnFirstUse, a host that has
// no recorded key gets its key appended; a host whose key differs from the
// recorded one is always rejected.
func NewHostKeyCallback(path string, trustOnFirstUse bool) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("known_hosts path is required")
	}
	if err := touchKnownHosts(path); err != nil {
		return nil, err
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	v := &verifier{path: path, tofu: trustOnFirstUse, check: check}
	return v.verify, nil
}

func (v *verifier) verify(hostname string, remote net.Addr, key ssh.PublicKey) error {
	err := v.check(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}

	if len(keyErr.Want) > 0 {
		logging.L().Warn("sftp_host_key_mismatch",
			"host", hostname,
			"fingerprint", ssh.FingerprintSHA256(key),
		)
		return fmt.Errorf("host key for %s changed; remove its entry from %s to reconnect", hostname, v.path)
	}

	if !v.tofu {
		return fmt.Errorf("no known host key for %s and trust_on_first_use is off", hostname)
	}

	if err := v.remember(hostname, key); err != nil {
		return err
	}
	logging.L().Info("sftp_host_key_trusted",
		"host", hostname,
		"fingerprint", ssh.FingerprintSHA256(key),
	)
	return nil
}

// remember appends the host's key. knownhosts.Line normalizes the address,
// so "host:22" is stored as "host" and other ports as "[host]:port".
func (v *verifier) remember(hostname string, key ssh.PublicKey) error {
	file, err := os.OpenFile(v.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(knownhosts.Line([]string{hostname}, key) + "\n"); err != nil {
		return fmt.Errorf("failed to write known_hosts entry: %w", err)
	}
	return nil
}

func touchKnownHosts(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create known_hosts file: %w", err)
	}
	return file.Close()
}
