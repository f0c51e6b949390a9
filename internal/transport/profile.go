package transport

import (
	"os"
	"path/filepath"
	"runtime"
)

// ProfileDir resolves the platform-conventional directory under which
// persisted state (certificate, fingerprint files) lives (§6.4):
// XDG_DATA_HOME on Linux, LocalAppData on Windows, ~/Library/Application
// Support on macOS.
func ProfileDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return filepath.Join(dir, "Barrier"), nil
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "Barrier"), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, "barrier"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "barrier"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".barrier"), nil
}

// CertPath returns the path to the profile's self-signed certificate/key
// PEM file.
func CertPath(profileDir string) string {
	return filepath.Join(profileDir, "SSL", "InputLeap.pem")
}

// LocalFingerprintsPath returns the path to the store of this installation's
// own certificate fingerprints.
func LocalFingerprintsPath(profileDir string) string {
	return filepath.Join(profileDir, "SSL", "Fingerprints", "Local.txt")
}

// TrustedServersPath returns the path to a client's trusted-server
// fingerprint store.
func TrustedServersPath(profileDir string) string {
	return filepath.Join(profileDir, "SSL", "Fingerprints", "TrustedServers.txt")
}

// TrustedClientsPath returns the path to a server's trusted-client
// fingerprint store.
func TrustedClientsPath(profileDir string) string {
	return filepath.Join(profileDir, "SSL", "Fingerprints", "TrustedClients.txt")
}
