//go:build !windows

package main

import "errors"

// isWindowsService is always false outside Windows: the server runs as a
// plain console/systemd process instead of under an SCM.
func isWindowsService() bool { return false }

func runAsService() error {
	return errors.New("running as a Windows service is not supported on this platform")
}
