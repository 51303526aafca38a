package service

import (
	"os"
	"runtime"
)

// Path returns the service file location for this platform.
func Path(label string) string {
	if runtime.GOOS == "darwin" {
		return LaunchdPath(label)
	}
	return SystemdPath(label)
}

// Install writes the platform's service file and returns its path.
func Install(params Params) (string, error) {
	if runtime.GOOS == "darwin" {
		return WritePlist(params)
	}
	return WriteUnit(params)
}

// Status returns the service file path and whether it exists.
func Status(label string) (string, bool) {
	path := Path(label)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return path, false
}
