package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "CITIZENCARD_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the workspace home directory (where apk/, drivers/ and data/ live).
//
// Resolution order:
//  1. $CITIZENCARD_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// DefaultAppPath returns <home>/apk/702-app-dev-debug.apk.
func DefaultAppPath(home string) string {
	return filepath.Join(home, "apk", "702-app-dev-debug.apk")
}

// DefaultChromedriverPath returns <home>/drivers/chromedriver/chromedriver, with .exe on Windows.
func DefaultChromedriverPath(home, goos string) string {
	p := filepath.Join(home, "drivers", "chromedriver", "chromedriver")
	if goos == "windows" {
		p += ".exe"
	}
	return p
}

// DefaultUsersFile returns <home>/data/users/users_list.txt.
func DefaultUsersFile(home string) string {
	return filepath.Join(home, "data", "users", "users_list.txt")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
