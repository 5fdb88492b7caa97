// Package device provides Android device management via ADB.
package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	State      string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice for the given serial without probing it.
// androidHome is searched for platform-tools/adb when adb is not in PATH.
func New(serial, androidHome string) (*AndroidDevice, error) {
	adbPath, err := FindADB(androidHome)
	if err != nil {
		return nil, err
	}
	return &AndroidDevice{serial: serial, adbPath: adbPath}, nil
}

// NewWithADB creates an AndroidDevice using a specific adb binary.
func NewWithADB(serial, adbPath string) *AndroidDevice {
	return &AndroidDevice{serial: serial, adbPath: adbPath}
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// Uninstall removes a package from the device.
func (d *AndroidDevice) Uninstall(ctx context.Context, pkg string) error {
	out, err := d.adb(ctx, "uninstall", pkg)
	if err != nil {
		return err
	}
	// adb exits 0 on some versions even when the package is missing.
	if strings.Contains(out, "Failure") {
		return fmt.Errorf("adb uninstall %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true
		}
	}
	return false
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	state, err := d.adb(ctx, "get-state")
	if err != nil {
		return info, err
	}
	info.State = strings.TrimSpace(state)

	if model, err := d.Shell(ctx, "getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell(ctx, "getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell(ctx, "getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	chars, _ := d.Shell(ctx, "getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// ListDevices returns the devices known to adb.
func ListDevices(ctx context.Context, adbPath string) ([]DeviceInfo, error) {
	out, err := NewWithADB("", adbPath).adb(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []DeviceInfo {
	var devices []DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{
			Serial:     parts[0],
			State:      parts[1],
			IsEmulator: strings.HasPrefix(parts[0], "emulator-"),
		})
	}
	return devices
}

// adb executes an ADB command.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, logger.GetWriter())

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}

	return stdout.String(), nil
}

// FindADB locates the ADB binary in PATH or under the Android SDK.
func FindADB(androidHome string) (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	if androidHome != "" {
		name := "adb"
		if runtime.GOOS == "windows" {
			name = "adb.exe"
		}
		candidate := filepath.Join(androidHome, "platform-tools", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH or ANDROID_HOME/platform-tools; ensure Android SDK is installed")
}
