package device

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// fakeADB writes a shell script that logs its arguments and prints output.
func fakeADB(t *testing.T, output string, exitCode int) (adbPath, logPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake adb script needs a POSIX shell")
	}
	dir := t.TempDir()
	logPath = filepath.Join(dir, "args.log")
	adbPath = filepath.Join(dir, "adb")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> " + logPath + "\n" +
		"printf '%s' '" + output + "'\n" +
		"exit " + string(rune('0'+exitCode)) + "\n"
	if err := os.WriteFile(adbPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return adbPath, logPath
}

func readArgs(t *testing.T, logPath string) string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(data))
}

func TestUninstallPassesSerial(t *testing.T) {
	adb, log := fakeADB(t, "Success", 0)
	d := NewWithADB("emulator-5554", adb)

	if err := d.Uninstall(context.Background(), "ru.akbars.citizencard.dev"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if got := readArgs(t, log); got != "-s emulator-5554 uninstall ru.akbars.citizencard.dev" {
		t.Errorf("adb args = %q", got)
	}
}

func TestUninstallReportsFailureOutput(t *testing.T) {
	adb, _ := fakeADB(t, "Failure [DELETE_FAILED_INTERNAL_ERROR]", 0)
	d := NewWithADB("", adb)

	if err := d.Uninstall(context.Background(), "ru.akbars.citizencard.dev"); err == nil {
		t.Error("expected error for Failure output")
	}
}

func TestADBNonZeroExit(t *testing.T) {
	adb, _ := fakeADB(t, "error: device offline", 1)
	d := NewWithADB("emulator-5554", adb)

	_, err := d.Shell(context.Background(), "getprop")
	if err == nil || !strings.Contains(err.Error(), "device offline") {
		t.Errorf("Shell() error = %v, want adb output in error", err)
	}
}

func TestIsInstalled(t *testing.T) {
	adb, _ := fakeADB(t, "package:ru.akbars.citizencard.dev.test\npackage:ru.akbars.citizencard.dev\n", 0)
	d := NewWithADB("", adb)

	if !d.IsInstalled(context.Background(), "ru.akbars.citizencard.dev") {
		t.Error("IsInstalled() = false, want true")
	}
	if d.IsInstalled(context.Background(), "ru.akbars.citizencard") {
		t.Error("IsInstalled() matched a package prefix")
	}
}

func TestParseDevices(t *testing.T) {
	out := "* daemon started successfully\nList of devices attached\nemulator-5554\tdevice\nR58M123\tunauthorized\n\n"
	devices := parseDevices(out)
	if len(devices) != 2 {
		t.Fatalf("devices = %+v", devices)
	}
	if devices[0].Serial != "emulator-5554" || devices[0].State != "device" || !devices[0].IsEmulator {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].State != "unauthorized" || devices[1].IsEmulator {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}

func TestFindADBUnderAndroidHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("adb name differs on windows")
	}
	t.Setenv("PATH", t.TempDir())
	home := t.TempDir()
	tools := filepath.Join(home, "platform-tools")
	if err := os.MkdirAll(tools, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tools, "adb"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindADB(home)
	if err != nil {
		t.Fatalf("FindADB() error = %v", err)
	}
	if got != filepath.Join(tools, "adb") {
		t.Errorf("FindADB() = %q", got)
	}

	if _, err := FindADB(""); err == nil {
		t.Error("expected error without PATH or ANDROID_HOME")
	}
}

// scriptADB writes an adb stand-in from a shell body.
func scriptADB(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake adb script needs a POSIX shell")
	}
	adbPath := filepath.Join(t.TempDir(), "adb")
	if err := os.WriteFile(adbPath, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return adbPath
}

func TestInfo(t *testing.T) {
	adb := scriptADB(t, `case "$*" in
  *get-state) echo device ;;
  *ro.product.model) echo "Pixel 6" ;;
  *ro.build.version.sdk) echo 34 ;;
  *ro.product.brand) echo google ;;
  *ro.kernel.qemu) echo 1 ;;
esac
`)
	info, err := NewWithADB("emulator-5554", adb).Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	want := DeviceInfo{Serial: "emulator-5554", State: "device", Model: "Pixel 6", SDK: "34", Brand: "google", IsEmulator: true}
	if info != want {
		t.Errorf("Info() = %+v, want %+v", info, want)
	}
}

func TestInfoOfflineDevice(t *testing.T) {
	adb := scriptADB(t, "echo 'error: device offline' >&2\nexit 1\n")
	info, err := NewWithADB("R58M123", adb).Info(context.Background())
	if err == nil {
		t.Fatal("expected error for offline device")
	}
	if info.Serial != "R58M123" {
		t.Errorf("Info() serial = %q", info.Serial)
	}
}

func TestADBStderrReachesRunLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	if err := logger.Init(logPath); err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	adb := scriptADB(t, "echo 'Performing Streamed Install' >&2\necho Success\n")
	if err := NewWithADB("emulator-5554", adb).Uninstall(context.Background(), "ru.akbars.citizencard.dev"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Performing Streamed Install") {
		t.Errorf("run log missing adb stderr: %q", data)
	}
}
