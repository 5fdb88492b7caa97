package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
appiumServer: http://10.0.0.5:4723
deviceName: Pixel_7
appPackage: ru.akbars.citizencard.test
ci: true
backend:
  crmUrl: https://crm.local/create
  productCode: CC01
otp:
  notificationsUrl: https://otp.local/notifications
  settleDelay: 2s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppiumServer != "http://10.0.0.5:4723" {
		t.Errorf("expected appium server from file, got %s", cfg.AppiumServer)
	}
	if cfg.DeviceName != "Pixel_7" {
		t.Errorf("expected device Pixel_7, got %s", cfg.DeviceName)
	}
	if cfg.AppPackage != "ru.akbars.citizencard.test" {
		t.Errorf("expected app package from file, got %s", cfg.AppPackage)
	}
	if !cfg.CI {
		t.Error("expected ci true")
	}
	if cfg.Backend.CRMURL != "https://crm.local/create" || cfg.Backend.ProductCode != "CC01" {
		t.Errorf("unexpected backend: %+v", cfg.Backend)
	}
	if cfg.OTP.SettleDelay != 2*time.Second {
		t.Errorf("expected settle delay 2s, got %v", cfg.OTP.SettleDelay)
	}
	// Untouched values keep their defaults.
	if cfg.OTP.PollTimeout != DefaultOTPPollTimeout {
		t.Errorf("expected default poll timeout, got %v", cfg.OTP.PollTimeout)
	}
	if cfg.Backend.Department != "0000" {
		t.Errorf("expected default department, got %q", cfg.Backend.Department)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(`deviceName: [invalid yaml`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir(t *testing.T) {
	t.Run("yml fallback", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("deviceName: from-yml\n"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromDir(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeviceName != "from-yml" {
			t.Errorf("expected from-yml, got %s", cfg.DeviceName)
		}
	})

	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := LoadFromDir(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.AppiumServer != DefaultAppiumServer || cfg.DeviceName != DefaultDeviceName {
			t.Errorf("expected defaults, got %+v", cfg)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"APPIUM_SERVER":    "http://remote:4723",
		"DEVICE_NAME":      "emulator-5556",
		"ANDROID_SDK_ROOT": "/sdk",
		"CI":               "true",
		"CRM_URL":          "https://crm/env",
		"DEVICE_FARM":      "browserstack",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.AppiumServer != "http://remote:4723" {
		t.Errorf("AppiumServer = %s", cfg.AppiumServer)
	}
	if cfg.DeviceName != "emulator-5556" {
		t.Errorf("DeviceName = %s", cfg.DeviceName)
	}
	if cfg.AndroidHome != "/sdk" {
		t.Errorf("AndroidHome should fall back to ANDROID_SDK_ROOT, got %q", cfg.AndroidHome)
	}
	if !cfg.CI {
		t.Error("CI should be true")
	}
	if cfg.Backend.CRMURL != "https://crm/env" {
		t.Errorf("CRMURL = %s", cfg.Backend.CRMURL)
	}
	if !cfg.DeviceFarm.Enabled {
		t.Error("device farm should be enabled")
	}
}

func TestApplyEnv_AndroidHomePreferred(t *testing.T) {
	env := map[string]string{"ANDROID_HOME": "/home-sdk", "ANDROID_SDK_ROOT": "/root-sdk", "CI": "false"}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.AndroidHome != "/home-sdk" {
		t.Errorf("AndroidHome = %q, want /home-sdk", cfg.AndroidHome)
	}
	if cfg.CI {
		t.Error("CI=false must not enable CI mode")
	}
}

func TestResolve_DefaultsAreAbsolute(t *testing.T) {
	home := t.TempDir()
	cfg := Default()
	if err := cfg.Resolve(home); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.AppPath != DefaultAppPath(home) {
		t.Errorf("AppPath = %s", cfg.AppPath)
	}
	if cfg.Chromedriver != DefaultChromedriverPath(home, runtime.GOOS) {
		t.Errorf("Chromedriver = %s", cfg.Chromedriver)
	}
	if !filepath.IsAbs(cfg.UsersFile) {
		t.Errorf("UsersFile should be absolute, got %s", cfg.UsersFile)
	}
}

func TestValidate(t *testing.T) {
	home := t.TempDir()
	apk := filepath.Join(home, "app.apk")
	chromedriver := filepath.Join(home, "chromedriver")
	for _, p := range []string{apk, chromedriver} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	valid := func() *Config {
		cfg := Default()
		cfg.AndroidHome = "/sdk"
		cfg.AppPath = apk
		cfg.Chromedriver = chromedriver
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no sdk", func(c *Config) { c.AndroidHome = "" }, "ANDROID_HOME"},
		{"missing apk", func(c *Config) { c.AppPath = filepath.Join(home, "none.apk") }, "APK file"},
		{"missing chromedriver", func(c *Config) { c.Chromedriver = filepath.Join(home, "none") }, "chromedriver"},
		{"farm without creds", func(c *Config) { c.DeviceFarm.Enabled = true }, "device farm credentials"},
		{"farm skips local checks", func(c *Config) {
			c.DeviceFarm = DeviceFarm{Enabled: true, Username: "u", AccessKey: "k"}
			c.AndroidHome = ""
			c.AppPath = "bs://abc"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
