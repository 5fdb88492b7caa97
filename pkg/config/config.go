// Package config handles configuration for the citizen card autotests.
//
// Values are resolved in order: CLI flags, environment, config.yaml, defaults.
// This package handles the last three; the cli package applies flags on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirrored from the manual test setup.
const (
	DefaultAppiumServer    = "http://localhost:4723"
	DefaultDeviceName      = "emulator-5554"
	DefaultAppPackage      = "ru.akbars.citizencard.dev"
	DefaultAppWaitActivity = "ru.akbars.citizencard.*, *"
	DefaultPassword        = "123456789"
	DefaultOTPSettleDelay  = 4 * time.Second
	DefaultOTPPollTimeout  = 30 * time.Second
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Device settings
	AppiumServer    string `yaml:"appiumServer"`
	DeviceName      string `yaml:"deviceName"`
	AppPath         string `yaml:"appPath"`
	AppPackage      string `yaml:"appPackage"`
	AppWaitActivity string `yaml:"appWaitActivity"`
	Chromedriver    string `yaml:"chromedriver"`

	// AndroidHome is never read from the file: the SDK location is a property of the host.
	AndroidHome string `yaml:"-"`

	// Test data
	UsersFile       string `yaml:"usersFile"`
	DefaultPassword string `yaml:"defaultPassword"`
	CI              bool   `yaml:"ci"`

	// TestRailURL prefixes case ids in report links.
	TestRailURL string `yaml:"testrailUrl"`

	DeviceFarm DeviceFarm `yaml:"deviceFarm"`
	Backend    Backend    `yaml:"backend"`
	OTP        OTP        `yaml:"otp"`
}

// DeviceFarm configures a cloud device provider (BrowserStack).
type DeviceFarm struct {
	Enabled   bool   `yaml:"enabled"`
	HubURL    string `yaml:"hubUrl"`
	Username  string `yaml:"username"`
	AccessKey string `yaml:"accessKey"`
	Device    string `yaml:"device"`
	OSVersion string `yaml:"osVersion"`
	Project   string `yaml:"project"`
	Build     string `yaml:"build"`
}

// Backend holds the banking core endpoints used to provision test users.
type Backend struct {
	CRMURL                string `yaml:"crmUrl"`
	ProcessingURL         string `yaml:"processingUrl"`
	CRMAdapterURL         string `yaml:"crmAdapterUrl"`
	GatewayIDURL          string `yaml:"gatewayIdUrl"`
	SaveGatewayProcessing string `yaml:"saveGatewayIdProcessingUrl"`
	SaveGatewayCRM        string `yaml:"saveGatewayIdCrmUrl"`
	DigitalCardURL        string `yaml:"digitalCardUrl"`
	CardInfoURL           string `yaml:"cardInfoUrl"`

	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	GatewayPassword string `yaml:"gatewayPassword"`
	ProductCode     string `yaml:"productCode"`
	Department      string `yaml:"department"`
}

// OTP configures the notifications endpoint used to read SMS codes.
type OTP struct {
	NotificationsURL   string        `yaml:"notificationsUrl"`
	SettleDelay        time.Duration `yaml:"settleDelay"`
	PollTimeout        time.Duration `yaml:"pollTimeout"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
}

// Default returns a config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		AppiumServer:    DefaultAppiumServer,
		DeviceName:      DefaultDeviceName,
		AppPackage:      DefaultAppPackage,
		AppWaitActivity: DefaultAppWaitActivity,
		DefaultPassword: DefaultPassword,
		DeviceFarm: DeviceFarm{
			HubURL: "https://hub-cloud.browserstack.com/wd/hub",
		},
		Backend: Backend{
			Department: "0000",
		},
		OTP: OTP{
			SettleDelay:        DefaultOTPSettleDelay,
			PollTimeout:        DefaultOTPPollTimeout,
			InsecureSkipVerify: true,
		},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	return Default(), nil
}

// ApplyEnv overlays values from environment variables. getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.AppiumServer, "APPIUM_SERVER")
	setString(&c.DeviceName, "DEVICE_NAME")
	setString(&c.AppPath, "APP_PATH")
	setString(&c.Chromedriver, "CHROMEDRIVER_PATH")
	setString(&c.UsersFile, "USERS_FILE")
	setString(&c.AndroidHome, "ANDROID_HOME", "ANDROID_SDK_ROOT")

	setString(&c.DeviceFarm.Username, "BROWSERSTACK_USERNAME")
	setString(&c.DeviceFarm.AccessKey, "BROWSERSTACK_ACCESS_KEY")

	setString(&c.Backend.CRMURL, "CRM_URL")
	setString(&c.Backend.ProcessingURL, "PROCESSING_URL")
	setString(&c.Backend.CRMAdapterURL, "CRM_ADAPTER_URL")
	setString(&c.Backend.GatewayIDURL, "GATEWAY_ID_URL")
	setString(&c.Backend.SaveGatewayProcessing, "SAVE_GATEWAY_ID_PROCESSING_URL")
	setString(&c.Backend.SaveGatewayCRM, "SAVE_GATEWAY_ID_CRM_URL")
	setString(&c.Backend.DigitalCardURL, "DIGITAL_CARD_URL")
	setString(&c.Backend.CardInfoURL, "CARD_INFO_URL")
	setString(&c.Backend.Username, "BACKEND_USERNAME")
	setString(&c.Backend.Password, "BACKEND_PASSWORD")
	setString(&c.Backend.GatewayPassword, "GATEWAY_PASSWORD")

	setString(&c.OTP.NotificationsURL, "OTP_NOTIFICATIONS_URL")
	setString(&c.TestRailURL, "TESTRAIL_URL")

	if getenv("CI") == "true" {
		c.CI = true
	}
	if getenv("DEVICE_FARM") == "browserstack" {
		c.DeviceFarm.Enabled = true
	}
}

// Resolve fills path defaults relative to the workspace home and makes paths absolute.
func (c *Config) Resolve(home string) error {
	if c.AppPath == "" {
		c.AppPath = DefaultAppPath(home)
	}
	if c.Chromedriver == "" {
		c.Chromedriver = DefaultChromedriverPath(home, runtime.GOOS)
	}
	if c.UsersFile == "" {
		c.UsersFile = DefaultUsersFile(home)
	}

	for _, p := range []*string{&c.AppPath, &c.Chromedriver, &c.UsersFile} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate checks what a local driver session needs before any device work starts.
func (c *Config) Validate() error {
	if c.DeviceFarm.Enabled {
		if c.DeviceFarm.Username == "" || c.DeviceFarm.AccessKey == "" {
			return fmt.Errorf("device farm credentials are not set (BROWSERSTACK_USERNAME / BROWSERSTACK_ACCESS_KEY)")
		}
		return nil
	}

	if c.AndroidHome == "" {
		return fmt.Errorf("ANDROID_HOME or ANDROID_SDK_ROOT is not set; point it at the Android SDK")
	}
	if _, err := os.Stat(c.AppPath); err != nil {
		return fmt.Errorf("APK file %q does not exist or is not accessible", c.AppPath)
	}
	if _, err := os.Stat(c.Chromedriver); err != nil {
		return fmt.Errorf("chromedriver not found at %s", c.Chromedriver)
	}
	return nil
}
