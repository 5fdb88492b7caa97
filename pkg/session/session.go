// Package session starts and tears down Appium sessions for the application under test.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/device"
	"github.com/citizencard-qa/autotests-mobile/pkg/driver/appium"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
)

// Driver is a live automation session.
type Driver interface {
	screen.Automation
	core.ArtifactCollector
	Capability(name string) string
	RemoveApp(appID string) error
	SessionID() string
	Disconnect() error
}

// Dialer opens a session on an Appium server.
type Dialer func(serverURL string, caps map[string]interface{}) (Driver, error)

// Uninstaller removes the application from a local device.
type Uninstaller interface {
	Uninstall(ctx context.Context, pkg string) error
	IsInstalled(ctx context.Context, pkg string) bool
}

// DialAppium opens a real Appium session.
func DialAppium(serverURL string, caps map[string]interface{}) (Driver, error) {
	c := appium.NewClient(serverURL)
	if err := c.Connect(caps); err != nil {
		return nil, err
	}
	return c, nil
}

// Base ports for the UiAutomator2 server and chromedriver; device slot n adds n.
const (
	BaseSystemPort       = 8200
	BaseChromedriverPort = 9515
)

// Capabilities builds the UiAutomator2 capabilities for a device. Locally the
// session is pinned to the serial and slot picks ports no other device uses.
func Capabilities(cfg *config.Config, deviceName string, slot int) map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":                    "Android",
		"appium:deviceName":               deviceName,
		"appium:udid":                     deviceName,
		"appium:systemPort":               BaseSystemPort + slot,
		"appium:chromedriverPort":         BaseChromedriverPort + slot,
		"appium:app":                      cfg.AppPath,
		"appium:automationName":           "UiAutomator2",
		"appium:noReset":                  false,
		"appium:fullReset":                false,
		"appium:skipInstall":              false,
		"appium:appWaitActivity":          cfg.AppWaitActivity,
		"appium:newCommandTimeout":        60,
		"appium:appWaitDuration":          15000,
		"appium:autoGrantPermissions":     true,
		"appium:ensureWebviewsHavePages":  true,
		"appium:autoWebview":              true,
		"appium:autoWebviewTimeout":       10000,
		"appium:chromedriverAutodownload": true,
		"appium:chromedriverExecutable":   cfg.Chromedriver,
	}

	if cfg.DeviceFarm.Enabled {
		farm := cfg.DeviceFarm
		if farm.Device != "" {
			caps["appium:deviceName"] = farm.Device
		}
		for _, k := range []string{"appium:chromedriverExecutable", "appium:udid", "appium:systemPort", "appium:chromedriverPort"} {
			delete(caps, k)
		}
		caps["bstack:options"] = map[string]interface{}{
			"userName":    farm.Username,
			"accessKey":   farm.AccessKey,
			"deviceName":  caps["appium:deviceName"],
			"osVersion":   farm.OSVersion,
			"projectName": farm.Project,
			"buildName":   farm.Build,
		}
	}
	return caps
}

// ServerURL returns the hub URL in device-farm mode and the Appium server otherwise.
func ServerURL(cfg *config.Config) string {
	if cfg.DeviceFarm.Enabled {
		return cfg.DeviceFarm.HubURL
	}
	return cfg.AppiumServer
}

// Session is one application session on one device.
type Session struct {
	Driver     Driver
	DeviceName string

	cfg         *config.Config
	uninstaller Uninstaller
}

// Options tune Start for tests and alternative backends.
type Options struct {
	Dial        Dialer
	Uninstaller Uninstaller
	Slot        int // index of the device in the run, for port allocation
}

// Start opens a session on deviceName.
func Start(ctx context.Context, cfg *config.Config, deviceName string, opts Options) (*Session, error) {
	if opts.Dial == nil {
		opts.Dial = DialAppium
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	url := ServerURL(cfg)
	logger.Info("Starting session on %s via %s", deviceName, url)
	drv, err := opts.Dial(url, Capabilities(cfg, deviceName, opts.Slot))
	if err != nil {
		return nil, core.ErrServerUnreachable.
			WithMessage("failed to start Appium driver").
			WithDetails(map[string]interface{}{"server": url, "device": deviceName}).
			WithCause(err)
	}

	s := &Session{Driver: drv, DeviceName: deviceName, cfg: cfg, uninstaller: opts.Uninstaller}
	logger.Info("Session %s started on %s", drv.SessionID(), deviceName)
	return s, nil
}

// onDeviceFarm reports whether the session runs on BrowserStack.
func (s *Session) onDeviceFarm() bool {
	if s.cfg.DeviceFarm.Enabled {
		return true
	}
	return strings.Contains(strings.ToLower(s.Driver.Capability("platformName")), "browserstack")
}

// Close removes the application and quits the session. Removal errors are
// logged and do not prevent the quit.
func (s *Session) Close(ctx context.Context) error {
	pkg := s.cfg.AppPackage
	if s.onDeviceFarm() {
		if err := s.Driver.RemoveApp(pkg); err != nil {
			logger.Error("Failed to remove %s on the device farm: %v", pkg, err)
		} else {
			logger.Info("Removed %s from the device farm device", pkg)
		}
	} else if err := s.uninstall(ctx, pkg); err != nil {
		logger.Error("Failed to uninstall %s via adb: %v", pkg, err)
	} else {
		logger.Info("Uninstalled %s from %s", pkg, s.DeviceName)
	}

	if err := s.Driver.Disconnect(); err != nil {
		return fmt.Errorf("quit session: %w", err)
	}
	return nil
}

func (s *Session) uninstall(ctx context.Context, pkg string) error {
	u := s.uninstaller
	if u == nil {
		d, err := device.New(s.DeviceName, s.cfg.AndroidHome)
		if err != nil {
			return err
		}
		u = d
	}
	if err := u.Uninstall(ctx, pkg); err != nil {
		return err
	}
	if u.IsInstalled(ctx, pkg) {
		return fmt.Errorf("%s is still installed on %s", pkg, s.DeviceName)
	}
	return nil
}
