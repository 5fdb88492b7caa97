// Package cli provides the command-line interface for the citizen card autotests.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "Path to config.yaml (default: <home>/config.yaml)",
	},
	&cli.StringFlag{
		Name:    "device_name",
		Aliases: []string{"device"},
		Usage:   "Device serial to run on (comma-separated for several devices)",
		EnvVars: []string{"DEVICE_NAME"},
	},
	&cli.StringFlag{
		Name:    "server",
		Usage:   "Appium server URL",
		EnvVars: []string{"APPIUM_SERVER"},
	},
	&cli.StringFlag{
		Name:    "app_path",
		Usage:   "Path to the application APK",
		EnvVars: []string{"APP_PATH"},
	},
	&cli.StringFlag{
		Name:  "users-file",
		Usage: "Credential file with one test user per line",
	},
	&cli.BoolFlag{
		Name:  "ci",
		Usage: "Provision test users through the backend API instead of the credential file",
	},
	&cli.BoolFlag{
		Name:  "device-farm",
		Usage: "Run on BrowserStack instead of a local Appium server",
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "Mirror the run log to stderr",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "citizencard",
		Usage:   "Mobile UI autotests for the Citizen Card application",
		Version: Version,
		Description: `Runs the Citizen Card Android UI scenarios through Appium and
provisions the test users they log in with.

Examples:
  citizencard test
  citizencard test -m core --exclude-mark limited
  citizencard --device emulator-5554,emulator-5556 test -k courier
  citizencard --ci create-user
  citizencard otp --phone 79991234567 --kind login`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			testCommand,
			createUserCommand,
			otpCommand,
			usersCommand,
			listCommand,
			devicesCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: file, then environment, then flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	home := config.GetHome()

	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(home)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	applyFlags(c, cfg)

	if err := cfg.Resolve(home); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("server") {
		cfg.AppiumServer = c.String("server")
	}
	if c.IsSet("device_name") {
		cfg.DeviceName = c.String("device_name")
	}
	if c.IsSet("app_path") {
		cfg.AppPath = c.String("app_path")
	}
	if c.IsSet("users-file") {
		cfg.UsersFile = c.String("users-file")
	}
	if c.IsSet("ci") {
		cfg.CI = c.Bool("ci")
	}
	if c.IsSet("device-farm") {
		cfg.DeviceFarm.Enabled = c.Bool("device-farm")
	}
}

// parseDevices splits a comma-separated device list, dropping blanks.
func parseDevices(deviceFlag string) []string {
	var devices []string
	for _, d := range strings.Split(deviceFlag, ",") {
		if d = strings.TrimSpace(d); d != "" {
			devices = append(devices, d)
		}
	}
	return devices
}
