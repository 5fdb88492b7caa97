package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/executor"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/otp"
	"github.com/citizencard-qa/autotests-mobile/pkg/report"
	"github.com/citizencard-qa/autotests-mobile/pkg/scenario"
	"github.com/citizencard-qa/autotests-mobile/pkg/userapi"
	"github.com/citizencard-qa/autotests-mobile/pkg/users"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var testCommand = &cli.Command{
	Name:  "test",
	Usage: "Run the registered scenarios on one or more devices",
	Description: `Runs the selected scenarios, one fresh Appium session per scenario.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  citizencard test
  citizencard test -m core
  citizencard test -m core --exclude-mark limited
  citizencard test -k courier --stop-on-fail

  # Two emulators sharing the scenario queue
  citizencard --device emulator-5554,emulator-5556 test

  # Users from the backend instead of the credential file
  citizencard --ci test --output ./allure --flatten`,
	Flags: []cli.Flag{
		// Selection
		&cli.StringSliceFlag{
			Name:    "mark",
			Aliases: []string{"m"},
			Usage:   "Only run scenarios with one of these marks (core, limited)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-mark",
			Usage: "Skip scenarios with these marks",
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"k"},
			Usage:   "Only run scenarios whose name contains this text",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Execution
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining scenarios after the first failure",
		},
		&cli.BoolFlag{
			Name:  "no-artifacts",
			Usage: "Don't capture screenshots and page source on failure",
		},
		&cli.StringFlag{
			Name:    "testrail-url",
			Usage:   "TestRail case URL prefix for report links",
			EnvVars: []string{"TESTRAIL_URL"},
		},
	},
	Action: runTest,
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func selectScenarios(c *cli.Context) []scenario.Scenario {
	return scenario.Select(scenario.Registry(), scenario.Filter{
		IncludeMarks: c.StringSlice("mark"),
		ExcludeMarks: c.StringSlice("exclude-mark"),
		Name:         c.String("name"),
	})
}

// userSource builds the configured user source; CI runs provision through the backend.
func userSource(cfg *config.Config) (users.Source, error) {
	var api users.Provisioner
	if cfg.CI {
		api = userapi.NewClient(cfg.Backend)
	}
	return users.SelectSource(cfg, api)
}

func runTest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("testrail-url") {
		cfg.TestRailURL = c.String("testrail-url")
	}

	scenarios := selectScenarios(c)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios match the selection")
	}
	devices := parseDevices(cfg.DeviceName)
	if len(devices) == 0 {
		return fmt.Errorf("no device given; set --device or DEVICE_NAME")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	opts := logger.Options{Verbose: c.Bool("verbose")}
	if opts.Verbose {
		opts.Mirror = os.Stderr
	}
	if err := logger.InitWithOptions(filepath.Join(outputDir, "citizencard.log"), opts); err != nil {
		return err
	}
	defer logger.Close()

	src, err := userSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	index := report.NewIndexWriter(outputDir, runID)
	out := newProgress(os.Stdout)

	artifacts := executor.ArtifactOnFailure
	if c.Bool("no-artifacts") {
		artifacts = executor.ArtifactNever
	}

	logger.Info("run %s: %d scenario(s) on %s, output %s", runID, len(scenarios), strings.Join(devices, ","), outputDir)
	fmt.Printf("\n  %sCitizen Card autotests%s %s\n", color(colorBold), color(colorReset), Version)
	fmt.Printf("  %s%d scenario(s) on %s%s\n", color(colorGray), len(scenarios), strings.Join(devices, ", "), color(colorReset))

	runner := executor.New(cfg, executor.SessionLauncher(cfg, devices), src, otp.FromConfig(cfg.OTP), executor.RunnerConfig{
		RunID:           runID,
		OutputDir:       outputDir,
		StopOnFail:      c.Bool("stop-on-fail"),
		Artifacts:       artifacts,
		OnScenarioStart: out.scenarioStart,
		OnStepComplete:  out.stepComplete,
		OnScenarioEnd: func(res core.ScenarioResult) {
			index.Record(res)
			out.scenarioEnd(res)
		},
	})

	suite, err := runner.Run(ctx, devices, scenarios)
	if err != nil {
		return err
	}

	if err := index.End(suite); err != nil {
		logger.Warn("failed to write report index: %v", err)
	}
	if err := report.GenerateAllure(outputDir, suite, report.AllureOptions{
		TestRailURL: cfg.TestRailURL,
		Environment: reportEnvironment(cfg, devices),
	}); err != nil {
		logger.Warn("failed to write allure results: %v", err)
	}

	printSummary(os.Stdout, suite)
	fmt.Printf("\n  Reports: %s\n", outputDir)

	if !suite.Success() {
		return fmt.Errorf("%d of %d scenario(s) failed", suite.Failed, suite.Total)
	}
	return nil
}

func reportEnvironment(cfg *config.Config, devices []string) map[string]string {
	env := map[string]string{
		"appium.server": cfg.AppiumServer,
		"app.package":   cfg.AppPackage,
		"devices":       strings.Join(devices, ","),
		"runner":        Version,
		"go":            runtime.Version(),
	}
	if cfg.DeviceFarm.Enabled {
		env["appium.server"] = cfg.DeviceFarm.HubURL
		env["farm.device"] = cfg.DeviceFarm.Device
		env["farm.osVersion"] = cfg.DeviceFarm.OSVersion
	}
	if cfg.CI {
		env["users"] = "api"
	} else {
		env["users"] = "file"
	}
	return env
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold (5 seconds)
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live results; devices report concurrently.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) scenarioStart(device string, idx, total int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset), device)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) stepComplete(device string, step core.StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	durStr := formatDuration(step.Duration.Milliseconds())

	switch step.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if step.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), step.Name, durColor, durStr, color(colorReset))
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s-%s %s\n", color(colorCyan), color(colorReset), step.Name)
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), step.Name, durStr)
		if step.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), step.Error)
		}
	}
}

func (p *progress) scenarioEnd(res core.ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	symbol, c := "✓", colorGreen
	switch res.Status {
	case core.StatusPassed:
	case core.StatusSkipped:
		symbol, c = "-", colorCyan
	default:
		symbol, c = "✗", colorRed
	}
	fmt.Fprintf(p.w, "%s%s %s%s %s%s%s\n",
		color(c), symbol, color(colorReset), res.Name, color(colorGray), formatDuration(res.Duration.Milliseconds()), color(colorReset))
	if res.Error != "" && res.Status != core.StatusPassed {
		fmt.Fprintf(p.w, "  %s╰─%s %s\n", color(colorGray), color(colorReset), res.Error)
	}
}

func statusLabel(s core.Status) (string, string) {
	switch s {
	case core.StatusPassed:
		return "✓ PASS", color(colorGreen)
	case core.StatusSkipped:
		return "- SKIP", color(colorCyan)
	case core.StatusErrored:
		return "! ERR", color(colorYellow)
	default:
		return "✗ FAIL", color(colorRed)
	}
}

func printSummary(w io.Writer, suite *core.SuiteResult) {
	fmt.Fprintln(w)
	if suite.Passed > 0 {
		fmt.Fprintf(w, "  %s%d passing%s (%s)\n", color(colorGreen), suite.Passed, color(colorReset), formatDuration(suite.Duration.Milliseconds()))
	}
	if suite.Failed > 0 {
		fmt.Fprintf(w, "  %s%d failing%s\n", color(colorRed), suite.Failed, color(colorReset))
	}
	if suite.Skipped > 0 {
		fmt.Fprintf(w, "  %s%d skipped%s\n", color(colorCyan), suite.Skipped, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 100
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-52s %-14s %6s %7s %6s %10s\n", "Scenario", "Device", "Status", "Steps", "Pass", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, sc := range suite.Scenarios {
		status, statusColor := statusLabel(sc.Status)

		name := sc.Name
		if sc.Params != "" {
			name += "[" + sc.Params + "]"
		}
		if len(name) > 52 {
			name = name[:49] + "..."
		}
		passed := 0
		for _, st := range sc.Steps {
			if st.Status == core.StatusPassed {
				passed++
			}
		}

		fmt.Fprintf(w, "  %-52s %-14s %s%6s%s %7d %6d %10s\n",
			name, sc.Device, statusColor, status, color(colorReset),
			len(sc.Steps), passed, formatDuration(sc.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.Passed, suite.Total)
	statusColor := color(colorGreen)
	if suite.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-52s%s %-14s %s%6s%s %7s %6s %10s\n",
		color(colorBold), "TOTAL", color(colorReset), "",
		statusColor, statusStr, color(colorReset), "", "",
		formatDuration(suite.Duration.Milliseconds()))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// withTimeout bounds single backend commands.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
