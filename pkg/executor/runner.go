// Package executor runs scenarios on devices, connecting sessions, users and results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/scenario"
	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
	"github.com/citizencard-qa/autotests-mobile/pkg/session"
	"github.com/citizencard-qa/autotests-mobile/pkg/users"
)

// ArtifactMode determines when to capture screenshots and page source.
type ArtifactMode int

const (
	// ArtifactOnFailure captures artifacts only when a step fails.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// RunnerConfig configures the runner.
type RunnerConfig struct {
	RunID      string       // Generated when empty
	OutputDir  string       // Artifact directory; empty keeps artifacts in memory
	StopOnFail bool         // Skip remaining scenarios after the first failure
	Artifacts  ArtifactMode // When to capture artifacts

	ScreenOptions []screen.Option

	// Live progress callbacks
	OnScenarioStart func(device string, idx, total int, name string)
	OnStepComplete  func(device string, step core.StepResult)
	OnScenarioEnd   func(result core.ScenarioResult)
}

// Launcher opens a fresh application session on a device and returns it with its teardown.
type Launcher func(ctx context.Context, deviceID string) (session.Driver, func(context.Context) error, error)

// SessionLauncher starts real sessions from configuration. Each device keeps
// its position in devices as its port slot.
func SessionLauncher(cfg *config.Config, devices []string) Launcher {
	slots := make(map[string]int, len(devices))
	for i, d := range devices {
		slots[d] = i
	}
	return func(ctx context.Context, deviceID string) (session.Driver, func(context.Context) error, error) {
		s, err := session.Start(ctx, cfg, deviceID, session.Options{Slot: slots[deviceID]})
		if err != nil {
			return nil, nil, err
		}
		return s.Driver, s.Close, nil
	}
}

// Runner orchestrates scenario execution.
type Runner struct {
	config RunnerConfig
	app    *config.Config
	launch Launcher
	users  users.Source
	otp    screen.OTPSource
}

// New creates a Runner.
func New(appCfg *config.Config, launch Launcher, src users.Source, otp screen.OTPSource, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		app:    appCfg,
		launch: launch,
		users:  src,
		otp:    otp,
	}
}

// Run executes scenarios across devices. Every device pulls from the same queue
// until it is drained; results keep the order of scenarios.
func (r *Runner) Run(ctx context.Context, devices []string, scenarios []scenario.Scenario) (*core.SuiteResult, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices available")
	}

	runID := r.config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	suite := &core.SuiteResult{RunID: runID, StartTime: time.Now()}
	results := make([]core.ScenarioResult, len(scenarios))

	queue := make(chan int, len(scenarios))
	for i := range scenarios {
		queue <- i
	}
	close(queue)

	var stopped atomic.Bool
	total := len(scenarios)

	g, gctx := errgroup.WithContext(ctx)
	for _, device := range devices {
		device := device
		g.Go(func() error {
			for idx := range queue {
				sc := scenarios[idx]
				if stopped.Load() || gctx.Err() != nil {
					results[idx] = skippedResult(sc, device, "run stopped")
					continue
				}
				res, err := r.runGuarded(gctx, device, sc, idx, total)
				if err != nil {
					return err
				}
				results[idx] = res
				if r.config.StopOnFail && !res.Status.IsSuccess() {
					stopped.Store(true)
				}
			}
			return nil
		})
	}
	// Scenario failures are results; only a broken runner ends the group.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite.Scenarios = results
	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()
	logger.Info("Run %s finished: %d passed, %d failed, %d skipped of %d",
		suite.RunID, suite.Passed, suite.Failed, suite.Skipped, suite.Total)
	return suite, nil
}

// runGuarded runs one scenario and turns a panic in the launcher, a step or a
// teardown into an error for the whole run.
func (r *Runner) runGuarded(ctx context.Context, device string, sc scenario.Scenario, idx, total int) (res core.ScenarioResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Runner panicked on %s during %s: %v", device, sc.Name, p)
			err = fmt.Errorf("scenario %s on %s: runner panic: %v", sc.Name, device, p)
		}
	}()
	return r.runScenario(ctx, device, sc, idx, total), nil
}

func skippedResult(sc scenario.Scenario, device, reason string) core.ScenarioResult {
	res := newResult(sc, device)
	res.Status = core.StatusSkipped
	res.Error = reason
	for i, step := range sc.Plan() {
		res.Steps = append(res.Steps, core.StepResult{Index: i, Name: step.Name, Status: core.StatusSkipped})
	}
	return res
}

func newResult(sc scenario.Scenario, device string) core.ScenarioResult {
	return core.ScenarioResult{
		ID:        uuid.NewString(),
		Name:      sc.Name,
		Suite:     sc.Suite,
		Cases:     sc.Cases,
		Marks:     sc.Marks,
		Device:    device,
		Params:    sc.Params,
		Status:    core.StatusPending,
		StartTime: time.Now(),
	}
}

// categorize maps err to an error category, treating deadlines as timeouts.
func categorize(err error) core.ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrCategoryTimeout
	}
	return core.CategoryOf(err)
}
