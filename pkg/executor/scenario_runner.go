package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/app"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/scenario"
)

// runScenario acquires a user, opens a session, runs the plan and tears everything down.
func (r *Runner) runScenario(ctx context.Context, device string, sc scenario.Scenario, idx, total int) (res core.ScenarioResult) {
	res = newResult(sc, device)
	res.Status = core.StatusRunning
	plan := sc.Plan()

	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(device, idx, total, sc.Name)
	}
	logger.Info("[%s] Scenario %d/%d %s started", device, idx+1, total, sc.Name)
	defer func() {
		res.Duration = time.Since(res.StartTime)
		logger.Info("[%s] Scenario %s %s in %s", device, sc.Name, res.Status, res.Duration.Round(time.Millisecond))
		if r.config.OnScenarioEnd != nil {
			r.config.OnScenarioEnd(res)
		}
	}()

	user, err := r.users.Acquire(ctx, sc.ConsumesUser)
	if err != nil {
		r.abort(&res, plan, 0, fmt.Errorf("acquire test user: %w", err))
		return res
	}
	passed := false
	defer func() {
		released, err := r.users.Finish(user, sc.ConsumesUser, passed)
		if err != nil {
			logger.Error("[%s] Failed to release test user %s: %v", device, user.Phone, err)
			return
		}
		res.UserReleased = released
	}()

	drv, closeSession, err := r.launch(ctx, device)
	if err != nil {
		r.abort(&res, plan, 0, err)
		return res
	}
	defer func() {
		// Teardown must run even when the run is cancelled.
		if err := closeSession(context.WithoutCancel(ctx)); err != nil {
			logger.Error("[%s] Failed to close session: %v", device, err)
		}
	}()

	env := &scenario.Env{
		App:  app.New(drv, r.app, r.otp, r.config.ScreenOptions...),
		User: user,
	}

	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			r.abort(&res, plan, i, err)
			return res
		}
		sr, err := r.runStep(ctx, device, env, i, step)
		res.Steps = append(res.Steps, sr)
		if err != nil {
			res.Error = fmt.Sprintf("%s: %v", step.Name, err)
			res.Category = sr.Category
			if r.config.Artifacts == ArtifactOnFailure {
				res.Attachments = r.captureArtifacts(drv, res.ID)
			}
			res.Steps = append(res.Steps, skippedSteps(plan, i+1)...)
			break
		}
	}

	res.Status = res.AggregateStatus()
	passed = res.Status.IsSuccess()
	return res
}

func (r *Runner) runStep(ctx context.Context, device string, env *scenario.Env, idx int, step scenario.Step) (core.StepResult, error) {
	sr := core.StepResult{Index: idx, Name: step.Name, Status: core.StatusRunning, StartTime: time.Now()}
	logger.Debug("[%s] Step %d: %s", device, idx+1, step.Name)

	err := step.Run(ctx, env)
	sr.Duration = time.Since(sr.StartTime)
	if err != nil {
		sr.Category = categorize(err)
		sr.Status = core.StatusFor(sr.Category)
		sr.Error = err.Error()
		logger.Error("[%s] Step %q %s: %v", device, step.Name, sr.Status, err)
	} else {
		sr.Status = core.StatusPassed
	}

	if r.config.OnStepComplete != nil {
		r.config.OnStepComplete(device, sr)
	}
	return sr, err
}

// abort marks the scenario as not run past step from because of err.
func (r *Runner) abort(res *core.ScenarioResult, plan []scenario.Step, from int, err error) {
	res.Category = categorize(err)
	res.Status = core.StatusFor(res.Category)
	if res.Status == core.StatusPassed || res.Status == core.StatusFailed {
		res.Status = core.StatusErrored
	}
	res.Error = err.Error()
	res.Steps = append(res.Steps, skippedSteps(plan, from)...)
	logger.Error("[%s] Scenario %s aborted: %v", res.Device, res.Name, err)
}

func skippedSteps(plan []scenario.Step, from int) []core.StepResult {
	var out []core.StepResult
	for i := from; i < len(plan); i++ {
		out = append(out, core.StepResult{Index: i, Name: plan[i].Name, Status: core.StatusSkipped})
	}
	return out
}

// captureArtifacts grabs a screenshot and the page source of the failing screen.
func (r *Runner) captureArtifacts(drv core.ArtifactCollector, scenarioID string) []core.Attachment {
	var out []core.Attachment

	if data, err := drv.Screenshot(); err == nil && len(data) > 0 {
		path := r.saveArtifact(scenarioID, "screenshot.png", data)
		out = append(out, core.NewScreenshotAttachment(path, data))
	} else if err != nil {
		logger.Warn("Screenshot capture failed: %v", err)
	}

	if src, err := drv.Source(); err == nil && src != "" {
		data := []byte(src)
		path := r.saveArtifact(scenarioID, "page_source.xml", data)
		out = append(out, core.NewPageSourceAttachment(path, data))
	} else if err != nil {
		logger.Warn("Page source capture failed: %v", err)
	}
	return out
}

// saveArtifact writes data under OutputDir and returns the path relative to it.
// It returns an empty path when there is no output directory or the write fails.
func (r *Runner) saveArtifact(scenarioID, name string, data []byte) string {
	if r.config.OutputDir == "" {
		return ""
	}
	rel := filepath.Join("artifacts", scenarioID, name)
	full := filepath.Join(r.config.OutputDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		logger.Warn("Failed to create artifact dir: %v", err)
		return ""
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		logger.Warn("Failed to write artifact %s: %v", full, err)
		return ""
	}
	return rel
}
