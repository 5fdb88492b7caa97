package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/driver/mock"
	"github.com/citizencard-qa/autotests-mobile/pkg/scenario"
	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
	"github.com/citizencard-qa/autotests-mobile/pkg/session"
	"github.com/citizencard-qa/autotests-mobile/pkg/users"
)

type finishCall struct {
	phone   string
	consume bool
	passed  bool
}

// fakeSource hands out one user and records Finish calls.
type fakeSource struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	finished   []finishCall
}

func (f *fakeSource) Acquire(ctx context.Context, consume bool) (users.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return users.Credentials{}, f.acquireErr
	}
	f.acquired++
	return users.Credentials{Phone: "9170000001", Password: "123456789", Line: "телефон 9170000001, пароль 123456789"}, nil
}

func (f *fakeSource) Finish(c users.Credentials, consume, passed bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, finishCall{c.Phone, consume, passed})
	return consume && passed, nil
}

type staticOTP string

func (s staticOTP) LoginCode(context.Context, string) (string, error) { return string(s), nil }

// fakeLauncher hands out mock devices and counts teardowns.
type fakeLauncher struct {
	mu       sync.Mutex
	err      error
	panics   bool
	setup    func(*mock.Device)
	launched map[string]int
	closed   int
	devices  []*mock.Device
}

func (l *fakeLauncher) launch(ctx context.Context, deviceID string) (session.Driver, func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panics {
		panic("appium client not initialized")
	}
	if l.err != nil {
		return nil, nil, l.err
	}
	if l.launched == nil {
		l.launched = map[string]int{}
	}
	l.launched[deviceID]++
	dev := mock.New()
	if l.setup != nil {
		l.setup(dev)
	}
	l.devices = append(l.devices, dev)
	return dev, func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closed++
		return dev.Disconnect()
	}, nil
}

var okButton = screen.Locator{By: screen.ByID, Value: "ok"}

func clickOK(name string) scenario.Step {
	return scenario.Step{
		Name: name,
		Run: func(ctx context.Context, env *scenario.Env) error {
			return env.App.Base.Click(ctx, okButton, 0)
		},
	}
}

func failing(name string, err error) scenario.Step {
	return scenario.Step{Name: name, Run: func(context.Context, *scenario.Env) error { return err }}
}

func newRunner(l *fakeLauncher, src users.Source, cfg RunnerConfig) *Runner {
	cfg.ScreenOptions = append(cfg.ScreenOptions, screen.WithWait(10*time.Millisecond), screen.WithPoll(time.Millisecond))
	return New(config.Default(), l.launch, src, staticOTP("12345"), cfg)
}

func withOK(dev *mock.Device) { dev.Set(screen.ByID, "ok", mock.Element{Text: "OK"}) }

func TestRunner_Run_AllPassed(t *testing.T) {
	l := &fakeLauncher{setup: withOK}
	src := &fakeSource{}
	var ended []string
	r := newRunner(l, src, RunnerConfig{
		OnScenarioEnd: func(res core.ScenarioResult) { ended = append(ended, res.Name) },
	})

	scenarios := []scenario.Scenario{
		{Name: "first", Cases: []string{"C1"}, Marks: []string{"core"}, Steps: []scenario.Step{clickOK("tap ok")}},
		{Name: "second", Setup: []scenario.Step{clickOK("setup ok")}, Steps: []scenario.Step{clickOK("tap ok")}},
	}
	result, err := r.Run(context.Background(), []string{"emulator-5554"}, scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Total != 2 || result.Passed != 2 || result.Failed != 0 {
		t.Errorf("summary = %d/%d/%d", result.Total, result.Passed, result.Failed)
	}
	if !result.Success() {
		t.Error("Success() = false")
	}
	if result.RunID == "" || result.Scenarios[0].ID == "" || result.Scenarios[0].ID == result.Scenarios[1].ID {
		t.Errorf("ids not assigned: run=%q scenarios=%q,%q", result.RunID, result.Scenarios[0].ID, result.Scenarios[1].ID)
	}
	first := result.Scenarios[0]
	if first.Device != "emulator-5554" || first.Cases[0] != "C1" || first.Marks[0] != "core" {
		t.Errorf("identity not carried: %+v", first)
	}
	if len(result.Scenarios[1].Steps) != 2 {
		t.Errorf("second scenario ran %d steps, want setup + step", len(result.Scenarios[1].Steps))
	}
	if l.closed != 2 {
		t.Errorf("closed %d sessions, want 2", l.closed)
	}
	if len(ended) != 2 {
		t.Errorf("OnScenarioEnd called %d times", len(ended))
	}
	for _, dev := range l.devices {
		if dev.ClickCount(screen.ByID, "ok") == 0 {
			t.Error("step did not reach the device")
		}
	}
}

func TestRunner_Run_StepFailure(t *testing.T) {
	out := t.TempDir()
	l := &fakeLauncher{} // no ok button: lookups fail
	src := &fakeSource{}
	var steps []core.StepResult
	r := newRunner(l, src, RunnerConfig{
		OutputDir:      out,
		OnStepComplete: func(_ string, s core.StepResult) { steps = append(steps, s) },
	})

	sc := scenario.Scenario{
		Name:         "order",
		ConsumesUser: true,
		Steps:        []scenario.Step{clickOK("tap ok"), clickOK("never runs")},
	}
	result, err := r.Run(context.Background(), []string{"emulator-5554"}, []scenario.Scenario{sc})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := result.Scenarios[0]
	if res.Status != core.StatusFailed || res.Category != core.ErrCategoryAssertion {
		t.Errorf("status = %v/%v, want failed/assertion", res.Status, res.Category)
	}
	if len(res.Steps) != 2 || res.Steps[0].Status != core.StatusFailed || res.Steps[1].Status != core.StatusSkipped {
		t.Errorf("steps = %+v", res.Steps)
	}
	if len(steps) != 1 {
		t.Errorf("OnStepComplete called %d times, want 1", len(steps))
	}
	if res.UserReleased {
		t.Error("user released after a failure")
	}
	if len(src.finished) != 1 || src.finished[0].passed || !src.finished[0].consume {
		t.Errorf("finish calls = %+v", src.finished)
	}
	if l.closed != 1 {
		t.Errorf("closed %d sessions, want 1", l.closed)
	}

	if len(res.Attachments) != 2 {
		t.Fatalf("attachments = %+v, want screenshot and page source", res.Attachments)
	}
	for _, a := range res.Attachments {
		if a.Path == "" {
			t.Errorf("%s not written", a.Name)
			continue
		}
		if _, err := os.Stat(filepath.Join(out, a.Path)); err != nil {
			t.Errorf("%s: %v", a.Name, err)
		}
	}
}

func TestRunner_Run_ReleasesUserAfterPass(t *testing.T) {
	l := &fakeLauncher{setup: withOK}
	src := &fakeSource{}
	r := newRunner(l, src, RunnerConfig{Artifacts: ArtifactNever})

	sc := scenario.Scenario{Name: "order", ConsumesUser: true, Steps: []scenario.Step{clickOK("tap ok")}}
	result, err := r.Run(context.Background(), []string{"emulator-5554"}, []scenario.Scenario{sc})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Scenarios[0].UserReleased {
		t.Error("UserReleased = false after a passing consuming scenario")
	}
	if len(src.finished) != 1 || !src.finished[0].passed {
		t.Errorf("finish calls = %+v", src.finished)
	}
}

func TestRunner_Run_LaunchFailure(t *testing.T) {
	l := &fakeLauncher{err: core.ErrServerUnreachable.WithCause(errors.New("connection refused"))}
	src := &fakeSource{}
	r := newRunner(l, src, RunnerConfig{})

	sc := scenario.Scenario{Name: "s", Steps: []scenario.Step{clickOK("a"), clickOK("b")}}
	result, err := r.Run(context.Background(), []string{"emulator-5554"}, []scenario.Scenario{sc})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res := result.Scenarios[0]
	if res.Status != core.StatusErrored || res.Category != core.ErrCategoryConnection {
		t.Errorf("status = %v/%v, want errored/connection", res.Status, res.Category)
	}
	if len(res.Steps) != 2 || res.Steps[0].Status != core.StatusSkipped {
		t.Errorf("steps = %+v", res.Steps)
	}
	if len(src.finished) != 1 || src.finished[0].passed {
		t.Errorf("user not finished as failed: %+v", src.finished)
	}
}

func TestRunner_Run_LauncherPanic(t *testing.T) {
	l := &fakeLauncher{panics: true}
	r := newRunner(l, &fakeSource{}, RunnerConfig{})

	scenarios := []scenario.Scenario{
		{Name: "first", Steps: []scenario.Step{clickOK("a")}},
		{Name: "second", Steps: []scenario.Step{clickOK("a")}},
	}
	result, err := r.Run(context.Background(), []string{"emulator-5554", "emulator-5556"}, scenarios)
	if err == nil {
		t.Fatal("expected error when the launcher panics")
	}
	if !strings.Contains(err.Error(), "appium client not initialized") {
		t.Errorf("error = %v, want panic value", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

func TestRunner_Run_NoTestUser(t *testing.T) {
	l := &fakeLauncher{}
	src := &fakeSource{acquireErr: core.ErrNoTestUser}
	r := newRunner(l, src, RunnerConfig{})

	result, err := r.Run(context.Background(), []string{"emulator-5554"},
		[]scenario.Scenario{{Name: "s", Steps: []scenario.Step{clickOK("a")}}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res := result.Scenarios[0]
	if res.Status != core.StatusErrored || res.Category != core.ErrCategoryTestData {
		t.Errorf("status = %v/%v, want errored/test_data", res.Status, res.Category)
	}
	if len(l.launched) != 0 {
		t.Error("session started without a user")
	}
	if len(src.finished) != 0 {
		t.Errorf("Finish called without a user: %+v", src.finished)
	}
}

func TestRunner_Run_StopOnFail(t *testing.T) {
	l := &fakeLauncher{setup: withOK}
	r := newRunner(l, &fakeSource{}, RunnerConfig{StopOnFail: true, Artifacts: ArtifactNever})

	scenarios := []scenario.Scenario{
		{Name: "broken", Steps: []scenario.Step{failing("boom", core.ErrTextMismatch)}},
		{Name: "later", Steps: []scenario.Step{clickOK("a")}},
		{Name: "last", Steps: []scenario.Step{clickOK("a")}},
	}
	result, err := r.Run(context.Background(), []string{"emulator-5554"}, scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 || result.Skipped != 2 {
		t.Errorf("failed=%d skipped=%d, want 1 and 2", result.Failed, result.Skipped)
	}
	if result.Success() {
		t.Error("Success() = true")
	}
}

func TestRunner_Run_Parallel(t *testing.T) {
	l := &fakeLauncher{setup: withOK}
	r := newRunner(l, &fakeSource{}, RunnerConfig{})

	var scenarios []scenario.Scenario
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		scenarios = append(scenarios, scenario.Scenario{
			Name: name,
			Steps: []scenario.Step{{
				Name: "wait",
				Run: func(ctx context.Context, env *scenario.Env) error {
					time.Sleep(20 * time.Millisecond)
					return env.App.Base.Click(ctx, okButton, 0)
				},
			}},
		})
	}
	devices := []string{"emulator-5554", "emulator-5556"}
	result, err := r.Run(context.Background(), devices, scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Passed != 6 {
		t.Errorf("passed = %d, want 6", result.Passed)
	}
	for i, res := range result.Scenarios {
		if res.Name != scenarios[i].Name {
			t.Errorf("result %d = %q, want %q", i, res.Name, scenarios[i].Name)
		}
	}
	for _, d := range devices {
		if l.launched[d] == 0 {
			t.Errorf("device %s never used", d)
		}
	}
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	l := &fakeLauncher{setup: withOK}
	r := newRunner(l, &fakeSource{}, RunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := r.Run(ctx, []string{"emulator-5554"},
		[]scenario.Scenario{{Name: "s", Steps: []scenario.Step{clickOK("a")}}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Scenarios[0].Status != core.StatusSkipped {
		t.Errorf("status = %v, want skipped", result.Scenarios[0].Status)
	}
	if len(l.launched) != 0 {
		t.Error("session started after cancellation")
	}
}

func TestRunner_Run_NoDevices(t *testing.T) {
	r := newRunner(&fakeLauncher{}, &fakeSource{}, RunnerConfig{})
	if _, err := r.Run(context.Background(), nil, nil); err == nil {
		t.Error("Run() without devices should fail")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		want core.ErrorCategory
	}{
		{nil, core.ErrCategoryNone},
		{context.DeadlineExceeded, core.ErrCategoryTimeout},
		{core.ErrElementNotFound, core.ErrCategoryAssertion},
		{core.ErrOTPNotReceived, core.ErrCategoryTestData},
		{errors.New("socket closed"), core.ErrCategoryConnection},
	}
	for _, tt := range tests {
		if got := categorize(tt.err); got != tt.want {
			t.Errorf("categorize(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
