package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
)

func readAllureResult(t *testing.T, dir, id string) AllureResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "allure-results", id+"-result.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var result AllureResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func passedScenario(now time.Time) core.ScenarioResult {
	return core.ScenarioResult{
		ID:        "5b1f0c9e-0000-4000-8000-000000000001",
		Name:      "how_to_get_card[bank]",
		Suite:     "IssuingPlasticCard",
		Cases:     []string{"C15798903", "C15798899"},
		Marks:     []string{"core"},
		Device:    "emulator-5554",
		Params:    "delivery_method=bank",
		Status:    core.StatusPassed,
		StartTime: now,
		Duration:  5 * time.Second,
		Steps: []core.StepResult{
			{Index: 0, Name: "Input delivery city", Status: core.StatusPassed, StartTime: now, Duration: 2 * time.Second},
			{Index: 1, Name: "How to get card: bank", Status: core.StatusPassed, StartTime: now.Add(2 * time.Second), Duration: 3 * time.Second},
		},
	}
}

func TestGenerateAllurePassedScenario(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	sc := passedScenario(now)
	suite := &core.SuiteResult{RunID: "run-1", Scenarios: []core.ScenarioResult{sc}}

	opts := AllureOptions{TestRailURL: "https://testrail.example/index.php?/cases/view/"}
	if err := GenerateAllure(dir, suite, opts); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	result := readAllureResult(t, dir, sc.ID)
	if result.Status != "passed" || result.Stage != "finished" {
		t.Errorf("status/stage = %s/%s", result.Status, result.Stage)
	}
	if result.Name != sc.Name || result.FullName != "IssuingPlasticCard.how_to_get_card[bank]" {
		t.Errorf("name = %q fullName = %q", result.Name, result.FullName)
	}
	if result.Stop-result.Start != 5000 {
		t.Errorf("duration = %dms, want 5000", result.Stop-result.Start)
	}
	if len(result.Steps) != 2 || result.Steps[1].Name != "How to get card: bank" {
		t.Errorf("steps = %+v", result.Steps)
	}

	if len(result.Links) != 2 {
		t.Fatalf("links = %+v", result.Links)
	}
	if result.Links[0].Type != "tms" || result.Links[0].URL != "https://testrail.example/index.php?/cases/view/15798903" {
		t.Errorf("link = %+v", result.Links[0])
	}
	if len(result.Parameters) != 1 || result.Parameters[0] != (AllureParameter{Name: "delivery_method", Value: "bank"}) {
		t.Errorf("parameters = %+v", result.Parameters)
	}
}

func TestGenerateAllureFailedScenarioWithAttachments(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	sc := core.ScenarioResult{
		ID:        "5b1f0c9e-0000-4000-8000-000000000002",
		Name:      "order",
		Suite:     "IssuingPlasticCard",
		Status:    core.StatusFailed,
		StartTime: now,
		Error:     "Order card: element not found",
		Steps: []core.StepResult{
			{Name: "Order card", Status: core.StatusFailed, StartTime: now, Error: "element not found"},
			{Name: "Return to home screen", Status: core.StatusSkipped},
		},
		Attachments: []core.Attachment{
			core.NewScreenshotAttachment(filepath.Join("artifacts", "s2", "screenshot.png"), nil),
			core.NewPageSourceAttachment("", nil), // kept in memory only
		},
	}
	if err := os.MkdirAll(filepath.Join(dir, "artifacts", "s2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "artifacts", "s2", "screenshot.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := GenerateAllure(dir, &core.SuiteResult{Scenarios: []core.ScenarioResult{sc}}, AllureOptions{}); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	result := readAllureResult(t, dir, sc.ID)
	if result.Status != "failed" || result.StatusDetails.Message != sc.Error {
		t.Errorf("status = %s, message = %q", result.Status, result.StatusDetails.Message)
	}
	if result.Steps[0].StatusDetails.Message != "element not found" || result.Steps[1].Status != "skipped" {
		t.Errorf("steps = %+v", result.Steps)
	}
	if result.Steps[1].Start != 0 {
		t.Errorf("skipped step start = %d, want 0", result.Steps[1].Start)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("attachments = %+v", result.Attachments)
	}
	copied := filepath.Join(dir, "allure-results", result.Attachments[0].Source)
	if data, err := os.ReadFile(copied); err != nil || string(data) != "png" {
		t.Errorf("attachment not copied: %v", err)
	}
}

func TestAllureLabels(t *testing.T) {
	sc := passedScenario(time.Now())
	sc.Marks = []string{"core", "limited"}
	result := buildAllureResult(sc, AllureOptions{})

	got := map[string][]string{}
	for _, l := range result.Labels {
		got[l.Name] = append(got[l.Name], l.Value)
	}
	if strings.Join(got["tag"], ",") != "core,limited" {
		t.Errorf("tags = %v", got["tag"])
	}
	if got["suite"][0] != "IssuingPlasticCard" || got["host"][0] != "emulator-5554" {
		t.Errorf("labels = %v", got)
	}
	if result.Links[0].URL != "" {
		t.Errorf("link URL without TestRail base = %q", result.Links[0].URL)
	}
}

func TestAllureHistoryIDDeterministic(t *testing.T) {
	a := passedScenario(time.Now())
	b := a
	b.ID = "another-run"
	if buildAllureResult(a, AllureOptions{}).HistoryID != buildAllureResult(b, AllureOptions{}).HistoryID {
		t.Error("history id should not depend on the run")
	}
	b.Device = "emulator-5556"
	if buildAllureResult(a, AllureOptions{}).HistoryID == buildAllureResult(b, AllureOptions{}).HistoryID {
		t.Error("history id should differ per device")
	}
}

func TestAllureStatusMapping(t *testing.T) {
	tests := []struct {
		status core.Status
		want   string
	}{
		{core.StatusPassed, "passed"},
		{core.StatusFailed, "failed"},
		{core.StatusErrored, "broken"},
		{core.StatusSkipped, "skipped"},
		{core.StatusRunning, "unknown"},
	}
	for _, tt := range tests {
		if got := mapAllureStatus(tt.status); got != tt.want {
			t.Errorf("mapAllureStatus(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAllureCategoriesAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{"device": "emulator-5554", "app.package": "ru.akbars.citizencard.dev", "empty": ""}
	if err := GenerateAllure(dir, &core.SuiteResult{}, AllureOptions{Environment: env}); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "allure-results", "categories.json"))
	if err != nil {
		t.Fatalf("read categories: %v", err)
	}
	var categories []AllureCategory
	if err := json.Unmarshal(data, &categories); err != nil {
		t.Fatalf("unmarshal categories: %v", err)
	}
	if len(categories) == 0 {
		t.Error("no categories written")
	}

	props, err := os.ReadFile(filepath.Join(dir, "allure-results", "environment.properties"))
	if err != nil {
		t.Fatalf("read environment: %v", err)
	}
	want := "framework=appium\napp.package=ru.akbars.citizencard.dev\ndevice=emulator-5554\n"
	if string(props) != want {
		t.Errorf("environment.properties = %q, want %q", props, want)
	}
}

func TestCopyFileSourceMissing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.png")
	copyFile(filepath.Join(dir, "missing.png"), dst)
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination created for a missing source")
	}
}

func TestGenerateAllureUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "allure-results")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateAllure(dir, &core.SuiteResult{}, AllureOptions{}); err == nil {
		t.Error("expected error when allure-results is a file")
	}
}
