package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Links         []AllureLink        `json:"links"`
	Parameters    []AllureParameter   `json:"parameters"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureLink points at an external system, here TestRail cases.
type AllureLink struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Type string `json:"type"`
}

// AllureParameter is one test parameter.
type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureOptions tune the generated results.
type AllureOptions struct {
	// TestRailURL is the case URL prefix, e.g. https://testrail.example/index.php?/cases/view/
	// The "C" of a case id is stripped before appending.
	TestRailURL string
	// Environment lands in environment.properties.
	Environment map[string]string
}

// GenerateAllure writes Allure-compatible files to <reportDir>/allure-results/.
// Attachment paths are resolved against reportDir and copied alongside.
func GenerateAllure(reportDir string, suite *core.SuiteResult, opts AllureOptions) error {
	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for _, sc := range suite.Scenarios {
		result := buildAllureResult(sc, opts)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", sc.Name, err)
		}
		resultPath := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", sc.Name, err)
		}
		copyAllureAttachments(reportDir, allureDir, sc)
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, opts.Environment)
}

// buildAllureResult converts one scenario result.
func buildAllureResult(sc core.ScenarioResult, opts AllureOptions) AllureResult {
	startMs := sc.StartTime.UnixMilli()
	stopMs := startMs + sc.Duration.Milliseconds()

	labels := []AllureLabel{
		{Name: "suite", Value: sc.Suite},
		{Name: "parentSuite", Value: "citizencard"},
		{Name: "framework", Value: "appium"},
		{Name: "language", Value: "go"},
		{Name: "severity", Value: "normal"},
	}
	if sc.Device != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: sc.Device}, AllureLabel{Name: "thread", Value: sc.Device})
	}
	for _, mark := range sc.Marks {
		labels = append(labels, AllureLabel{Name: "tag", Value: mark})
	}

	links := make([]AllureLink, 0, len(sc.Cases))
	for _, c := range sc.Cases {
		link := AllureLink{Name: c, Type: "tms"}
		if opts.TestRailURL != "" {
			link.URL = opts.TestRailURL + strings.TrimPrefix(c, "C")
		}
		links = append(links, link)
	}

	params := []AllureParameter{}
	if sc.Params != "" {
		for _, kv := range strings.Split(sc.Params, ",") {
			name, value, _ := strings.Cut(kv, "=")
			params = append(params, AllureParameter{Name: name, Value: value})
		}
	}

	steps := make([]AllureStep, 0, len(sc.Steps))
	for _, st := range sc.Steps {
		start := st.StartTime.UnixMilli()
		if st.StartTime.IsZero() {
			start = 0
		}
		steps = append(steps, AllureStep{
			Name:          st.Name,
			Status:        mapAllureStatus(st.Status),
			Stage:         "finished",
			Start:         start,
			Stop:          start + st.Duration.Milliseconds(),
			StatusDetails: AllureStatusDetails{Message: st.Error},
		})
	}

	attachments := make([]AllureAttachment, 0, len(sc.Attachments))
	for _, a := range sc.Attachments {
		if a.Path == "" {
			continue
		}
		attachments = append(attachments, AllureAttachment{
			Name:   a.Name,
			Source: attachmentSource(sc.ID, a.Path),
			Type:   a.ContentType,
		})
	}

	return AllureResult{
		UUID:          sc.ID,
		HistoryID:     fnv32aHash(sc.Suite + ":" + sc.Name + ":" + sc.Device),
		FullName:      sc.Suite + "." + sc.Name,
		Name:          sc.Name,
		Status:        mapAllureStatus(sc.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Links:         links,
		Parameters:    params,
		StatusDetails: AllureStatusDetails{Message: sc.Error},
		Steps:         steps,
		Attachments:   attachments,
	}
}

// attachmentSource is the flat file name of an attachment inside allure-results.
func attachmentSource(scenarioID, path string) string {
	return scenarioID + "-" + filepath.Base(path)
}

// copyAllureAttachments copies a scenario's artifacts into allure-results/ flat.
func copyAllureAttachments(reportDir, allureDir string, sc core.ScenarioResult) {
	for _, a := range sc.Attachments {
		if a.Path == "" {
			continue
		}
		copyFile(filepath.Join(reportDir, a.Path), filepath.Join(allureDir, attachmentSource(sc.ID, a.Path)))
	}
}

// copyFile copies src to dst. A missing source is ignored.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		logger.Warn("failed to create %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps a core status to an Allure status string.
func mapAllureStatus(s core.Status) string {
	switch s {
	case core.StatusPassed:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusErrored:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*element not found.*"},
		{Name: "Element Not Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not visible.*"},
		{Name: "Text Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*text.*(mismatch|does not).*"},
		{Name: "OTP Not Received", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*otp.*|.*sms code.*"},
		{Name: "Test User Unavailable", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*test user.*"},
		{Name: "WebView Missing", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*webview.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*timeout.*|.*timed out.*|.*deadline.*"},
		{Name: "Connection Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*connection.*|.*appium.*|.*socket.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties, keys sorted.
func writeAllureEnvironment(allureDir string, env map[string]string) error {
	var b strings.Builder
	b.WriteString("framework=appium\n")

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if env[k] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
