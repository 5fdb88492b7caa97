// Package report writes run results: a live report.json and Allure results.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// IndexWriter keeps <outputDir>/report.json current while scenarios finish.
// Multiple device goroutines may record results concurrently.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index core.SuiteResult
}

// NewIndexWriter creates a writer for runID.
func NewIndexWriter(outputDir, runID string) *IndexWriter {
	return &IndexWriter{
		path:  filepath.Join(outputDir, "report.json"),
		index: core.SuiteResult{RunID: runID, StartTime: time.Now()},
	}
}

// Path returns the report file path.
func (w *IndexWriter) Path() string { return w.path }

// Record adds or replaces a scenario result and flushes.
func (w *IndexWriter) Record(res core.ScenarioResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	replaced := false
	for i := range w.index.Scenarios {
		if w.index.Scenarios[i].ID == res.ID {
			w.index.Scenarios[i] = res
			replaced = true
			break
		}
	}
	if !replaced {
		w.index.Scenarios = append(w.index.Scenarios, res)
	}
	w.index.ComputeSummary()
	w.flushLocked()
}

// End replaces the index with the final suite result and flushes.
func (w *IndexWriter) End(suite *core.SuiteResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index = *suite
	w.index.ComputeSummary()
	return atomicWriteJSON(w.path, &w.index)
}

// Index returns a copy of the current index.
func (w *IndexWriter) Index() core.SuiteResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.index
	idx.Scenarios = append([]core.ScenarioResult(nil), w.index.Scenarios...)
	return idx
}

func (w *IndexWriter) flushLocked() {
	w.index.Duration = time.Since(w.index.StartTime)
	if err := atomicWriteJSON(w.path, &w.index); err != nil {
		logger.Warn("failed to write %s: %v", w.path, err)
	}
}

// ReadIndex loads report.json from outputDir.
func ReadIndex(outputDir string) (*core.SuiteResult, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "report.json"))
	if err != nil {
		return nil, err
	}
	var suite core.SuiteResult
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse report.json: %w", err)
	}
	return &suite, nil
}

// atomicWriteJSON writes v next to path and renames it into place.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
