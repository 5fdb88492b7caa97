// Package users supplies test user credentials, either from the pre-seeded
// credential file or by provisioning a fresh user through the banking core.
package users

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

var lineRe = regexp.MustCompile(`телефон (?P<phone>\d+), пароль (?P<password>\d+)`)

// Credentials identify a test user. Line is the credential file line they came from, if any.
type Credentials struct {
	Phone    string
	Password string
	Line     string
}

// ParseLine extracts phone and password from a "телефон <digits>, пароль <digits>" record.
func ParseLine(line string) (Credentials, error) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Credentials{}, fmt.Errorf("no credentials in line %q", line)
	}
	return Credentials{
		Phone:    m[lineRe.SubexpIndex("phone")],
		Password: m[lineRe.SubexpIndex("password")],
		Line:     strings.TrimSpace(line),
	}, nil
}

// Store is the credential file: one user per line, consumed from the top.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore opens a credential file by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path.
func (s *Store) Path() string { return s.path }

// Lines returns the trimmed non-empty lines of the file.
func (s *Store) Lines() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// First returns the credentials on the first line.
func (s *Store) First() (Credentials, error) {
	lines, err := s.Lines()
	if err != nil {
		return Credentials{}, err
	}
	if len(lines) == 0 {
		return Credentials{}, core.ErrNoTestUser.WithDetails(map[string]interface{}{"file": s.path})
	}
	return ParseLine(lines[0])
}

// Release removes the first line, but only if it still equals line.
// It reports whether the line was removed; a changed file is logged and left alone.
func (s *Store) Release(line string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimSpace(line)
	lines, err := s.read()
	if err != nil {
		return false, err
	}
	if len(lines) == 0 || lines[0] != line {
		logger.Warn("Line %q not found at the top of %s, the file may have changed", line, s.path)
		return false, nil
	}

	rest := strings.Join(lines[1:], "\n")
	if rest != "" {
		rest += "\n"
	}
	if err := os.WriteFile(s.path, []byte(rest), 0o644); err != nil {
		return false, fmt.Errorf("rewrite credential file: %w", err)
	}
	logger.Info("Line %q removed from %s after a passing scenario", line, s.path)
	return true, nil
}

// Remove deletes line wherever it is in the file. It reports whether the line was
// found; a missing line is logged and the file is left alone.
func (s *Store) Remove(line string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimSpace(line)
	lines, err := s.read()
	if err != nil {
		return false, err
	}
	idx := -1
	for i, l := range lines {
		if l == line {
			idx = i
			break
		}
	}
	if idx < 0 {
		logger.Warn("Line %q not found in %s, the file may have changed", line, s.path)
		return false, nil
	}

	kept := append(lines[:idx:idx], lines[idx+1:]...)
	rest := strings.Join(kept, "\n")
	if rest != "" {
		rest += "\n"
	}
	if err := os.WriteFile(s.path, []byte(rest), 0o644); err != nil {
		return false, fmt.Errorf("rewrite credential file: %w", err)
	}
	logger.Info("Line %q removed from %s after a passing scenario", line, s.path)
	return true, nil
}
