package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/userapi"
)

// Source hands out test users to scenarios.
type Source interface {
	// Acquire returns a user. consume marks a user the scenario will use up (e.g. by ordering a card).
	Acquire(ctx context.Context, consume bool) (Credentials, error)
	// Finish is called when the scenario ends and reports whether the record was removed.
	Finish(c Credentials, consume, passed bool) (bool, error)
}

// FileSource serves users from the credential file.
// Users consumed by concurrently running scenarios are leased so two devices never share one.
type FileSource struct {
	store *Store

	mu sync.Mutex
	// leased maps a consumed line to its position in the file when it was handed out.
	leased map[string]int
}

// NewFileSource creates a source over the credential file.
func NewFileSource(store *Store) *FileSource {
	return &FileSource{store: store, leased: make(map[string]int)}
}

// Acquire returns the first user, or the first one not leased when consume is set.
func (f *FileSource) Acquire(ctx context.Context, consume bool) (Credentials, error) {
	if !consume {
		return f.store.First()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lines, err := f.store.Lines()
	if err != nil {
		return Credentials{}, err
	}
	for i, l := range lines {
		if _, held := f.leased[l]; held {
			continue
		}
		c, err := ParseLine(l)
		if err != nil {
			return Credentials{}, err
		}
		f.leased[l] = i
		return c, nil
	}
	return Credentials{}, core.ErrNoTestUser.WithDetails(map[string]interface{}{"file": f.store.Path(), "leased": len(f.leased)})
}

// Finish drops the lease and removes the line after a passing scenario that consumed it.
// A user handed out from the top of the file must still be on top; one handed out
// further down, next to other leases, is removed wherever it now is.
func (f *FileSource) Finish(c Credentials, consume, passed bool) (bool, error) {
	if !consume {
		return false, nil
	}
	f.mu.Lock()
	pos, held := f.leased[c.Line]
	delete(f.leased, c.Line)
	f.mu.Unlock()

	if !passed {
		logger.Info("Scenario did not pass, line %q kept", c.Line)
		return false, nil
	}
	if held && pos > 0 {
		return f.store.Remove(c.Line)
	}
	return f.store.Release(c.Line)
}

// Provisioner creates a fresh user through the banking core.
type Provisioner interface {
	CreateTestUser(ctx context.Context) (userapi.Record, error)
}

// APISource provisions one user per run and serves it to every scenario.
type APISource struct {
	api      Provisioner
	password string

	mu   sync.Mutex
	done bool
	user Credentials
	err  error
}

// NewAPISource creates a source backed by the provisioning chain.
// password is the login password the provisioned users are created with.
func NewAPISource(api Provisioner, password string) *APISource {
	return &APISource{api: api, password: password}
}

// Acquire provisions the user on first use and returns the cached result afterwards.
func (a *APISource) Acquire(ctx context.Context, consume bool) (Credentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return a.user, a.err
	}

	rec, err := a.api.CreateTestUser(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Credentials{}, err
		}
		a.done = true
		a.err = core.ErrNoTestUser.WithMessage("test user provisioning failed").WithCause(err)
		return Credentials{}, a.err
	}
	phone := rec.String("phone")
	if phone == "" {
		a.done = true
		a.err = core.ErrNoTestUser.WithMessage("provisioned user has no phone")
		return Credentials{}, a.err
	}

	a.done = true
	a.user = Credentials{Phone: phone, Password: a.password}
	logger.Info("Provisioned test user %s (crm_id=%s)", phone, rec.String("crm_id"))
	return a.user, nil
}

// Finish is a no-op: provisioned users are never written back.
func (a *APISource) Finish(Credentials, bool, bool) (bool, error) { return false, nil }

// SelectSource picks the API in CI runs and the credential file otherwise.
func SelectSource(cfg *config.Config, api Provisioner) (Source, error) {
	if cfg.CI {
		if api == nil {
			return nil, fmt.Errorf("CI run needs a provisioning client")
		}
		return NewAPISource(api, cfg.DefaultPassword), nil
	}
	if cfg.UsersFile == "" {
		return nil, core.ErrInvalidConfig.WithMessage("credential file path is empty")
	}
	return NewFileSource(NewStore(cfg.UsersFile)), nil
}
