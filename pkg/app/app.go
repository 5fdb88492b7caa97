// Package app bundles the screens of the citizen card application behind one handle.
package app

import (
	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
)

// Application is what scenarios drive: generic primitives plus the main screen.
type Application struct {
	Base *screen.Base
	Main *screen.Main
}

// New builds the application over an automation backend.
func New(drv screen.Automation, cfg *config.Config, otp screen.OTPSource, opts ...screen.Option) *Application {
	base := screen.NewBase(drv, opts...)
	return &Application{
		Base: base,
		Main: screen.NewMain(base, screen.NewLocators(cfg.AppPackage), otp),
	}
}
