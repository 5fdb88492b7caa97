// Package scenario holds the registered UI scenarios and the fixture they share.
package scenario

import (
	"context"
	"strings"

	"github.com/citizencard-qa/autotests-mobile/pkg/app"
	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
	"github.com/citizencard-qa/autotests-mobile/pkg/users"
)

// Marks used by the suite.
const (
	MarkCore    = "core"
	MarkLimited = "limited"
)

// Env is what a step runs against.
type Env struct {
	App  *app.Application
	User users.Credentials
}

// Step is one named action of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Scenario is a registered test case.
type Scenario struct {
	Name        string
	Suite       string
	Description string
	Cases       []string // TestRail case ids
	Marks       []string
	Params      string

	// ConsumesUser removes the credential record after a passing run.
	ConsumesUser bool

	Setup []Step // fixture steps run before Steps
	Steps []Step
}

// Plan returns the setup steps followed by the scenario's own steps.
func (s Scenario) Plan() []Step {
	plan := make([]Step, 0, len(s.Setup)+len(s.Steps))
	plan = append(plan, s.Setup...)
	return append(plan, s.Steps...)
}

// HasMark reports whether the scenario carries mark.
func (s Scenario) HasMark(mark string) bool {
	for _, m := range s.Marks {
		if m == mark {
			return true
		}
	}
	return false
}

// onMain adapts a main screen method expression to a Step.
func onMain(name string, fn func(*screen.Main, context.Context) error) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context, env *Env) error {
			return fn(env.App.Main, ctx)
		},
	}
}

// IssuePlasticCard logs the user in and walks to the plastic card delivery screen.
func IssuePlasticCard() []Step {
	return []Step{
		onMain("Check and close update popup", (*screen.Main).CheckAndCloseUpdatePopup),
		onMain("Assert home screen is open", (*screen.Main).AssertHomeScreenIsOpen),
		{
			Name: "Login via phone",
			Run: func(ctx context.Context, env *Env) error {
				return env.App.Main.LoginViaPhone(ctx, env.User.Phone, env.User.Password)
			},
		},
		onMain("Check and close pay parking popup", (*screen.Main).CheckAndClosePayParkingPopup),
		onMain("Issue card", (*screen.Main).IssueCard),
		onMain("Issue plastic card", (*screen.Main).IssuePlasticCard),
		onMain("Apply plastic card", (*screen.Main).ApplyPlasticCard),
	}
}

// Filter selects scenarios by marks and name.
type Filter struct {
	IncludeMarks []string
	ExcludeMarks []string
	Name         string // case-insensitive substring
}

// Matches reports whether s passes the filter.
func (f Filter) Matches(s Scenario) bool {
	if len(f.IncludeMarks) > 0 {
		hasMark := false
		for _, m := range f.IncludeMarks {
			if s.HasMark(m) {
				hasMark = true
				break
			}
		}
		if !hasMark {
			return false
		}
	}
	for _, m := range f.ExcludeMarks {
		if s.HasMark(m) {
			return false
		}
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

// Select returns the scenarios matching f, in registry order.
func Select(all []Scenario, f Filter) []Scenario {
	var out []Scenario
	for _, s := range all {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}
