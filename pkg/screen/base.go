// Package screen implements the page objects of the Citizen Card application.
package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/driver/appium"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// Default wait settings for element lookups.
const (
	DefaultWait = 20 * time.Second
	DefaultPoll = 200 * time.Millisecond
)

// Automation is the subset of the Appium client the screens drive.
type Automation interface {
	FindElement(strategy, value string) (string, error)
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SetElementValue(elementID, text string) error
	GetElementText(elementID string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	IsElementEnabled(elementID string) (bool, error)
	SendKeys(text string) error
	PressKeyCode(keycode int) error
	WindowSize() (int, int, error)
	Swipe(startX, startY, endX, endY, holdMs int) error
	Contexts() ([]string, error)
	SwitchContext(name string) error
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures a Base.
type Option func(*Base)

// WithWait sets the default element wait.
func WithWait(d time.Duration) Option { return func(b *Base) { b.wait = d } }

// WithPoll sets the element poll interval.
func WithPoll(d time.Duration) Option { return func(b *Base) { b.poll = d } }

// WithSleeper replaces the pause used between input actions.
func WithSleeper(s Sleeper) Option { return func(b *Base) { b.sleep = s } }

// Base provides generic element primitives over native and WebView contexts.
type Base struct {
	drv   Automation
	wait  time.Duration
	poll  time.Duration
	sleep Sleeper
}

// NewBase creates a Base over an automation backend.
func NewBase(drv Automation, opts ...Option) *Base {
	b := &Base{drv: drv, wait: DefaultWait, poll: DefaultPoll, sleep: Sleep}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Driver returns the underlying automation backend.
func (b *Base) Driver() Automation { return b.drv }

// Pause sleeps for d, honouring ctx.
func (b *Base) Pause(ctx context.Context, d time.Duration) error {
	return b.sleep(ctx, d)
}

func (b *Base) waitFor(wait time.Duration) time.Duration {
	if wait <= 0 {
		return b.wait
	}
	return wait
}

// pollUntil calls check until it reports done, an error other than "not yet", or the wait elapses.
func (b *Base) pollUntil(ctx context.Context, wait time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(b.waitFor(wait))
	var lastErr error
	for {
		done, err := check()
		if done {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = fmt.Errorf("timed out after %s", b.waitFor(wait))
			}
			return lastErr
		}
		if err := b.sleep(ctx, b.poll); err != nil {
			return err
		}
	}
}

// Find waits until the element is present and returns its id.
func (b *Base) Find(ctx context.Context, loc Locator, wait time.Duration) (string, error) {
	var id string
	err := b.pollUntil(ctx, wait, func() (bool, error) {
		found, err := b.drv.FindElement(loc.By, loc.Value)
		if err != nil {
			return false, err
		}
		id = found
		return true, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.ErrElementNotFound.
			WithDetails(map[string]interface{}{"locator": loc.String(), "wait": b.waitFor(wait).String()}).
			WithCause(err)
	}
	return id, nil
}

// Visible waits until the element is present and displayed.
func (b *Base) Visible(ctx context.Context, loc Locator, wait time.Duration) (string, error) {
	var id string
	err := b.pollUntil(ctx, wait, func() (bool, error) {
		found, err := b.drv.FindElement(loc.By, loc.Value)
		if err != nil {
			return false, err
		}
		shown, err := b.drv.IsElementDisplayed(found)
		if err != nil || !shown {
			return false, err
		}
		id = found
		return true, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.ErrElementNotVisible.
			WithDetails(map[string]interface{}{"locator": loc.String(), "wait": b.waitFor(wait).String()}).
			WithCause(err)
	}
	return id, nil
}

// ElementIsEnabled waits for visibility and then queries the enabled state.
func (b *Base) ElementIsEnabled(ctx context.Context, loc Locator, wait time.Duration) (bool, error) {
	id, err := b.Visible(ctx, loc, wait)
	if err != nil {
		return false, err
	}
	enabled, err := b.drv.IsElementEnabled(id)
	if err != nil {
		return false, fmt.Errorf("query enabled state of %s: %w", loc, err)
	}
	logger.Debug("element %s enabled=%v", loc, enabled)
	return enabled, nil
}

// IsPresent reports whether the element appears within wait.
// A lookup timeout is a normal false, not an error.
func (b *Base) IsPresent(ctx context.Context, loc Locator, wait time.Duration) (bool, error) {
	if _, err := b.Find(ctx, loc, wait); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Click finds the element and clicks it.
func (b *Base) Click(ctx context.Context, loc Locator, wait time.Duration) error {
	id, err := b.Find(ctx, loc, wait)
	if err != nil {
		return err
	}
	if err := b.drv.ClickElement(id); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

// SendKeys finds the element, pauses, clears it, pauses again and types value.
func (b *Base) SendKeys(ctx context.Context, loc Locator, value string, wait, delay time.Duration) error {
	id, err := b.Find(ctx, loc, wait)
	if err != nil {
		return err
	}
	if err := b.sleep(ctx, delay); err != nil {
		return err
	}
	if err := b.drv.ClearElement(id); err != nil {
		return fmt.Errorf("clear %s: %w", loc, err)
	}
	if err := b.sleep(ctx, delay); err != nil {
		return err
	}
	if err := b.drv.SetElementValue(id, value); err != nil {
		return fmt.Errorf("type into %s: %w", loc, err)
	}
	return nil
}

// GetText returns the text of the element.
func (b *Base) GetText(ctx context.Context, loc Locator, wait time.Duration) (string, error) {
	id, err := b.Find(ctx, loc, wait)
	if err != nil {
		return "", err
	}
	text, err := b.drv.GetElementText(id)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", loc, err)
	}
	return text, nil
}

// TypeKeys sends text to the focused element one character at a time.
func (b *Base) TypeKeys(ctx context.Context, text string, perChar time.Duration) error {
	for _, r := range text {
		if err := b.drv.SendKeys(string(r)); err != nil {
			return fmt.Errorf("type key %q: %w", r, err)
		}
		if err := b.sleep(ctx, perChar); err != nil {
			return err
		}
	}
	return nil
}

// PressEnter sends the Enter key to the focused element.
func (b *Base) PressEnter(ctx context.Context) error {
	if err := b.drv.SendKeys(appium.KeyEnter); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

// Back presses the Android back key.
func (b *Base) Back(ctx context.Context) error {
	if err := b.drv.PressKeyCode(appium.KeyCodeBack); err != nil {
		return fmt.Errorf("press back: %w", err)
	}
	return nil
}

// SwipeToRefresh pulls down from the top tenth to the middle of the screen.
func (b *Base) SwipeToRefresh(ctx context.Context) error {
	w, h, err := b.drv.WindowSize()
	if err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	x := w / 2
	if err := b.drv.Swipe(x, h/10, x, h/2, 500); err != nil {
		return fmt.Errorf("swipe to refresh: %w", err)
	}
	return nil
}

// SwitchToWebView switches into the WebView context, preferring Chrome.
func (b *Base) SwitchToWebView(ctx context.Context) error {
	contexts, err := b.drv.Contexts()
	if err != nil {
		return fmt.Errorf("list contexts: %w", err)
	}
	var webviews []string
	for _, c := range contexts {
		if strings.Contains(c, "WEBVIEW") {
			webviews = append(webviews, c)
		}
	}
	if len(webviews) == 0 {
		return core.ErrNoWebView.WithDetails(map[string]interface{}{"contexts": strings.Join(contexts, ",")})
	}
	target := webviews[0]
	for _, c := range webviews {
		if c == "WEBVIEW_chrome" {
			target = c
			break
		}
	}
	if err := b.drv.SwitchContext(target); err != nil {
		return fmt.Errorf("switch to %s: %w", target, err)
	}
	logger.Debug("switched to context %s", target)
	return nil
}

// SwitchToNative switches back to the native application context.
func (b *Base) SwitchToNative(ctx context.Context) error {
	if err := b.drv.SwitchContext(appium.NativeContext); err != nil {
		return fmt.Errorf("switch to native: %w", err)
	}
	return nil
}

// FindWebView finds an element inside the current WebView.
func (b *Base) FindWebView(ctx context.Context, loc Locator, wait time.Duration) (string, error) {
	return b.Find(ctx, loc, wait)
}

// ClickWebView clicks an element inside the current WebView.
func (b *Base) ClickWebView(ctx context.Context, loc Locator, wait time.Duration) error {
	return b.Click(ctx, loc, wait)
}

// EnterTextInWebView clears a WebView input and types text into it.
func (b *Base) EnterTextInWebView(ctx context.Context, loc Locator, text string, wait time.Duration) error {
	return b.SendKeys(ctx, loc, text, wait, 0)
}

// GetTextFromWebView reads the text of a WebView element.
func (b *Base) GetTextFromWebView(ctx context.Context, loc Locator, wait time.Duration) (string, error) {
	return b.GetText(ctx, loc, wait)
}

// AssertText checks that the element text equals expected.
func (b *Base) AssertText(ctx context.Context, loc Locator, expected string) error {
	actual, err := b.GetText(ctx, loc, 0)
	if err != nil {
		return err
	}
	if actual != expected {
		return core.ErrTextMismatch.WithDetails(map[string]interface{}{
			"locator":  loc.String(),
			"expected": expected,
			"actual":   actual,
		})
	}
	return nil
}

// AssertTextContains checks that the element text contains substr.
func (b *Base) AssertTextContains(ctx context.Context, loc Locator, substr string) error {
	actual, err := b.GetText(ctx, loc, 0)
	if err != nil {
		return err
	}
	if !strings.Contains(actual, substr) {
		return core.ErrTextMismatch.
			WithMessage("element text does not contain expected text").
			WithDetails(map[string]interface{}{
				"locator":  loc.String(),
				"expected": substr,
				"actual":   actual,
			})
	}
	return nil
}
