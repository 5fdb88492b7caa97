// Package mock provides an in-memory automation backend for testing without a real device.
package mock

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/citizencard-qa/autotests-mobile/pkg/driver/appium"
)

// Element is a scripted UI element.
type Element struct {
	Text     string
	Hidden   bool
	Disabled bool
	// Context restricts the element to one automation context. Empty = any.
	Context string
}

// Swipe records a swipe gesture.
type Swipe struct {
	StartX, StartY, EndX, EndY, HoldMs int
}

// Device is a mock implementation of the screen automation surface.
// Elements are keyed by locator strategy and value; clicks can mutate
// the scripted UI through OnClick hooks.
type Device struct {
	mu sync.Mutex

	elements map[string]*Element
	onClick  map[string]func(*Device)
	ids      map[string]string
	nextID   int

	contexts []string
	current  string
	width    int
	height   int
	caps     map[string]string

	// FailScreenshot makes Screenshot return an error.
	FailScreenshot bool

	// Recorded interactions
	Clicks   []string
	Cleared  []string
	Values   map[string][]string
	Keys     []string
	KeyCodes []int
	Swipes   []Swipe
	Switches []string
	Removed  []string
	Closed   bool
}

// New creates an empty mock device in the native context.
func New() *Device {
	return &Device{
		elements: make(map[string]*Element),
		onClick:  make(map[string]func(*Device)),
		ids:      make(map[string]string),
		Values:   make(map[string][]string),
		contexts: []string{appium.NativeContext},
		current:  appium.NativeContext,
		width:    1080,
		height:   2400,
		caps:     map[string]string{"platformName": "Android"},
	}
}

// Key returns the map key for a locator.
func Key(strategy, value string) string {
	return strategy + "=" + value
}

// Set places (or replaces) an element.
func (d *Device) Set(strategy, value string, el Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := el
	d.elements[Key(strategy, value)] = &e
}

// SetText changes the text of an element, creating it when missing.
func (d *Device) SetText(strategy, value, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := Key(strategy, value)
	if e, ok := d.elements[key]; ok {
		e.Text = text
		return
	}
	d.elements[key] = &Element{Text: text}
}

// Remove deletes an element.
func (d *Device) Remove(strategy, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, Key(strategy, value))
}

// OnClick registers a hook run after the element is clicked.
// Hooks run without the device lock held and may call Set/SetText/Remove.
func (d *Device) OnClick(strategy, value string, fn func(*Device)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[Key(strategy, value)] = fn
}

// SetContexts replaces the available automation contexts.
func (d *Device) SetContexts(contexts ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contexts = contexts
}

// SetWindowSize changes the reported window size.
func (d *Device) SetWindowSize(w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = w, h
}

// SetCapability sets a capability reported by Capability.
func (d *Device) SetCapability(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caps[name] = value
}

// Capability returns a scripted session capability.
func (d *Device) Capability(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps[name]
}

// SessionID returns a fixed id.
func (d *Device) SessionID() string { return "mock-session" }

// CurrentContext returns the active context.
func (d *Device) CurrentContext() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// ClickCount returns how many times the element was clicked.
func (d *Device) ClickCount(strategy, value string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := Key(strategy, value)
	n := 0
	for _, c := range d.Clicks {
		if c == key {
			n++
		}
	}
	return n
}

// Typed joins every SendKeys payload.
func (d *Device) Typed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.Keys, "")
}

func (d *Device) noSuchElement(key string) error {
	return &appium.WebDriverError{
		Status:  http.StatusNotFound,
		Code:    "no such element",
		Message: fmt.Sprintf("An element could not be located on the page using the given search parameters (%s)", key),
	}
}

func (d *Device) lookup(id string) (string, *Element, error) {
	key, ok := d.ids[id]
	if !ok {
		return "", nil, &appium.WebDriverError{Status: http.StatusNotFound, Code: "stale element reference", Message: id}
	}
	e, ok := d.elements[key]
	if !ok || !d.inContext(e) {
		return "", nil, &appium.WebDriverError{Status: http.StatusNotFound, Code: "stale element reference", Message: id}
	}
	return key, e, nil
}

func (d *Device) inContext(e *Element) bool {
	return e.Context == "" || e.Context == d.current
}

// FindElement returns an element id for a scripted element.
func (d *Device) FindElement(strategy, value string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := Key(strategy, value)
	e, ok := d.elements[key]
	if !ok || !d.inContext(e) {
		return "", d.noSuchElement(key)
	}
	for id, k := range d.ids {
		if k == key {
			return id, nil
		}
	}
	d.nextID++
	id := fmt.Sprintf("mock-%d", d.nextID)
	d.ids[id] = key
	return id, nil
}

// ClickElement records a click and runs the element's hook.
func (d *Device) ClickElement(elementID string) error {
	d.mu.Lock()
	key, _, err := d.lookup(elementID)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.Clicks = append(d.Clicks, key)
	hook := d.onClick[key]
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

// ClearElement records a clear and empties the element text.
func (d *Device) ClearElement(elementID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key, e, err := d.lookup(elementID)
	if err != nil {
		return err
	}
	d.Cleared = append(d.Cleared, key)
	e.Text = ""
	return nil
}

// SetElementValue records typed text on an element.
func (d *Device) SetElementValue(elementID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key, e, err := d.lookup(elementID)
	if err != nil {
		return err
	}
	d.Values[key] = append(d.Values[key], text)
	e.Text += text
	return nil
}

// GetElementText returns the element text.
func (d *Device) GetElementText(elementID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, e, err := d.lookup(elementID)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

// IsElementDisplayed reports whether the element is visible.
func (d *Device) IsElementDisplayed(elementID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, e, err := d.lookup(elementID)
	if err != nil {
		return false, err
	}
	return !e.Hidden, nil
}

// IsElementEnabled reports whether the element is enabled.
func (d *Device) IsElementEnabled(elementID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, e, err := d.lookup(elementID)
	if err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

// SendKeys records keyboard input.
func (d *Device) SendKeys(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Keys = append(d.Keys, text)
	return nil
}

// PressKeyCode records an Android key code.
func (d *Device) PressKeyCode(keycode int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.KeyCodes = append(d.KeyCodes, keycode)
	return nil
}

// WindowSize returns the scripted window size.
func (d *Device) WindowSize() (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height, nil
}

// Swipe records a swipe gesture.
func (d *Device) Swipe(startX, startY, endX, endY, holdMs int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Swipes = append(d.Swipes, Swipe{startX, startY, endX, endY, holdMs})
	return nil
}

// Contexts returns the available contexts.
func (d *Device) Contexts() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.contexts...), nil
}

// SwitchContext changes the active context.
func (d *Device) SwitchContext(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.contexts {
		if c == name {
			d.current = name
			d.Switches = append(d.Switches, name)
			return nil
		}
	}
	return &appium.WebDriverError{Status: http.StatusNotFound, Code: "no such context", Message: name}
}

// RemoveApp records an app removal.
func (d *Device) RemoveApp(appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Removed = append(d.Removed, appID)
	return nil
}

// Disconnect marks the session closed.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Screenshot returns a minimal valid PNG image (1x1 transparent pixel).
func (d *Device) Screenshot() ([]byte, error) {
	if d.FailScreenshot {
		return nil, fmt.Errorf("mock screenshot failure")
	}
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// Source returns a hierarchy listing the scripted elements.
func (d *Device) Source() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><hierarchy>`)
	for key, e := range d.elements {
		fmt.Fprintf(&b, `<node locator=%q text=%q/>`, key, e.Text)
	}
	b.WriteString(`</hierarchy>`)
	return b.String(), nil
}
