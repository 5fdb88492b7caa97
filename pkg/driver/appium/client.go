// Package appium is a thin client for an Appium server speaking the W3C WebDriver protocol,
// covering what the citizen card screens need: element lookup, text input, touch actions,
// native/WebView context switching and app removal.
package appium

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// NativeContext is the Appium context name of the native app layer.
const NativeContext = "NATIVE_APP"

// Android key codes used by the suite.
const (
	KeyCodeBack = 4
)

// W3C key values.
const (
	KeyEnter = "\uE007"
)

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL    string
	sessionID    string
	client       *http.Client
	capabilities map[string]interface{} // as returned by the server
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // APK install happens inside session creation
		},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post("/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.capabilities, _ = value["capabilities"].(map[string]interface{})
	if c.capabilities == nil {
		c.capabilities = map[string]interface{}{}
	}

	return nil
}

// Disconnect closes the session (driver.quit).
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the current session id, empty when not connected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Capability returns a capability the server reported for the session.
func (c *Client) Capability(name string) string {
	v, _ := c.capabilities[name].(string)
	return v
}

// WindowSize queries the current window size.
func (c *Client) WindowSize() (int, int, error) {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		return 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, fmt.Errorf("invalid window rect response")
	}
	w, _ := value["width"].(float64)
	h, _ := value["height"].(float64)
	return int(w), int(h), nil
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("element not found")
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", fmt.Errorf("element not found")
	}
	return id, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", nil)
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", nil)
	return err
}

// SetElementValue types text into an element (element.send_keys).
func (c *Client) SetElementValue(elementID, text string) error {
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Touch/Key Operations (W3C Actions)

// PointerStep is one W3C pointer action.
type PointerStep map[string]interface{}

// PointerMove moves the touch pointer to viewport coordinates.
func PointerMove(x, y, durationMs int) PointerStep {
	return PointerStep{"type": "pointerMove", "duration": durationMs, "x": x, "y": y, "origin": "viewport"}
}

// PointerDown presses the touch pointer.
func PointerDown() PointerStep { return PointerStep{"type": "pointerDown", "button": 0} }

// PointerUp releases the touch pointer.
func PointerUp() PointerStep { return PointerStep{"type": "pointerUp", "button": 0} }

// Pause waits inside an action sequence.
func Pause(durationMs int) PointerStep { return PointerStep{"type": "pause", "duration": durationMs} }

// PerformTouch runs a touch pointer action sequence.
func (c *Client) PerformTouch(steps ...PointerStep) error {
	actions := make([]map[string]interface{}, 0, len(steps))
	for _, s := range steps {
		actions = append(actions, s)
	}
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "touch",
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": payload})
	return err
}

// Swipe performs a swipe gesture holding the pointer down for holdMs before moving.
func (c *Client) Swipe(startX, startY, endX, endY, holdMs int) error {
	return c.PerformTouch(
		PointerMove(startX, startY, 0),
		PointerDown(),
		Pause(holdMs),
		PointerMove(endX, endY, 250),
		PointerUp(),
	)
}

// SendKeys sends text to the focused element as W3C key actions (ActionChains.send_keys).
func (c *Client) SendKeys(text string) error {
	var keyActions []map[string]interface{}
	for _, ch := range text {
		keyActions = append(keyActions,
			map[string]interface{}{"type": "keyDown", "value": string(ch)},
			map[string]interface{}{"type": "keyUp", "value": string(ch)},
		)
	}

	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{
		"actions": []map[string]interface{}{
			{
				"type":    "key",
				"id":      "keyboard",
				"actions": keyActions,
			},
		},
	})
	return err
}

// PressKeyCode presses an Android key by keycode.
func (c *Client) PressKeyCode(keycode int) error {
	_, err := c.post(c.sessionPath()+"/appium/device/press_keycode", map[string]interface{}{
		"keycode": keycode,
	})
	return err
}

// Back presses the Android back button.
func (c *Client) Back() error {
	return c.PressKeyCode(KeyCodeBack)
}

// Contexts

// Contexts lists the available contexts (NATIVE_APP, WEBVIEW_*).
func (c *Client) Contexts() ([]string, error) {
	resp, err := c.get(c.sessionPath() + "/contexts")
	if err != nil {
		return nil, err
	}
	values, _ := resp["value"].([]interface{})
	contexts := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			contexts = append(contexts, s)
		}
	}
	return contexts, nil
}

// SwitchContext activates the named context.
func (c *Client) SwitchContext(name string) error {
	_, err := c.post(c.sessionPath()+"/context", map[string]interface{}{
		"name": name,
	})
	return err
}

// App Management

// RemoveApp uninstalls an app through the Appium server (works on device farms).
func (c *Client) RemoveApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/remove_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request(http.MethodGet, path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request(http.MethodPost, path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request(http.MethodDelete, path, nil)
}

// WebDriverError is an error reported by the server in the W3C error envelope.
type WebDriverError struct {
	Status  int
	Code    string // "no such element", "stale element reference", ...
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err is a WebDriver "no such element" error.
func IsNoSuchElement(err error) bool {
	var wd *WebDriverError
	return errors.As(err, &wd) && wd.Code == "no such element"
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	} else if method == http.MethodPost {
		bodyReader = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
