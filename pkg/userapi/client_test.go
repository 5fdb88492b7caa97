package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
)

type backend struct {
	mu     sync.Mutex
	calls  []string
	bodies map[string]map[string]interface{}
	status map[string]int
}

func newBackend() *backend {
	return &backend{bodies: map[string]map[string]interface{}{}, status: map[string]int{}}
}

func (b *backend) handler(t *testing.T) http.Handler {
	responses := map[string]string{
		"/crm":          `[{"crm_id":1001,"first_name":"Иван","last_name":"Петров","middle_name":"Сергеевич","sex":"Мужской","email":"i@example.com","passport_series":"92 14","passport_number":"123456","passport_issue_place":"МВД","passport_division_code":"160-001","phone":"79170000001"}]`,
		"/processing":   `{"result":{"client":{"way4Id":"W4-7"}}}`,
		"/link":         `{"result":"ok"}`,
		"/gateway":      `{"result":555}`,
		"/save-proc":    `{"result":true}`,
		"/save-crm":     `{"result":true}`,
		"/digital-card": `{"result":{"contract":{"card":{"id":9001}}}}`,
		"/card-info":    `{"cardNumber":"2200000000000001","status":"Active"}`,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("%s: method = %s, want POST", r.URL.Path, r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.calls = append(b.calls, r.URL.Path)
		if len(data) > 0 {
			var body map[string]interface{}
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("%s: body is not JSON: %s", r.URL.Path, data)
			}
			b.bodies[r.URL.Path] = body
		}
		status := b.status[r.URL.Path]
		b.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		w.Write([]byte(responses[r.URL.Path]))
	})
}

func backendConfig(base string) config.Backend {
	return config.Backend{
		CRMURL:                base + "/crm",
		ProcessingURL:         base + "/processing",
		CRMAdapterURL:         base + "/link",
		GatewayIDURL:          base + "/gateway",
		SaveGatewayProcessing: base + "/save-proc",
		SaveGatewayCRM:        base + "/save-crm",
		DigitalCardURL:        base + "/digital-card",
		CardInfoURL:           base + "/card-info",
		GatewayPassword:       "gw-secret",
		ProductCode:           "KZH",
		Department:            "0000",
	}
}

func TestCreateTestUser(t *testing.T) {
	b := newBackend()
	server := httptest.NewServer(b.handler(t))
	defer server.Close()

	c := NewClient(backendConfig(server.URL), WithLoginGenerator(func() string { return "user42" }))
	user, err := c.CreateTestUser(context.Background())
	if err != nil {
		t.Fatalf("CreateTestUser() error = %v", err)
	}

	wantOrder := []string{"/crm", "/processing", "/link", "/gateway", "/save-proc", "/save-crm", "/digital-card", "/card-info"}
	if len(b.calls) != len(wantOrder) {
		t.Fatalf("calls = %v, want %v", b.calls, wantOrder)
	}
	for i, p := range wantOrder {
		if b.calls[i] != p {
			t.Errorf("call %d = %s, want %s", i, b.calls[i], p)
		}
	}

	if got := b.bodies["/link"]; got["crmId"] != "1001" || got["clientAbsId"] != "W4-7" {
		t.Errorf("link body = %v", got)
	}
	if got := b.bodies["/gateway"]; got["login"] != "user42" || got["password"] != "gw-secret" {
		t.Errorf("gateway body = %v", got)
	}
	if got := b.bodies["/save-proc"]; got["Way4Id"] != "W4-7" || got["BankokId"] != float64(555) {
		t.Errorf("save-proc body = %v", got)
	}
	if got := b.bodies["/card-info"]; got["CardId"] != float64(9001) {
		t.Errorf("card-info body = %v", got)
	}
	if _, ok := b.bodies["/crm"]; ok {
		t.Error("CRM create should be sent without a body")
	}

	if user.String("crm_id") != "1001" || user.String("phone") != "79170000001" {
		t.Errorf("user lost CRM fields: %v", user)
	}
	if user.String("cardNumber") != "2200000000000001" {
		t.Errorf("user missing card info: %v", user)
	}
}

func TestCreateTestUserStopsAtFirstFailure(t *testing.T) {
	b := newBackend()
	b.status["/link"] = http.StatusInternalServerError
	server := httptest.NewServer(b.handler(t))
	defer server.Close()

	_, err := NewClient(backendConfig(server.URL)).CreateTestUser(context.Background())

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Step != StepLinkProcessingID || se.Code != http.StatusInternalServerError {
		t.Errorf("StatusError = %+v", se)
	}
	if se.Body != `{"error":"boom"}` {
		t.Errorf("Body = %q", se.Body)
	}
	if len(b.calls) != 3 {
		t.Errorf("calls = %v, want chain to stop after link", b.calls)
	}
}

func TestCreateTestUserMissingWay4ID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/crm", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"crm_id":1,"first_name":"А","last_name":"Б","middle_name":"В","phone":"7"}]`))
	})
	mux.HandleFunc("/processing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := NewClient(backendConfig(server.URL)).CreateTestUser(context.Background())
	if err == nil {
		t.Fatal("expected error for missing way4Id")
	}
}

func TestCreateCRMUserEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewClient(config.Backend{CRMURL: server.URL}).CreateCRMUser(context.Background()); err == nil {
		t.Error("expected error for empty CRM response")
	}
}

func TestPostSendsBasicAuthAndRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "qa" || pass != "pw" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(config.Backend{CRMAdapterURL: server.URL, Username: "qa", Password: "pw"})
	if err := c.LinkProcessingID(context.Background(), NewLinkRequest("1", "2")); err != nil {
		t.Fatalf("LinkProcessingID() error = %v", err)
	}
}

func TestPostUnconfiguredEndpoint(t *testing.T) {
	c := NewClient(config.Backend{})
	if err := c.SaveGatewayIDCRM(context.Background(), NewSaveGatewayCRMRequest("1", "2")); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
