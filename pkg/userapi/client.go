// Package userapi provisions fresh test users through the banking core:
// CRM, the processing system and the messaging gateway.
package userapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// Step names one call of the provisioning chain.
type Step string

// Provisioning steps in execution order.
const (
	StepCreateCRMUser           Step = "create CRM user"
	StepCreateProcessingUser    Step = "create processing user"
	StepLinkProcessingID        Step = "link processing id into CRM"
	StepGenerateGatewayID       Step = "generate gateway id"
	StepSaveGatewayIDProcessing Step = "save gateway id into processing"
	StepSaveGatewayIDCRM        Step = "save gateway id into CRM"
	StepIssueDigitalCard        Step = "issue digital card"
	StepCardInfo                Step = "fetch card info"
)

// StatusError is returned when a step answers with anything but 200.
type StatusError struct {
	Step Step
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Step, e.Code, e.Body)
}

// Client calls the provisioning endpoints.
type Client struct {
	cfg   config.Backend
	http  *http.Client
	login func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLoginGenerator replaces the random gateway login generator.
func WithLoginGenerator(fn func() string) Option { return func(c *Client) { c.login = fn } }

// NewClient creates a provisioning client for the configured backend.
func NewClient(cfg config.Backend, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: 60 * time.Second},
		login: RandomLogin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RandomLogin returns a gateway login of the form user<1..1e11>.
func RandomLogin() string {
	return fmt.Sprintf("user%d", rand.Int63n(100000000000)+1) //nolint:gosec
}

// CreateTestUser runs the whole chain strictly in order and returns the CRM
// user merged with the issued card info. The first failing step aborts the
// chain; nothing already created is rolled back.
func (c *Client) CreateTestUser(ctx context.Context) (Record, error) {
	log := logger.Named("API")

	user, err := c.CreateCRMUser(ctx)
	if err != nil {
		return nil, err
	}
	crmID := user.String("crm_id")

	procReq, err := NewProcessingUserRequest(user, c.cfg.Department)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StepCreateProcessingUser, err)
	}
	procUser, err := c.CreateProcessingUser(ctx, procReq)
	if err != nil {
		return nil, err
	}
	rawWay4ID, err := procUser.Path("result", "client", "way4Id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StepCreateProcessingUser, err)
	}
	way4ID := idString(rawWay4ID)

	if err := c.LinkProcessingID(ctx, NewLinkRequest(crmID, way4ID)); err != nil {
		return nil, err
	}

	login := c.login()
	gw, err := c.GenerateGatewayID(ctx, NewGatewayIDRequest(login, c.cfg.GatewayPassword))
	if err != nil {
		return nil, err
	}
	gatewayID, err := gw.Path("result")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StepGenerateGatewayID, err)
	}

	if err := c.SaveGatewayIDProcessing(ctx, NewSaveGatewayProcessingRequest(way4ID, gatewayID)); err != nil {
		return nil, err
	}
	if err := c.SaveGatewayIDCRM(ctx, NewSaveGatewayCRMRequest(crmID, gatewayID)); err != nil {
		return nil, err
	}

	card, err := c.IssueDigitalCard(ctx, NewDigitalCardRequest(way4ID, user, c.cfg.ProductCode, c.cfg.Department))
	if err != nil {
		return nil, err
	}
	cardID, err := card.Path("result", "contract", "card", "id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StepIssueDigitalCard, err)
	}

	info, err := c.CardInfo(ctx, NewCardInfoRequest(cardID))
	if err != nil {
		return nil, err
	}
	for k, v := range info {
		user[k] = v
	}

	log.Infof("test user created: crm_id=%s way4Id=%s login=%s phone=%s", crmID, way4ID, login, user.String("phone"))
	return user, nil
}

// CreateCRMUser creates a client in CRM and returns the first record of the response.
func (c *Client) CreateCRMUser(ctx context.Context) (Record, error) {
	var users []Record
	if err := c.post(ctx, StepCreateCRMUser, c.cfg.CRMURL, nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%s: empty response", StepCreateCRMUser)
	}
	return users[0], nil
}

// CreateProcessingUser creates the client in the processing system.
func (c *Client) CreateProcessingUser(ctx context.Context, req ProcessingUserRequest) (Record, error) {
	var out Record
	if err := c.post(ctx, StepCreateProcessingUser, c.cfg.ProcessingURL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkProcessingID stores the processing id on the CRM client.
func (c *Client) LinkProcessingID(ctx context.Context, req LinkRequest) error {
	return c.post(ctx, StepLinkProcessingID, c.cfg.CRMAdapterURL, req, nil)
}

// GenerateGatewayID registers a login in the messaging gateway.
func (c *Client) GenerateGatewayID(ctx context.Context, req GatewayIDRequest) (Record, error) {
	var out Record
	if err := c.post(ctx, StepGenerateGatewayID, c.cfg.GatewayIDURL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveGatewayIDProcessing stores the gateway id in the processing system.
func (c *Client) SaveGatewayIDProcessing(ctx context.Context, req SaveGatewayProcessingRequest) error {
	return c.post(ctx, StepSaveGatewayIDProcessing, c.cfg.SaveGatewayProcessing, req, nil)
}

// SaveGatewayIDCRM stores the gateway id on the CRM client.
func (c *Client) SaveGatewayIDCRM(ctx context.Context, req SaveGatewayCRMRequest) error {
	return c.post(ctx, StepSaveGatewayIDCRM, c.cfg.SaveGatewayCRM, req, nil)
}

// IssueDigitalCard issues a digital resident card.
func (c *Client) IssueDigitalCard(ctx context.Context, req DigitalCardRequest) (Record, error) {
	var out Record
	if err := c.post(ctx, StepIssueDigitalCard, c.cfg.DigitalCardURL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CardInfo fetches the details of an issued card.
func (c *Client) CardInfo(ctx context.Context, req CardInfoRequest) (Record, error) {
	var out Record
	if err := c.post(ctx, StepCardInfo, c.cfg.CardInfoURL, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, step Step, url string, body, out interface{}) error {
	log := logger.Named("API")
	if url == "" {
		return fmt.Errorf("%s: endpoint not configured", step)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", step, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", step, err)
	}
	log.Infof("POST %s: status %d", step, resp.StatusCode)
	log.Infof("response body: %s", data)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Step: step, Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", step, err)
	}
	return nil
}
