// Package walletclient speaks the JSON-over-HTTP protocol of the remote
// wallet gateways. Both wallet adapters sit on top of it; it knows nothing
// about either provider's payloads or status codes.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultPollInterval  = 500 * time.Millisecond
	defaultMaxPollErrors = 3
	maxErrorBodyBytes    = 512
)

// Event types sent by the gateways.
const (
	EventTypeStatus          = "status"
	EventTypeSuccess         = "success"
	EventTypeFailure         = "failure"
	EventTypeCardInfoUpdated = "card_info_updated"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// APIKey is sent as a bearer token.
	APIKey string
	// ServiceID is sent as X-Partner-Service-Id when set.
	ServiceID string
	// ServiceType is sent as X-Partner-Service-Type when set.
	ServiceType string

	HTTPClient    *http.Client
	PollInterval  time.Duration
	MaxPollErrors int
	Logger        *logrus.Entry
}

// Client is a wallet gateway client.
type Client struct {
	baseURL       string
	apiKey        string
	serviceID     string
	serviceType   string
	httpClient    *http.Client
	pollInterval  time.Duration
	maxPollErrors int
	log           *logrus.Entry
}

// Card mirrors the card object in card_info_updated events.
type Card struct {
	CardID string `json:"card_id"`
	Brand  string `json:"brand"`
	Last4  string `json:"last4,omitempty"`
}

// Event is one entry of a session's event log.
type Event struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	StatusCode int             `json:"status_code,omitempty"`
	Token      string          `json:"token,omitempty"`
	ErrorCode  int             `json:"error_code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Card       *Card           `json:"card,omitempty"`
	Sheet      json.RawMessage `json:"sheet,omitempty"`
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Type != EventTypeCardInfoUpdated
}

// ReadinessResponse is the gateway's answer to a readiness probe.
type ReadinessResponse struct {
	StatusCode int `json:"status_code"`
	ReasonCode int `json:"reason_code"`
}

type startSessionRequest struct {
	RequestID string      `json:"request_id"`
	Payload   interface{} `json:"payload"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("walletclient: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "walletclient: invalid base URL")
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		serviceID:     cfg.ServiceID,
		serviceType:   cfg.ServiceType,
		httpClient:    cfg.HTTPClient,
		pollInterval:  cfg.PollInterval,
		maxPollErrors: cfg.MaxPollErrors,
		log:           cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxPollErrors <= 0 {
		c.maxPollErrors = defaultMaxPollErrors
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return c, nil
}

// StartSession opens a payment session on the gateway for requestID.
func (c *Client) StartSession(ctx context.Context, requestID string, payload interface{}) (string, error) {
	var resp startSessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/payments", startSessionRequest{RequestID: requestID, Payload: payload}, &resp)
	if err != nil {
		return "", errors.Wrapf(err, "walletclient: start session for request %s", requestID)
	}
	if resp.SessionID == "" {
		return "", errors.Errorf("walletclient: gateway returned no session id for request %s", requestID)
	}
	return resp.SessionID, nil
}

// Events returns the events of session with a sequence number above after.
func (c *Client) Events(ctx context.Context, session string, after int64) ([]Event, error) {
	path := fmt.Sprintf("/v1/payments/%s/events?after=%d", url.PathEscape(session), after)
	var resp eventsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "walletclient: fetch events for session %s", session)
	}
	return resp.Events, nil
}

// Watch polls the session's events and hands them to handle in sequence
// order until a terminal event has been handled or ctx is done. handle runs
// on the polling goroutine, so the next event is not fetched before it
// returns. Watch gives up after MaxPollErrors consecutive failed polls.
func (c *Client) Watch(ctx context.Context, session string, handle func(Event)) error {
	var after int64
	failures := 0
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		events, err := c.Events(ctx, session, after)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			c.log.WithError(err).WithFields(logrus.Fields{
				"session":  session,
				"failures": failures,
			}).Warn("event poll failed")
			if failures >= c.maxPollErrors {
				return errors.Wrapf(err, "walletclient: giving up on session %s after %d failed polls", session, failures)
			}
		} else {
			failures = 0
			for _, ev := range events {
				if ev.Seq <= after {
					continue
				}
				after = ev.Seq
				handle(ev)
				if ev.Terminal() {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PostSheet sends an updated custom sheet for session.
func (c *Client) PostSheet(ctx context.Context, session string, sheet json.RawMessage) error {
	path := fmt.Sprintf("/v1/payments/%s/sheet", url.PathEscape(session))
	if err := c.do(ctx, http.MethodPost, path, sheet, nil); err != nil {
		return errors.Wrapf(err, "walletclient: update sheet for session %s", session)
	}
	return nil
}

// Readiness asks the gateway whether the wallet can take payments.
func (c *Client) Readiness(ctx context.Context) (ReadinessResponse, error) {
	var resp ReadinessResponse
	if err := c.do(ctx, http.MethodGet, "/v1/readiness", nil, &resp); err != nil {
		return ReadinessResponse{}, errors.Wrap(err, "walletclient: readiness")
	}
	return resp, nil
}

// Activate starts the wallet's setup flow.
func (c *Client) Activate(ctx context.Context) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, "/v1/activation", nil, nil), "walletclient: activation")
}

// OpenUpdatePage sends the user to the wallet app's update page.
func (c *Client) OpenUpdatePage(ctx context.Context) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, "/v1/update-page", nil, nil), "walletclient: update page")
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		var raw []byte
		switch b := body.(type) {
		case json.RawMessage:
			raw = b
		default:
			var err error
			raw, err = json.Marshal(body)
			if err != nil {
				return errors.Wrap(err, "marshal request body")
			}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.serviceID != "" {
		req.Header.Set("X-Partner-Service-Id", c.serviceID)
	}
	if c.serviceType != "" {
		req.Header.Set("X-Partner-Service-Type", c.serviceType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return errors.Errorf("%s %s returned HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}
