// Package xdr is a client for the Cortex XDR public REST API.
//
// Every call is a JSON POST of {"request_data": {...}} to a path under
// <server>/public_api/v1 and every response is wrapped as {"reply": ...}.
// The client unwraps that envelope and turns HTTP or envelope failures into
// *APIError values.
package xdr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/invisible-tech/xdr-responder/internal/version"
)

const apiPrefix = "/public_api/v1"

// Client handles communication with the Cortex XDR API.
type Client struct {
	baseURL    string
	apiKey     string
	apiKeyID   string
	advanced   bool
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Logger
	now        func() time.Time
}

// Config for the XDR client.
type Config struct {
	// ServerURL is the tenant API URL, e.g. https://api-acme.xdr.us.paloaltonetworks.com.
	// The /public_api/v1 suffix is appended when missing.
	ServerURL string
	APIKey    string
	APIKeyID  string
	// Advanced selects the hashed nonce/timestamp authentication scheme.
	Advanced bool
	Timeout  time.Duration
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// NewClient creates a new XDR API client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    baseURL(cfg.ServerURL),
		apiKey:     cfg.APIKey,
		apiKeyID:   cfg.APIKeyID,
		advanced:   cfg.Advanced,
		httpClient: httpClient,
		limiter:    limiter,
		log:        log,
		now:        time.Now,
	}
}

func baseURL(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if strings.HasSuffix(server, apiPrefix) {
		return server
	}
	return server + apiPrefix
}

// BaseURL returns the API root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends requestData to path and decodes the reply payload into out.
// out may be nil when the caller does not need the payload.
func (c *Client) Post(ctx context.Context, path string, requestData interface{}, out interface{}) error {
	reply, err := c.post(ctx, path, requestData)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeJSON(reply, out); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", path, err)
	}
	return nil
}

// post performs the round trip and returns the raw reply payload.
func (c *Client) post(ctx context.Context, path string, requestData interface{}) (json.RawMessage, error) {
	if c.apiKey == "" || c.apiKeyID == "" {
		return nil, fmt.Errorf("xdr client not configured")
	}
	if requestData == nil {
		requestData = struct{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"request_data": requestData})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	c.sign(req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeRequest(path, "error", time.Since(start))
		return nil, fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()
	observeRequest(path, strconv.Itoa(resp.StatusCode), time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	c.log.WithFields(logrus.Fields{
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start).String(),
	}).Debug("XDR API request completed")

	return unwrapReply(path, resp.StatusCode, respBody)
}

// unwrapReply extracts the reply payload, converting HTTP and envelope
// failures into *APIError.
func unwrapReply(path string, status int, body []byte) (json.RawMessage, error) {
	var envelope struct {
		Reply json.RawMessage `json:"reply"`
	}
	decodeErr := json.Unmarshal(body, &envelope)

	if status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status, Path: path}
		if decodeErr == nil {
			apiErr.fillFromReply(envelope.Reply)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, &APIError{StatusCode: status, Path: path, Message: fmt.Sprintf("invalid JSON response: %v", decodeErr)}
	}
	if len(envelope.Reply) == 0 || string(envelope.Reply) == "null" {
		return nil, &APIError{StatusCode: status, Path: path, Message: "response is missing the reply envelope"}
	}
	apiErr := &APIError{StatusCode: status, Path: path}
	if apiErr.fillFromReply(envelope.Reply) {
		return nil, apiErr
	}
	return envelope.Reply, nil
}

// decodeJSON decodes with UseNumber so ids and epoch timestamps inside
// untyped records keep their exact integer form.
func decodeJSON(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// TestConnection performs the cheapest authenticated call to verify the
// credentials and server URL.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetIncidents(ctx, IncidentFilter{Limit: 1})
	return err
}
