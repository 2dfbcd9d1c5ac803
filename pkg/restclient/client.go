// Package restclient is the single HTTP entry point the source adapters
// use to reach remote catalogs: one Request operation with mutual TLS,
// retry on failure, and a throttle shared across every call the client
// makes (spec §4.2). Retries add no backoff delay of their own; only the
// throttle spaces them.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
	"github.com/cmsdynamo/dynamo/pkg/log"
	"github.com/cmsdynamo/dynamo/pkg/metrics"
)

var restLog = log.WithComponent("restclient")

// Method is the HTTP verb a Request may use.
type Method string

const (
	MethodGET  Method = "GET"
	MethodPOST Method = "POST"
)

// Encoding selects how Options are carried on the wire.
type Encoding string

const (
	EncodingURL  Encoding = "url"
	EncodingJSON Encoding = "json"
)

// Config configures a Client.
type Config struct {
	BaseURL            string
	CredentialFile     string // single PEM, used as both cert and key
	CACertFile         string // optional; empty uses the system root pool
	InsecureSkipVerify bool
	MaxRetries         int
	RequestsPerSecond  float64
	Timeout            time.Duration
}

// Client issues requests against one remote catalog endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// New builds a Client from cfg, loading the mutual-TLS credential file.
func New(cfg Config) (*Client, error) {
	tlsConfig, err := loadClientTLSConfig(cfg.CredentialFile, cfg.CACertFile, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, fmt.Errorf("restclient: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
	}, nil
}

// Request issues one call against resource and decodes the JSON response
// into out. On transient failure it retries up to maxRetries times before
// returning a *inventory.TransientNetworkError carrying every attempt.
func (c *Client) Request(ctx context.Context, resource string, opts Options, method Method, encoding Encoding, out interface{}) error {
	pairs, err := normalizePairs(opts)
	if err != nil {
		return err
	}

	var attempts []inventory.AttemptError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			restLog.Warn().Str("resource", resource).Int("attempt", attempt).Msg("retrying request")
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, resource, pairs, method, encoding, out)
		if err == nil {
			metrics.RESTRequestsTotal.WithLabelValues(resource, "ok").Inc()
			return nil
		}
		attempts = append(attempts, inventory.AttemptError{Type: fmt.Sprintf("%T", err), Message: err.Error()})
	}

	metrics.RESTRequestsTotal.WithLabelValues(resource, "failed").Inc()
	return &inventory.TransientNetworkError{Resource: resource, Attempts: attempts}
}

func (c *Client) doOnce(ctx context.Context, resource string, pairs []Pair, method Method, encoding Encoding, out interface{}) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RESTRequestDuration, resource)

	var req *http.Request
	var err error

	switch method {
	case MethodGET:
		req, err = http.NewRequestWithContext(ctx, "GET", c.baseURL+resource+encodeQuery(pairs), nil)
	case MethodPOST:
		body, contentType := c.encodeBody(pairs, encoding)
		req, err = http.NewRequestWithContext(ctx, "POST", c.baseURL+resource, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", contentType)
		}
	default:
		return fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d: %s", resource, resp.StatusCode, string(data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &inventory.ParseError{Resource: resource, Err: err}
	}
	return nil
}

func (c *Client) encodeBody(pairs []Pair, encoding Encoding) ([]byte, string) {
	if encoding == EncodingJSON {
		data, _ := json.Marshal(pairsToJSONMap(pairs))
		return data, "application/json"
	}
	return []byte(encodeForm(pairs)), "application/x-www-form-urlencoded"
}

// RequestXML POSTs a raw XML body (the subscribe/delete payload shape of
// §6) instead of a Pair-encoded form, and decodes the JSON response into
// out. Retry/throttling/metrics behavior matches Request.
func (c *Client) RequestXML(ctx context.Context, resource string, body []byte, out interface{}) error {
	var attempts []inventory.AttemptError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			restLog.Warn().Str("resource", resource).Int("attempt", attempt).Msg("retrying request")
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnceXML(ctx, resource, body, out)
		if err == nil {
			metrics.RESTRequestsTotal.WithLabelValues(resource, "ok").Inc()
			return nil
		}
		attempts = append(attempts, inventory.AttemptError{Type: fmt.Sprintf("%T", err), Message: err.Error()})
	}

	metrics.RESTRequestsTotal.WithLabelValues(resource, "failed").Inc()
	return &inventory.TransientNetworkError{Resource: resource, Attempts: attempts}
}

func (c *Client) doOnceXML(ctx context.Context, resource string, body []byte, out interface{}) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RESTRequestDuration, resource)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+resource, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d: %s", resource, resp.StatusCode, string(data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &inventory.ParseError{Resource: resource, Err: err}
	}
	return nil
}
