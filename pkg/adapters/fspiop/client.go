// Package fspiop sends outbound protocol requests to the switch over HTTP.
package fspiop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/jpillora/backoff"
)

// Resources addressed by the client. Each may be routed to its own endpoint.
const (
	ResourceParties             = "parties"
	ResourceServices            = "services"
	ResourceQuotes              = "quotes"
	ResourceFxQuotes            = "fxQuotes"
	ResourceTransfers           = "transfers"
	ResourceFxTransfers         = "fxTransfers"
	ResourceBulkQuotes          = "bulkQuotes"
	ResourceBulkTransfers       = "bulkTransfers"
	ResourceTransactionRequests = "transactionRequests"
)

const (
	headerSource      = "FSPIOP-Source"
	headerDestination = "FSPIOP-Destination"
)

var _ ports.RequestClient = (*Client)(nil)

// Client implements ports.RequestClient.
type Client struct {
	dfspID     string
	peer       string
	endpoints  map[string]string
	httpClient *http.Client
	logger     *slog.Logger
	retries    int
	version    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client. TLS settings live there.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint routes resource to baseURL instead of the peer endpoint.
func WithEndpoint(resource, baseURL string) Option {
	return func(c *Client) { c.endpoints[resource] = strings.TrimRight(baseURL, "/") }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetries retries requests that failed before reaching the switch.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithAPIVersion sets the version advertised in content types.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// New creates a client sending as dfspID to the peer endpoint.
func New(dfspID, peer string, opts ...Option) *Client {
	c := &Client{
		dfspID:     dfspID,
		peer:       strings.TrimRight(peer, "/"),
		endpoints:  make(map[string]string),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
		version:    "1.1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetParties(ctx context.Context, idType, idValue, idSubValue, destFspID string) (*domain.Ack, error) {
	path := "/parties/" + url.PathEscape(idType) + "/" + url.PathEscape(idValue)
	if idSubValue != "" {
		path += "/" + url.PathEscape(idSubValue)
	}
	return c.do(ctx, http.MethodGet, ResourceParties, path, nil, destFspID)
}

func (c *Client) GetServicesFXP(ctx context.Context, sourceCurrency, targetCurrency string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodGet, ResourceServices, "/services/FXP/"+url.PathEscape(sourceCurrency)+"/"+url.PathEscape(targetCurrency), nil, "")
}

func (c *Client) PostQuotes(ctx context.Context, req domain.QuoteRequest, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceQuotes, "/quotes", req, destFspID)
}

func (c *Client) PostFxQuotes(ctx context.Context, req domain.FxQuoteRequest, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceFxQuotes, "/fxQuotes", req, destFspID)
}

func (c *Client) PostTransfers(ctx context.Context, req domain.TransferPrepare, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceTransfers, "/transfers", req, destFspID)
}

func (c *Client) PostFxTransfers(ctx context.Context, req domain.FxTransferPrepare, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceFxTransfers, "/fxTransfers", req, destFspID)
}

func (c *Client) PatchTransfers(ctx context.Context, transferID string, patch domain.TransferPatch, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPatch, ResourceTransfers, "/transfers/"+url.PathEscape(transferID), patch, destFspID)
}

func (c *Client) GetTransfers(ctx context.Context, transferID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodGet, ResourceTransfers, "/transfers/"+url.PathEscape(transferID), nil, "")
}

func (c *Client) PostBulkQuotes(ctx context.Context, req domain.BulkQuoteRequest, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceBulkQuotes, "/bulkQuotes", req, destFspID)
}

func (c *Client) PostBulkTransfers(ctx context.Context, req domain.BulkTransferRequest, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceBulkTransfers, "/bulkTransfers", req, destFspID)
}

func (c *Client) PostTransactionRequests(ctx context.Context, req domain.TransactionRequest, destFspID string) (*domain.Ack, error) {
	return c.do(ctx, http.MethodPost, ResourceTransactionRequests, "/transactionRequests", req, destFspID)
}

func (c *Client) baseURL(resource string) string {
	if u, ok := c.endpoints[resource]; ok {
		return u
	}
	return c.peer
}

func (c *Client) contentType(resource string) string {
	return fmt.Sprintf("application/vnd.interoperability.%s+json;version=%s", resource, c.version)
}

// do sends one request and returns the acknowledgement. Anything but a 2xx
// answer is a *domain.ProtocolError carrying the switch error body.
func (c *Client) do(ctx context.Context, method, resource, path string, body any, dest string) (*domain.Ack, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", resource, err)
		}
	}

	headers := map[string]string{
		"Content-Type": c.contentType(resource),
		"Accept":       c.contentType(resource),
		"Date":         time.Now().UTC().Format(http.TimeFormat),
		headerSource:   c.dfspID,
	}
	if dest != "" {
		headers[headerDestination] = dest
	}

	target := c.baseURL(resource) + path
	ack := &domain.Ack{Method: method, URL: target, Headers: headers, Body: raw}

	resp, err := c.send(ctx, method, target, headers, raw)
	if err != nil {
		return ack, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	ack.StatusCode = resp.StatusCode
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pErr := &domain.ProtocolError{
			Message:    fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		var info domain.ErrorInformationObject
		if json.Unmarshal(respBody, &info) == nil && info.ErrorInformation.ErrorCode != "" {
			pErr.MojaloopError = &info
		}
		return ack, pErr
	}
	c.logger.Debug("request accepted", "method", method, "url", target, "status", resp.StatusCode)
	return ack, nil
}

func (c *Client) send(ctx context.Context, method, target string, headers map[string]string, body []byte) (*http.Response, error) {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true}
	for {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		attempt := int(b.Attempt()) + 1
		if attempt > c.retries || ctx.Err() != nil {
			return nil, err
		}

		wait := b.Duration()
		c.logger.Warn("request failed, retrying", "url", target, "attempt", attempt, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
