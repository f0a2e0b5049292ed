package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

const (
	defaultHTTPTimeout        = 30 * time.Second
	defaultHTTPConnectTimeout = 5 * time.Second
	defaultHTTPTLSTimeout     = 5 * time.Second
	maxResponseBytes          = 10 << 20
)

func defaultClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// HTTP is a Store that talks JSON over HTTP to a record node.
type HTTP struct {
	base   *url.URL
	client *http.Client
	auth   Authorizer
}

var _ Store = (*HTTP)(nil)

// HTTPOption configures an HTTP store.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithTimeout sets the overall per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.client = defaultClient(d) }
}

// NewHTTP creates a store for the node at baseURL. auth may be nil, in which
// case writes are sent unauthenticated and the node will reject them.
func NewHTTP(baseURL string, auth Authorizer, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("recordstore: parse node url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("recordstore: unsupported node url scheme %q", u.Scheme)
	}
	h := &HTTP{base: u, client: defaultClient(0), auth: auth}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTP) recordURL(addr models.RecordAddress, tail ...string) string {
	parts := []string{"api", "programs", url.PathEscape(addr.ProgramID), "records", url.PathEscape(addr.Key)}
	parts = append(parts, tail...)
	return h.base.String() + "/" + strings.Join(parts, "/")
}

// FetchRecord implements Store.
func (h *HTTP) FetchRecord(ctx context.Context, addr models.RecordAddress) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.recordURL(addr), nil)
	if err != nil {
		return Failed(fmt.Errorf("recordstore: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("%w: fetch %s: %v", apperr.ErrRemote, addr, err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec models.Record
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rec); err != nil {
			return Failed(fmt.Errorf("%w: decode record: %v", apperr.ErrRemote, err))
		}
		digest := strings.Trim(resp.Header.Get("ETag"), `"`)
		if digest == "" {
			digest = checksum.Record(rec)
		}
		return Found(rec, digest)
	case http.StatusNotFound:
		return Absent()
	default:
		return Failed(statusError(resp))
	}
}

// InitializeRecord implements Store.
func (h *HTTP) InitializeRecord(ctx context.Context, addr models.RecordAddress, owner models.Identity) error {
	resp, err := h.post(ctx, h.recordURL(addr), owner, map[string]string{"owner": owner.String()})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("recordstore: initialize %s: %w", addr, apperr.ErrAlreadyExists)
	default:
		return statusError(resp)
	}
}

// AppendContribution implements Store.
func (h *HTTP) AppendContribution(ctx context.Context, addr models.RecordAddress, text string, author models.Identity) error {
	if text == "" {
		return apperr.ErrEmptyInput
	}
	body := map[string]string{"author": author.String(), "text": text}
	resp, err := h.post(ctx, h.recordURL(addr, "contributions"), author, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("recordstore: append %s: %w", addr, apperr.ErrNotInitialized)
	default:
		return statusError(resp)
	}
}

func (h *HTTP) post(ctx context.Context, target string, signer models.Identity, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("recordstore: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("recordstore: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.auth != nil {
		token, err := h.auth.Authorize(ctx, signer)
		if err != nil {
			return nil, fmt.Errorf("%w: authorize: %w", apperr.ErrRemote, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRemote, err)
	}
	return resp, nil
}

// statusError converts an unexpected response into an ErrRemote, keeping the
// node's error message.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w: %s", apperr.ErrRemote, apperr.ErrUnauthorized, msg)
	}
	return fmt.Errorf("%w: status %d: %s", apperr.ErrRemote, resp.StatusCode, msg)
}
