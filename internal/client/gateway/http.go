package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/session"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/sethvargo/go-retry"
)

// HTTPGateway talks JSON over HTTP to the backend. Mutating calls are
// issued exactly once; idempotent reads get a small bounded retry on
// transient failures.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     session.TokenSource

	// retryBase is the first backoff step for idempotent reads.
	retryBase  time.Duration
	maxRetries uint64
}

func NewHTTPGateway(baseURL string, tokens session.TokenSource, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		retryBase:  200 * time.Millisecond,
		maxRetries: 2,
	}
}

func (g *HTTPGateway) List(ctx context.Context) ([]*models.Record, error) {
	var dtos []recordDTO
	err := g.retryRead(ctx, func(ctx context.Context) error {
		return g.call(ctx, http.MethodGet, "/records", nil, &dtos)
	})
	if err != nil {
		return nil, err
	}
	recs := make([]*models.Record, 0, len(dtos))
	for _, dto := range dtos {
		recs = append(recs, fromDTO(dto))
	}
	return recs, nil
}

func (g *HTTPGateway) Create(ctx context.Context, rec *models.Record) (string, error) {
	var out recordDTO
	if err := g.call(ctx, http.MethodPost, "/records", toDTO(rec), &out); err != nil {
		return "", err
	}
	if out.Id == "" {
		return "", fmt.Errorf("%w: create returned no remote id", common.ErrRemoteUnavailable)
	}
	return out.Id, nil
}

func (g *HTTPGateway) Update(ctx context.Context, rec *models.Record) error {
	path := "/records/" + url.PathEscape(rec.RemoteId)
	return g.call(ctx, http.MethodPut, path, toDTO(rec), nil)
}

func (g *HTTPGateway) Delete(ctx context.Context, remoteID string) error {
	path := "/records/" + url.PathEscape(remoteID)
	return g.call(ctx, http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) CountEvents(ctx context.Context, event EventType, from, to int64) (int, error) {
	q := url.Values{}
	q.Set("type", string(event))
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))

	var out struct {
		Count int `json:"count"`
	}
	err := g.retryRead(ctx, func(ctx context.Context) error {
		return g.call(ctx, http.MethodGet, "/events/count?"+q.Encode(), nil, &out)
	})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (g *HTTPGateway) QuotaStatus(ctx context.Context, fingerprint string, targetID int64) (*models.QuotaStatus, error) {
	req := quotaStatusRequest{Fingerprint: fingerprint, TargetId: targetID}
	var resp quotaStatusResponse
	err := g.retryRead(ctx, func(ctx context.Context) error {
		return g.callUnauthenticated(ctx, http.MethodPost, "/quota/status", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.toStatus(), nil
}

// retryRead retries fn on ErrRemoteUnavailable only. Rejections and context
// cancellation stop immediately.
func (g *HTTPGateway) retryRead(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(g.maxRetries, retry.NewFibonacci(g.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isUnavailable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// call issues an authenticated request. A missing session token degrades to
// ErrRemoteUnavailable: the caller falls back to offline behavior.
func (g *HTTPGateway) call(ctx context.Context, method, path string, in, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: no session token", common.ErrRemoteUnavailable)
	}
	return g.do(ctx, method, path, token, in, out)
}

// callUnauthenticated is for the guest quota endpoint, which is keyed by
// device fingerprint instead of a bearer token.
func (g *HTTPGateway) callUnauthenticated(ctx context.Context, method, path string, in, out any) error {
	return g.do(ctx, method, path, "", in, out)
}

func (g *HTTPGateway) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", common.ErrRemoteUnavailable, err)
		}
	}
	return nil
}

// mapStatus collapses HTTP status codes into the two sentinel classes.
func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", common.ErrRemoteRejected, code)
	default:
		return fmt.Errorf("%w: status %d", common.ErrRemoteUnavailable, code)
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, common.ErrRemoteUnavailable)
}
