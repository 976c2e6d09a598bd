// Package authclient implements the authenticated request pipeline: bearer
// decoration of outgoing requests, detection of 401 responses, a single-flight
// session refresh and at most one replay per request.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/models"
)

type TokenEndpoints interface {
	Refresher
	Login(ctx context.Context, username, password string) (models.TokenPairResponse, error)
}

// Client is the pipeline object. Build one at start-up, share it, and Close it
// at shutdown.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	store       SessionStore
	tokens      TokenEndpoints
	auth        *Authenticator
	coordinator *Coordinator
	guard       *Guard
	log         *zap.SugaredLogger
	closed      atomic.Bool
}

func NewClient(
	baseURL string,
	store SessionStore,
	tokens TokenEndpoints,
	httpClient *http.Client,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	coordinator := NewCoordinator(store, tokens, log, m)
	return &Client{
		baseURL:     base,
		http:        httpClient,
		store:       store,
		tokens:      tokens,
		auth:        NewAuthenticator(store),
		coordinator: coordinator,
		guard:       NewGuard(coordinator, log, m),
		log:         log,
	}, nil
}

// OnSessionExpired registers a callback fired when a refresh is rejected and
// the session has been cleared.
func (c *Client) OnSessionExpired(fn func(error)) {
	c.coordinator.OnSessionExpired(fn)
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	pair, err := c.tokens.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.coordinator.ResetWith(ErrSessionReset, func() {
		c.store.Set(pair.AccessToken, pair.RefreshToken)
	})
	c.log.Infow("Logged in", "username", username)
	return nil
}

// Logout clears the session. Requests waiting on a refresh fail with
// ErrSessionReset; a refresh already on the wire settles and is discarded.
func (c *Client) Logout() {
	c.coordinator.ResetWith(ErrSessionReset, c.store.Clear)
	c.log.Info("Logged out")
}

func (c *Client) IsAuthenticated() bool {
	return c.store.Get().Authenticated()
}

func (c *Client) Session() models.Session {
	return c.store.Get()
}

// Refresh forces a refresh cycle, sharing one already in flight.
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.coordinator.Refresh(ctx, "")
}

func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.coordinator.Reset(ErrClientClosed)
	c.http.CloseIdleConnections()
}

// Do sends req through the pipeline. Authorization failures come back as
// *AuthError, transport failures wrap ErrNetwork.
func (c *Client) Do(ctx context.Context, req *models.Request) (*http.Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err = c.guard.Handle(ctx, req, resp, c.send)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) && authErr.resp != nil {
			authErr.Body, _ = io.ReadAll(io.LimitReader(authErr.resp.Body, maxDrainBytes))
			drainAndClose(authErr.resp)
			authErr.resp = nil
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req *models.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	httpReq, err := c.auth.Decorate(req).Build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.Target, err)
	}
	return resp, nil
}

// NewRequest resolves path against the base URL and JSON-encodes body when
// it is not nil.
func (c *Client) NewRequest(method, path string, body any) (*models.Request, error) {
	target, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	req := models.NewRequest(method, target.String(), payload)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.NewRequest(method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}
	if resp.StatusCode >= defaultHTTPStatusThreshold {
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
