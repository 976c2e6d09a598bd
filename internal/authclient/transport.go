package authclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/rryowa/gymsession/internal/models"
)

// Transport runs the pipeline as an http.RoundTripper. Terminal authorization
// failures are returned as the final 401 response, not as an error.
type Transport struct {
	client *Client
	base   http.RoundTripper
}

// Transport wraps base, or http.DefaultTransport when base is nil.
func (c *Client) Transport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{client: c, base: base}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := requestFromHTTP(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	resp, err := t.send(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err = t.client.guard.Handle(ctx, req, resp, t.send)
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.resp != nil {
		return authErr.resp, nil
	}
	return resp, err
}

func (t *Transport) send(ctx context.Context, req *models.Request) (*http.Response, error) {
	if t.client.closed.Load() {
		return nil, ErrClientClosed
	}

	httpReq, err := t.client.auth.Decorate(req).Build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.Target, err)
	}
	return resp, nil
}

func requestFromHTTP(r *http.Request) (*models.Request, error) {
	var body []byte
	switch {
	case r.GetBody != nil:
		rc, err := r.GetBody()
		if err != nil {
			return nil, fmt.Errorf("get request body: %w", err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	case r.Body != nil && r.Body != http.NoBody:
		var err error
		body, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	id := r.Header.Get(models.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	return &models.Request{
		ID:     id,
		Method: r.Method,
		Target: r.URL.String(),
		Header: r.Header.Clone(),
		Body:   body,
	}, nil
}
