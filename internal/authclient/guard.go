package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/models"
)

const maxDrainBytes = 64 << 10

// SendFunc issues one attempt of req, decorating it on the way out.
type SendFunc func(ctx context.Context, req *models.Request) (*http.Response, error)

type Guard struct {
	coordinator *Coordinator
	log         *zap.SugaredLogger
	metrics     *metrics.Metrics
}

func NewGuard(coordinator *Coordinator, log *zap.SugaredLogger, m *metrics.Metrics) *Guard {
	return &Guard{
		coordinator: coordinator,
		log:         log,
		metrics:     m,
	}
}

// Handle inspects resp for req. A 401 on a fresh request triggers a refresh
// and exactly one replay through send; a 401 on a replay, or a failed
// refresh, is returned as *AuthError holding the 401 response.
func (g *Guard) Handle(ctx context.Context, req *models.Request, resp *http.Response, send SendFunc) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized {
		if req.Retried() {
			g.metrics.Retried(resp.StatusCode)
		}
		return resp, nil
	}

	if req.Retried() {
		g.metrics.Retried(resp.StatusCode)
		g.metrics.AuthFailure("retry_exhausted")
		g.log.Warnw("Request rejected after refresh", "request_id", req.ID, "method", req.Method, "target", req.Target)
		return nil, newAuthError(ErrRetryExhausted, req, resp)
	}

	retry := req.MarkRetried()
	if err := g.coordinator.Refresh(ctx, sentToken(resp)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			drainAndClose(resp)
			return nil, err
		}
		g.metrics.AuthFailure("refresh_rejected")
		return nil, newAuthError(err, req, resp)
	}
	drainAndClose(resp)

	g.log.Debugw("Replaying request after refresh", "request_id", req.ID, "method", req.Method, "target", req.Target)
	next, err := send(ctx, retry)
	if err != nil {
		return nil, err
	}
	return g.Handle(ctx, retry, next, send)
}

func newAuthError(kind error, req *models.Request, resp *http.Response) *AuthError {
	return &AuthError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		RequestID:  req.ID,
		resp:       resp,
	}
}

// sentToken recovers the access token the rejected attempt carried.
func sentToken(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return bearerToken(resp.Request.Header.Get(models.AuthorizationHeader))
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
