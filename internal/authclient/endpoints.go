package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/util"
)

const defaultHTTPStatusThreshold = 300

// TokenAPI talks to the login and refresh endpoints directly, never through
// the authenticated pipeline.
type TokenAPI struct {
	client     *http.Client
	log        *zap.SugaredLogger
	loginURL   string
	refreshURL string
}

func NewTokenAPI(cfg *util.ClientConfig, client *http.Client, log *zap.SugaredLogger) (*TokenAPI, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	loginURL, err := base.Parse(cfg.LoginPath)
	if err != nil {
		return nil, fmt.Errorf("parse login path: %w", err)
	}
	refreshURL, err := base.Parse(cfg.RefreshPath)
	if err != nil {
		return nil, fmt.Errorf("parse refresh path: %w", err)
	}

	return &TokenAPI{
		client:     client,
		log:        log,
		loginURL:   loginURL.String(),
		refreshURL: refreshURL.String(),
	}, nil
}

func (a *TokenAPI) Login(ctx context.Context, username, password string) (models.TokenPairResponse, error) {
	var out models.TokenPairResponse
	err := a.post(ctx, a.loginURL, models.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return models.TokenPairResponse{}, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return models.TokenPairResponse{}, fmt.Errorf("login: %w", ErrMalformedResponse)
	}
	return out, nil
}

func (a *TokenAPI) Refresh(ctx context.Context, refreshToken string) (models.TokenRefreshResponse, error) {
	var out models.TokenRefreshResponse
	if err := a.post(ctx, a.refreshURL, models.TokenRefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return models.TokenRefreshResponse{}, fmt.Errorf("refresh: %w", err)
	}
	return out, nil
}

func (a *TokenAPI) post(ctx context.Context, target string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDrainBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		detail := errorDetail(body)
		a.log.Debugw("Token endpoint rejected request", "url", target, "status", resp.StatusCode, "detail", detail)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, detail)
		}
		return util.NewResponseError(resp.StatusCode, "%s", detail)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func errorDetail(body []byte) string {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return truncate(body, 200)
}
