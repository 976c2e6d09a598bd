package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/storage"
)

var (
	ErrInvalidCredentials         = errors.New("no active account found with the given credentials")
	ErrRefreshTokenNotFoundOrUsed = errors.New("refresh token not found or already used")
)

const (
	grantPassword = "password"
	grantRefresh  = "refresh"
)

// AuthService issues and renews tokens for a fixed set of users. users maps
// a username to its Argon2id password hash (see HashUsers).
type AuthService struct {
	tokens  *TokenService
	repo    storage.RefreshSessionRepository
	users   map[string]string
	rotate  bool
	metrics *metrics.IssuerMetrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewAuthService(
	tokens *TokenService,
	repo storage.RefreshSessionRepository,
	users map[string]string,
	rotate bool,
	m *metrics.IssuerMetrics,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		tokens:  tokens,
		repo:    repo,
		users:   users,
		rotate:  rotate,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Login checks the password and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, username, password, userAgent, ip string) (models.TokenPairResponse, error) {
	hash, ok := s.users[username]
	match, err := VerifyPassword(hash, password)
	if err != nil && ok {
		s.log.Errorw("Stored password hash unreadable", "username", username, "error", err)
	}
	if !ok || !match {
		s.metrics.Rejected(grantPassword)
		s.log.Infow("Login rejected", "username", username)
		return models.TokenPairResponse{}, ErrInvalidCredentials
	}

	now := s.now()
	access, jti, err := s.tokens.CreateAccessToken(username, now)
	if err != nil {
		return models.TokenPairResponse{}, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.issueRefresh(ctx, username, userAgent, ip, now)
	if err != nil {
		return models.TokenPairResponse{}, err
	}

	s.metrics.Issued(grantPassword)
	s.log.Infow("Token pair issued", "username", username, "jti", jti)

	return models.TokenPairResponse{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation on
// the presented token is consumed and a new one is returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (models.TokenRefreshResponse, error) {
	session, err := s.activeSession(ctx, refreshToken)
	if err != nil {
		s.metrics.Rejected(grantRefresh)
		return models.TokenRefreshResponse{}, err
	}

	now := s.now()
	resp := models.TokenRefreshResponse{}

	if s.rotate {
		if err := s.repo.MarkSessionAsUsed(ctx, session.Selector); err != nil {
			s.metrics.Rejected(grantRefresh)
			if errors.Is(err, storage.ErrSessionNotFound) {
				return models.TokenRefreshResponse{}, ErrRefreshTokenNotFoundOrUsed
			}
			return models.TokenRefreshResponse{}, fmt.Errorf("mark session used: %w", err)
		}
		resp.RefreshToken, err = s.issueRefresh(ctx, session.Username, userAgent, ip, now)
		if err != nil {
			return models.TokenRefreshResponse{}, err
		}
	}

	access, jti, err := s.tokens.CreateAccessToken(session.Username, now)
	if err != nil {
		return models.TokenRefreshResponse{}, fmt.Errorf("create access token: %w", err)
	}
	resp.AccessToken = access

	s.metrics.Issued(grantRefresh)
	s.log.Infow("Access token refreshed", "username", session.Username, "jti", jti, "rotated", s.rotate)

	return resp, nil
}

// Authenticate resolves a bearer access token to its username.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	username, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return "", err
	}
	if _, ok := s.users[username]; !ok {
		return "", ErrTokenInvalid
	}
	return username, nil
}

func (s *AuthService) activeSession(ctx context.Context, refreshToken string) (*models.RefreshSession, error) {
	selector, err := SplitRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	session, err := s.repo.GetActiveSessionBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrRefreshTokenNotFoundOrUsed
		}
		return nil, fmt.Errorf("get refresh session: %w", err)
	}

	if err := s.tokens.ValidateRefreshToken(refreshToken, session.VerifierHash); err != nil {
		s.log.Warnw("Refresh verifier mismatch", "selector", selector, "username", session.Username)
		return nil, ErrTokenInvalid
	}

	return session, nil
}

func (s *AuthService) issueRefresh(ctx context.Context, username, userAgent, ip string, now time.Time) (string, error) {
	token, selector, verifierHash, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return "", fmt.Errorf("create refresh token: %w", err)
	}

	err = s.repo.CreateSession(ctx, models.RefreshSession{
		Username:     username,
		Selector:     selector,
		VerifierHash: verifierHash,
		UserAgent:    userAgent,
		IPAddress:    ip,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.tokens.RefreshTTL()),
	}, s.tokens.RefreshTTL())
	if err != nil {
		return "", fmt.Errorf("create refresh session: %w", err)
	}

	return token, nil
}
