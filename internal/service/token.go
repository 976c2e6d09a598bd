package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/gymsession/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

type TokenService struct {
	JwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		JwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

// CreateAccessToken signs an HS512 access token for username with a fresh jti.
func (ts *TokenService) CreateAccessToken(username string, now time.Time) (string, string, error) {
	jti := uuid.NewString()
	claims := &jwt.RegisteredClaims{
		ID:        jti,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.JwtSecretKey)
	if err != nil {
		return "", "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, jti, nil
}

// CreateRefreshToken returns an opaque selector.verifier token. Only the
// verifier hash is meant to be stored.
func (ts *TokenService) CreateRefreshToken() (token, selector, verifierHash string, err error) {
	rawToken := make([]byte, util.RawTokenLength)
	if _, err = rand.Read(rawToken); err != nil {
		return "", "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	selector = base64.RawURLEncoding.EncodeToString(rawToken[:16])
	verifier := base64.RawURLEncoding.EncodeToString(rawToken[16:])

	hashedVerifierBytes := sha256.Sum256([]byte(verifier))
	verifierHash = hex.EncodeToString(hashedVerifierBytes[:])

	token = selector + "." + verifier

	return token, selector, verifierHash, nil
}

// SplitRefreshToken returns the selector part used to look the session up.
func SplitRefreshToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != util.TokenPartsExpected || parts[0] == "" || parts[1] == "" {
		return "", ErrTokenMalformed
	}
	return parts[0], nil
}

func (ts *TokenService) ValidateRefreshToken(token, verifierHash string) error {
	parts := strings.Split(token, ".")
	if len(parts) != util.TokenPartsExpected {
		return ErrTokenMalformed
	}

	verifier := parts[1]

	hashedVerifierBytes, err := hex.DecodeString(verifierHash)
	if err != nil {
		return fmt.Errorf("failed to decode stored hash: %w", err)
	}

	newHashBytes := sha256.Sum256([]byte(verifier))

	if subtle.ConstantTimeCompare(newHashBytes[:], hashedVerifierBytes) != 1 {
		return ErrTokenInvalid
	}

	return nil
}

// ValidateAccessToken checks signature and expiry and returns the subject.
func (ts *TokenService) ValidateAccessToken(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.JwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}
