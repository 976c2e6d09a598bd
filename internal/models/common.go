package models

//nolint:gosec //file not handles sensitive data
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	RequestIDHeader     = "X-Request-ID"

	// Persisted entry names of the durable session layout.
	AccessTokenKey  = "token"
	RefreshTokenKey = "refreshToken"

	MwUsernameKey = "username"
	MwTokenKey    = "token"
)
