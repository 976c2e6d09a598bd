package authclient

import (
	"strings"

	"github.com/rryowa/gymsession/internal/models"
)

// SessionStore is the process-wide holder of the client credentials.
type SessionStore interface {
	Get() models.Session
	Set(accessToken, refreshToken string)
	Clear()
}

type Authenticator struct {
	store SessionStore
}

func NewAuthenticator(store SessionStore) *Authenticator {
	return &Authenticator{store: store}
}

// Decorate attaches the current access token. Without one any Authorization
// header already on req is stripped, so the request goes out unauthenticated.
func (a *Authenticator) Decorate(req *models.Request) *models.Request {
	token := a.store.Get().AccessToken
	if token == "" {
		return req.WithoutHeader(models.AuthorizationHeader)
	}
	return req.WithHeader(models.AuthorizationHeader, models.BearerPrefix+token)
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, models.BearerPrefix)
	if !ok {
		return ""
	}
	return token
}
