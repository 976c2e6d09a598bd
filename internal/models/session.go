package models

import "time"

// Session is the client-side credential pair. An empty string means the
// credential is absent.
type Session struct {
	AccessToken  string `json:"token" yaml:"token"`
	RefreshToken string `json:"refreshToken" yaml:"refreshToken"`
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// RefreshSession is the development server's record of an issued refresh token.
type RefreshSession struct {
	Username     string
	Selector     string
	VerifierHash string
	UserAgent    string
	IPAddress    string
	Used         bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
