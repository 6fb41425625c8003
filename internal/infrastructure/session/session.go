// Package session keeps signed-in users' provider tokens server side. The
// browser only holds a signed cookie naming the session.
package session

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidToken = errors.New("invalid session token")
)

// User is the provider identity shown to the client.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type Session struct {
	ID          string
	AccessToken string
	User        *User
	ProjectID   string

	// OAuthState is the pending authorization request's state value.
	OAuthState string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// LoggedIn reports whether the session carries a provider token.
func (s *Session) LoggedIn() bool {
	return s != nil && s.AccessToken != ""
}
