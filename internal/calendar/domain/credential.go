package domain

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credential is one linked external calendar mailbox. At most one row exists
// per (user, email); relinking and token refreshes update it in place.
type Credential struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"not null;uniqueIndex:idx_credential_user_email"`
	Email        string    `json:"email" gorm:"not null;uniqueIndex:idx_credential_user_email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
	TokenURI     string    `json:"-"`
	ClientID     string    `json:"-"`
	Scopes       string    `json:"scopes"` // comma separated
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Credential) TableName() string {
	return "calendar_credentials"
}

func (c *Credential) ScopeList() []string {
	if c.Scopes == "" {
		return nil
	}
	return strings.Split(c.Scopes, ",")
}

// OAuthToken rebuilds the stored token for an oauth2 token source.
func (c *Credential) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.TokenExpiry,
	}
}

// TokenUpdateFunc persists a token the oauth2 client refreshed mid-call.
type TokenUpdateFunc func(token *oauth2.Token) error

// LinkedAccount is the result of a completed consent exchange.
type LinkedAccount struct {
	Email    string
	Token    *oauth2.Token
	TokenURI string
	ClientID string
	Scopes   []string
}
