package security

import (
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the verified view of an access token issued by auth-service.
// UserID is opaque; booking never parses it.
type TokenClaims struct {
	UserID  string
	Role    string
	Ver     int64
	Exp     time.Time
	Issuer  string
	Subject string
}

type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (TokenClaims, error)
}
