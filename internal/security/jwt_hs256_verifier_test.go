package security_test

import (
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/security"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func userClaims(uid string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"uid":  uid,
		"role": "user",
		"ver":  1,
		"iat":  time.Now().Unix(),
		"exp":  exp.Unix(),
		"iss":  "auth-service",
	}
}

func TestHS256Verifier_VerifyAccessToken(t *testing.T) {
	secret := []byte("supersecret")
	v := security.NewHS256Verifier(string(secret))

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, secret, userClaims("user-alice-id", time.Now().Add(time.Hour)))

		claims, err := v.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-alice-id", claims.UserID)
		assert.Equal(t, "user", claims.Role)
		assert.Equal(t, int64(1), claims.Ver)
		assert.Equal(t, "auth-service", claims.Issuer)
	})

	t.Run("expired token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, secret, userClaims("u1", time.Now().Add(-time.Minute)))

		_, err := v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, security.ErrTokenExpired)
	})

	t.Run("wrong signature", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte("othersecret"), userClaims("u1", time.Now().Add(time.Hour)))

		_, err := v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := v.VerifyAccessToken("not.a.jwt")
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS512, secret, userClaims("u1", time.Now().Add(time.Hour)))

		_, err := v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})

	t.Run("subject fallback", func(t *testing.T) {
		c := userClaims("", time.Now().Add(time.Hour))
		c["sub"] = "user-bob-id"
		token := sign(t, jwt.SigningMethodHS256, secret, c)

		claims, err := v.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-bob-id", claims.UserID)
	})

	t.Run("no user id at all", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, secret, userClaims("", time.Now().Add(time.Hour)))

		_, err := v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, security.ErrTokenInvalid)
	})
}

func TestHS256Verifier_Issuer(t *testing.T) {
	secret := []byte("supersecret")
	v := security.NewHS256Verifier(string(secret), security.WithIssuer("auth-service"))

	ok := sign(t, jwt.SigningMethodHS256, secret, userClaims("u1", time.Now().Add(time.Hour)))
	_, err := v.VerifyAccessToken(ok)
	assert.NoError(t, err)

	c := userClaims("u1", time.Now().Add(time.Hour))
	c["iss"] = "someone-else"
	bad := sign(t, jwt.SigningMethodHS256, secret, c)
	_, err = v.VerifyAccessToken(bad)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}
