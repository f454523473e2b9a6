package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether the saved auth token has passed its exp
// claim. The token is parsed without signature verification: the
// identity service owns validation, this is only a local staleness
// check before reusing a persisted session. An unparsable token or one
// without an exp claim counts as expired, forcing a fresh login.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(now)
}
