// Bearer token authentication

package main

import (
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// CheckBearerToken verifies a bearer credential and extracts the
// subject identifier from it. Returns the empty string when the
// token is rejected for any reason: the caller only learns who is
// asking, never why verification failed.
func CheckBearerToken(auth string) string {
	var JWT_SECRET = os.Getenv("JWT_SECRET")

	if JWT_SECRET == "" {
		return "" // Bearer authentication disabled
	}

	if auth == "" {
		return ""
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}

	if audience := os.Getenv("JWT_AUDIENCE"); audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(auth, func(token *jwt.Token) (interface{}, error) {
		// Provide signing key
		return []byte(JWT_SECRET), nil
	}, options...)

	if err != nil || !token.Valid {
		return "" // Invalid token
	}

	claims, ok := token.Claims.(jwt.MapClaims)

	if !ok {
		return ""
	}

	subject, ok := claims["sub"].(string)

	if !ok || subject == "" {
		return "" // No subject
	}

	return subject
}
