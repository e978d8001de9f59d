/* Package auth verifies request identity for the webhook API. A bearer
 * token (or an access_token cookie as fallback) is validated as an
 * HS256 JWT and the subject claim becomes the requesting user id.
 */
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("authentication required")

// Verifier turns a credential string into a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier validates HS256-signed tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing subject claim")
	}

	return sub, nil
}

// Sign issues an HS256 token for a user. Used by tests and local tooling.
func Sign(secret, userID string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

/* FromRequest extracts the credential from an incoming request. The
 * Authorization header takes precedence; browser clients that cannot
 * set headers may send an access_token cookie instead.
 */
func FromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" {
			return token, true
		}
	}

	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

// UserID resolves the requesting user or reports ErrUnauthenticated.
func UserID(r *http.Request, verifier Verifier) (string, error) {
	token, ok := FromRequest(r)
	if !ok {
		return "", ErrUnauthenticated
	}

	userID, err := verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return userID, nil
}
