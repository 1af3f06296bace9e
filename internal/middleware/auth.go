package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is the identity the chat core consumes: a stable user identifier
// plus the guest-tier flag. The engine never sees tokens or accounts.
type Principal struct {
	UserID string
	Guest  bool
}

type contextKey struct{}

// PrincipalFrom extracts the request identity placed by Identity.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Identity resolves the request's principal. A valid Bearer token identifies
// an authenticated user by its sub claim; anything else is a guest, keyed by
// the X-Guest-ID header when the client supplies one so a guest's quota
// follows them across requests.
func Identity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := guestPrincipal(r)

			if userID, ok := authenticatedUser(r, jwtSecret); ok {
				principal = Principal{UserID: userID, Guest: false}
			}

			ctx := context.WithValue(r.Context(), contextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticatedUser(r *http.Request, jwtSecret string) (string, bool) {
	if jwtSecret == "" {
		return "", false
	}

	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		return "", false
	}
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = tokenString[7:]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}

func guestPrincipal(r *http.Request) Principal {
	guestID := strings.TrimSpace(r.Header.Get("X-Guest-ID"))
	if guestID == "" {
		guestID = uuid.NewString()
	}
	return Principal{UserID: "guest:" + guestID, Guest: true}
}
