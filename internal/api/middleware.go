/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth middleware
 * validates bearer JWTs signed with the service's shared secret and puts the
 * caller's ledger account id (the `sub` claim) on the request context. Sellers,
 * buyers, and trigger sources all authenticate the same way; what each party
 * may do is decided in the service layer against that identity.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// PartyIDContextKey is a custom type for the context key to avoid collisions.
type PartyIDContextKey string

const partyIDKey PartyIDContextKey = "partyID"

// AuthMiddleware creates a middleware that validates HMAC-signed JWTs.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			// The 'sub' claim carries the caller's ledger account id.
			partyID, ok := claims["sub"].(string)
			if !ok || strings.TrimSpace(partyID) == "" {
				http.Error(w, "Party ID not found in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), partyIDKey, partyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPartyID retrieves the authenticated party's ledger account id from the
// request context.
func GetPartyID(ctx context.Context) (string, bool) {
	partyID, ok := ctx.Value(partyIDKey).(string)
	return partyID, ok
}
