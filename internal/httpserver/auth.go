// apps/go-server/internal/httpserver/auth.go
//
// Control tokens.
// Whoever creates a game gets an HS256 JWT naming that game's session id
// (claim "sid"). Steering, resetting and deleting a game require it; reading
// frames does not. A token for one game never controls another.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

var errWrongSession = errors.New("token is for another game")

// controlClaims is the JWT payload for a control token.
type controlClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies control tokens.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// sign creates a token for session id and returns it with its expiry.
func (ti *tokenIssuer) sign(id string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, controlClaims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := t.SignedString(ti.secret)
	return ss, exp, err
}

// verify checks the signature and expiry and that the token controls id.
func (ti *tokenIssuer) verify(tokenStr, id string) error {
	claims := &controlClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return err
	}
	if claims.SessionID != id {
		return errWrongSession
	}
	return nil
}

// bearerOrQuery extracts a token from the Authorization header, falling back
// to the "token" query parameter (browsers cannot set headers on WebSockets).
func bearerOrQuery(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}

// ctxControlKey marks requests carrying a valid control token.
type ctxControlKey struct{}

// hasControl reports whether requireControl or withOptionalControl approved r.
func hasControl(r *http.Request) bool {
	ok, _ := r.Context().Value(ctxControlKey{}).(bool)
	return ok
}

// requireControl rejects requests without a valid token for the {id} game.
func (s *Server) requireControl() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrQuery(r)
			if tok == "" {
				jsonError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := s.tokens.verify(tok, chi.URLParam(r, "id")); err != nil {
				if errors.Is(err, errWrongSession) {
					jsonError(w, http.StatusForbidden, "forbidden")
					return
				}
				jsonError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxControlKey{}, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withOptionalControl marks the request as controlling when a valid token is
// present. It never rejects; spectators pass through.
func (s *Server) withOptionalControl() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerOrQuery(r); tok != "" {
				if err := s.tokens.verify(tok, chi.URLParam(r, "id")); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxControlKey{}, true))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
