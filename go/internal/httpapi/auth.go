package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Claims is the bearer token body. Subject is the user ID.
type Claims struct {
	Roles   []string `json:"roles,omitempty"`
	TeamIDs []string `json:"team_ids,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued by the identity service.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret []byte, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{secret: secret, now: now}
}

// Middleware rejects requests without a valid token and stores the caller's
// Principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "missing auth token")
			return
		}
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "auth token must be a bearer token")
			return
		}

		p, err := a.Verify(tokenStr)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses tokenStr and returns the principal it names.
func (a *Authenticator) Verify(tokenStr string) (auction.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return auction.Principal{}, err
	}
	if claims.Subject == "" {
		return auction.Principal{}, errors.New("token has no subject")
	}

	p := auction.Principal{UserID: claims.Subject}
	for _, role := range claims.Roles {
		p.Roles = append(p.Roles, auction.Role(role))
	}
	for _, raw := range claims.TeamIDs {
		teamID, err := uuid.Parse(raw)
		if err != nil {
			return auction.Principal{}, fmt.Errorf("invalid team id %q: %w", raw, err)
		}
		p.TeamIDs = append(p.TeamIDs, teamID)
	}
	return p, nil
}

// SignToken issues a token for p that expires after ttl.
func SignToken(secret []byte, p auction.Principal, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	for _, role := range p.Roles {
		claims.Roles = append(claims.Roles, string(role))
	}
	for _, teamID := range p.TeamIDs {
		claims.TeamIDs = append(claims.TeamIDs, teamID.String())
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// PrincipalFrom returns the caller stored by Middleware.
func PrincipalFrom(ctx context.Context) (auction.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(auction.Principal)
	return p, ok
}
