// Package auth resolves the caller's profile from an HMAC-signed bearer
// token whose subject is the profile id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/http/respond"
)

type contextKey string

const profileIDKey contextKey = "profileID"

var ErrInvalidToken = errors.New("invalid or expired token")

type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

func New(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Middleware rejects requests without a valid bearer token and stores the
// token's profile id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			a.logger.Warn("auth: missing token",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			respond.Unauthorized(w, "Authentication token not provided.")

			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			a.logger.Warn("auth: invalid token format",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			respond.Unauthorized(w, "Invalid token format.")

			return
		}

		profileID, err := a.Validate(parts[1])
		if err != nil {
			a.logger.Warn("auth: rejected token",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			respond.Unauthorized(w, "Invalid or expired token.")

			return
		}

		next.ServeHTTP(w, r.WithContext(WithProfileID(r.Context(), profileID)))
	})
}

// Validate checks the token signature and expiry and returns its subject.
func (a *Authenticator) Validate(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	profileID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a profile id", ErrInvalidToken)
	}

	return profileID, nil
}

// Issue signs a token for profileID valid for ttl.
func (a *Authenticator) Issue(profileID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   profileID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	return token.SignedString(a.secret)
}

func WithProfileID(ctx context.Context, profileID uuid.UUID) context.Context {
	return context.WithValue(ctx, profileIDKey, profileID)
}

// ProfileID returns the authenticated profile, or uuid.Nil outside the
// middleware.
func ProfileID(ctx context.Context) uuid.UUID {
	v, _ := ctx.Value(profileIDKey).(uuid.UUID)
	return v
}
