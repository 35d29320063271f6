package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/http/auth"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestMiddleware(t *testing.T) {
	profileID := uuid.New()
	a := auth.New(secret, zap.NewNop())

	valid, err := a.Issue(profileID, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "Valid", header: "Bearer " + valid, status: http.StatusOK},
		{name: "LowercaseScheme", header: "bearer " + valid, status: http.StatusOK},
		{name: "Missing", header: "", status: http.StatusUnauthorized},
		{name: "NoScheme", header: valid, status: http.StatusUnauthorized},
		{name: "BasicScheme", header: "Basic dXNlcjpwYXNz", status: http.StatusUnauthorized},
		{
			name: "WrongSecret",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
				Subject: profileID.String(),
			}),
			status: http.StatusUnauthorized,
		},
		{
			name: "Expired",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject:   profileID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}),
			status: http.StatusUnauthorized,
		},
		{
			name: "SubjectNotUUID",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject: "alice",
			}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "UnsignedToken",
			header: "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{Subject: profileID.String()}),
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen uuid.UUID

			handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = auth.ProfileID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)

			if tt.status == http.StatusOK {
				assert.Equal(t, profileID, seen)
			} else {
				assert.Equal(t, uuid.Nil, seen)
				assert.JSONEq(t, `{"kind":"unauthorized","message":"`+messageFor(tt.name)+`"}`, rec.Body.String())
			}
		})
	}
}

func messageFor(name string) string {
	switch name {
	case "Missing":
		return "Authentication token not provided."
	case "NoScheme", "BasicScheme":
		return "Invalid token format."
	default:
		return "Invalid or expired token."
	}
}

func TestProfileID_OutsideMiddleware(t *testing.T) {
	assert.Equal(t, uuid.Nil, auth.ProfileID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
