// Package respond writes JSON bodies and maps service errors to HTTP
// statuses for the API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/apperr"
)

type ErrorBody struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

// Status maps an error kind to its HTTP status.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as {"kind","field","message"}. Internal errors are logged
// and reach the client only as a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		JSON(w, status, ErrorBody{Kind: string(apperr.KindInternal), Message: "internal error"})

		return
	}

	var appErr *apperr.Error
	errors.As(err, &appErr)

	JSON(w, status, ErrorBody{
		Kind:    string(appErr.Kind),
		Field:   appErr.Field,
		Message: appErr.Message,
	})
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, ErrorBody{Kind: "unauthorized", Message: message})
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("body", fmt.Sprintf("Invalid request body: %v.", err))
	}

	return nil
}

// PathID parses the chi URL parameter key as a UUID.
func PathID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, apperr.Validation(key, "Invalid id.")
	}

	return id, nil
}

// Date is a calendar date carried as "2006-01-02" on the wire.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	t, err := ParseDate(s)
	if err != nil {
		return err
	}

	d.Time = t

	return nil
}

// ParseDate accepts a plain date or an RFC 3339 timestamp and keeps the
// calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// DatePtr converts an optional time to an optional wire date.
func DatePtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}

	return &Date{Time: *t}
}
