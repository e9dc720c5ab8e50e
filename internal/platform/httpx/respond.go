// Package httpx provides the JSON result envelope used by every API endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Result is the structured outcome returned at the operation boundary.
type Result struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Result{Success: true, Message: message, Data: data})
}

// Created writes a successful envelope with 201.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Result{Success: true, Message: message, Data: data})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into target and validates its tags.
// Failures are returned as ErrBadRequest with per-field messages.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return &RequestError{Message: "malformed request body: " + err.Error()}
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
			}
			return &RequestError{Message: "request validation failed", Fields: fields}
		}
		return &RequestError{Message: err.Error()}
	}
	return nil
}

// PathInt64 parses a positive int64 URL parameter.
func PathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &RequestError{Message: fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return id, nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &RequestError{Message: fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return v, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter in loc.
func QueryDate(r *http.Request, name string, fallback time.Time, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, &RequestError{Message: fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", name, raw)}
	}
	return t, nil
}
