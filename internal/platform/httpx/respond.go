// Package httpx provides JSON response and request helpers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an error body.
func Problem(w http.ResponseWriter, status int, title, message string) {
	if message == "" {
		message = title
	}
	JSON(w, status, ErrorBody{
		Message: message,
		Title:   title,
		Status:  status,
	})
}

// DecodeJSON decodes JSON request body into the target struct. An empty body
// leaves target untouched.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return Invalid(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

// ParseUUID parses an identifier taken from a path or query parameter.
func ParseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, Invalid(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// OptionalUUID parses raw when present.
func OptionalUUID(raw, name string) (uuid.NullUUID, error) {
	if raw == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := ParseUUID(raw, name)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// PageParams reads page and perPage query parameters.
func PageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("perPage"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}
	return page, perPage
}
