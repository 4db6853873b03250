// Package problem renders RFC 7807 problem+json error responses shared by
// every domain handler.
package problem

import (
	"encoding/json"
	"net/http"
)

// Stable problem type URIs surfaced in the "type" member.
const (
	TypeValidation   = "https://homebasehq.com/problems/validation-error"
	TypeUnauthorized = "https://homebasehq.com/problems/unauthorized"
	TypeForbidden    = "https://homebasehq.com/problems/forbidden"
	TypeNotFound     = "https://homebasehq.com/problems/not-found"
	TypeConflict     = "https://homebasehq.com/problems/conflict"
	TypeInternal     = "https://homebasehq.com/problems/internal-error"
)

// Details is the RFC 7807 response body.
type Details struct {
	Type   string               `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail string               `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// New builds a Details value.
func New(status int, title, detail, problemType string) Details {
	return Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithFields attaches per-field validation messages.
func (d Details) WithFields(fields map[string][]string) Details {
	if len(fields) == 0 {
		return d
	}
	copied := make(map[string][]string, len(fields))
	for field, messages := range fields {
		copied[field] = append([]string(nil), messages...)
	}
	d.Errors = &copied
	return d
}

// Write renders the problem document with the application/problem+json
// content type.
func Write(w http.ResponseWriter, d Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}

// WriteJSON renders a plain JSON success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
