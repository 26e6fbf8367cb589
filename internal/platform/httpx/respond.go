// Package httpx writes JSON and RFC7807 problem responses for the ops endpoints.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response titled after the status.
func Problem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// NotFound answers unknown ops routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Problem(w, http.StatusNotFound, r.URL.Path)
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Problem(w, http.StatusMethodNotAllowed, r.Method+" "+r.URL.Path)
}
