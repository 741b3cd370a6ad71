// Package envelope defines the JSON body of every API reply.
package envelope

import (
	"time"

	"github.com/imrishuroy/go-storefront/internal/paging"
)

// FieldError names one invalid field of a request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the envelope of every API reply. Errors carries field-level
// validation failures; Error carries failure detail in debug mode only.
type Response struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	Data       interface{}  `json:"data,omitempty"`
	Pagination *paging.Meta `json:"pagination,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
	Error      string       `json:"error,omitempty"`
	Timestamp  string       `json:"timestamp"`
}

// Now formats the current time as envelope timestamps are written.
func Now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func OK(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data, Timestamp: Now()}
}

func Fail(message string) Response {
	return Response{Success: false, Message: message, Timestamp: Now()}
}

// Invalid is the reply to a request that failed binding or validation.
func Invalid(message string, fields []FieldError) Response {
	r := Fail(message)
	r.Errors = fields
	return r
}
